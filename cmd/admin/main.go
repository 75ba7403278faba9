package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/dropkeeper/internal/admin"
	"github.com/dmitrijs2005/dropkeeper/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := admin.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	if err := app.Run(ctx, admin.CommandFromArgs(os.Args[1:])); err != nil {
		log.Fatalf("%v", err)
	}

}
