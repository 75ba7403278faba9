package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/dropkeeper/internal/server"
	"github.com/dmitrijs2005/dropkeeper/internal/server/config"
)

func run(ctx context.Context, cfg *config.Config) error {
	app, err := server.NewApp(cfg)
	if err != nil {
		return err
	}
	return app.Run(ctx)
}

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("%v", err)
	}

}
