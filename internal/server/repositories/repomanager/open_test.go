package repomanager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpenPostgres_Unreachable(t *testing.T) {
	db, m, err := OpenPostgres(context.Background(), "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")
	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Nil(t, m)
}
