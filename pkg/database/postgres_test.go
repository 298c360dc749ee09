package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/RodenPaul86/docmatic/pkg/config"
)

func TestDSNEscapesCredentials(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "doc", Password: "p@ss word", Name: "docmatic", SSLMode: "disable"})
	assert.Equal(t, "postgres://doc:p%40ss%20word@db:5432/docmatic?sslmode=disable", dsn)
}

func TestNewPostgresHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPostgres(ctx, config.DatabaseConfig{Host: "127.0.0.1", Port: 1, User: "x", Name: "x", SSLMode: "disable"})
	assert.Error(t, err)
}
