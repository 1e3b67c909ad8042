package database

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
	TypeRedis    = "redis"
)

// Options carries backend specific settings that are not part of the connection string.
type Options struct {
	KeyPrefix string // redis only
}

func NewDatabase(ctx context.Context, databaseType, connectionString string, options Options) (database DatabaseService, err error) {
	switch databaseType {
	case TypeSQLite:
		database, err = NewSQLiteDatabase(connectionString)
	case TypePostgres:
		database, err = NewPostgresDatabase(connectionString)
	case TypeRedis:
		database, err = NewRedisDatabase(connectionString, options.KeyPrefix)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", databaseType)
	}
	if err != nil {
		return nil, err
	}

	// Ensure database schema exists (idempotent), important for in-memory SQLite
	slog.Info("initializing database schema (ensuring tables exist)", "type", databaseType)
	if err = database.CreateDatabase(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	return database, nil
}
