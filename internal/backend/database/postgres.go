package database

import (
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var postgresDialect = dialect{
	name: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS product_formulas (
		id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		formula TEXT NOT NULL UNIQUE CHECK (formula <> '')
	)`,
		`CREATE TABLE IF NOT EXISTS reactant_formulas (
		id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		formula TEXT NOT NULL UNIQUE CHECK (formula <> '')
	)`,
		`CREATE TABLE IF NOT EXISTS original_image (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		image_data TEXT NOT NULL
	)`,
	},
	// match SQLite's BINARY collation regardless of the server locale
	orderBy:              ` COLLATE "C"`,
	numberedPlaceholders: true,
}

type PostgresDatabase struct {
	sqlStore
}

// NewPostgresDatabase opens a pool against a PostgreSQL server. Connections are established lazily.
func NewPostgresDatabase(connectionString string) (*PostgresDatabase, error) {
	db, err := sql.Open("pgx", normalizePostgresURL(connectionString))
	if err != nil {
		return nil, err
	}

	return &PostgresDatabase{
		sqlStore: sqlStore{db: db, dialect: postgresDialect},
	}, nil
}

// normalizePostgresURL rewrites the legacy "postgres://" scheme some hosting providers hand out.
func normalizePostgresURL(connectionString string) string {
	if strings.HasPrefix(connectionString, "postgres://") {
		return "postgresql://" + strings.TrimPrefix(connectionString, "postgres://")
	}
	return connectionString
}
