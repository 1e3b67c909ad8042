package database

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS product_formulas (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		formula TEXT NOT NULL UNIQUE CHECK (formula <> '')
	)`,
		`CREATE TABLE IF NOT EXISTS reactant_formulas (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		formula TEXT NOT NULL UNIQUE CHECK (formula <> '')
	)`,
		`CREATE TABLE IF NOT EXISTS original_image (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		image_data TEXT NOT NULL
	)`,
	},
}

type SQLiteDatabase struct {
	sqlStore
	connectionString string
}

// NewSQLiteDatabase opens the file (or ":memory:") database named by connectionString.
// The pool is limited to one connection: an in-memory database only exists per connection
// and SQLite serializes writers anyway.
func NewSQLiteDatabase(connectionString string) (*SQLiteDatabase, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	return &SQLiteDatabase{
		sqlStore:         sqlStore{db: db, dialect: sqliteDialect},
		connectionString: connectionString,
	}, nil
}
