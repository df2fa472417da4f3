package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS students (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    first_name VARCHAR(120) NOT NULL,
    last_name VARCHAR(120),
    email VARCHAR(120) NOT NULL UNIQUE,
    age INTEGER,
    created_at TIMESTAMP NOT NULL
)`

const postgresSchema = `CREATE TABLE IF NOT EXISTS students (
    id BIGSERIAL PRIMARY KEY,
    first_name VARCHAR(120) NOT NULL,
    last_name VARCHAR(120),
    email VARCHAR(120) NOT NULL UNIQUE,
    age INTEGER,
    created_at TIMESTAMPTZ NOT NULL
)`

// EnsureSchema creates the students table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	ddl := sqliteSchema
	if db.DriverName() == DriverPostgres {
		ddl = postgresSchema
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure students schema: %w", err)
	}
	return nil
}
