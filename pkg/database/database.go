package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/noah-isme/students-api/pkg/config"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	memoryPath = ":memory:"
)

// ParseURL resolves a DATABASE_URL into a driver name and a driver specific
// DSN. sqlite:///students.db is relative, sqlite:////var/lib/students.db is
// absolute and sqlite:// alone is an in-memory database.
func ParseURL(raw string) (driver string, dsn string, err error) {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "sqlite3://"):
		return DriverSQLite, sqliteDSN(strings.TrimPrefix(raw, "sqlite3://")), nil
	case strings.HasPrefix(raw, "sqlite://"):
		return DriverSQLite, sqliteDSN(strings.TrimPrefix(raw, "sqlite://")), nil
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return DriverPostgres, raw, nil
	case raw == "":
		return "", "", fmt.Errorf("database url is empty")
	default:
		return "", "", fmt.Errorf("unsupported database url scheme: %q", schemeOf(raw))
	}
}

func sqliteDSN(rest string) string {
	path := rest
	if strings.HasPrefix(path, "/") {
		path = path[1:]
	}
	if path == "" {
		path = memoryPath
	}
	return path + "?_busy_timeout=5000"
}

func schemeOf(raw string) string {
	if i := strings.Index(raw, "://"); i > 0 {
		return raw[:i]
	}
	return raw
}

// Open returns a configured connection pool for cfg.URL.
func Open(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	driver, dsn, err := ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	// every sqlite in-memory connection is its own database
	if strings.HasPrefix(dsn, memoryPath) {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetConnMaxLifetime(1 * time.Hour)
		db.SetConnMaxIdleTime(30 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
