package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"log/slog"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver
	_ "modernc.org/sqlite"             // cgo-free sqlite driver
)

//go:embed schema_sqlite.sql
var schemaSQLite string

//go:embed schema_postgres.sql
var schemaPostgres string

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

type Config struct {
	DSN         string
	DialTimeout time.Duration
}

// DB wraps database/sql with the dialect the DSN selected.
type DB struct {
	*sql.DB
	Dialect string
}

// Open connects to the store. A postgres:// DSN goes through pgx; anything
// else is treated as a sqlite file path and opened with WAL and relaxed
// synchronous durability (one writer, concurrent readers).
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dialect := dialectFor(cfg.DSN)
	logger.Info("db.open", "dialect", dialect)

	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case DialectPostgres:
		db, err = sql.Open("pgx", cfg.DSN)
	default:
		db, err = sql.Open("sqlite", sqliteDSN(cfg.DSN))
	}
	if err != nil {
		logger.Error("db.open.failed", "error", err)
		return nil, err
	}

	// The upsert's conflict clause is the sole concurrency mechanism for
	// duplicate digests; keep a single writer connection for sqlite.
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		logger.Error("db.ping.failed", "error", err)
		_ = db.Close()
		return nil, err
	}

	logger.Info("db.open.ok", "dialect", dialect)
	return &DB{DB: db, Dialect: dialect}, nil
}

// EnsureSchema applies the embedded DDL for the connected dialect.
func EnsureSchema(ctx context.Context, db *DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	ddl := schemaSQLite
	if db.Dialect == DialectPostgres {
		ddl = schemaPostgres
	}
	for _, stmt := range strings.Split(ddl, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			logger.Error("db.schema.failed", "error", err)
			return err
		}
	}
	logger.Debug("db.schema.ok", "dialect", db.Dialect)
	return nil
}

// HealthCheck pings the store to catch DSN issues early.
func HealthCheck(ctx context.Context, db *DB, timeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	logger.Debug("db.ping")
	return db.PingContext(ctx)
}

func dialectFor(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

// sqliteDSN appends the journal/synchronous pragmas unless the caller already
// supplied query options.
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	return path + "?" + q.Encode()
}
