// Package store persists skills, resources and links in SQLite or PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

const sqliteParams = "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// dialect holds the SQL that differs between drivers.
type dialect struct {
	schema string
	// originExpr extracts metadata.origin as text.
	originExpr string
}

var dialects = map[string]dialect{
	DriverSQLite: {
		schema:     sqliteSchemaSQL,
		originExpr: "json_extract(metadata, '$.origin')",
	},
	DriverPostgres: {
		schema:     postgresSchemaSQL,
		originExpr: "metadata->>'origin'",
	},
}

// queries implements every read and write against either a pool or a
// transaction.
type queries struct {
	ext     sqlx.ExtContext
	dialect dialect
}

func (q queries) rebind(query string) string {
	return q.ext.Rebind(query)
}

// DB is the pooled store handle.
type DB struct {
	queries
	conn *sqlx.DB
}

// Tx is a store handle bound to one transaction.
type Tx struct {
	queries
	tx *sqlx.Tx
}

// Open opens the database for driver, applies the schema and returns a store.
// SQLite DSNs get WAL, busy timeout and foreign keys enabled.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}
	if driver == DriverSQLite && !strings.Contains(dsn, "?") {
		dsn += "?" + sqliteParams
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.ExecContext(ctx, d.schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{queries: queries{ext: conn, dialect: d}, conn: conn}, nil
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// InTx runs fn inside a transaction. The transaction commits when fn returns
// nil and rolls back otherwise.
func (db *DB) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer sqlTx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(&Tx{queries: queries{ext: sqlTx, dialect: db.dialect}, tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a unique constraint failure on
// either driver.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
