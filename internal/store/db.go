// Package store is the relational persistence layer. It runs on Postgres
// through pgx's database/sql driver or on SQLite through go-sqlite3; the
// Dialect hides the few places where their SQL differs.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
)

// Driver names accepted by Open.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite3"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("already exists")
	ErrForeignKey = errors.New("referenced row does not exist")
)

// Dialect captures driver-specific SQL.
type Dialect interface {
	Name() string
	Placeholder(n int) string
	// Day renders an expression truncating a timestamp column to a
	// YYYY-MM-DD string.
	Day(col string) string
}

type postgres struct{}

func (postgres) Name() string             { return DriverPostgres }
func (postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }
func (postgres) Day(col string) string {
	return "TO_CHAR(" + col + " AT TIME ZONE 'UTC', 'YYYY-MM-DD')"
}

type sqlite struct{}

func (sqlite) Name() string           { return DriverSQLite }
func (sqlite) Placeholder(int) string { return "?" }
func (sqlite) Day(col string) string  { return "strftime('%Y-%m-%d', " + col + ")" }

// DialectFor returns the dialect for a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverPostgres:
		return postgres{}, nil
	case DriverSQLite:
		return sqlite{}, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}

// DB is the application's handle on the relational store.
type DB struct {
	sql     *sql.DB
	dialect Dialect
	clock   *Clock
}

// Open connects to the database. For SQLite, dsn is a file path and the
// connection enables foreign keys, WAL and a busy timeout.
func Open(driver, dsn string, clock *Clock) (*DB, error) {
	d, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite && !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
	}
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if clock == nil {
		clock = NewClock()
	}
	return &DB{sql: conn, dialect: d, clock: clock}, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.sql.Close()
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.sql.PingContext(ctx)
}

// Dialect returns the SQL dialect in use.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Clock returns the store's time source.
func (db *DB) Clock() *Clock {
	return db.clock
}

// SQL exposes the underlying pool for tooling and tests.
func (db *DB) SQL() *sql.DB {
	return db.sql
}

// now is the timestamp written to rows. Postgres keeps microseconds, so
// both drivers are truncated to match.
func (db *DB) now() time.Time {
	return db.clock.Now().Truncate(time.Microsecond)
}

func newID() string {
	return uuid.NewString()
}

// rebind rewrites '?' markers into the dialect's placeholders. Queries in
// this package never contain a literal '?'.
func (db *DB) rebind(q string) string {
	if db.dialect.Name() != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString(db.dialect.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (db *DB) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	res, err := db.sql.ExecContext(ctx, db.rebind(q), args...)
	return res, classify(err)
}

func (db *DB) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return db.sql.QueryRowContext(ctx, db.rebind(q), args...)
}

func (db *DB) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return db.sql.QueryContext(ctx, db.rebind(q), args...)
}

type execFunc func(q string, args ...any) (sql.Result, error)

// withTx runs fn inside one transaction, committing only when fn succeeds.
func (db *DB) withTx(ctx context.Context, fn func(exec execFunc) error) error {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	exec := func(q string, args ...any) (sql.Result, error) {
		res, err := tx.ExecContext(ctx, db.rebind(q), args...)
		return res, classify(err)
	}
	if err := fn(exec); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// classify maps constraint violations onto ErrConflict and ErrForeignKey,
// keeping the driver error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %w", ErrConflict, err)
		case "23503":
			return fmt.Errorf("%w: %w", ErrForeignKey, err)
		}
		return err
	}
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		switch sqErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %w", ErrForeignKey, err)
		}
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint"):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case strings.Contains(msg, "foreign key"):
		return fmt.Errorf("%w: %w", ErrForeignKey, err)
	}
	return err
}

// notFound turns sql.ErrNoRows into ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}
