package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"bookthing/internal/config"
)

var (
	// ErrClosed is returned by every operation on a DB after Close.
	ErrClosed = errors.New("store: connection closed")

	// ErrUnknownDriver is returned by Open for a driver it cannot serve.
	ErrUnknownDriver = errors.New("store: unknown driver")

	// ErrBuildingQuery wraps failures of the query builder.
	ErrBuildingQuery = errors.New("store: building query failed")
)

const (
	defaultQueryTimeout = 5 * time.Second
	pingTimeout         = 2 * time.Second

	logMsgQueryExecuted = "sql executed"
	logMsgQueryFailed   = "sql failed"
	logAttrQuery        = "query"
	logAttrDurationMS   = "duration_ms"
	logAttrError        = "error"
)

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Statement is anything goqu can render, i.e. its select, insert and delete datasets.
type Statement interface {
	ToSQL() (string, []interface{}, error)
}

// DB is the single shared handle to the relational store. It is opened once
// by the server lifecycle and closed once at shutdown.
type DB struct {
	db      *sqlx.DB
	pool    *pgxpool.Pool
	driver  string
	dialect goqu.DialectWrapper
	timeout time.Duration
	logger  Logger
	closed  atomic.Bool
}

// Option configures a DB at Open time.
type Option func(*DB) error

// WithLogger sets the logger receiving SQL debug lines and errors.
func WithLogger(logger Logger) Option {
	return func(d *DB) error {
		d.logger = logger
		return nil
	}
}

// WithQueryTimeout bounds every single statement.
func WithQueryTimeout(timeout time.Duration) Option {
	return func(d *DB) error {
		if timeout <= 0 {
			return fmt.Errorf("store: query timeout must be positive, got %s", timeout)
		}
		d.timeout = timeout
		return nil
	}
}

// Open connects to the database described by cfg and verifies the connection.
// When cfg.AutoMigrate is set the embedded migrations are applied before returning.
func Open(ctx context.Context, cfg config.DatabaseConfig, opts ...Option) (*DB, error) {
	d := &DB{
		driver:  cfg.Driver,
		timeout: defaultQueryTimeout,
	}
	if cfg.QueryTimeout > 0 {
		d.timeout = cfg.QueryTimeout
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	if cfg.DSN == "" {
		return nil, fmt.Errorf("store: empty dsn for driver %q", cfg.Driver)
	}

	var err error
	switch cfg.Driver {
	case config.DriverPostgres:
		err = d.openPostgres(ctx, cfg)
		d.dialect = goqu.Dialect("postgres")
	case config.DriverSQLite:
		err = d.openSQLite(ctx, cfg)
		d.dialect = goqu.Dialect("sqlite3")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := d.MigrateUp(ctx); err != nil {
			_ = d.Close()
			return nil, err
		}
	}

	d.info("database connection OK", "driver", d.driver, "dsn", config.RedactDSN(cfg.DSN))
	return d, nil
}

func (d *DB) openPostgres(ctx context.Context, cfg config.DatabaseConfig) error {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("create db pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return fmt.Errorf("ping database (%s): %w", config.RedactDSN(cfg.DSN), err)
	}

	d.pool = pool
	d.db = sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx")
	return nil
}

func (d *DB) openSQLite(ctx context.Context, cfg config.DatabaseConfig) error {
	db, err := sqlx.Open("sqlite", cfg.DSN)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping database (%s): %w", cfg.DSN, err)
	}

	d.db = db
	return nil
}

// Close releases the connection. Only the first call does any work; later
// calls return ErrClosed.
func (d *DB) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	err := d.db.Close()
	if d.pool != nil {
		d.pool.Close()
	}
	if err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Closed reports whether Close has been called.
func (d *DB) Closed() bool {
	return d.closed.Load()
}

// Ping checks that the database is still reachable.
func (d *DB) Ping(ctx context.Context) error {
	if d.closed.Load() {
		return ErrClosed
	}
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	return d.db.PingContext(ctx)
}

// Driver returns the configured driver name.
func (d *DB) Driver() string {
	return d.driver
}

// Dialect returns the goqu dialect matching the driver.
func (d *DB) Dialect() goqu.DialectWrapper {
	return d.dialect
}

// SupportsReturning reports whether INSERT ... RETURNING can be used.
func (d *DB) SupportsReturning() bool {
	return d.driver == config.DriverPostgres
}

// Select runs a query and scans all rows into dest, a pointer to a slice.
func (d *DB) Select(ctx context.Context, dest any, stmt Statement) error {
	query, args, err := d.build(stmt)
	if err != nil {
		return err
	}
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	err = d.db.SelectContext(ctx, dest, query, args...)
	d.logQuery(query, start, err)
	return err
}

// Get runs a query expected to return exactly one row and scans it into dest.
func (d *DB) Get(ctx context.Context, dest any, stmt Statement) error {
	query, args, err := d.build(stmt)
	if err != nil {
		return err
	}
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	err = d.db.GetContext(ctx, dest, query, args...)
	d.logQuery(query, start, err)
	return err
}

// Exec runs a statement that returns no rows.
func (d *DB) Exec(ctx context.Context, stmt Statement) (sql.Result, error) {
	query, args, err := d.build(stmt)
	if err != nil {
		return nil, err
	}
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	res, err := d.db.ExecContext(ctx, query, args...)
	d.logQuery(query, start, err)
	return res, err
}

func (d *DB) build(stmt Statement) (string, []interface{}, error) {
	if d.closed.Load() {
		return "", nil, ErrClosed
	}
	query, args, err := stmt.ToSQL()
	if err != nil {
		return "", nil, errors.Join(ErrBuildingQuery, err)
	}
	return query, args, nil
}

func (d *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.timeout)
}

func (d *DB) logQuery(query string, start time.Time, err error) {
	if d.logger == nil {
		return
	}
	if err != nil {
		d.logger.Error(logMsgQueryFailed, logAttrQuery, query, logAttrError, err.Error())
		return
	}
	d.logger.Debug(logMsgQueryExecuted, logAttrQuery, query, logAttrDurationMS, time.Since(start).Milliseconds())
}

func (d *DB) info(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Info(msg, args...)
	}
}
