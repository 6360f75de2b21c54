// Package database implements the ConnectionPool (spec C2): a bounded set of
// database handles leased out to callers, a liveness probe, and idempotent
// DDL bootstrap. Grounded on internal/platform/database/database.go's
// sql.Open+Ping pattern, generalized into an explicit lease/release API with
// a bounded-capacity semaphore (spec.md §4.1's "bounded set of database
// handles") instead of relying only on database/sql's implicit pool.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Errors surfaced by the pool, per spec.md §4.1.
var (
	ErrExhausted   = errors.New("connection pool exhausted")
	ErrUnavailable = errors.New("no live database handle could be revived")
)

// DBFailure wraps any lower-level database error into the dbFailure{message}
// shape spec.md §4.1/§7 requires at the boundary.
type DBFailure struct {
	Message string
	Cause   error
}

func (e *DBFailure) Error() string { return "dbFailure: " + e.Message }
func (e *DBFailure) Unwrap() error { return e.Cause }

func wrapFailure(msg string, cause error) *DBFailure {
	return &DBFailure{Message: msg, Cause: cause}
}

// Config parameterizes the pool.
type Config struct {
	DSN            string
	MaxConnections int
	AcquireTimeout time.Duration
}

// Handle is a leased database handle. Every query executed through it must be
// parameterized; string concatenation of caller-supplied data into SQL text
// is a defect this type's callers must never commit.
type Handle struct {
	*sqlx.DB
	pool *Pool
}

// Release returns the handle to the pool. Safe to call from any exit path;
// calling it more than once is a programmer error but will not corrupt pool
// accounting beyond over-releasing the semaphore (callers should use defer
// exactly once).
func (h *Handle) Release() {
	h.pool.release()
}

// Pool is the bounded ConnectionPool.
type Pool struct {
	db       *sqlx.DB
	sem      chan struct{}
	acquireTimeout time.Duration
}

// NewPool wraps an already-open *sqlx.DB in a Pool, bypassing Open's
// sqlx.Open/Ping bootstrap. Exported for callers (handler unit tests using
// DATA-DOG/go-sqlmock) that need a Pool around a mock connection rather than
// a real Postgres one.
func NewPool(db *sqlx.DB, maxConnections int) *Pool {
	if maxConnections <= 0 {
		maxConnections = 20
	}
	return &Pool{db: db, sem: make(chan struct{}, maxConnections), acquireTimeout: 5 * time.Second}
}

// Open establishes the pool's underlying connection and verifies it with a
// ping, per spec.md §4.1.
func Open(ctx context.Context, cfg Config) (*Pool, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, wrapFailure("open postgres", err)
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 20
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections / 2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, wrapFailure("ping postgres", err)
	}

	acquireTimeout := cfg.AcquireTimeout
	if acquireTimeout <= 0 {
		acquireTimeout = 5 * time.Second
	}

	return &Pool{
		db:             db,
		sem:            make(chan struct{}, cfg.MaxConnections),
		acquireTimeout: acquireTimeout,
	}, nil
}

// Lease blocks until a slot is available (or the pool's acquire timeout
// elapses), then hands back a Handle. Callers must Release it.
func (p *Pool) Lease(ctx context.Context) (*Handle, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	select {
	case p.sem <- struct{}{}:
	case <-timeoutCtx.Done():
		return nil, ErrExhausted
	}

	if err := p.db.PingContext(ctx); err != nil {
		<-p.sem
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &Handle{DB: p.db, pool: p}, nil
}

func (p *Pool) release() {
	select {
	case <-p.sem:
	default:
	}
}

// Ping probes liveness with a trivial SELECT 1 query.
func (p *Pool) Ping(ctx context.Context) error {
	var discard int
	row := p.db.QueryRowContext(ctx, "SELECT 1")
	if err := row.Scan(&discard); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return wrapFailure("liveness probe failed", err)
	}
	return nil
}

// Close releases the pool's underlying connection.
func (p *Pool) Close() error {
	return p.db.Close()
}

// Raw exposes the underlying *sqlx.DB for components (the store adapters in
// this package, the domain handlers) that use it directly rather than
// through a leased Handle.
func (p *Pool) Raw() *sqlx.DB {
	return p.db
}
