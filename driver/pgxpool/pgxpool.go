// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package pgxpool implements the driver contract directly on the pgx v5
// connection pool.  Every operation suspends on its context rather than
// blocking a thread, which suits callers already living in a context driven
// concurrency model.
package pgxpool

import (
	"context"

	"github.com/hashicorp/go-dbsession/driver"
	"github.com/hashicorp/go-dbsession/driver/common"
	"github.com/hashicorp/go-dbsession/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	_ driver.Driver  = (*Driver)(nil)
	_ driver.Engine  = (*Engine)(nil)
	_ driver.Session = (*Session)(nil)
	_ driver.Rows    = (*Rows)(nil)
)

// Driver opens pgx connection pools.
type Driver struct{}

// New returns a Driver.
func New() *Driver {
	return &Driver{}
}

// Open parses the URL into a pool configuration, applies the pool limits and
// creates the pool.  Connections are established lazily; the caller probes
// readiness with Ping.
func (d *Driver) Open(ctx context.Context, cfg driver.Config) (driver.Engine, error) {
	const op = "pgxpool.(Driver).Open"
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	common.ApplyKeepalives(&pc.ConnConfig.Config)
	pc.MinConns = int32(cfg.MinOpenConns)
	pc.MaxConns = int32(cfg.MaxOpenConns)
	if pc.MaxConns < 1 {
		pc.MaxConns = 1
	}
	if cfg.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnectTimeout > 0 {
		pc.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	return &Engine{pool: pool}, nil
}

// Engine wraps a *pgxpool.Pool bound to one database.
type Engine struct {
	pool *pgxpool.Pool
}

// NewEngine wraps an existing pool.
func NewEngine(pool *pgxpool.Pool) *Engine {
	return &Engine{pool: pool}
}

// Exec runs a statement in autocommit mode at the pool level and returns the
// number of rows affected.
func (e *Engine) Exec(ctx context.Context, statement string, args ...any) (int64, error) {
	const op = "pgxpool.(Engine).Exec"
	ct, err := e.pool.Exec(ctx, statement, args...)
	if err != nil {
		return 0, errors.Wrap(err, op)
	}
	return ct.RowsAffected(), nil
}

// Begin acquires a connection from the pool and returns a Session on it.
func (e *Engine) Begin(ctx context.Context) (driver.Session, error) {
	const op = "pgxpool.(Engine).Begin"
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	return &Session{conn: conn}, nil
}

// Ping verifies the database is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	const op = "pgxpool.(Engine).Ping"
	if err := e.pool.Ping(ctx); err != nil {
		return errors.Wrap(err, op)
	}
	return nil
}

// Close tears down the pool, waiting for acquired connections to be
// released.
func (e *Engine) Close() error {
	e.pool.Close()
	return nil
}

// Session is a unit of work pinned to one acquired connection.  A
// transaction begins with the first statement and ends with Commit or
// Rollback; Close rolls back anything pending and releases the connection.
type Session struct {
	conn   *pgxpool.Conn
	tx     pgx.Tx
	closed bool
}

func (s *Session) begin(ctx context.Context) (pgx.Tx, error) {
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	s.tx = tx
	return tx, nil
}

// Exec runs a statement in the session's transaction, beginning one if none
// is open, and returns the number of rows affected.
func (s *Session) Exec(ctx context.Context, statement string, args ...any) (int64, error) {
	const op = "pgxpool.(Session).Exec"
	if s.closed {
		return 0, errors.New(errors.SessionClosed, op, "session already closed")
	}
	tx, err := s.begin(ctx)
	if err != nil {
		return 0, errors.Wrap(err, op)
	}
	ct, err := tx.Exec(ctx, statement, args...)
	if err != nil {
		return 0, errors.Wrap(err, op)
	}
	return ct.RowsAffected(), nil
}

// Query runs a query in the session's transaction, beginning one if none is
// open.
func (s *Session) Query(ctx context.Context, statement string, args ...any) (driver.Rows, error) {
	const op = "pgxpool.(Session).Query"
	if s.closed {
		return nil, errors.New(errors.SessionClosed, op, "session already closed")
	}
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	rows, err := tx.Query(ctx, statement, args...)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	return &Rows{rows: rows}, nil
}

// Commit commits the open transaction.  With no open transaction it is a
// no-op.
func (s *Session) Commit(ctx context.Context) error {
	const op = "pgxpool.(Session).Commit"
	if s.closed {
		return errors.New(errors.SessionClosed, op, "session already closed")
	}
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, op)
	}
	return nil
}

// Rollback rolls back the open transaction.  With no open transaction it is
// a no-op.
func (s *Session) Rollback(ctx context.Context) error {
	const op = "pgxpool.(Session).Rollback"
	if s.closed {
		return errors.New(errors.SessionClosed, op, "session already closed")
	}
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return errors.Wrap(err, op)
	}
	return nil
}

// Close rolls back any open transaction and releases the connection back to
// the pool.  Close is idempotent.
func (s *Session) Close(ctx context.Context) error {
	const op = "pgxpool.(Session).Close"
	if s.closed {
		return nil
	}
	s.closed = true
	var rollbackErr error
	if s.tx != nil {
		rollbackErr = s.tx.Rollback(ctx)
		s.tx = nil
	}
	s.conn.Release()
	if rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
		return errors.Wrap(rollbackErr, op)
	}
	return nil
}

// Rows adapts pgx.Rows to the driver contract.
type Rows struct {
	rows pgx.Rows
}

func (r *Rows) Next() bool {
	return r.rows.Next()
}

func (r *Rows) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

func (r *Rows) Err() error {
	return r.rows.Err()
}

func (r *Rows) Close() error {
	r.rows.Close()
	return nil
}
