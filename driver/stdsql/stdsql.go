// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package stdsql implements the driver contract on database/sql using the
// pgx stdlib driver.  It is the default adapter: calls block until the
// database replies or the context ends.
package stdsql

import (
	"context"
	"database/sql"

	"github.com/hashicorp/go-dbsession/driver"
	"github.com/hashicorp/go-dbsession/driver/common"
	"github.com/hashicorp/go-dbsession/errors"
)

var (
	_ driver.Driver  = (*Driver)(nil)
	_ driver.Engine  = (*Engine)(nil)
	_ driver.Session = (*Session)(nil)
)

// Driver opens database/sql engines using the pgx stdlib driver.
type Driver struct{}

// New returns a Driver.
func New() *Driver {
	return &Driver{}
}

// Open opens a pool for the configured database and applies the pool limits.
// database/sql connects lazily; the caller probes readiness with Ping.
func (d *Driver) Open(ctx context.Context, cfg driver.Config) (driver.Engine, error) {
	const op = "stdsql.(Driver).Open"
	db, err := common.SqlOpen(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return &Engine{db: db}, nil
}

// Engine wraps a *sql.DB bound to one database.
type Engine struct {
	db *sql.DB
}

// NewEngine wraps an existing pool.  Tests use it to run the engine contract
// against a mocked *sql.DB.
func NewEngine(db *sql.DB) *Engine {
	return &Engine{db: db}
}

// Exec runs a statement in autocommit mode at the pool level and returns the
// number of rows affected.
func (e *Engine) Exec(ctx context.Context, statement string, args ...any) (int64, error) {
	const op = "stdsql.(Engine).Exec"
	res, err := e.db.ExecContext(ctx, statement, args...)
	if err != nil {
		return 0, errors.Wrap(err, op)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, op)
	}
	return rowsAffected, nil
}

// Begin pins a connection from the pool and returns a Session on it.
func (e *Engine) Begin(ctx context.Context) (driver.Session, error) {
	const op = "stdsql.(Engine).Begin"
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	return &Session{conn: conn}, nil
}

// Ping verifies the database is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	const op = "stdsql.(Engine).Ping"
	if err := e.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, op)
	}
	return nil
}

// Close tears down the pool.
func (e *Engine) Close() error {
	const op = "stdsql.(Engine).Close"
	if err := e.db.Close(); err != nil {
		return errors.Wrap(err, op)
	}
	return nil
}

// SqlDB exposes the underlying pool for collaborators that need raw
// database/sql access, like the schema migrator.
func (e *Engine) SqlDB() *sql.DB {
	return e.db
}

// Session is a unit of work pinned to one connection.  A transaction begins
// with the first statement and ends with Commit or Rollback; Close rolls
// back anything pending and returns the connection to the pool.
type Session struct {
	conn   *sql.Conn
	tx     *sql.Tx
	closed bool
}

func (s *Session) begin(ctx context.Context) (*sql.Tx, error) {
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	s.tx = tx
	return tx, nil
}

// Exec runs a statement in the session's transaction, beginning one if none
// is open, and returns the number of rows affected.
func (s *Session) Exec(ctx context.Context, statement string, args ...any) (int64, error) {
	const op = "stdsql.(Session).Exec"
	if s.closed {
		return 0, errors.New(errors.SessionClosed, op, "session already closed")
	}
	tx, err := s.begin(ctx)
	if err != nil {
		return 0, errors.Wrap(err, op)
	}
	res, err := tx.ExecContext(ctx, statement, args...)
	if err != nil {
		return 0, errors.Wrap(err, op)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, op)
	}
	return rowsAffected, nil
}

// Query runs a query in the session's transaction, beginning one if none is
// open.
func (s *Session) Query(ctx context.Context, statement string, args ...any) (driver.Rows, error) {
	const op = "stdsql.(Session).Query"
	if s.closed {
		return nil, errors.New(errors.SessionClosed, op, "session already closed")
	}
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	rows, err := tx.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	return rows, nil
}

// Commit commits the open transaction.  With no open transaction it is a
// no-op.
func (s *Session) Commit(ctx context.Context) error {
	const op = "stdsql.(Session).Commit"
	if s.closed {
		return errors.New(errors.SessionClosed, op, "session already closed")
	}
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, op)
	}
	return nil
}

// Rollback rolls back the open transaction.  With no open transaction it is
// a no-op.
func (s *Session) Rollback(ctx context.Context) error {
	const op = "stdsql.(Session).Rollback"
	if s.closed {
		return errors.New(errors.SessionClosed, op, "session already closed")
	}
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return errors.Wrap(err, op)
	}
	return nil
}

// Close rolls back any open transaction and returns the connection to the
// pool.  Close is idempotent.
func (s *Session) Close(ctx context.Context) error {
	const op = "stdsql.(Session).Close"
	if s.closed {
		return nil
	}
	s.closed = true
	var rollbackErr error
	if s.tx != nil {
		rollbackErr = s.tx.Rollback()
		s.tx = nil
	}
	closeErr := s.conn.Close()
	if rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
		return errors.Wrap(rollbackErr, op)
	}
	if closeErr != nil {
		return errors.Wrap(closeErr, op)
	}
	return nil
}
