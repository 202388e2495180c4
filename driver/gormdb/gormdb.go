// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package gormdb implements the driver contract on gorm, for applications
// that already hold gorm models and want their sessions managed by the same
// lifecycle.  Unlike the stdsql adapter a session is pinned to a connection
// per transaction, not for its whole life; the transactional semantics are
// identical.
package gormdb

import (
	"context"
	"database/sql"

	"github.com/hashicorp/go-dbsession/driver"
	"github.com/hashicorp/go-dbsession/driver/common"
	"github.com/hashicorp/go-dbsession/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	_ driver.Driver  = (*Driver)(nil)
	_ driver.Engine  = (*Engine)(nil)
	_ driver.Session = (*Session)(nil)
)

// Driver opens gorm engines.  The dialector is injectable, so tests can run
// the adapter against sqlite while production uses postgres.
type Driver struct {
	opts options
}

// New returns a Driver.  Supported options: WithDialector, WithLogger.
func New(opt ...Option) *Driver {
	return &Driver{opts: getOpts(opt...)}
}

// Open opens a gorm handle for the configured database and applies the pool
// limits to the underlying database/sql pool.
func (d *Driver) Open(ctx context.Context, cfg driver.Config) (driver.Engine, error) {
	const op = "gormdb.(Driver).Open"
	dialector, err := d.dialector(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: &logBridge{log: d.opts.withLogger},
	})
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	sqlDb, err := gdb.DB()
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	sqlDb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return &Engine{gdb: gdb, db: sqlDb}, nil
}

// dialector builds the configured dialector, or the default postgres one
// over a pgx backed pool with the URL's keepalive parameters applied to the
// dialer.
func (d *Driver) dialector(url string) (gorm.Dialector, error) {
	if d.opts.withDialector != nil {
		return d.opts.withDialector(url), nil
	}
	db, err := common.SqlOpen(url)
	if err != nil {
		return nil, err
	}
	return postgres.New(postgres.Config{Conn: db}), nil
}

// Engine wraps a *gorm.DB bound to one database.
type Engine struct {
	gdb *gorm.DB
	db  *sql.DB
}

// NewEngine wraps an existing gorm handle.
func NewEngine(gdb *gorm.DB) (*Engine, error) {
	const op = "gormdb.NewEngine"
	if gdb == nil {
		return nil, errors.New(errors.InvalidParameter, op, "missing gorm handle")
	}
	db, err := gdb.DB()
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	return &Engine{gdb: gdb, db: db}, nil
}

// Exec runs a statement in autocommit mode and returns the number of rows
// affected.
func (e *Engine) Exec(ctx context.Context, statement string, args ...any) (int64, error) {
	const op = "gormdb.(Engine).Exec"
	res := e.gdb.WithContext(ctx).Exec(statement, args...)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, op)
	}
	return res.RowsAffected, nil
}

// Begin returns a Session.  The transaction itself begins with the session's
// first statement.
func (e *Engine) Begin(ctx context.Context) (driver.Session, error) {
	return &Session{gdb: e.gdb}, nil
}

// Ping verifies the database is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	const op = "gormdb.(Engine).Ping"
	if err := e.db.PingContext(ctx); err != nil {
		return errors.Wrap(err, op)
	}
	return nil
}

// Close tears down the underlying pool.
func (e *Engine) Close() error {
	const op = "gormdb.(Engine).Close"
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

// Gorm exposes the wrapped gorm handle for ORM work outside the session
// contract.
func (e *Engine) Gorm() *gorm.DB {
	return e.gdb
}

// Session is a unit of work on a gorm handle.  A transaction begins with the
// first statement and ends with Commit or Rollback; Close rolls back
// anything pending.
type Session struct {
	gdb    *gorm.DB
	tx     *gorm.DB
	closed bool
}

func (s *Session) begin(ctx context.Context) (*gorm.DB, error) {
	if s.tx != nil {
		return s.tx, nil
	}
	tx := s.gdb.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	s.tx = tx
	return tx, nil
}

// Exec runs a statement in the session's transaction, beginning one if none
// is open, and returns the number of rows affected.
func (s *Session) Exec(ctx context.Context, statement string, args ...any) (int64, error) {
	const op = "gormdb.(Session).Exec"
	if s.closed {
		return 0, errors.New(errors.SessionClosed, op, "session already closed")
	}
	tx, err := s.begin(ctx)
	if err != nil {
		return 0, errors.Wrap(err, op)
	}
	res := tx.Exec(statement, args...)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, op)
	}
	return res.RowsAffected, nil
}

// Query runs a query in the session's transaction, beginning one if none is
// open.
func (s *Session) Query(ctx context.Context, statement string, args ...any) (driver.Rows, error) {
	const op = "gormdb.(Session).Query"
	if s.closed {
		return nil, errors.New(errors.SessionClosed, op, "session already closed")
	}
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	rows, err := tx.Raw(statement, args...).Rows()
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	return rows, nil
}

// Commit commits the open transaction.  With no open transaction it is a
// no-op.
func (s *Session) Commit(ctx context.Context) error {
	const op = "gormdb.(Session).Commit"
	if s.closed {
		return errors.New(errors.SessionClosed, op, "session already closed")
	}
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit().Error; err != nil {
		return errors.Wrap(err, op)
	}
	return nil
}

// Rollback rolls back the open transaction.  With no open transaction it is
// a no-op.
func (s *Session) Rollback(ctx context.Context) error {
	const op = "gormdb.(Session).Rollback"
	if s.closed {
		return errors.New(errors.SessionClosed, op, "session already closed")
	}
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback().Error; err != nil && !errors.Is(err, sql.ErrTxDone) {
		return errors.Wrap(err, op)
	}
	return nil
}

// Close rolls back any open transaction.  Close is idempotent.
func (s *Session) Close(ctx context.Context) error {
	const op = "gormdb.(Session).Close"
	if s.closed {
		return nil
	}
	s.closed = true
	if s.tx != nil {
		tx := s.tx
		s.tx = nil
		if err := tx.Rollback().Error; err != nil && !errors.Is(err, sql.ErrTxDone) {
			return errors.Wrap(err, op)
		}
	}
	return nil
}
