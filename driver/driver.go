// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package driver defines the contract between the session manager and a
// database access layer.  The manager is written entirely against these
// interfaces; the subpackages stdsql, pgxpool and gormdb implement them with
// different execution models but identical semantics, so callers and hooks
// behave the same on every adapter.
package driver

import (
	"context"
	"time"
)

// Config carries the resolved settings an adapter needs to open a pool.  The
// URL is complete: it names the database and carries the runtime parameters
// (search_path, application_name, keepalives, sslmode, connect_timeout)
// derived from the connection descriptor.
type Config struct {
	URL             string
	MinOpenConns    int
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// Driver opens engine handles for resolved connection URLs.  A Driver must
// be safe for concurrent use.
type Driver interface {
	Open(ctx context.Context, cfg Config) (Engine, error)
}

// Engine is a live, poolable handle representing readiness to open
// connections to one specific database.  Engines are created by a Driver,
// owned by the engine cache and shared across requests, so implementations
// must be safe for concurrent use.
type Engine interface {
	// Exec runs a single statement in autocommit mode at the pool level.
	// Statements which refuse to run inside a transaction block
	// (CREATE DATABASE) must go through Exec.
	Exec(ctx context.Context, statement string, args ...any) (int64, error)

	// Begin pins a connection and returns a Session on it.
	Begin(ctx context.Context) (Session, error)

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Close tears down the pool and all of its connections.
	Close() error
}

// HookSession is the minimal capability set a manual hook is given: execute a
// statement, commit, roll back.  Hooks declared against HookSession run
// unchanged on every adapter.
type HookSession interface {
	// Exec runs a statement inside the session's current transaction,
	// beginning one if none is open, and returns the number of rows affected.
	Exec(ctx context.Context, statement string, args ...any) (int64, error)

	// Commit commits the session's current transaction.  Committing with no
	// open transaction is a no-op.  The next Exec or Query begins a new
	// transaction on the same connection.
	Commit(ctx context.Context) error

	// Rollback rolls back the session's current transaction.  Rolling back
	// with no open transaction is a no-op.
	Rollback(ctx context.Context) error
}

// Session is a scoped unit of work pinned to a single connection.  The first
// Exec or Query after construction, a Commit or a Rollback begins a new
// transaction.  Sessions are not safe for concurrent use.
type Session interface {
	HookSession

	// Query runs a query inside the session's current transaction, beginning
	// one if none is open.
	Query(ctx context.Context, statement string, args ...any) (Rows, error)

	// Close rolls back any open transaction and releases the connection back
	// to the engine's pool.  Close is idempotent; every other method of a
	// closed session returns an error.
	Close(ctx context.Context) error
}

// Rows is the result of a Session.Query.  Callers must Close it.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}
