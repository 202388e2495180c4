// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dbsession

import (
	"context"
	"time"

	"github.com/hashicorp/go-dbsession/errors"
	"github.com/hashicorp/go-dbsession/internal/metric"
	"github.com/hashicorp/go-hclog"
	ua "go.uber.org/atomic"
)

// queryRetryMax bounds transient statement retries when query retries are
// enabled on the descriptor.
const queryRetryMax = 3

// ManagedSession is a ready to use database session.  By the time a caller
// holds one, the engine exists, the schema is materialized and every
// registered hook has run.  A ManagedSession is bound to one resolved
// database and one underlying connection; it is not safe for concurrent use.
//
// Statements run inside a transaction that begins implicitly with the first
// statement and ends with Commit or Rollback.  Close rolls back any pending
// transaction and releases the connection.
type ManagedSession struct {
	id           string
	database     string
	tenantId     string
	state        State
	session      Session
	engine       Engine
	closeEngine  bool
	queryRetries bool
	fresh        bool
	closed       *ua.Bool
	log          hclog.Logger
}

// Id returns the unique session id.
func (s *ManagedSession) Id() string {
	return s.id
}

// Database returns the resolved database name the session is bound to.
func (s *ManagedSession) Database() string {
	return s.database
}

// TenantId returns the tenant id the session was resolved for, which may be
// empty.
func (s *ManagedSession) TenantId() string {
	return s.tenantId
}

// State returns the lifecycle state the session reached.  A usable session
// reports SessionActive; after Close it reports Closed.
func (s *ManagedSession) State() State {
	if s.closed.Load() {
		return StateClosed
	}
	return s.state
}

// Exec runs a statement and returns the number of rows affected.  The first
// statement after construction, Commit or Rollback begins a new transaction.
// When query retries are enabled and the transaction has no prior statement,
// transient failures are retried up to queryRetryMax times with exponential
// waits.
func (s *ManagedSession) Exec(ctx context.Context, statement string, args ...any) (int64, error) {
	const op = "dbsession.(ManagedSession).Exec"
	if s.closed.Load() {
		return 0, errors.New(errors.SessionClosed, op, "session already closed")
	}
	wasFresh := s.fresh
	rowsAffected, err := s.session.Exec(ctx, statement, args...)
	if err == nil {
		s.fresh = false
		return rowsAffected, nil
	}
	if !s.queryRetries || !wasFresh || !errors.IsTransient(err) {
		return 0, errors.Wrap(err, op)
	}
	for attempt := 1; attempt <= queryRetryMax; attempt++ {
		s.log.Debug("retrying statement after transient failure", "session", s.id, "attempt", attempt, "error", err)
		if serr := sleepWithContext(ctx, time.Duration(1<<(attempt-1))*time.Second); serr != nil {
			return 0, errors.Wrap(serr, op)
		}
		// reset any aborted transaction so the retry begins a fresh one
		_ = s.session.Rollback(ctx)
		rowsAffected, err = s.session.Exec(ctx, statement, args...)
		if err == nil {
			s.fresh = false
			return rowsAffected, nil
		}
		if !errors.IsTransient(err) {
			break
		}
	}
	return 0, errors.Wrap(err, op)
}

// Query runs a statement and returns its rows.  The caller must close the
// returned Rows before issuing further statements on the session.  The same
// retry policy as Exec applies: with query retries enabled, a transient
// failure on the first statement of a transaction is retried.
func (s *ManagedSession) Query(ctx context.Context, statement string, args ...any) (Rows, error) {
	const op = "dbsession.(ManagedSession).Query"
	if s.closed.Load() {
		return nil, errors.New(errors.SessionClosed, op, "session already closed")
	}
	wasFresh := s.fresh
	rows, err := s.session.Query(ctx, statement, args...)
	if err == nil {
		s.fresh = false
		return rows, nil
	}
	if !s.queryRetries || !wasFresh || !errors.IsTransient(err) {
		return nil, errors.Wrap(err, op)
	}
	for attempt := 1; attempt <= queryRetryMax; attempt++ {
		s.log.Debug("retrying query after transient failure", "session", s.id, "attempt", attempt, "error", err)
		if serr := sleepWithContext(ctx, time.Duration(1<<(attempt-1))*time.Second); serr != nil {
			return nil, errors.Wrap(serr, op)
		}
		// reset any aborted transaction so the retry begins a fresh one
		_ = s.session.Rollback(ctx)
		rows, err = s.session.Query(ctx, statement, args...)
		if err == nil {
			s.fresh = false
			return rows, nil
		}
		if !errors.IsTransient(err) {
			break
		}
	}
	return nil, errors.Wrap(err, op)
}

// Commit commits the pending transaction.  Committing with no pending
// transaction is a no-op.  The next statement begins a new transaction.
func (s *ManagedSession) Commit(ctx context.Context) error {
	const op = "dbsession.(ManagedSession).Commit"
	if s.closed.Load() {
		return errors.New(errors.SessionClosed, op, "session already closed")
	}
	if err := s.session.Commit(ctx); err != nil {
		return errors.New(errors.CommitFailed, op, "unable to commit", errors.WithWrap(err))
	}
	s.fresh = true
	return nil
}

// Rollback rolls back the pending transaction.  Rolling back with no pending
// transaction is a no-op.  The next statement begins a new transaction.
func (s *ManagedSession) Rollback(ctx context.Context) error {
	const op = "dbsession.(ManagedSession).Rollback"
	if s.closed.Load() {
		return errors.New(errors.SessionClosed, op, "session already closed")
	}
	if err := s.session.Rollback(ctx); err != nil {
		return errors.New(errors.RollbackFailed, op, "unable to rollback", errors.WithWrap(err))
	}
	s.fresh = true
	return nil
}

// Close rolls back any pending transaction and releases the underlying
// connection.  When the session owns its engine, the engine is closed too.
// Closing twice, like any other use of a closed session, returns a
// SessionClosed error.
func (s *ManagedSession) Close(ctx context.Context) error {
	const op = "dbsession.(ManagedSession).Close"
	if !s.closed.CompareAndSwap(false, true) {
		return errors.New(errors.SessionClosed, op, "session already closed")
	}
	s.log.Debug("closing session", "session", s.id, "database", s.database)
	metric.DecSessionsActive()
	err := s.session.Close(ctx)
	if s.closeEngine {
		_ = s.engine.Close()
	}
	if err != nil {
		return errors.Wrap(err, op)
	}
	return nil
}
