// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dbsession

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"syscall"

	"github.com/hashicorp/go-dbsession/driver"
	"github.com/hashicorp/go-dbsession/errors"
	"github.com/jackc/pgx/v5/pgconn"
)

// NewTestTransientErr returns the kind of error an unreachable server
// produces.
func NewTestTransientErr() error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
}

// NewTestAuthErr returns an invalid password backend error.
func NewTestAuthErr() error {
	return &pgconn.PgError{Code: "28P01", Message: "password authentication failed"}
}

// TestDriver is an in-memory driver implementation for exercising the
// manager without a server.  It simulates database existence: opening a
// missing database fails with SQLSTATE 3D000 and creating an existing one
// with 42P04, so auto creation and creation races behave like they do on a
// real backend.  Opens and statements can be scripted to fail, and every
// operation is recorded per database.  TestDriver is safe for concurrent
// use.
type TestDriver struct {
	mu        sync.Mutex
	databases map[string]bool
	openErrs  map[string][]error
	stmtErrs  []testScriptedErr
	queryRows []testScriptedRows
	opens     map[string]int
	closes    map[string]int
	events    map[string][]string
	committed map[string][]string
}

type testScriptedErr struct {
	substr string
	err    error
}

type testScriptedRows struct {
	substr string
	rows   [][]any
}

var _ driver.Driver = (*TestDriver)(nil)

// NewTestDriver returns a TestDriver on which only the given databases
// exist.
func NewTestDriver(existing ...string) *TestDriver {
	d := &TestDriver{
		databases: make(map[string]bool),
		openErrs:  make(map[string][]error),
		opens:     make(map[string]int),
		closes:    make(map[string]int),
		events:    make(map[string][]string),
		committed: make(map[string][]string),
	}
	for _, name := range existing {
		d.databases[name] = true
	}
	return d
}

// FailOpen queues errors returned by upcoming opens of a database, ahead of
// any successful open.
func (d *TestDriver) FailOpen(database string, errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openErrs[database] = append(d.openErrs[database], errs...)
}

// FailStatement makes the next statement containing substr fail with err.
func (d *TestDriver) FailStatement(substr string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stmtErrs = append(d.stmtErrs, testScriptedErr{substr: substr, err: err})
}

// ScriptQuery makes the next query containing substr return the given rows.
func (d *TestDriver) ScriptQuery(substr string, rows ...[]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queryRows = append(d.queryRows, testScriptedRows{substr: substr, rows: rows})
}

// AddDatabase marks a database as existing.
func (d *TestDriver) AddDatabase(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.databases[name] = true
}

// HasDatabase reports whether a database exists.
func (d *TestDriver) HasDatabase(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.databases[name]
}

// Opens returns how many opens were attempted for a database, failed ones
// included.
func (d *TestDriver) Opens(database string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens[database]
}

// EngineCloses returns how many engines of a database have been closed.
func (d *TestDriver) EngineCloses(database string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes[database]
}

// Committed returns the statements durably committed on a database, in
// commit order.
func (d *TestDriver) Committed(database string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.committed[database]))
	copy(out, d.committed[database])
	return out
}

// Events returns every recorded operation for a database, in order.
func (d *TestDriver) Events(database string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.events[database]))
	copy(out, d.events[database])
	return out
}

// Open implements driver.Driver.
func (d *TestDriver) Open(ctx context.Context, cfg driver.Config) (driver.Engine, error) {
	name := testDatabaseFromURL(cfg.URL)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens[name]++
	if queue := d.openErrs[name]; len(queue) > 0 {
		err := queue[0]
		d.openErrs[name] = queue[1:]
		if err != nil {
			return nil, err
		}
	}
	if !d.databases[name] {
		return nil, &pgconn.PgError{Code: "3D000", Message: fmt.Sprintf("database %q does not exist", name)}
	}
	d.record(name, "open")
	return &testEngine{driver: d, database: name}, nil
}

// record appends an event; callers hold d.mu.
func (d *TestDriver) record(database, event string) {
	d.events[database] = append(d.events[database], event)
}

// takeStmtErr pops the first scripted error matching the statement; callers
// hold d.mu.
func (d *TestDriver) takeStmtErr(statement string) error {
	for i, s := range d.stmtErrs {
		if strings.Contains(statement, s.substr) {
			d.stmtErrs = append(d.stmtErrs[:i], d.stmtErrs[i+1:]...)
			return s.err
		}
	}
	return nil
}

// takeRows pops the first scripted result matching the statement; callers
// hold d.mu.
func (d *TestDriver) takeRows(statement string) [][]any {
	for i, s := range d.queryRows {
		if strings.Contains(statement, s.substr) {
			d.queryRows = append(d.queryRows[:i], d.queryRows[i+1:]...)
			return s.rows
		}
	}
	return nil
}

func testDatabaseFromURL(rawUrl string) string {
	u, err := url.Parse(rawUrl)
	if err != nil {
		return rawUrl
	}
	return strings.TrimPrefix(u.Path, "/")
}

type testEngine struct {
	driver   *TestDriver
	database string
	closed   bool
}

func (e *testEngine) Exec(ctx context.Context, statement string, args ...any) (int64, error) {
	d := e.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if e.closed {
		return 0, fmt.Errorf("test: engine for %q is closed", e.database)
	}
	if err := d.takeStmtErr(statement); err != nil {
		return 0, err
	}
	d.record(e.database, "exec: "+statement)
	if rest, ok := strings.CutPrefix(statement, "CREATE DATABASE "); ok {
		name := strings.Trim(strings.TrimSpace(rest), `"`)
		if d.databases[name] {
			return 0, &pgconn.PgError{Code: "42P04", Message: fmt.Sprintf("database %q already exists", name)}
		}
		d.databases[name] = true
		return 0, nil
	}
	// engine level statements are autocommit
	d.committed[e.database] = append(d.committed[e.database], statement)
	return 1, nil
}

func (e *testEngine) Begin(ctx context.Context) (driver.Session, error) {
	d := e.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if e.closed {
		return nil, fmt.Errorf("test: engine for %q is closed", e.database)
	}
	d.record(e.database, "begin")
	return &testSession{engine: e}, nil
}

func (e *testEngine) Ping(ctx context.Context) error {
	d := e.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if e.closed {
		return fmt.Errorf("test: engine for %q is closed", e.database)
	}
	return nil
}

func (e *testEngine) Close() error {
	d := e.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	d.closes[e.database]++
	d.record(e.database, "close-engine")
	return nil
}

type testSession struct {
	engine  *testEngine
	pending []string
	inTx    bool
	closed  bool
}

func (s *testSession) Exec(ctx context.Context, statement string, args ...any) (int64, error) {
	const op = "dbsession.(testSession).Exec"
	d := s.engine.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if s.closed {
		return 0, errors.New(errors.SessionClosed, op, "session already closed")
	}
	if err := d.takeStmtErr(statement); err != nil {
		return 0, err
	}
	s.inTx = true
	s.pending = append(s.pending, statement)
	d.record(s.engine.database, "exec: "+statement)
	return 1, nil
}

func (s *testSession) Query(ctx context.Context, statement string, args ...any) (driver.Rows, error) {
	const op = "dbsession.(testSession).Query"
	d := s.engine.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if s.closed {
		return nil, errors.New(errors.SessionClosed, op, "session already closed")
	}
	if err := d.takeStmtErr(statement); err != nil {
		return nil, err
	}
	s.inTx = true
	d.record(s.engine.database, "query: "+statement)
	return &testRows{rows: d.takeRows(statement)}, nil
}

func (s *testSession) Commit(ctx context.Context) error {
	const op = "dbsession.(testSession).Commit"
	d := s.engine.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if s.closed {
		return errors.New(errors.SessionClosed, op, "session already closed")
	}
	if !s.inTx {
		return nil
	}
	d.committed[s.engine.database] = append(d.committed[s.engine.database], s.pending...)
	s.pending = nil
	s.inTx = false
	d.record(s.engine.database, "commit")
	return nil
}

func (s *testSession) Rollback(ctx context.Context) error {
	const op = "dbsession.(testSession).Rollback"
	d := s.engine.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if s.closed {
		return errors.New(errors.SessionClosed, op, "session already closed")
	}
	if !s.inTx {
		return nil
	}
	s.pending = nil
	s.inTx = false
	d.record(s.engine.database, "rollback")
	return nil
}

func (s *testSession) Close(ctx context.Context) error {
	d := s.engine.driver
	d.mu.Lock()
	defer d.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.inTx {
		s.pending = nil
		s.inTx = false
		d.record(s.engine.database, "rollback")
	}
	d.record(s.engine.database, "close")
	return nil
}

type testRows struct {
	rows [][]any
	idx  int
}

func (r *testRows) Next() bool {
	if r.idx < len(r.rows) {
		r.idx++
		return true
	}
	return false
}

func (r *testRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("test: scan wants %d destinations, got %d", len(row), len(dest))
	}
	for i, v := range row {
		switch dst := dest[i].(type) {
		case *string:
			*dst = fmt.Sprint(v)
		case *int64:
			switch vv := v.(type) {
			case int:
				*dst = int64(vv)
			case int64:
				*dst = vv
			default:
				return fmt.Errorf("test: cannot scan %T into *int64", v)
			}
		case *int:
			switch vv := v.(type) {
			case int:
				*dst = vv
			case int64:
				*dst = int(vv)
			default:
				return fmt.Errorf("test: cannot scan %T into *int", v)
			}
		case *bool:
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("test: cannot scan %T into *bool", v)
			}
			*dst = b
		default:
			return fmt.Errorf("test: unsupported scan destination %T", dest[i])
		}
	}
	return nil
}

func (r *testRows) Err() error {
	return nil
}

func (r *testRows) Close() error {
	return nil
}
