// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dbsession

// End to end lifecycle runs against real SQL, using the gorm adapter with an
// in-process sqlite backend so no server is needed.  Each resolved database
// maps to its own database file, which makes tenant isolation directly
// observable.

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/hashicorp/go-dbsession/driver/gormdb"
	"github.com/hashicorp/go-dbsession/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ua "go.uber.org/atomic"
	"gorm.io/gorm"
)

// testSqliteDriver returns a gorm driver whose dialector maps every resolved
// database name to a sqlite file under dir.
func testSqliteDriver(t *testing.T, dir string) *gormdb.Driver {
	t.Helper()
	return gormdb.New(gormdb.WithDialector(func(rawUrl string) gorm.Dialector {
		u, err := url.Parse(rawUrl)
		require.NoError(t, err)
		name := strings.TrimPrefix(u.Path, "/")
		return sqlite.Open(filepath.Join(dir, name+".db"))
	}))
}

func testSqliteManager(t *testing.T, r *Registry, opt ...Option) *Manager {
	t.Helper()
	d, err := NewDescriptor("postgres://u:p@localhost:5432/app",
		WithMaxRetries(0),
		WithMaxOpenConns(1),
	)
	require.NoError(t, err)
	opt = append([]Option{WithDriver(testSqliteDriver(t, t.TempDir()))}, opt...)
	m, err := New(d, r, opt...)
	require.NoError(t, err)
	return m
}

// countRows runs a count query on a managed session.
func countRows(t *testing.T, ctx context.Context, s *ManagedSession, query string) int64 {
	t.Helper()
	rows, err := s.Query(ctx, query)
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
	var n int64
	require.NoError(t, rows.Scan(&n))
	return n
}

func TestManager_RealSql_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)

	r := NewRegistry()
	require.NoError(r.RegisterPrecreate(func(ctx context.Context, tenantId string) ([]string, error) {
		return []string{
			"CREATE TABLE IF NOT EXISTS audit (entry TEXT NOT NULL)",
			"INSERT INTO audit (entry) VALUES ('precreate')",
		}, nil
	}, "app"))
	require.NoError(r.RegisterPostcreateManual(func(ctx context.Context, s HookSession, tenantId string) error {
		_, err := s.Exec(ctx, fmt.Sprintf("INSERT INTO tenants (id) VALUES ('%s')", tenantId))
		return err
	}, "app"))

	ts, err := schema.NewTableSet([]string{
		"CREATE TABLE IF NOT EXISTS tenants (id TEXT PRIMARY KEY)",
	})
	require.NoError(err)
	m := testSqliteManager(t, r, WithMaterializer(ts))
	defer m.Close(ctx)

	s1, err := m.GetSession(ctx, "app", WithTenantId("t1"))
	require.NoError(err)
	defer s1.Close(ctx)
	s2, err := m.GetSession(ctx, "app", WithTenantId("t2"))
	require.NoError(err)
	defer s2.Close(ctx)

	// each tenant resolved to its own database, seeded with exactly its own
	// row, inserted after materialization created the table
	assert.Equal(int64(1), countRows(t, ctx, s1, "SELECT count(*) FROM tenants WHERE id = 't1'"))
	assert.Equal(int64(0), countRows(t, ctx, s1, "SELECT count(*) FROM tenants WHERE id = 't2'"))
	assert.Equal(int64(1), countRows(t, ctx, s2, "SELECT count(*) FROM tenants WHERE id = 't2'"))

	// a second request for an initialized key re-runs nothing
	again, err := m.GetSession(ctx, "app", WithTenantId("t1"))
	require.NoError(err)
	defer again.Close(ctx)
	assert.Equal(int64(1), countRows(t, ctx, again, "SELECT count(*) FROM audit"))
	assert.Equal(int64(1), countRows(t, ctx, again, "SELECT count(*) FROM tenants"))
}

func TestManager_RealSql_SessionTransactions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)

	ts, err := schema.NewTableSet([]string{
		"CREATE TABLE IF NOT EXISTS widgets (id TEXT PRIMARY KEY)",
	})
	require.NoError(err)
	m := testSqliteManager(t, NewRegistry(), WithMaterializer(ts))
	defer m.Close(ctx)

	s, err := m.GetSession(ctx, "app")
	require.NoError(err)

	// rolled back work is invisible
	_, err = s.Exec(ctx, "INSERT INTO widgets (id) VALUES ('w1')")
	require.NoError(err)
	require.NoError(s.Rollback(ctx))
	assert.Equal(int64(0), countRows(t, ctx, s, "SELECT count(*) FROM widgets"))
	require.NoError(s.Rollback(ctx)) // pending query transaction

	// committed work survives the session
	_, err = s.Exec(ctx, "INSERT INTO widgets (id) VALUES ('w2')")
	require.NoError(err)
	require.NoError(s.Commit(ctx))
	require.NoError(s.Close(ctx))

	next, err := m.GetSession(ctx, "app")
	require.NoError(err)
	defer next.Close(ctx)
	assert.Equal(int64(1), countRows(t, ctx, next, "SELECT count(*) FROM widgets"))
}

func TestManager_RealSql_FailedHookLeavesEarlierCommits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)

	boom := stderrors.New("hook boom")
	failOnce := ua.NewBool(true)
	r := NewRegistry()
	require.NoError(r.RegisterPrecreate(func(ctx context.Context, tenantId string) ([]string, error) {
		return []string{
			"CREATE TABLE IF NOT EXISTS log (entry TEXT NOT NULL)",
			"INSERT INTO log (entry) VALUES ('h1')",
		}, nil
	}, "app"))
	require.NoError(r.RegisterPrecreate(func(ctx context.Context, tenantId string) ([]string, error) {
		if failOnce.CompareAndSwap(true, false) {
			return nil, boom
		}
		return []string{"INSERT INTO log (entry) VALUES ('h2')"}, nil
	}, "app"))
	require.NoError(r.RegisterPrecreate(func(ctx context.Context, tenantId string) ([]string, error) {
		return []string{"INSERT INTO log (entry) VALUES ('h3')"}, nil
	}, "app"))
	m := testSqliteManager(t, r)
	defer m.Close(ctx)

	_, err := m.GetSession(ctx, "app")
	require.Error(err)
	var hookErr *HookError
	require.ErrorAs(err, &hookErr)
	assert.Equal(2, hookErr.Ordinal)
	assert.ErrorIs(err, boom)

	// nothing was cached, so the next request re-runs the pipeline; hook 1
	// having run twice proves its first run was already durable when hook 2
	// failed
	s, err := m.GetSession(ctx, "app")
	require.NoError(err)
	defer s.Close(ctx)
	assert.Equal(int64(2), countRows(t, ctx, s, "SELECT count(*) FROM log WHERE entry = 'h1'"))
	assert.Equal(int64(1), countRows(t, ctx, s, "SELECT count(*) FROM log WHERE entry = 'h2'"))
	assert.Equal(int64(1), countRows(t, ctx, s, "SELECT count(*) FROM log WHERE entry = 'h3'"))
}
