// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package schema_test

import (
	"context"
	"fmt"
	"testing"

	dbsession "github.com/hashicorp/go-dbsession"
	"github.com/hashicorp/go-dbsession/errors"
	"github.com/hashicorp/go-dbsession/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ dbsession.Materializer = (*schema.TableSet)(nil)
	_ dbsession.Materializer = (*schema.Migrator)(nil)
)

func TestNewTableSet(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name            string
		statements      []string
		wantErrContains string
	}{
		{
			name:            "missing-statements",
			statements:      nil,
			wantErrContains: "missing statements",
		},
		{
			name:            "empty-statement",
			statements:      []string{"CREATE TABLE IF NOT EXISTS a (id int)", ""},
			wantErrContains: "empty statement at index 1",
		},
		{
			name:       "valid",
			statements: []string{"CREATE TABLE IF NOT EXISTS a (id int)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := schema.NewTableSet(tt.statements)
			if tt.wantErrContains != "" {
				require.Error(err)
				assert.Nil(got)
				assert.Contains(err.Error(), tt.wantErrContains)
				assert.True(errors.Match(errors.T(errors.InvalidParameter), err))
				return
			}
			require.NoError(err)
			assert.NotNil(got)
		})
	}
}

func TestTableSet_Materialize(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	statements := []string{
		"CREATE TABLE IF NOT EXISTS users (id bigint primary key)",
		"CREATE INDEX IF NOT EXISTS users_id_ix ON users (id)",
	}

	t.Run("runs-all-statements-in-one-transaction", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		drv := dbsession.NewTestDriver("app")
		eng, err := drv.Open(ctx, dbsession.DriverConfig{URL: "postgres://u:p@localhost:5432/app"})
		require.NoError(err)
		ts, err := schema.NewTableSet(statements)
		require.NoError(err)
		require.NoError(ts.Materialize(ctx, eng, "app"))
		assert.Equal(statements, drv.Committed("app"))
		assert.Equal([]string{
			"open",
			"begin",
			"exec: " + statements[0],
			"exec: " + statements[1],
			"commit",
			"close",
		}, drv.Events("app"))
	})

	t.Run("advisory-lock-taken-first", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		drv := dbsession.NewTestDriver("app")
		eng, err := drv.Open(ctx, dbsession.DriverConfig{URL: "postgres://u:p@localhost:5432/app"})
		require.NoError(err)
		ts, err := schema.NewTableSet(statements, schema.WithLockKey(777))
		require.NoError(err)
		require.NoError(ts.Materialize(ctx, eng, "app"))
		events := drv.Events("app")
		require.Greater(len(events), 2)
		assert.Equal("exec: SELECT pg_advisory_xact_lock(777)", events[2])
	})

	t.Run("failed-statement-rolls-back", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		drv := dbsession.NewTestDriver("app")
		drv.FailStatement("CREATE INDEX", fmt.Errorf("boom"))
		eng, err := drv.Open(ctx, dbsession.DriverConfig{URL: "postgres://u:p@localhost:5432/app"})
		require.NoError(err)
		ts, err := schema.NewTableSet(statements)
		require.NoError(err)
		err = ts.Materialize(ctx, eng, "app")
		require.Error(err)
		assert.Contains(err.Error(), "boom")
		assert.Empty(drv.Committed("app"))
		events := drv.Events("app")
		assert.Contains(events, "rollback")
		assert.NotContains(events, "commit")
	})
}

func TestNewMigrator(t *testing.T) {
	t.Parallel()
	t.Run("missing-source", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		got, err := schema.NewMigrator(nil, "migrations")
		require.Error(err)
		assert.Nil(got)
		assert.Contains(err.Error(), "missing migration source")
	})
	t.Run("missing-path", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		got, err := schema.NewMigrator(testMigrationsFS, "")
		require.Error(err)
		assert.Nil(got)
		assert.Contains(err.Error(), "missing migration path")
	})
	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		got, err := schema.NewMigrator(testMigrationsFS, testMigrationsPath)
		require.NoError(err)
		assert.NotNil(got)
	})
}

func TestMigrator_Materialize(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("requires-sql-backed-engine", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		drv := dbsession.NewTestDriver("app")
		eng, err := drv.Open(ctx, dbsession.DriverConfig{URL: "postgres://u:p@localhost:5432/app"})
		require.NoError(err)
		m, err := schema.NewMigrator(testMigrationsFS, testMigrationsPath)
		require.NoError(err)
		err = m.Materialize(ctx, eng, "app")
		require.Error(err)
		assert.True(errors.Match(errors.T(errors.SchemaMaterialization), err))
		assert.Contains(err.Error(), "does not expose a database/sql pool")
	})

	t.Run("canceled-context", func(t *testing.T) {
		require := require.New(t)
		drv := dbsession.NewTestDriver("app")
		eng, err := drv.Open(ctx, dbsession.DriverConfig{URL: "postgres://u:p@localhost:5432/app"})
		require.NoError(err)
		m, err := schema.NewMigrator(testMigrationsFS, testMigrationsPath)
		require.NoError(err)
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		err = m.Materialize(canceled, eng, "app")
		require.ErrorIs(err, context.Canceled)
	})
}
