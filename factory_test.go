// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dbsession

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-dbsession/errors"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-version"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ua "go.uber.org/atomic"
)

// testFactory builds an engineFactory over a TestDriver with a fast backoff
// and two retries, so a full attempt sequence is three attempts.
func testFactory(t *testing.T, drv *TestDriver, opt ...Option) *engineFactory {
	t.Helper()
	opt = append([]Option{
		WithMaxRetries(2),
		WithBackoff(ConstBackoff{DurationMs: 1}),
	}, opt...)
	d, err := NewDescriptor("postgres://u:p@localhost:5432/app", opt...)
	require.NoError(t, err)
	return newEngineFactory(d, drv, hclog.NewNullLogger(), nil)
}

func TestEngineFactory_Engine(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("missing-database-name", func(t *testing.T) {
		require := require.New(t)
		f := testFactory(t, NewTestDriver("app"))
		_, _, err := f.Engine(ctx, "", nil)
		require.Error(err)
		require.True(errors.Match(errors.T(errors.InvalidParameter), err))
	})

	t.Run("caches-after-first-open", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		drv := NewTestDriver("app")
		f := testFactory(t, drv)

		eng, owned, err := f.Engine(ctx, "app", nil)
		require.NoError(err)
		require.NotNil(eng)
		assert.False(owned)
		assert.Equal(1, drv.Opens("app"))

		again, owned, err := f.Engine(ctx, "app", nil)
		require.NoError(err)
		assert.False(owned)
		assert.Same(eng, again)
		assert.Equal(1, drv.Opens("app"))

		hits, misses, entries := f.cacheStats()
		assert.Equal(int64(1), hits)
		assert.Equal(int64(1), misses)
		assert.Equal(1, entries)
	})

	t.Run("distinct-databases-get-distinct-engines", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		drv := NewTestDriver("app", "orders")
		f := testFactory(t, drv)
		first, _, err := f.Engine(ctx, "app", nil)
		require.NoError(err)
		second, _, err := f.Engine(ctx, "orders", nil)
		require.NoError(err)
		assert.NotSame(first, second)
		_, _, entries := f.cacheStats()
		assert.Equal(2, entries)
	})

	t.Run("init-runs-once-per-database", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		drv := NewTestDriver("app")
		f := testFactory(t, drv)
		initCount := ua.NewInt64(0)
		init := func(ctx context.Context, eng Engine) error {
			initCount.Inc()
			return nil
		}
		_, _, err := f.Engine(ctx, "app", init)
		require.NoError(err)
		_, _, err = f.Engine(ctx, "app", init)
		require.NoError(err)
		assert.Equal(int64(1), initCount.Load())
	})

	t.Run("init-failure-caches-nothing-and-closes-engine", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		drv := NewTestDriver("app")
		f := testFactory(t, drv)
		boom := stderrors.New("init boom")
		_, _, err := f.Engine(ctx, "app", func(context.Context, Engine) error { return boom })
		require.ErrorIs(err, boom)
		assert.Equal(1, drv.EngineCloses("app"))
		_, _, entries := f.cacheStats()
		assert.Equal(0, entries)

		// the next request starts over and can succeed
		_, _, err = f.Engine(ctx, "app", nil)
		require.NoError(err)
		assert.Equal(2, drv.Opens("app"))
	})

	t.Run("concurrent-first-requests-share-one-flight", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		drv := NewTestDriver("app")
		f := testFactory(t, drv)
		initCount := ua.NewInt64(0)
		init := func(ctx context.Context, eng Engine) error {
			initCount.Inc()
			time.Sleep(20 * time.Millisecond)
			return nil
		}

		const callers = 10
		engines := make([]Engine, callers)
		var wg sync.WaitGroup
		wg.Add(callers)
		for i := 0; i < callers; i++ {
			go func(i int) {
				defer wg.Done()
				eng, _, err := f.Engine(ctx, "app", init)
				assert.NoError(err)
				engines[i] = eng
			}(i)
		}
		wg.Wait()

		require.Equal(int64(1), initCount.Load())
		require.Equal(1, drv.Opens("app"))
		for i := 1; i < callers; i++ {
			assert.Same(engines[0], engines[i])
		}
	})

	t.Run("anti-persistence-owns-every-engine", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		drv := NewTestDriver("app")
		f := testFactory(t, drv, WithAntiPersistence(true))

		first, owned, err := f.Engine(ctx, "app", nil)
		require.NoError(err)
		assert.True(owned)
		second, owned, err := f.Engine(ctx, "app", nil)
		require.NoError(err)
		assert.True(owned)
		assert.NotSame(first, second)
		assert.Equal(2, drv.Opens("app"))
		_, _, entries := f.cacheStats()
		assert.Equal(0, entries)
	})
}

func TestEngineFactory_Retry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("transient-failures-then-success", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		drv := NewTestDriver("app")
		drv.FailOpen("app", NewTestTransientErr(), NewTestTransientErr())
		f := testFactory(t, drv)
		_, _, err := f.Engine(ctx, "app", nil)
		require.NoError(err)
		assert.Equal(3, drv.Opens("app"))
	})

	t.Run("exhaustion-counts-all-attempts", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		drv := NewTestDriver("app")
		drv.FailOpen("app", NewTestTransientErr(), NewTestTransientErr(), NewTestTransientErr())
		f := testFactory(t, drv)
		_, _, err := f.Engine(ctx, "app", nil)
		require.Error(err)
		var connectErr *ConnectError
		require.True(stderrors.As(err, &connectErr))
		assert.Equal("app", connectErr.Database)
		assert.Equal(3, connectErr.Attempts)
		assert.True(errors.Match(errors.T(errors.MaxRetriesExceeded), err))
		assert.True(errors.Is(err, errors.ErrMaxRetries))
		assert.Equal(3, drv.Opens("app"))
	})

	t.Run("non-transient-aborts-immediately", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		drv := NewTestDriver("app")
		drv.FailOpen("app", NewTestAuthErr())
		f := testFactory(t, drv)
		_, _, err := f.Engine(ctx, "app", nil)
		require.Error(err)
		var connectErr *ConnectError
		require.True(stderrors.As(err, &connectErr))
		assert.Equal(1, connectErr.Attempts)
		assert.True(errors.Match(errors.T(errors.AuthenticationFailed), err))
		assert.Equal(1, drv.Opens("app"))
	})

	t.Run("canceled-during-backoff", func(t *testing.T) {
		require := require.New(t)
		drv := NewTestDriver("app")
		drv.FailOpen("app", NewTestTransientErr(), NewTestTransientErr())
		d, err := NewDescriptor("postgres://u:p@localhost:5432/app",
			WithMaxRetries(2), WithBackoff(ConstBackoff{DurationMs: 10_000}))
		require.NoError(err)
		f := newEngineFactory(d, drv, hclog.NewNullLogger(), nil)

		timeoutCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, _, err = f.Engine(timeoutCtx, "app", nil)
		require.Error(err)
		var connectErr *ConnectError
		require.True(stderrors.As(err, &connectErr))
		require.Equal(1, connectErr.Attempts)
		require.ErrorIs(err, context.DeadlineExceeded)
	})
}

func TestEngineFactory_AutoCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("creates-missing-database", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		drv := NewTestDriver("postgres")
		f := testFactory(t, drv)
		_, _, err := f.Engine(ctx, "newdb", nil)
		require.NoError(err)
		assert.True(drv.HasDatabase("newdb"))
		// the failed probe and the post-create open
		assert.Equal(2, drv.Opens("newdb"))
		assert.Equal(1, drv.Opens("postgres"))
		assert.Contains(drv.Events("postgres"), `exec: CREATE DATABASE "newdb"`)
		// the maintenance engine is short lived
		assert.Equal(1, drv.EngineCloses("postgres"))
	})

	t.Run("creation-race-lost-is-success", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		drv := NewTestDriver("postgres", "racedb")
		// the first open sees the database as missing even though a
		// concurrent process has created it by the time we try
		drv.FailOpen("racedb", &pgconn.PgError{Code: "3D000", Message: `database "racedb" does not exist`})
		f := testFactory(t, drv)
		_, _, err := f.Engine(ctx, "racedb", nil)
		require.NoError(err)
		assert.Equal(2, drv.Opens("racedb"))
	})

	t.Run("disabled-propagates-not-found", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		drv := NewTestDriver("postgres")
		f := testFactory(t, drv, WithAutoCreateDatabase(false))
		_, _, err := f.Engine(ctx, "missing", nil)
		require.Error(err)
		var connectErr *ConnectError
		require.True(stderrors.As(err, &connectErr))
		assert.Equal(1, connectErr.Attempts)
		assert.True(errors.Match(errors.T(errors.DatabaseNotFound), err))
		assert.False(drv.HasDatabase("missing"))
	})

	t.Run("maintenance-database-unreachable", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		drv := NewTestDriver()
		f := testFactory(t, drv)
		_, _, err := f.Engine(ctx, "newdb", nil)
		require.Error(err)
		var connectErr *ConnectError
		require.True(stderrors.As(err, &connectErr))
		assert.Equal(1, connectErr.Attempts)
		assert.Contains(err.Error(), "unable to open maintenance database")
	})
}

func TestEngineFactory_ServerVersion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	newVersionFactory := func(t *testing.T, drv *TestDriver, min string) *engineFactory {
		t.Helper()
		d, err := NewDescriptor("postgres://u:p@localhost:5432/app",
			WithMaxRetries(0), WithBackoff(ConstBackoff{DurationMs: 1}))
		require.NoError(t, err)
		return newEngineFactory(d, drv, hclog.NewNullLogger(), version.Must(version.NewVersion(min)))
	}

	t.Run("meets-minimum", func(t *testing.T) {
		require := require.New(t)
		drv := NewTestDriver("app")
		drv.ScriptQuery("SHOW server_version", []any{"16.4 (Debian 16.4-1.pgdg120+1)"})
		f := newVersionFactory(t, drv, "13.0")
		_, _, err := f.Engine(ctx, "app", nil)
		require.NoError(err)
	})

	t.Run("below-minimum", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		drv := NewTestDriver("app")
		drv.ScriptQuery("SHOW server_version", []any{"12.9"})
		f := newVersionFactory(t, drv, "13.0")
		_, _, err := f.Engine(ctx, "app", nil)
		require.Error(err)
		assert.True(errors.Match(errors.T(errors.InvalidConfiguration), err))
		assert.Contains(err.Error(), "below required minimum")
	})
}

func TestEngineFactory_Close(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert, require := assert.New(t), require.New(t)
	drv := NewTestDriver("app", "orders")
	f := testFactory(t, drv)

	_, _, err := f.Engine(ctx, "app", nil)
	require.NoError(err)
	_, _, err = f.Engine(ctx, "orders", nil)
	require.NoError(err)

	require.NoError(f.Close())
	assert.Equal(1, drv.EngineCloses("app"))
	assert.Equal(1, drv.EngineCloses("orders"))
	_, _, entries := f.cacheStats()
	assert.Equal(0, entries)

	// the factory keeps working after Close
	_, _, err = f.Engine(ctx, "app", nil)
	require.NoError(err)
	assert.Equal(2, drv.Opens("app"))
}
