// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dbsession

import (
	"context"
	"time"

	"github.com/hashicorp/go-dbsession/driver/stdsql"
	"github.com/hashicorp/go-dbsession/errors"
	"github.com/hashicorp/go-dbsession/internal/metric"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-version"
	ua "go.uber.org/atomic"
)

// Materializer creates or upgrades the schema objects of one database.  The
// manager invokes it exactly once per resolved database, after precreate
// hooks and before postcreate hooks.  Implementations must be idempotent:
// materializing an up to date database is a no-op.  The schema package
// provides two implementations.
type Materializer interface {
	Materialize(ctx context.Context, eng Engine, databaseName string) error
}

// MaterializerFunc adapts a function to the Materializer interface.
type MaterializerFunc func(ctx context.Context, eng Engine, databaseName string) error

// Materialize calls f.
func (f MaterializerFunc) Materialize(ctx context.Context, eng Engine, databaseName string) error {
	return f(ctx, eng, databaseName)
}

// Manager hands out ready to use database sessions.  For every resolved
// database it drives the same lifecycle exactly once: open the engine (with
// retries and optional database creation), run precreate hooks, materialize
// the schema, run postcreate hooks.  Engines are cached, so later requests
// skip straight to session construction.  A Manager is safe for concurrent
// use.
type Manager struct {
	descriptor   *Descriptor
	registry     *Registry
	materializer Materializer
	factory      *engineFactory
	log          hclog.Logger
}

// New creates a Manager from a descriptor and a hook registry.  Supported
// options: WithDriver (driver/stdsql by default), WithMaterializer,
// WithLogger, WithMetrics, WithMinServerVersion.
func New(d *Descriptor, r *Registry, opt ...Option) (*Manager, error) {
	const op = "dbsession.New"
	if d == nil {
		return nil, errors.New(errors.InvalidParameter, op, "missing descriptor")
	}
	if r == nil {
		return nil, errors.New(errors.InvalidParameter, op, "missing registry")
	}
	opts := getOpts(opt...)
	drv := opts.withDriver
	if drv == nil {
		drv = stdsql.New()
	}
	var minVersion *version.Version
	if opts.withMinServerVersion != "" {
		v, err := version.NewVersion(opts.withMinServerVersion)
		if err != nil {
			return nil, errors.New(errors.InvalidConfiguration, op, "unparseable minimum server version", errors.WithWrap(err))
		}
		minVersion = v
	}
	metric.InitializeCollectors(opts.withMetrics)
	m := &Manager{
		descriptor:   d,
		registry:     r,
		materializer: opts.withMaterializer,
		log:          opts.withLogger,
	}
	m.factory = newEngineFactory(d, drv, m.log, minVersion)
	return m, nil
}

// GetEngine returns the engine for a database, creating it and running the
// full initialization pipeline on first request.  Supported option:
// WithTenantId.  In anti persistence mode the returned engine is owned by
// the caller, who must close it.
func (m *Manager) GetEngine(ctx context.Context, database string, opt ...Option) (Engine, error) {
	const op = "dbsession.(Manager).GetEngine"
	opts := getOpts(opt...)
	logical, resolved := m.resolve(database, opts.withTenantId)
	if resolved == "" {
		return nil, errors.New(errors.InvalidParameter, op, "missing database name")
	}
	eng, _, err := m.factory.Engine(ctx, resolved, m.initialize(logical, resolved, opts.withTenantId))
	if err != nil {
		return nil, err
	}
	return eng, nil
}

// GetSession returns a ManagedSession bound to a database, creating the
// engine and running the full initialization pipeline on first request.
// Supported option: WithTenantId.  The caller must Close the session.
func (m *Manager) GetSession(ctx context.Context, database string, opt ...Option) (*ManagedSession, error) {
	const op = "dbsession.(Manager).GetSession"
	opts := getOpts(opt...)
	logical, resolved := m.resolve(database, opts.withTenantId)
	if resolved == "" {
		return nil, errors.New(errors.InvalidParameter, op, "missing database name")
	}
	eng, owned, err := m.factory.Engine(ctx, resolved, m.initialize(logical, resolved, opts.withTenantId))
	if err != nil {
		return nil, err
	}
	sess, err := eng.Begin(ctx)
	if err != nil {
		if owned {
			_ = eng.Close()
		}
		return nil, errors.Wrap(err, op)
	}
	id, err := NewId(SessionIdPrefix, WithPrngValues(opts.withPrngValues))
	if err != nil {
		_ = sess.Close(ctx)
		if owned {
			_ = eng.Close()
		}
		return nil, errors.Wrap(err, op)
	}
	s := &ManagedSession{
		id:           id,
		database:     resolved,
		tenantId:     opts.withTenantId,
		state:        StateSessionActive,
		session:      sess,
		engine:       eng,
		closeEngine:  owned,
		queryRetries: m.descriptor.queryRetries,
		fresh:        true,
		closed:       ua.NewBool(false),
		log:          m.log,
	}
	metric.IncSessionsActive()
	m.log.Debug("state transition", "state", StateSessionActive, "session", id, "database", resolved, "tenant", opts.withTenantId)
	return s, nil
}

// Close closes every cached engine.  Sessions handed out earlier become
// unusable.
func (m *Manager) Close(ctx context.Context) error {
	const op = "dbsession.(Manager).Close"
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, op)
	}
	return m.factory.Close()
}

// CacheStats reports cumulative engine cache hits and misses and the number
// of currently cached engines.
func (m *Manager) CacheStats() (hits, misses int64, entries int) {
	return m.factory.cacheStats()
}

// resolve returns the logical database name hooks are registered under and
// the tenant scoped resolved name engines are keyed by.
func (m *Manager) resolve(database, tenantId string) (logical, resolved string) {
	logical = database
	if logical == "" {
		logical = m.descriptor.Database()
	}
	return logical, m.descriptor.ResolveDatabase(database, tenantId)
}

// initialize builds the pipeline that runs exactly once per resolved
// database, inside the factory's single flight: precreate hooks, schema
// materialization, postcreate hooks.  Any failure closes the engine and
// leaves nothing cached; work committed by earlier hooks stays durable.
func (m *Manager) initialize(logical, resolved, tenantId string) initFunc {
	return func(ctx context.Context, eng Engine) error {
		m.log.Debug("state transition", "state", StateEngineReady, "database", resolved, "tenant", tenantId)
		if err := m.runHooks(ctx, eng, PrecreateAuto, logical, resolved, tenantId); err != nil {
			return err
		}
		if err := m.runHooks(ctx, eng, PrecreateManual, logical, resolved, tenantId); err != nil {
			return err
		}
		m.log.Debug("state transition", "state", StatePrecreated, "database", resolved, "tenant", tenantId)
		if m.materializer != nil {
			if err := m.materializer.Materialize(ctx, eng, resolved); err != nil {
				m.log.Error("schema materialization failed", "database", resolved, "error", err)
				return &SchemaError{Database: resolved, Err: err}
			}
		}
		m.log.Debug("state transition", "state", StateSchemaReady, "database", resolved, "tenant", tenantId)
		if err := m.runHooks(ctx, eng, PostcreateAuto, logical, resolved, tenantId); err != nil {
			return err
		}
		if err := m.runHooks(ctx, eng, PostcreateManual, logical, resolved, tenantId); err != nil {
			return err
		}
		m.log.Debug("state transition", "state", StatePostcreated, "database", resolved, "tenant", tenantId)
		return nil
	}
}

// runHooks executes all hooks of one kind registered for the logical
// database name, in registration order.  The context is checked between
// hooks so cancellation stops before the next hook starts; hooks that
// already committed stay committed.
func (m *Manager) runHooks(ctx context.Context, eng Engine, kind HookKind, logical, resolved, tenantId string) error {
	const op = "dbsession.(Manager).runHooks"
	for _, entry := range m.registry.Entries(kind, logical) {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, op)
		}
		start := time.Now()
		var err error
		switch {
		case entry.Auto != nil:
			err = m.runAutoHook(ctx, eng, entry, tenantId)
		case entry.Manual != nil:
			err = m.runManualHook(ctx, eng, entry, tenantId)
		}
		metric.ObserveHookDuration(kind.String(), time.Since(start))
		if err != nil {
			m.log.Error("hook failed", "kind", kind, "database", resolved, "ordinal", entry.Ordinal, "error", err)
			return &HookError{Kind: kind, Database: resolved, Ordinal: entry.Ordinal, Err: err}
		}
		m.log.Debug("hook complete", "kind", kind, "database", resolved, "ordinal", entry.Ordinal)
	}
	return nil
}

// runAutoHook collects the hook's statements and executes them inside one
// transaction.
func (m *Manager) runAutoHook(ctx context.Context, eng Engine, entry HookEntry, tenantId string) error {
	statements, err := entry.Auto(ctx, tenantId)
	if err != nil {
		return err
	}
	if len(statements) == 0 {
		return nil
	}
	sess, err := eng.Begin(ctx)
	if err != nil {
		return err
	}
	defer sess.Close(ctx)
	for _, statement := range statements {
		if _, err := sess.Exec(ctx, statement); err != nil {
			return err
		}
	}
	return sess.Commit(ctx)
}

// runManualHook hands the hook a fresh session and commits whatever the hook
// leaves pending when it returns, so later hooks observe its effects.  The
// hook may commit or roll back on its own at any point.
func (m *Manager) runManualHook(ctx context.Context, eng Engine, entry HookEntry, tenantId string) error {
	sess, err := eng.Begin(ctx)
	if err != nil {
		return err
	}
	defer sess.Close(ctx)
	if err := entry.Manual(ctx, sess, tenantId); err != nil {
		return err
	}
	return sess.Commit(ctx)
}
