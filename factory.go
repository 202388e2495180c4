// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dbsession

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-dbsession/errors"
	"github.com/hashicorp/go-dbsession/internal/metric"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-version"
	"github.com/lib/pq"
	ua "go.uber.org/atomic"
	"golang.org/x/sync/singleflight"
)

// initFunc initializes a newly opened engine before any caller sees it.  The
// lifecycle pipeline runs as the factory's initFunc so that hooks and schema
// materialization happen exactly once per resolved database.
type initFunc func(ctx context.Context, eng Engine) error

// engineFactory creates and caches engines keyed by resolved database name.
// Creation for one key is serialized through a single flight group, so
// concurrent first requests share one attempt sequence and its engine or
// error.
type engineFactory struct {
	descriptor *Descriptor
	driver     Driver
	log        hclog.Logger
	minVersion *version.Version

	mu      sync.RWMutex
	engines map[string]Engine
	group   singleflight.Group

	hits   *ua.Int64
	misses *ua.Int64
}

func newEngineFactory(d *Descriptor, drv Driver, log hclog.Logger, minVersion *version.Version) *engineFactory {
	return &engineFactory{
		descriptor: d,
		driver:     drv,
		log:        log,
		minVersion: minVersion,
		engines:    make(map[string]Engine),
		hits:       ua.NewInt64(0),
		misses:     ua.NewInt64(0),
	}
}

// Engine returns the engine for a resolved database, creating and
// initializing it on first request.  The second return reports whether the
// caller owns the engine and must close it, which is the case in anti
// persistence mode where nothing is cached and every call builds a fresh
// engine.
func (f *engineFactory) Engine(ctx context.Context, resolvedDatabase string, init initFunc) (Engine, bool, error) {
	const op = "dbsession.(engineFactory).Engine"
	if resolvedDatabase == "" {
		return nil, false, errors.New(errors.InvalidParameter, op, "missing database name")
	}
	if f.descriptor.antiPersistence {
		eng, err := f.openAndInit(ctx, resolvedDatabase, init)
		if err != nil {
			return nil, false, err
		}
		return eng, true, nil
	}

	f.mu.RLock()
	eng, ok := f.engines[resolvedDatabase]
	f.mu.RUnlock()
	if ok {
		f.hits.Inc()
		return eng, false, nil
	}
	f.misses.Inc()

	v, err, _ := f.group.Do(resolvedDatabase, func() (any, error) {
		// a previous flight may have populated the cache while we waited
		f.mu.RLock()
		eng, ok := f.engines[resolvedDatabase]
		f.mu.RUnlock()
		if ok {
			return eng, nil
		}
		eng, err := f.openAndInit(ctx, resolvedDatabase, init)
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		f.engines[resolvedDatabase] = eng
		entries := len(f.engines)
		f.mu.Unlock()
		metric.SetEngineCacheEntries(entries)
		return eng, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(Engine), false, nil
}

func (f *engineFactory) openAndInit(ctx context.Context, resolvedDatabase string, init initFunc) (Engine, error) {
	eng, err := f.openWithRetry(ctx, resolvedDatabase)
	if err != nil {
		return nil, err
	}
	if init != nil {
		if err := init(ctx, eng); err != nil {
			_ = eng.Close()
			return nil, err
		}
	}
	return eng, nil
}

// openWithRetry runs the connection attempt sequence for one resolved
// database: up to maxRetries+1 attempts, backing off between transient
// failures, creating the database once if it is missing and auto creation is
// enabled.  Non-transient failures end the sequence immediately.  Every
// failure path returns a *ConnectError carrying the attempts used.
func (f *engineFactory) openWithRetry(ctx context.Context, resolvedDatabase string) (Engine, error) {
	const op = "dbsession.(engineFactory).openWithRetry"
	cfg := f.descriptor.driverConfig(resolvedDatabase)
	maxAttempts := f.descriptor.maxRetries + 1
	var lastErr error
	created := false
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		eng, err := f.open(ctx, cfg)
		if err == nil {
			metric.IncConnectAttempt(resolvedDatabase, metric.ResultSuccess)
			return eng, nil
		}
		metric.IncConnectAttempt(resolvedDatabase, metric.ResultFailure)
		lastErr = err
		if !created && f.descriptor.autoCreate && errors.IsDatabaseNotFoundError(err) {
			if cerr := f.createDatabase(ctx, resolvedDatabase); cerr != nil {
				return nil, &ConnectError{Database: resolvedDatabase, Attempts: attempt, Err: cerr}
			}
			created = true
			// rerunning the attempt after creation consumes no attempt
			attempt--
			continue
		}
		if !errors.IsTransient(err) {
			f.log.Error("connection attempt failed", "database", resolvedDatabase, "attempt", attempt, "error", err)
			return nil, &ConnectError{Database: resolvedDatabase, Attempts: attempt, Err: err}
		}
		if attempt == maxAttempts {
			break
		}
		d := f.descriptor.backoff.Duration(attempt)
		f.log.Debug("transient connection failure, backing off", "database", resolvedDatabase, "attempt", attempt, "backoff", d, "error", err)
		if serr := sleepWithContext(ctx, d); serr != nil {
			return nil, &ConnectError{Database: resolvedDatabase, Attempts: attempt, Err: serr}
		}
	}
	f.log.Error("connection attempts exhausted", "database", resolvedDatabase, "attempts", maxAttempts, "error", lastErr)
	return nil, &ConnectError{
		Database: resolvedDatabase,
		Attempts: maxAttempts,
		Err: errors.New(errors.MaxRetriesExceeded, op,
			fmt.Sprintf("giving up after %d attempts", maxAttempts),
			errors.WithWrap(fmt.Errorf("%w: %w", errors.ErrMaxRetries, lastErr))),
	}
}

// open makes a single dial attempt: open the engine, probe it, and apply the
// minimum server version gate when one is configured.
func (f *engineFactory) open(ctx context.Context, cfg DriverConfig) (Engine, error) {
	const op = "dbsession.(engineFactory).open"
	dialCtx, cancel := context.WithTimeout(ctx, f.descriptor.connectTimeout)
	defer cancel()
	eng, err := f.driver.Open(dialCtx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	if err := eng.Ping(dialCtx); err != nil {
		_ = eng.Close()
		return nil, errors.Wrap(err, op)
	}
	if f.minVersion != nil {
		if err := f.checkServerVersion(dialCtx, eng); err != nil {
			_ = eng.Close()
			return nil, err
		}
	}
	return eng, nil
}

func (f *engineFactory) checkServerVersion(ctx context.Context, eng Engine) error {
	const op = "dbsession.(engineFactory).checkServerVersion"
	sess, err := eng.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, op)
	}
	defer sess.Close(ctx)
	rows, err := sess.Query(ctx, "SHOW server_version")
	if err != nil {
		return errors.Wrap(err, op)
	}
	defer rows.Close()
	if !rows.Next() {
		return errors.New(errors.Unknown, op, "no server version reported", errors.WithWrap(rows.Err()))
	}
	var raw string
	if err := rows.Scan(&raw); err != nil {
		return errors.Wrap(err, op)
	}
	// strip build details, e.g. "16.4 (Debian 16.4-1.pgdg120+1)"
	if i := strings.IndexByte(raw, ' '); i > 0 {
		raw = raw[:i]
	}
	v, err := version.NewVersion(raw)
	if err != nil {
		return errors.New(errors.Unknown, op, fmt.Sprintf("unparseable server version %q", raw), errors.WithWrap(err))
	}
	if v.LessThan(f.minVersion) {
		return errors.New(errors.InvalidConfiguration, op,
			fmt.Sprintf("server version %s below required minimum %s", v, f.minVersion))
	}
	return nil
}

// createDatabase opens a short lived engine on the maintenance database and
// creates the resolved database.  Losing a creation race to another process
// is success.
func (f *engineFactory) createDatabase(ctx context.Context, resolvedDatabase string) error {
	const op = "dbsession.(engineFactory).createDatabase"
	f.log.Info("database missing, creating it", "database", resolvedDatabase)
	cfg := f.descriptor.driverConfig(f.descriptor.maintenanceDb)
	// short lived administrative engine, one connection is plenty
	cfg.MinOpenConns, cfg.MaxIdleConns, cfg.MaxOpenConns = 0, 0, 1
	maint, err := f.open(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, op, errors.WithMsg("unable to open maintenance database"))
	}
	defer maint.Close()
	if _, err := maint.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(resolvedDatabase))); err != nil {
		if errors.IsDuplicateDatabaseError(err) {
			f.log.Debug("database already exists", "database", resolvedDatabase)
			return nil
		}
		return errors.Wrap(err, op)
	}
	return nil
}

// Close closes every cached engine and empties the cache.
func (f *engineFactory) Close() error {
	const op = "dbsession.(engineFactory).Close"
	f.mu.Lock()
	engines := f.engines
	f.engines = make(map[string]Engine)
	f.mu.Unlock()
	metric.SetEngineCacheEntries(0)
	var errs *multierror.Error
	for name, eng := range engines {
		if err := eng.Close(); err != nil {
			errs = multierror.Append(errs, errors.Wrap(err, op,
				errors.WithMsg(fmt.Sprintf("unable to close engine for %q", name))))
		}
	}
	return errs.ErrorOrNil()
}

// cacheStats reports cumulative cache hits and misses and the current number
// of cached engines.
func (f *engineFactory) cacheStats() (hits, misses int64, entries int) {
	f.mu.RLock()
	entries = len(f.engines)
	f.mu.RUnlock()
	return f.hits.Load(), f.misses.Load(), entries
}
