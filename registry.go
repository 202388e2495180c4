// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dbsession

import (
	"sync"

	"github.com/hashicorp/go-dbsession/errors"
)

// Registry maps logical database names to ordered lists of registered hooks,
// split into the four kinds.  Registration order is execution order within a
// kind.  Registering the same callable twice appends it twice and both run.
//
// A Registry must be fully populated before the first session request for a
// database name: the orchestrator reads it at request time and a hook
// registered after materialization for that database will not retroactively
// run.
type Registry struct {
	mu    sync.RWMutex
	hooks map[string]map[HookKind][]HookEntry
}

// NewRegistry creates an empty hook registry.
func NewRegistry() *Registry {
	return &Registry{
		hooks: make(map[string]map[HookKind][]HookEntry),
	}
}

// RegisterPrecreate appends fn to the precreate-auto hook list of every named
// database.  The statements it returns run before schema materialization.
func (r *Registry) RegisterPrecreate(fn AutoHook, databases ...string) error {
	const op = "dbsession.(Registry).RegisterPrecreate"
	if fn == nil {
		return errors.New(errors.InvalidParameter, op, "missing hook")
	}
	return r.register(op, PrecreateAuto, HookEntry{Kind: PrecreateAuto, Auto: fn}, databases)
}

// RegisterPrecreateManual appends fn to the precreate-manual hook list of
// every named database.  It runs before schema materialization, after the
// precreate-auto hooks, with a fresh session.
func (r *Registry) RegisterPrecreateManual(fn ManualHook, databases ...string) error {
	const op = "dbsession.(Registry).RegisterPrecreateManual"
	if fn == nil {
		return errors.New(errors.InvalidParameter, op, "missing hook")
	}
	return r.register(op, PrecreateManual, HookEntry{Kind: PrecreateManual, Manual: fn}, databases)
}

// RegisterPostcreate appends fn to the postcreate-auto hook list of every
// named database.  The statements it returns run after schema
// materialization.
func (r *Registry) RegisterPostcreate(fn AutoHook, databases ...string) error {
	const op = "dbsession.(Registry).RegisterPostcreate"
	if fn == nil {
		return errors.New(errors.InvalidParameter, op, "missing hook")
	}
	return r.register(op, PostcreateAuto, HookEntry{Kind: PostcreateAuto, Auto: fn}, databases)
}

// RegisterPostcreateManual appends fn to the postcreate-manual hook list of
// every named database.  It runs last in the pipeline, with a fresh session.
func (r *Registry) RegisterPostcreateManual(fn ManualHook, databases ...string) error {
	const op = "dbsession.(Registry).RegisterPostcreateManual"
	if fn == nil {
		return errors.New(errors.InvalidParameter, op, "missing hook")
	}
	return r.register(op, PostcreateManual, HookEntry{Kind: PostcreateManual, Manual: fn}, databases)
}

// register fans the entry out to each named database, appending it to the
// kind's ordered list.
func (r *Registry) register(op errors.Op, kind HookKind, entry HookEntry, databases []string) error {
	if len(databases) == 0 {
		return errors.New(errors.InvalidParameter, op, "missing database name")
	}
	for _, database := range databases {
		if database == "" {
			return errors.New(errors.InvalidParameter, op, "empty database name")
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, database := range databases {
		byKind, ok := r.hooks[database]
		if !ok {
			byKind = make(map[HookKind][]HookEntry)
			r.hooks[database] = byKind
		}
		e := entry
		e.Database = database
		e.Ordinal = len(byKind[kind]) + 1
		byKind[kind] = append(byKind[kind], e)
	}
	return nil
}

// Entries returns a copy of the ordered hook entries of the given kind
// registered for the database.  It returns an empty slice when none are
// registered, never an error.
func (r *Registry) Entries(kind HookKind, database string) []HookEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.hooks[database][kind]
	if len(entries) == 0 {
		return nil
	}
	out := make([]HookEntry, len(entries))
	copy(out, entries)
	return out
}
