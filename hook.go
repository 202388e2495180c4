// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dbsession

import (
	"context"
)

// HookKind defines the four kinds of hooks which can be registered for a
// database.  Auto kinds return SQL text; manual kinds receive a session.
// Precreate kinds run before schema materialization, postcreate kinds after.
type HookKind string

const (
	PrecreateAuto    HookKind = "precreate-auto"
	PrecreateManual  HookKind = "precreate-manual"
	PostcreateAuto   HookKind = "postcreate-auto"
	PostcreateManual HookKind = "postcreate-manual"
)

// String returns a string representation of the hook kind.
func (k HookKind) String() string {
	return string(k)
}

func (k HookKind) valid() bool {
	switch k {
	case PrecreateAuto, PrecreateManual, PostcreateAuto, PostcreateManual:
		return true
	}
	return false
}

// state returns the orchestration state a failure of this kind aborts in.
func (k HookKind) state() State {
	switch k {
	case PrecreateAuto, PrecreateManual:
		return StatePrecreated
	default:
		return StatePostcreated
	}
}

// AutoHook is a callable registered under an auto kind.  It is given the
// tenant id and returns zero or more SQL statements, which are executed
// verbatim in registration order within one transaction per hook.  Returning
// no statements is valid and is not an error.
type AutoHook func(ctx context.Context, tenantId string) ([]string, error)

// ManualHook is a callable registered under a manual kind.  It is given a
// fresh session scoped to the hook and the tenant id, and may perform
// arbitrary operations through the session, including none.  The session's
// work is committed after the hook returns, before the next hook runs.
type ManualHook func(ctx context.Context, s HookSession, tenantId string) error

// HookEntry is one registered hook for one database.  Exactly one of Auto and
// Manual is set, matching the Kind.
type HookEntry struct {
	// Kind of the hook.
	Kind HookKind

	// Database is the logical database name the hook was registered under.
	Database string

	// Ordinal is the hook's 1-based position within its kind's registration
	// order for the database.
	Ordinal int

	// Auto is the callable for the auto kinds.
	Auto AutoHook

	// Manual is the callable for the manual kinds.
	Manual ManualHook
}
