// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dbsession

import (
	"fmt"
)

// ConnectError is returned when the engine factory could not produce a live
// engine for a database.  It carries the last underlying cause and the number
// of connection attempts made.  A non-transient cause (authentication
// rejected, bad configuration) aborts after the attempt that surfaced it;
// transient causes are retried until the descriptor's retry policy is
// exhausted.
type ConnectError struct {
	// Database is the resolved database name the connection was for.
	Database string

	// Attempts is the number of connection attempts made, counting the first
	// attempt.  When the retry policy was exhausted this is max retries + 1.
	Attempts int

	// Err is the last underlying cause.
	Err error
}

// Error satisfies the error interface.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("unable to connect to %q after %d attempt(s): %s", e.Database, e.Attempts, e.Err)
}

// Unwrap returns the last underlying cause.
func (e *ConnectError) Unwrap() error {
	return e.Err
}

// HookError is returned when a registered hook fails.  It identifies the
// failing hook by kind, database and 1-based ordinal position, so callers can
// tell which already-committed hooks' effects are durable.  Hooks registered
// before the failing one have committed; the failing hook's transaction was
// rolled back; later hooks did not run.
type HookError struct {
	// Kind of the failing hook.
	Kind HookKind

	// Database is the resolved database name the hook ran against, which for
	// tenant scoped requests differs from the name the hook was registered
	// under.
	Database string

	// Ordinal is the hook's 1-based position within its kind's registration
	// order.
	Ordinal int

	// Err is the error the hook raised, or the commit failure of its
	// session.
	Err error
}

// Error satisfies the error interface.
func (e *HookError) Error() string {
	return fmt.Sprintf("%s hook %d for %q failed: %s", e.Kind, e.Ordinal, e.Database, e.Err)
}

// Unwrap returns the hook's underlying error.
func (e *HookError) Unwrap() error {
	return e.Err
}

// State returns the orchestration state the request aborted in.
func (e *HookError) State() State {
	return e.Kind.state()
}

// SchemaError is returned when the schema materializer fails irrecoverably.
type SchemaError struct {
	// Database is the resolved database name being materialized.
	Database string

	// Err is the underlying DDL failure.
	Err error
}

// Error satisfies the error interface.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema materialization for %q failed: %s", e.Database, e.Err)
}

// Unwrap returns the underlying DDL failure.
func (e *SchemaError) Unwrap() error {
	return e.Err
}

// State returns the orchestration state the request aborted in.
func (e *SchemaError) State() State {
	return StateSchemaReady
}
