// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dbsession

// State defines the states a session request moves through while it is being
// orchestrated.  Transitions are strictly sequential; no state is skipped.
type State string

const (
	// StateIdle is the zero state of a request, before an engine exists.
	StateIdle State = "idle"

	// StateEngineReady means an engine handle has been obtained (created or
	// reused from the cache).
	StateEngineReady State = "engine-ready"

	// StatePrecreated means every precreate hook registered for the database
	// has run and committed.
	StatePrecreated State = "precreated"

	// StateSchemaReady means the schema materializer has completed for the
	// database.
	StateSchemaReady State = "schema-ready"

	// StatePostcreated means every postcreate hook registered for the
	// database has run and committed.
	StatePostcreated State = "postcreated"

	// StateSessionActive means a session is bound to the engine and scoped to
	// the caller.
	StateSessionActive State = "session-active"

	// StateClosed is the terminal state; the session was released.  The
	// engine handle stays cached for reuse.
	StateClosed State = "closed"
)

// String returns a string representation of the state.
func (s State) String() string {
	return string(s)
}
