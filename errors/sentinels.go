// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package errors

// Errors returned from this package may be tested against these errors with
// errors.Is.
var (
	// ErrInvalidParameter is returned when a method is given an attribute with
	// illegal or invalid values.
	ErrInvalidParameter = E(WithCode(InvalidParameter), WithMsg("invalid parameter"))

	// ErrSessionClosed is returned by session methods called after the session
	// was committed, rolled back for the last time, or closed.
	ErrSessionClosed = E(WithCode(SessionClosed), WithMsg("session closed"))

	// ErrMaxRetries is returned (wrapped) when a connection retry policy has
	// been exhausted without a successful attempt.
	ErrMaxRetries = E(WithCode(MaxRetriesExceeded), WithMsg("too many retries"))
)
