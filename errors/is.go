// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package errors

// hasCode reports whether the error is (or wraps) an *Err with the given
// Code, or converts to one.
func hasCode(err error, c Code) bool {
	if err == nil {
		return false
	}
	var domainErr *Err
	if As(err, &domainErr) {
		if domainErr.Code == c {
			return true
		}
	}
	if conv := Convert(err); conv != nil {
		return conv.Code == c
	}
	return false
}

// IsTransient returns a boolean indicating whether the error is known to
// report a transient connection condition which may succeed when retried:
// refused or dropped connections, timeouts, a backend that is starting up or
// out of connection slots.  Authentication failures and configuration errors
// are never transient.
func IsTransient(err error) bool {
	return hasCode(err, Unavailable)
}

// IsAuthenticationError returns a boolean indicating whether the error is
// known to report a rejected login.  Connection attempts are never retried
// after one of these.
func IsAuthenticationError(err error) bool {
	return hasCode(err, AuthenticationFailed)
}

// IsDatabaseNotFoundError returns a boolean indicating whether the error is
// known to report a connection to a database that does not exist.
func IsDatabaseNotFoundError(err error) bool {
	return hasCode(err, DatabaseNotFound)
}

// IsDuplicateDatabaseError returns a boolean indicating whether the error is
// known to report that a database by that name already exists.
func IsDuplicateDatabaseError(err error) bool {
	return hasCode(err, DuplicateDatabase)
}

// IsUniqueError returns a boolean indicating whether the error is known to
// report a unique constraint violation.
func IsUniqueError(err error) bool {
	return hasCode(err, NotUnique)
}

// IsMissingTableError returns a boolean indicating whether the error is known
// to report an undefined/missing table violation.
func IsMissingTableError(err error) bool {
	return hasCode(err, MissingTable)
}

// IsSessionClosedError returns a boolean indicating whether the error is
// known to report use of a session after it was closed.
func IsSessionClosedError(err error) bool {
	return hasCode(err, SessionClosed)
}
