// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package errors

// Code specifies a code for the error.
type Code uint32

// String will return the Code's Info.Message
func (c Code) String() string {
	return c.Info().Message
}

// Info will look up the Code's Info.  If the Info is not found, it will return
// Info for an Unknown Code.
func (c Code) Info() Info {
	if info, ok := errorCodeInfo[c]; ok {
		return info
	}
	return errorCodeInfo[Unknown]
}

const (
	Unknown Code = 0 // Unknown will be equal to a zero value for Codes

	// Parameter and configuration errors are reserved Codes 100-399
	InvalidParameter     Code = 100 // InvalidParameter represents an invalid parameter for an operation
	InvalidConfiguration Code = 101 // InvalidConfiguration represents an invalid connection descriptor or option

	// Connection errors are reserved Codes 400-599
	Unavailable          Code = 400 // Unavailable represents a transient connection failure which may be retried
	AuthenticationFailed Code = 401 // AuthenticationFailed represents a rejected login; never retried
	DatabaseNotFound     Code = 402 // DatabaseNotFound represents a connection to a database that does not exist
	DuplicateDatabase    Code = 403 // DuplicateDatabase represents a create-database race lost to another creator
	MaxRetriesExceeded   Code = 404 // MaxRetriesExceeded represents an exhausted connection retry policy

	// Schema and integrity errors are reserved Codes 600-699
	SchemaMaterialization Code = 600 // SchemaMaterialization represents an irrecoverable DDL failure
	MissingTable          Code = 601 // MissingTable represents an undefined table error
	NotUnique             Code = 602 // NotUnique represents a value must be unique violation
	CheckConstraint       Code = 603 // CheckConstraint represents a check constraint error
	NotNull               Code = 604 // NotNull represents a value must not be null violation
	NotSpecificIntegrity  Code = 699 // NotSpecificIntegrity represents an integrity violation without a more specific code

	// Session errors are reserved Codes 700-799
	SessionClosed  Code = 700 // SessionClosed represents an operation on a session that has been closed
	CommitFailed   Code = 701 // CommitFailed represents a failed transaction commit
	RollbackFailed Code = 702 // RollbackFailed represents a failed transaction rollback
)
