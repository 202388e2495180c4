// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package errors

// Info contains details of the specific error code
type Info struct {
	// Kind specifies the kind of error (unknown, parameter, connection, etc.).
	Kind Kind

	// Message provides a default message for the error code
	Message string
}

// errorCodeInfo provides a map of unique Codes (IDs) to their
// corresponding Kind and a default Message.
var errorCodeInfo = map[Code]Info{
	Unknown: {
		Message: "unknown",
		Kind:    Other,
	},
	InvalidParameter: {
		Message: "invalid parameter",
		Kind:    Parameter,
	},
	InvalidConfiguration: {
		Message: "invalid configuration",
		Kind:    Configuration,
	},
	Unavailable: {
		Message: "database unavailable",
		Kind:    Connection,
	},
	AuthenticationFailed: {
		Message: "authentication failed",
		Kind:    Connection,
	},
	DatabaseNotFound: {
		Message: "database not found",
		Kind:    Connection,
	},
	DuplicateDatabase: {
		Message: "database already exists",
		Kind:    Connection,
	},
	MaxRetriesExceeded: {
		Message: "too many retries",
		Kind:    Connection,
	},
	SchemaMaterialization: {
		Message: "schema materialization failed",
		Kind:    Schema,
	},
	MissingTable: {
		Message: "missing table",
		Kind:    Integrity,
	},
	NotUnique: {
		Message: "must be unique violation",
		Kind:    Integrity,
	},
	CheckConstraint: {
		Message: "constraint check failed",
		Kind:    Integrity,
	},
	NotNull: {
		Message: "must not be empty (null) violation",
		Kind:    Integrity,
	},
	NotSpecificIntegrity: {
		Message: "integrity violation without specific details",
		Kind:    Integrity,
	},
	SessionClosed: {
		Message: "session closed",
		Kind:    Session,
	},
	CommitFailed: {
		Message: "commit failed",
		Kind:    Session,
	},
	RollbackFailed: {
		Message: "rollback failed",
		Kind:    Session,
	},
}
