// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package errors

import (
	"context"
	"database/sql/driver"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// SQLState returns the five character SQLSTATE reported by the database
// backend, regardless of whether the connection was made through lib/pq or
// pgx, and a bool indicating whether one was found.
func SQLState(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if As(err, &pgErr) {
		return pgErr.Code, true
	}
	var pqErr *pq.Error
	if As(err, &pqErr) {
		return string(pqErr.Code), true
	}
	return "", false
}

// Convert will convert the error to an Err (if that's not possible, it just
// returns nil) and it will attempt to add a helpful error msg as well.
func Convert(e error) *Err {
	if e == nil {
		return nil
	}

	var alreadyConverted *Err
	if As(e, &alreadyConverted) {
		return alreadyConverted
	}

	if state, ok := SQLState(e); ok {
		if code, ok := codeFromSQLState(state); ok {
			return &Err{Code: code, Msg: messageFromDriver(e), Wrapped: e}
		}
		return nil
	}
	if isTransportError(e) {
		return &Err{Code: Unavailable, Wrapped: e}
	}
	return nil
}

// codeFromSQLState maps the SQLSTATEs this module cares about to Codes.
func codeFromSQLState(state string) (Code, bool) {
	switch state {
	case "42P04": // duplicate_database
		return DuplicateDatabase, true
	case "3D000": // invalid_catalog_name
		return DatabaseNotFound, true
	case "28000", "28P01": // invalid_authorization_specification, invalid_password
		return AuthenticationFailed, true
	case "42P01": // undefined_table
		return MissingTable, true
	case "23505": // unique_violation
		return NotUnique, true
	case "23514": // check_violation
		return CheckConstraint, true
	case "23502": // not_null_violation
		return NotNull, true
	case "57P01", "57P02", "57P03": // admin shutdown, crash shutdown, cannot_connect_now
		return Unavailable, true
	case "53300": // too_many_connections
		return Unavailable, true
	}
	switch {
	case strings.HasPrefix(state, "23"): // remaining integrity_constraint_violation class
		return NotSpecificIntegrity, true
	case strings.HasPrefix(state, "08"): // connection_exception class
		return Unavailable, true
	}
	return Unknown, false
}

func messageFromDriver(e error) string {
	var pgErr *pgconn.PgError
	if As(e, &pgErr) {
		return pgErr.Message
	}
	var pqErr *pq.Error
	if As(e, &pqErr) {
		return pqErr.Message
	}
	return ""
}

// isTransportError reports whether the error looks like a network level
// failure which never reached a database backend.
func isTransportError(e error) bool {
	switch {
	case Is(e, driver.ErrBadConn),
		Is(e, io.EOF),
		Is(e, io.ErrUnexpectedEOF),
		Is(e, syscall.ECONNREFUSED),
		Is(e, syscall.ECONNRESET),
		Is(e, syscall.EPIPE),
		Is(e, context.DeadlineExceeded):
		return true
	}
	var netErr net.Error
	if As(e, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if As(e, &opErr) {
		return true
	}
	// the backend reports a dropped connection as text only
	msg := e.Error()
	return strings.Contains(msg, "server closed the connection unexpectedly") ||
		strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "connection refused")
}
