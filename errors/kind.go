// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package errors

// Kind specifies the kind of error (unknown, parameter, connection, etc.).
type Kind uint32

const (
	Other Kind = iota
	Parameter
	Configuration
	Connection
	Integrity
	Schema
	Session
)

// String will return the Kind in a human readable format.
func (e Kind) String() string {
	return [...]string{
		"unknown",
		"parameter violation",
		"configuration violation",
		"connection issue",
		"integrity violation",
		"schema issue",
		"session issue",
	}[e]
}
