// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package errors provides the error building blocks for the module: unique
// Codes classified by Kind, an Err type which carries a Code, an Op and a
// wrapped cause, Templates for matching errors in tests and callers, and
// conversion of database driver errors (lib/pq, pgx) into domain errors.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Err provides the ability to specify a Msg, Op, Code and Wrapped error.
// Errs must be created via New, E or Wrap, not as composite literals.
type Err struct {
	// Code is the error's code, which can be used to get the error's
	// errorCodeInfo, which contains the error's Kind and Message
	Code Code

	// Msg for the error
	Msg string

	// Op represents the operation raising/propagating an error and is optional
	Op Op

	// Wrapped is the error which this Err wraps and will be nil if there's no
	// error to wrap.
	Wrapped error
}

// E creates a new Err with provided code and supports the options of:
//
// * WithOp() - allows you to specify an optional Op (operation)
//
// * WithMsg() - allows you to specify an optional error msg, if the default
// msg for the error Code is not sufficient
//
// * WithWrap() - allows you to specify an error to wrap
func E(opt ...Option) error {
	opts := getOpts(opt...)
	return &Err{
		Code:    opts.withCode,
		Op:      opts.withOp,
		Msg:     opts.withErrMsg,
		Wrapped: opts.withErrWrapped,
	}
}

// New creates a new Err with provided code, op and msg.  It supports the
// option of WithWrap() which allows you to specify an error to wrap.
func New(c Code, op Op, msg string, opt ...Option) error {
	opt = append(opt, WithCode(c), WithOp(op), WithMsg(msg))
	return E(opt...)
}

// Wrap creates a new Err from the provided err and op.  If no WithCode()
// option is given the new Err inherits its Code from the wrapped err when it
// is (or wraps) an *Err, or from converting a database driver error.  It
// supports the option of WithMsg() to add context to the wrapped error.
func Wrap(e error, op Op, opt ...Option) error {
	opts := getOpts(opt...)
	code := opts.withCode
	if code == Unknown && e != nil {
		var err *Err
		if As(e, &err) {
			code = err.Code
		} else if conv := Convert(e); conv != nil {
			code = conv.Code
		}
	}
	opt = append(opt, WithCode(code), WithOp(op), WithWrap(e))
	return E(opt...)
}

// Info about the Err
func (e *Err) Info() Info {
	if e == nil {
		return errorCodeInfo[Unknown]
	}
	return e.Code.Info()
}

// Error satisfies the error interface and returns a string representation of
// the Err
func (e *Err) Error() string {
	if e == nil {
		return ""
	}
	var s strings.Builder
	if e.Op != "" {
		join(&s, ": ", string(e.Op))
	}
	if e.Msg != "" {
		join(&s, ": ", e.Msg)
	}
	if e.Code != Unknown {
		if info, ok := errorCodeInfo[e.Code]; ok {
			if e.Msg == "" {
				join(&s, ": ", info.Message) // provide a default.
				join(&s, ", ", info.Kind.String())
			}
			join(&s, ": ", fmt.Sprintf("error #%d", e.Code))
		}
	}
	if e.Wrapped != nil {
		join(&s, ": ", e.Wrapped.Error())
	}
	if s.Len() == 0 {
		return errorCodeInfo[Unknown].Message
	}
	return s.String()
}

func join(str *strings.Builder, delim string, s string) {
	if str.Len() == 0 {
		_, _ = str.WriteString(s)
		return
	}
	_, _ = str.WriteString(delim + s)
}

// Unwrap implements the errors.Unwrap interface and allows callers to use the
// errors.Is() and errors.As() functions effectively for any wrapped errors.
func (e *Err) Unwrap() error {
	return e.Wrapped
}

// Is the equivalent of the std errors.Is, but allows Devs to only import
// this package for the capability.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is the equivalent of the std errors.As, and allows Devs to only import
// this package for the capability.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
