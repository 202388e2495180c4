// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package errors

// getOpts - iterate the inbound Options and return a struct
func getOpts(opt ...Option) options {
	opts := getDefaultOptions()
	for _, o := range opt {
		if o != nil {
			o(&opts)
		}
	}
	return opts
}

// Option - how Options are passed as arguments
type Option func(*options)

// options = how options are represented
type options struct {
	withErrMsg     string
	withErrWrapped error
	withOp         Op
	withCode       Code
}

func getDefaultOptions() options {
	return options{}
}

// WithMsg provides an option to provide a message when creating a new error
func WithMsg(msg string) Option {
	return func(o *options) {
		o.withErrMsg = msg
	}
}

// WithWrap provides an option to provide an error to wrap when creating a new
// error
func WithWrap(e error) Option {
	return func(o *options) {
		o.withErrWrapped = e
	}
}

// WithOp provides an option to provide the operation that's raising/propagating
// the error
func WithOp(op Op) Option {
	return func(o *options) {
		o.withOp = op
	}
}

// WithCode provides an option to provide a code when creating a new error
func WithCode(code Code) Option {
	return func(o *options) {
		o.withCode = code
	}
}
