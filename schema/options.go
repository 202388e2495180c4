// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package schema

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
	withAdvisoryLock bool
	withLockKey      int64
}

func getDefaultOptions() options {
	return options{
		withLockKey: schemaAccessLockId,
	}
}

// WithAdvisoryLock tells a TableSet to take a transaction scoped advisory
// lock before executing its statements, serializing concurrent
// materializations of the same database.
func WithAdvisoryLock() Option {
	return func(o *options) {
		o.withAdvisoryLock = true
	}
}

// WithLockKey overrides the advisory lock key.  It implies
// WithAdvisoryLock.
func WithLockKey(key int64) Option {
	return func(o *options) {
		o.withAdvisoryLock = true
		o.withLockKey = key
	}
}
