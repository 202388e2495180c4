// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package gormdb

import (
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"
)

// getOpts - iterate the inbound Options and return a struct
func getOpts(opt ...Option) options {
	opts := getDefaultOptions()
	for _, o := range opt {
		o(&opts)
	}
	return opts
}

// Option - how Options are passed as arguments
type Option func(*options)

// options = how options are represented
type options struct {
	withDialector func(url string) gorm.Dialector
	withLogger    hclog.Logger
}

func getDefaultOptions() options {
	return options{
		withLogger: hclog.NewNullLogger(),
	}
}

// WithDialector provides the gorm dialector constructor, replacing the
// default postgres dialector.  Tests use it to run the adapter on sqlite.
func WithDialector(fn func(url string) gorm.Dialector) Option {
	return func(o *options) {
		if fn != nil {
			o.withDialector = fn
		}
	}
}

// WithLogger provides an hclog logger that receives gorm's log output.
func WithLogger(l hclog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.withLogger = l
		}
	}
}
