// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package docker

// GetOpts - iterate the inbound Options and return a struct.
func GetOpts(opt ...Option) Options {
	opts := getDefaultOptions()
	for _, o := range opt {
		o(&opts)
	}
	return opts
}

// Option - how Options are passed as arguments.
type Option func(*Options)

// Options - how Options are represented.
type Options struct {
	// WithContainerImage must be accessible from other packages.
	WithContainerImage string

	// WithDatabaseName must be accessible from other packages.
	WithDatabaseName string
}

func getDefaultOptions() Options {
	return Options{
		WithDatabaseName: "dbsession",
	}
}

// WithContainerImage tells the command which container image to start, as
// repo or repo:tag.
func WithContainerImage(image string) Option {
	return func(o *Options) {
		o.WithContainerImage = image
	}
}

// WithDatabaseName tells the command which default database to create in the
// container.
func WithDatabaseName(name string) Option {
	return func(o *Options) {
		o.WithDatabaseName = name
	}
}
