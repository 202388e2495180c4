// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package docker starts disposable postgres containers for tests.
package docker

import (
	"errors"
	"sync"
)

var (
	// StartDbInDocker launches a postgres container and returns a cleanup
	// function and a connection URL for its default database.  Setting
	// DBSESSION_TESTING_PG_URL bypasses docker and uses the given server
	// instead.  On platforms without docker support ErrDockerUnsupported is
	// returned.
	StartDbInDocker func(opt ...Option) (func() error, string, error) = startDbInDockerUnsupported

	ErrDockerUnsupported = errors.New("docker is not currently supported on this platform")

	mx = sync.Mutex{}
)

func startDbInDockerUnsupported(opt ...Option) (cleanup func() error, retURL string, err error) {
	return nil, "", ErrDockerUnsupported
}
