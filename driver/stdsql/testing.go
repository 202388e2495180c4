// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package stdsql

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hashicorp/go-dbsession/errors"
	"github.com/hashicorp/go-dbsession/internal/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSetup starts a disposable postgres in docker and returns its
// connection URL.  Setting DBSESSION_TESTING_PG_URL reuses an existing
// server instead.  The test is skipped on platforms without docker support;
// container cleanup is registered on the test.
func TestSetup(t *testing.T, opt ...docker.Option) string {
	t.Helper()
	cleanup, url, err := docker.StartDbInDocker(opt...)
	if errors.Is(err, docker.ErrDockerUnsupported) {
		t.Skip("docker is not supported on this platform")
	}
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, cleanup(), "Got error cleaning up db in docker.")
	})
	return url
}

// TestSetupWithMock will return a test Engine and an associated Sqlmock
// which can be used to mock out the db responses.  Ping monitoring is
// enabled so connection probes can be scripted too.
func TestSetupWithMock(t *testing.T) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	return NewEngine(db), mock
}
