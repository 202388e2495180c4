// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dbsession

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/hashicorp/go-dbsession/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectError(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	cause := errors.New(errors.AuthenticationFailed, "test", "password authentication failed")
	err := &ConnectError{Database: "t1__app", Attempts: 3, Err: cause}

	assert.Equal(`unable to connect to "t1__app" after 3 attempt(s): test: password authentication failed: error #401`, err.Error())
	require.ErrorIs(err, cause)

	var connectErr *ConnectError
	require.True(stderrors.As(error(err), &connectErr))
	assert.Equal(3, connectErr.Attempts)

	// the wrapped code is still matchable through the struct
	assert.True(errors.Match(errors.T(errors.AuthenticationFailed), err))
}

func TestHookError(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	cause := fmt.Errorf("boom")
	err := &HookError{Kind: PostcreateManual, Database: "t1__app", Ordinal: 2, Err: cause}

	assert.Equal(`postcreate-manual hook 2 for "t1__app" failed: boom`, err.Error())
	require.ErrorIs(err, cause)
	assert.Equal(StatePostcreated, err.State())

	pre := &HookError{Kind: PrecreateAuto, Database: "app", Ordinal: 1, Err: cause}
	assert.Equal(StatePrecreated, pre.State())
}

func TestSchemaError(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	cause := errors.New(errors.MissingTable, "test", `relation "widget" does not exist`)
	err := &SchemaError{Database: "app", Err: cause}

	assert.Contains(err.Error(), `schema materialization for "app" failed`)
	require.ErrorIs(err, cause)
	assert.Equal(StateSchemaReady, err.State())
	assert.True(errors.Match(errors.T(errors.MissingTable), err))
}
