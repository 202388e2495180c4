// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package errors

import (
	stderrors "errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()
	wrapped := stderrors.New("wrap me")
	tests := []struct {
		name string
		code Code
		op   Op
		msg  string
		opt  []Option
		want error
	}{
		{
			name: "all params",
			code: InvalidConfiguration,
			op:   "dbsession.New",
			msg:  "missing host",
			opt:  []Option{WithWrap(wrapped)},
			want: &Err{
				Code:    InvalidConfiguration,
				Op:      "dbsession.New",
				Msg:     "missing host",
				Wrapped: wrapped,
			},
		},
		{
			name: "no wrap",
			code: SessionClosed,
			op:   "dbsession.(ManagedSession).Exec",
			msg:  "exec after close",
			want: &Err{
				Code: SessionClosed,
				Op:   "dbsession.(ManagedSession).Exec",
				Msg:  "exec after close",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			err := New(tt.code, tt.op, tt.msg, tt.opt...)
			require.NotNil(t, err)
			assert.Equal(tt.want, err)
		})
	}
}

func TestWrap(t *testing.T) {
	t.Parallel()
	t.Run("inherits-code-from-err", func(t *testing.T) {
		assert := assert.New(t)
		inner := New(AuthenticationFailed, "stdsql.(Driver).Open", "login rejected")
		err := Wrap(inner, "dbsession.(Manager).GetEngine")
		var e *Err
		require.True(t, As(err, &e))
		assert.Equal(AuthenticationFailed, e.Code)
		assert.Equal(Op("dbsession.(Manager).GetEngine"), e.Op)
		assert.True(Is(err, inner))
	})
	t.Run("derives-code-from-driver-error", func(t *testing.T) {
		assert := assert.New(t)
		pqErr := &pq.Error{Code: "23505", Message: "duplicate key value"}
		err := Wrap(pqErr, "dbsession.(ManagedSession).Exec")
		var e *Err
		require.True(t, As(err, &e))
		assert.Equal(NotUnique, e.Code)
		assert.True(IsUniqueError(err))
	})
	t.Run("explicit-code-wins", func(t *testing.T) {
		assert := assert.New(t)
		inner := New(Unavailable, "stdsql.(Driver).Open", "refused")
		err := Wrap(inner, "dbsession.getOrCreateEngine", WithCode(MaxRetriesExceeded))
		var e *Err
		require.True(t, As(err, &e))
		assert.Equal(MaxRetriesExceeded, e.Code)
	})
	t.Run("plain-error-keeps-unknown", func(t *testing.T) {
		assert := assert.New(t)
		inner := stderrors.New("just text")
		err := Wrap(inner, "schema.(TableSet).Materialize")
		var e *Err
		require.True(t, As(err, &e))
		assert.Equal(Unknown, e.Code)
		assert.True(Is(err, inner))
	})
}

func TestErr_Error(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "op-msg-code",
			err:  New(InvalidConfiguration, "dbsession.New", "missing host"),
			want: "dbsession.New: missing host: error #101",
		},
		{
			name: "code-only-uses-default-msg",
			err:  E(WithCode(Unavailable)),
			want: "database unavailable, connection issue: error #400",
		},
		{
			name: "op-and-wrapped-only",
			err:  Wrap(stderrors.New("bang"), "factory.open"),
			want: "factory.open: bang",
		},
		{
			name: "everything",
			err: New(SessionClosed, "dbsession.(ManagedSession).Commit", "already released",
				WithWrap(stderrors.New("inner"))),
			want: "dbsession.(ManagedSession).Commit: already released: error #700: inner",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErr_Info(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	var nilErr *Err
	assert.Equal(errorCodeInfo[Unknown], nilErr.Info())
	e := New(CommitFailed, "op", "msg").(*Err)
	assert.Equal(Session, e.Info().Kind)
	assert.Equal("commit failed", e.Code.String())
}

func TestSentinels(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	err := Wrap(ErrSessionClosed, "dbsession.(ManagedSession).Query")
	assert.True(Is(err, ErrSessionClosed))
	assert.True(IsSessionClosedError(err))
	assert.False(IsSessionClosedError(ErrInvalidParameter))
}
