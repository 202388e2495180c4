// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package errors

import (
	"database/sql/driver"
	stderrors "errors"
	"fmt"
	"io"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLState(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		err       error
		want      string
		wantFound bool
	}{
		{
			name:      "pq",
			err:       &pq.Error{Code: "42P04"},
			want:      "42P04",
			wantFound: true,
		},
		{
			name:      "pgconn",
			err:       &pgconn.PgError{Code: "3D000"},
			want:      "3D000",
			wantFound: true,
		},
		{
			name:      "wrapped pq",
			err:       fmt.Errorf("open: %w", &pq.Error{Code: "28P01"}),
			want:      "28P01",
			wantFound: true,
		},
		{
			name:      "not a backend error",
			err:       stderrors.New("nope"),
			wantFound: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := SQLState(tt.err)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvert(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		wantCode Code
		wantNil  bool
	}{
		{
			name:     "duplicate database",
			err:      &pq.Error{Code: "42P04", Message: `database "t1__orders" already exists`},
			wantCode: DuplicateDatabase,
		},
		{
			name:     "database not found",
			err:      &pgconn.PgError{Code: "3D000", Message: `database "t1__orders" does not exist`},
			wantCode: DatabaseNotFound,
		},
		{
			name:     "invalid password",
			err:      &pgconn.PgError{Code: "28P01"},
			wantCode: AuthenticationFailed,
		},
		{
			name:     "unique violation",
			err:      &pq.Error{Code: "23505"},
			wantCode: NotUnique,
		},
		{
			name:     "exclusion violation falls back to class 23",
			err:      &pq.Error{Code: "23P01"},
			wantCode: NotSpecificIntegrity,
		},
		{
			name:     "undefined table",
			err:      &pgconn.PgError{Code: "42P01"},
			wantCode: MissingTable,
		},
		{
			name:     "cannot connect now",
			err:      &pq.Error{Code: "57P03"},
			wantCode: Unavailable,
		},
		{
			name:     "connection exception class",
			err:      &pgconn.PgError{Code: "08006"},
			wantCode: Unavailable,
		},
		{
			name:     "bad conn",
			err:      driver.ErrBadConn,
			wantCode: Unavailable,
		},
		{
			name:     "refused",
			err:      syscall.ECONNREFUSED,
			wantCode: Unavailable,
		},
		{
			name:     "eof",
			err:      io.EOF,
			wantCode: Unavailable,
		},
		{
			name:     "backend dropped text",
			err:      stderrors.New("pq: server closed the connection unexpectedly"),
			wantCode: Unavailable,
		},
		{
			name:    "unrelated sqlstate",
			err:     &pq.Error{Code: "22001"}, // string_data_right_truncation
			wantNil: true,
		},
		{
			name:    "plain error",
			err:     stderrors.New("something else"),
			wantNil: true,
		},
		{
			name:    "nil",
			err:     nil,
			wantNil: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Convert(tt.err)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.True(t, Is(got, tt.err))
		})
	}
}

func TestConvert_AlreadyConverted(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	orig := New(SchemaMaterialization, "schema.(TableSet).Materialize", "ddl failed").(*Err)
	assert.Same(orig, Convert(orig))
	assert.Same(orig, Convert(fmt.Errorf("outer: %w", orig)))
}

func TestClassifiers(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		fn   func(error) bool
		err  error
		want bool
	}{
		{"transient refused", IsTransient, syscall.ECONNREFUSED, true},
		{"transient 57P03", IsTransient, &pq.Error{Code: "57P03"}, true},
		{"auth not transient", IsTransient, &pq.Error{Code: "28P01"}, false},
		{"auth", IsAuthenticationError, &pgconn.PgError{Code: "28000"}, true},
		{"auth false", IsAuthenticationError, io.EOF, false},
		{"db not found", IsDatabaseNotFoundError, &pq.Error{Code: "3D000"}, true},
		{"duplicate db", IsDuplicateDatabaseError, &pgconn.PgError{Code: "42P04"}, true},
		{"missing table", IsMissingTableError, &pq.Error{Code: "42P01"}, true},
		{"unique", IsUniqueError, &pq.Error{Code: "23505"}, true},
		{"nil is nothing", IsTransient, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fn(tt.err))
		})
	}
}
