// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package schema provides materializers for the session manager.  TableSet
// executes a fixed, ordered set of idempotent DDL statements; Migrator
// applies versioned SQL migrations with golang-migrate.  Builders for common
// postgres DDL (extensions, foreign data wrappers, id generator functions)
// live in statements.go.
package schema

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-dbsession/driver"
	"github.com/hashicorp/go-dbsession/errors"
)

// schemaAccessLockId is the advisory lock key used to ensure a single
// process materializes a database at a time.  The value has no meaning and
// was picked randomly.
const schemaAccessLockId = 2016427381

// TableSet materializes a database by executing its statements, in order,
// inside one transaction.  Statements must be idempotent (CREATE TABLE IF
// NOT EXISTS and friends): a database is materialized once per engine but
// again after every process restart.  With WithAdvisoryLock concurrent
// materializers in other processes serialize on a transaction scoped
// advisory lock.
type TableSet struct {
	statements []string
	opts       options
}

// NewTableSet creates a TableSet from idempotent DDL statements.  Supported
// options: WithAdvisoryLock, WithLockKey.
func NewTableSet(statements []string, opt ...Option) (*TableSet, error) {
	const op = "schema.NewTableSet"
	if len(statements) == 0 {
		return nil, errors.New(errors.InvalidParameter, op, "missing statements")
	}
	for i, s := range statements {
		if s == "" {
			return nil, errors.New(errors.InvalidParameter, op, fmt.Sprintf("empty statement at index %d", i))
		}
	}
	return &TableSet{statements: statements, opts: getOpts(opt...)}, nil
}

// Materialize runs the table set's statements on the database in one
// transaction.
func (ts *TableSet) Materialize(ctx context.Context, eng driver.Engine, databaseName string) error {
	const op = "schema.(TableSet).Materialize"
	sess, err := eng.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, op)
	}
	defer sess.Close(ctx)
	if ts.opts.withAdvisoryLock {
		lock := fmt.Sprintf("SELECT pg_advisory_xact_lock(%d)", ts.opts.withLockKey)
		if _, err := sess.Exec(ctx, lock); err != nil {
			return errors.Wrap(err, op)
		}
	}
	for _, statement := range ts.statements {
		if _, err := sess.Exec(ctx, statement); err != nil {
			return errors.Wrap(err, op)
		}
	}
	if err := sess.Commit(ctx); err != nil {
		return errors.Wrap(err, op)
	}
	return nil
}
