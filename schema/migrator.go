// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package schema

import (
	"context"
	"database/sql"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/hashicorp/go-dbsession/driver"
	"github.com/hashicorp/go-dbsession/errors"
)

// sqlDbProvider is satisfied by engines backed by database/sql, which the
// stdsql and gormdb adapters are.
type sqlDbProvider interface {
	SqlDB() *sql.DB
}

// Migrator materializes a database by applying versioned SQL migrations with
// golang-migrate.  Migrations are read from any fs.FS, usually an embed.FS
// holding NNN_name.up.sql files.  An up to date database is a no-op; the
// migrate postgres driver serializes concurrent runs with its own advisory
// lock.  The engine must be backed by database/sql.
type Migrator struct {
	source fs.FS
	path   string
}

// NewMigrator creates a Migrator reading migrations from path inside
// source.
func NewMigrator(source fs.FS, path string) (*Migrator, error) {
	const op = "schema.NewMigrator"
	if source == nil {
		return nil, errors.New(errors.InvalidParameter, op, "missing migration source")
	}
	if path == "" {
		return nil, errors.New(errors.InvalidParameter, op, "missing migration path")
	}
	return &Migrator{source: source, path: path}, nil
}

// Materialize applies all pending migrations to the database.
func (m *Migrator) Materialize(ctx context.Context, eng driver.Engine, databaseName string) error {
	const op = "schema.(Migrator).Materialize"
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, op)
	}
	provider, ok := eng.(sqlDbProvider)
	if !ok {
		return errors.New(errors.SchemaMaterialization, op, "engine does not expose a database/sql pool")
	}
	src, err := iofs.New(m.source, m.path)
	if err != nil {
		return errors.New(errors.SchemaMaterialization, op, "unable to read migration source", errors.WithWrap(err))
	}
	db, err := postgres.WithInstance(provider.SqlDB(), &postgres.Config{DatabaseName: databaseName})
	if err != nil {
		return errors.New(errors.SchemaMaterialization, op, "unable to prepare database instance", errors.WithWrap(err))
	}
	mig, err := migrate.NewWithInstance("iofs", src, databaseName, db)
	if err != nil {
		return errors.New(errors.SchemaMaterialization, op, "unable to create migrations", errors.WithWrap(err))
	}
	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.New(errors.SchemaMaterialization, op, "unable to run migrations", errors.WithWrap(err))
	}
	return nil
}
