// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dbsession

import (
	"github.com/hashicorp/go-dbsession/driver"
)

// The adapter contract lives in the driver package; the aliases below keep
// the whole session API importable from this package alone.  See the driver
// package for the interface semantics and driver/stdsql, driver/pgxpool and
// driver/gormdb for the implementations.
type (
	// Driver opens engine handles for resolved connection URLs.
	Driver = driver.Driver

	// DriverConfig carries the resolved settings an adapter needs to open a
	// pool for one database.
	DriverConfig = driver.Config

	// Engine is a live, poolable handle bound to one specific database.
	Engine = driver.Engine

	// HookSession is the minimal capability set a manual hook is given:
	// execute a statement, commit, roll back.
	HookSession = driver.HookSession

	// Session is a scoped unit of work pinned to a single connection.
	Session = driver.Session

	// Rows is the result of a Session.Query.
	Rows = driver.Rows
)
