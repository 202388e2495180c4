// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package schema_test

import "embed"

//go:embed testdata/migrations
var testMigrationsFS embed.FS

const testMigrationsPath = "testdata/migrations"
