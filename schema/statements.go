// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package schema

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// The builders below return idempotent DDL statements for a TableSet or an
// auto hook.  Identifiers are quoted; string options are quoted as
// literals.  Inputs are expected to come from configuration, not from
// request data.

// CreateExtension returns a statement installing an extension if it is not
// already installed.
func CreateExtension(name string) string {
	return fmt.Sprintf("CREATE EXTENSION IF NOT EXISTS %s;", pq.QuoteIdentifier(name))
}

// CreateServer returns a statement creating a postgres_fdw foreign server
// pointing at a remote database.
func CreateServer(serverName, remoteDbName, remoteHost string, remotePort int) string {
	return fmt.Sprintf(
		"CREATE SERVER IF NOT EXISTS %s FOREIGN DATA WRAPPER postgres_fdw OPTIONS (dbname %s, host %s, port '%d');",
		pq.QuoteIdentifier(serverName), pq.QuoteLiteral(remoteDbName), pq.QuoteLiteral(remoteHost), remotePort)
}

// DropServer returns a statement dropping a foreign server and everything
// depending on it.
func DropServer(serverName string) string {
	return fmt.Sprintf("DROP SERVER IF EXISTS %s CASCADE;", pq.QuoteIdentifier(serverName))
}

// CreateUserMapping returns a statement mapping a local role onto remote
// credentials for a foreign server.  The role may be a role name or one of
// the special role keywords (CURRENT_USER, SESSION_USER, PUBLIC).
func CreateUserMapping(role, serverName, remoteRole, remotePassword string) string {
	return fmt.Sprintf("CREATE USER MAPPING FOR %s SERVER %s OPTIONS (user %s, password %s);",
		roleIdent(role), pq.QuoteIdentifier(serverName), pq.QuoteLiteral(remoteRole), pq.QuoteLiteral(remotePassword))
}

// DropUserMapping returns a statement dropping a role's mapping for a
// foreign server.
func DropUserMapping(role, serverName string) string {
	return fmt.Sprintf("DROP USER MAPPING IF EXISTS FOR %s SERVER %s;",
		roleIdent(role), pq.QuoteIdentifier(serverName))
}

// CreateForeignTable returns a statement creating a foreign table served by
// a postgres_fdw server.  Column definitions are passed through verbatim,
// e.g. "id bigint" or "name text not null".
func CreateForeignTable(localSchema, tableName string, columns []string, serverName, remoteSchema, remoteTable string) string {
	if localSchema == "" {
		localSchema = "public"
	}
	return fmt.Sprintf(
		"CREATE FOREIGN TABLE IF NOT EXISTS %s.%s (%s) SERVER %s OPTIONS (schema_name %s, table_name %s);",
		pq.QuoteIdentifier(localSchema), pq.QuoteIdentifier(tableName), strings.Join(columns, ", "),
		pq.QuoteIdentifier(serverName), pq.QuoteLiteral(remoteSchema), pq.QuoteLiteral(remoteTable))
}

// DropForeignTable returns a statement dropping a foreign table.
func DropForeignTable(tableName string) string {
	return fmt.Sprintf("DROP FOREIGN TABLE IF EXISTS %s;", pq.QuoteIdentifier(tableName))
}

// ImportForeignSchema returns a statement importing a remote schema's tables
// through a foreign server.  With limitTo names only those tables are
// imported.
func ImportForeignSchema(remoteSchema, serverName, localSchema string, limitTo ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "IMPORT FOREIGN SCHEMA %s", pq.QuoteIdentifier(remoteSchema))
	if len(limitTo) > 0 {
		quoted := make([]string, 0, len(limitTo))
		for _, t := range limitTo {
			quoted = append(quoted, pq.QuoteIdentifier(t))
		}
		fmt.Fprintf(&b, " LIMIT TO (%s)", strings.Join(quoted, ", "))
	}
	fmt.Fprintf(&b, " FROM SERVER %s INTO %s;", pq.QuoteIdentifier(serverName), pq.QuoteIdentifier(localSchema))
	return b.String()
}

// PrefixedIdFunction returns a statement creating a plpgsql function that
// generates identifiers of the form <prefix><next sequence value>.
func PrefixedIdFunction(functionName string) string {
	return fmt.Sprintf(`
CREATE OR REPLACE FUNCTION %s(prefix TEXT, seq_name TEXT)
RETURNS TEXT
AS $$
DECLARE
  next_val INTEGER;
BEGIN
  next_val := nextval(seq_name);
  RETURN prefix || next_val;
END;
$$ LANGUAGE plpgsql;
`, pq.QuoteIdentifier(functionName))
}

// SuffixedIdFunction returns a statement creating a plpgsql function that
// generates identifiers of the form <next sequence value><suffix>.
func SuffixedIdFunction(functionName string) string {
	return fmt.Sprintf(`
CREATE OR REPLACE FUNCTION %s(seq_name TEXT, suffix TEXT)
RETURNS TEXT
AS $$
DECLARE
  next_val INTEGER;
BEGIN
  next_val := nextval(seq_name);
  RETURN next_val || suffix;
END;
$$ LANGUAGE plpgsql;
`, pq.QuoteIdentifier(functionName))
}

// roleIdent quotes a role name unless it is one of the special role
// keywords.
func roleIdent(role string) string {
	switch strings.ToUpper(role) {
	case "CURRENT_USER", "CURRENT_ROLE", "SESSION_USER", "PUBLIC":
		return strings.ToUpper(role)
	}
	return pq.QuoteIdentifier(role)
}
