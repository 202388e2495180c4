// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package database holds the CLI commands that drive the session lifecycle
// against real databases: init and ping.
package database

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	dbsession "github.com/hashicorp/go-dbsession"
	"github.com/hashicorp/go-dbsession/internal/cmd/base"
	"github.com/hashicorp/go-dbsession/internal/cmd/config"
	"github.com/hashicorp/go-dbsession/schema"
	"github.com/mitchellh/cli"
	"github.com/posener/complete"
)

var (
	_ cli.Command             = (*InitCommand)(nil)
	_ cli.CommandAutocomplete = (*InitCommand)(nil)
)

// InitCommand initializes one or more databases: it creates them when
// absent, runs the registered hooks, materializes the configured tables and
// reports the state each request reached.
type InitCommand struct {
	*base.Command

	flagConfig    string
	flagUrl       string
	flagDatabases string
	flagTenants   string
}

func (c *InitCommand) Synopsis() string {
	return "Initialize databases: create, run hooks, materialize schema"
}

func (c *InitCommand) Help() string {
	return base.WrapForHelpText([]string{
		"Usage: dbsession database init [options]",
		"",
		"  Initialize the named logical databases, optionally once per tenant:",
		"",
		"    $ dbsession database init -config=/etc/dbsession/config.hcl -database=orders -tenant=t1,t2",
		"",
		"  For every (database, tenant) pair the full session lifecycle runs: the",
		"  database is created if missing, precreate hooks (configured extensions)",
		"  run, the configured tables are materialized, postcreate hooks run, and",
		"  a session is opened and released.  Initialization is idempotent.",
	}) + c.flagHelp()
}

func (c *InitCommand) flagHelp() string {
	return base.WrapForHelpText([]string{
		"",
		"Command Options:",
		"",
		"  -config=<path>      Path to the configuration file.",
		"  -url=<url>          Connection URL; overrides the config file and the",
		"                      POSTGRES_URI environment variable.",
		"  -database=<names>   Comma separated logical database names.  Defaults",
		"                      to the URL's database.",
		"  -tenant=<ids>       Comma separated tenant ids; each named database is",
		"                      initialized once per tenant.",
		"  -log-level=<level>  Log verbosity: trace, debug, info, warn or err.",
	})
}

func (c *InitCommand) flags() *flag.FlagSet {
	f := flag.NewFlagSet("database init", flag.ContinueOnError)
	f.SetOutput(io.Discard)
	f.Usage = func() {}
	f.StringVar(&c.flagConfig, "config", "", "")
	f.StringVar(&c.flagUrl, "url", "", "")
	f.StringVar(&c.flagDatabases, "database", "", "")
	f.StringVar(&c.flagTenants, "tenant", "", "")
	f.StringVar(&c.FlagLogLevel, "log-level", "", "")
	return f
}

func (c *InitCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictNothing
}

func (c *InitCommand) AutocompleteFlags() complete.Flags {
	return complete.Flags{
		"-config":    complete.PredictFiles("*.hcl"),
		"-url":       complete.PredictNothing,
		"-database":  complete.PredictNothing,
		"-tenant":    complete.PredictNothing,
		"-log-level": complete.PredictSet("trace", "debug", "info", "warn", "err"),
	}
}

func (c *InitCommand) Run(args []string) int {
	if err := c.flags().Parse(args); err != nil {
		c.UI.Error(err.Error())
		return 2
	}

	d, dbCfg, err := setup(c.Command, c.flagConfig, c.flagUrl)
	if err != nil {
		c.UI.Error(err.Error())
		return 2
	}

	databases := splitList(c.flagDatabases)
	if len(databases) == 0 && d.Database() != "" {
		databases = []string{d.Database()}
	}
	if len(databases) == 0 {
		c.UI.Error("No database to initialize: give -database, a config file database url or POSTGRES_URI with a database path.")
		return 2
	}

	m, err := buildManager(c.Command, d, dbCfg, databases)
	if err != nil {
		c.UI.Error(err.Error())
		return 2
	}
	defer m.Close(context.Background())

	tenants := splitList(c.flagTenants)
	if len(tenants) == 0 {
		tenants = []string{""}
	}

	output := []string{"Database | Tenant | Resolved | Session | State"}
	for _, database := range databases {
		for _, tenant := range tenants {
			sess, err := m.GetSession(c.Context, database, dbsession.WithTenantId(tenant))
			if err != nil {
				c.UI.Error(fmt.Sprintf("Error initializing database %q (tenant %q): %s", database, tenant, err))
				return 1
			}
			output = append(output, fmt.Sprintf("%s | %s | %s | %s | %s",
				database, orNone(tenant), sess.Database(), sess.Id(), sess.State()))
			if err := sess.Close(c.Context); err != nil {
				c.UI.Error(fmt.Sprintf("Error releasing session for %q: %s", database, err))
				return 1
			}
		}
	}

	c.UI.Output(base.ColumnOutput(output, nil))
	return 0
}

// setup builds the descriptor from config file, flags and environment, in
// that order of precedence.
func setup(cmd *base.Command, configPath, urlFlag string) (*dbsession.Descriptor, *config.Database, error) {
	var dbCfg *config.Database
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
		if cfg.LogLevel != "" && cmd.FlagLogLevel == "" {
			cmd.FlagLogLevel = cfg.LogLevel
		}
		dbCfg = cfg.Database
	}

	var opts []dbsession.Option
	var err error
	if dbCfg != nil {
		opts, err = dbCfg.DescriptorOptions()
		if err != nil {
			return nil, nil, err
		}
	}

	var d *dbsession.Descriptor
	switch {
	case urlFlag != "":
		d, err = dbsession.NewDescriptor(urlFlag, opts...)
	case dbCfg != nil && dbCfg.Url != "":
		d, err = dbsession.NewDescriptor(dbCfg.Url, opts...)
	default:
		d, err = dbsession.DescriptorFromEnv(opts...)
	}
	if err != nil {
		return nil, nil, err
	}
	return d, dbCfg, nil
}

// buildManager assembles a manager whose registry carries the configured
// extension hooks for the named databases and whose materializer runs the
// configured tables.
func buildManager(cmd *base.Command, d *dbsession.Descriptor, dbCfg *config.Database, databases []string) (*dbsession.Manager, error) {
	logger, err := cmd.Logger()
	if err != nil {
		return nil, err
	}

	r := dbsession.NewRegistry()
	mgrOpts := []dbsession.Option{dbsession.WithLogger(logger)}
	if dbCfg != nil {
		if len(dbCfg.Extensions) > 0 {
			statements := make([]string, 0, len(dbCfg.Extensions))
			for _, ext := range dbCfg.Extensions {
				statements = append(statements, schema.CreateExtension(ext))
			}
			hook := func(ctx context.Context, tenantId string) ([]string, error) {
				return statements, nil
			}
			if err := r.RegisterPrecreate(hook, databases...); err != nil {
				return nil, err
			}
		}
		if len(dbCfg.Tables) > 0 {
			ts, err := schema.NewTableSet(dbCfg.Tables, schema.WithAdvisoryLock())
			if err != nil {
				return nil, err
			}
			mgrOpts = append(mgrOpts, dbsession.WithMaterializer(ts))
		}
	}

	return dbsession.New(d, r, mgrOpts...)
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
