// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package database

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	dbsession "github.com/hashicorp/go-dbsession"
	"github.com/hashicorp/go-dbsession/errors"
	"github.com/hashicorp/go-dbsession/internal/cmd/base"
	"github.com/mitchellh/cli"
	"github.com/posener/complete"
)

var (
	_ cli.Command             = (*PingCommand)(nil)
	_ cli.CommandAutocomplete = (*PingCommand)(nil)
)

// PingCommand checks connectivity to a database, optionally waiting for it
// to come up.
type PingCommand struct {
	*base.Command

	flagConfig   string
	flagUrl      string
	flagDatabase string
	flagTenant   string
	flagWait     time.Duration
}

func (c *PingCommand) Synopsis() string {
	return "Check database connectivity"
}

func (c *PingCommand) Help() string {
	return base.WrapForHelpText([]string{
		"Usage: dbsession database ping [options]",
		"",
		"  Open an engine against the target database and ping it:",
		"",
		"    $ dbsession database ping -url=postgres://user:pass@db:5432/orders",
		"",
		"  With -wait the ping is retried with exponential backoff until the",
		"  database answers or the wait window elapses.  Authentication failures",
		"  are never retried.",
		"",
		"Command Options:",
		"",
		"  -config=<path>     Path to the configuration file.",
		"  -url=<url>         Connection URL; overrides the config file and the",
		"                     POSTGRES_URI environment variable.",
		"  -database=<name>   Logical database name.  Defaults to the URL's",
		"                     database.",
		"  -tenant=<id>       Tenant id for multi-tenant layouts.",
		"  -wait=<duration>   Keep retrying for up to this long, e.g. 60s.",
	})
}

func (c *PingCommand) flags() *flag.FlagSet {
	f := flag.NewFlagSet("database ping", flag.ContinueOnError)
	f.SetOutput(io.Discard)
	f.Usage = func() {}
	f.StringVar(&c.flagConfig, "config", "", "")
	f.StringVar(&c.flagUrl, "url", "", "")
	f.StringVar(&c.flagDatabase, "database", "", "")
	f.StringVar(&c.flagTenant, "tenant", "", "")
	f.DurationVar(&c.flagWait, "wait", 0, "")
	f.StringVar(&c.FlagLogLevel, "log-level", "", "")
	return f
}

func (c *PingCommand) AutocompleteArgs() complete.Predictor {
	return complete.PredictNothing
}

func (c *PingCommand) AutocompleteFlags() complete.Flags {
	return complete.Flags{
		"-config":    complete.PredictFiles("*.hcl"),
		"-url":       complete.PredictNothing,
		"-database":  complete.PredictNothing,
		"-tenant":    complete.PredictNothing,
		"-wait":      complete.PredictNothing,
		"-log-level": complete.PredictSet("trace", "debug", "info", "warn", "err"),
	}
}

func (c *PingCommand) Run(args []string) int {
	if err := c.flags().Parse(args); err != nil {
		c.UI.Error(err.Error())
		return 2
	}

	d, dbCfg, err := setup(c.Command, c.flagConfig, c.flagUrl)
	if err != nil {
		c.UI.Error(err.Error())
		return 2
	}

	database := c.flagDatabase
	if database == "" {
		database = d.Database()
	}
	if database == "" {
		c.UI.Error("No database to ping: give -database, a config file database url or POSTGRES_URI with a database path.")
		return 2
	}

	m, err := buildManager(c.Command, d, dbCfg, []string{database})
	if err != nil {
		c.UI.Error(err.Error())
		return 2
	}
	defer m.Close(context.Background())

	ping := func() error {
		eng, err := m.GetEngine(c.Context, database, dbsession.WithTenantId(c.flagTenant))
		if err != nil {
			if errors.IsAuthenticationError(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		return eng.Ping(c.Context)
	}

	if c.flagWait > 0 {
		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = c.flagWait
		err = backoff.RetryNotify(ping, backoff.WithContext(bo, c.Context), func(err error, next time.Duration) {
			c.UI.Warn(fmt.Sprintf("Database %q not ready (%s), retrying in %s", database, err, next.Round(time.Millisecond)))
		})
	} else {
		err = ping()
	}
	if err != nil {
		c.UI.Error(fmt.Sprintf("Error pinging database %q: %s", database, err))
		return 1
	}

	c.UI.Output(fmt.Sprintf("Database %q is reachable.", database))
	return 0
}
