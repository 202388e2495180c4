// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package config loads the CLI's HCL configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	dbsession "github.com/hashicorp/go-dbsession"
	"github.com/hashicorp/go-secure-stdlib/parseutil"
	"github.com/hashicorp/go-secure-stdlib/strutil"
	"github.com/hashicorp/hcl"
	"github.com/hashicorp/hcl/hcl/ast"
)

var supportedLogLevels = []string{"trace", "debug", "info", "warn", "err", "error"}

// Config is the decoded configuration file.
type Config struct {
	LogLevel string `hcl:"log_level"`

	Database *Database `hcl:"database"`
}

// Database is the database block of the configuration file.  Durations are
// given in seconds.
type Database struct {
	// Url is the connection URL.  It may be given directly, or indirected
	// through env://VAR or file:///path.
	Url string `hcl:"url"`

	MinOpenConnections *int  `hcl:"min_open_connections"`
	MaxOpenConnections *int  `hcl:"max_open_connections"`
	MaxRetries         *int  `hcl:"max_retries"`
	ConnectTimeout     *int  `hcl:"connect_timeout"`
	ConnectionLifetime *int  `hcl:"connection_lifetime"`
	EnablePooling      *bool `hcl:"enable_pooling"`
	AutoCreateDatabase *bool `hcl:"auto_create_database"`

	DefaultSchema       string            `hcl:"default_schema"`
	ApplicationName     string            `hcl:"application_name"`
	SslMode             string            `hcl:"ssl_mode"`
	MaintenanceDatabase string            `hcl:"maintenance_database"`
	ConnectParams       map[string]string `hcl:"connect_params"`

	// RetryBackoff selects the retry backoff policy, "exp" or "const";
	// RetryBackoffMs is the constant policy's delay.
	RetryBackoff   string `hcl:"retry_backoff"`
	RetryBackoffMs int    `hcl:"retry_backoff_ms"`

	// Extensions are created (IF NOT EXISTS) in every initialized database
	// before its tables, via a registered precreate hook.
	Extensions []string `hcl:"extensions"`

	// Tables are idempotent DDL statements materialized in order after the
	// precreate hooks.
	Tables []string `hcl:"tables"`
}

// Load reads, parses and validates a configuration file.
func Load(path string) (*Config, error) {
	d, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return Parse(string(d))
}

// Parse decodes configuration text.
func Parse(d string) (*Config, error) {
	obj, err := hcl.Parse(d)
	if err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	c := new(Config)
	if err := hcl.DecodeObject(c, obj); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}

	if c.LogLevel != "" && !strutil.StrListContains(supportedLogLevels, c.LogLevel) {
		return nil, fmt.Errorf("unsupported log_level %q", c.LogLevel)
	}

	if c.Database != nil {
		list, ok := obj.Node.(*ast.ObjectList)
		if !ok {
			return nil, fmt.Errorf("error parsing config: root is not an object list")
		}
		if dbList := list.Filter("database"); len(dbList.Items) > 1 {
			return nil, fmt.Errorf("only one %q block is allowed", "database")
		}
		// the url may be indirected through env:// or file://
		u, err := parseutil.ParsePath(c.Database.Url)
		if err != nil && !errors.Is(err, parseutil.ErrNotAUrl) {
			return nil, fmt.Errorf("error resolving database url: %w", err)
		}
		c.Database.Url = u
	}

	return c, nil
}

// DescriptorOptions maps the database block onto descriptor options.
func (d *Database) DescriptorOptions() ([]dbsession.Option, error) {
	var opts []dbsession.Option
	if d.MinOpenConnections != nil {
		opts = append(opts, dbsession.WithMinOpenConns(*d.MinOpenConnections))
	}
	if d.MaxOpenConnections != nil {
		opts = append(opts, dbsession.WithMaxOpenConns(*d.MaxOpenConnections))
	}
	if d.MaxRetries != nil {
		opts = append(opts, dbsession.WithMaxRetries(*d.MaxRetries))
	}
	if d.ConnectTimeout != nil {
		opts = append(opts, dbsession.WithConnectTimeout(time.Duration(*d.ConnectTimeout)*time.Second))
	}
	if d.ConnectionLifetime != nil {
		opts = append(opts, dbsession.WithConnMaxLifetime(time.Duration(*d.ConnectionLifetime)*time.Second))
	}
	if d.EnablePooling != nil {
		opts = append(opts, dbsession.WithPoolingEnabled(*d.EnablePooling))
	}
	if d.AutoCreateDatabase != nil {
		opts = append(opts, dbsession.WithAutoCreateDatabase(*d.AutoCreateDatabase))
	}
	if d.DefaultSchema != "" {
		opts = append(opts, dbsession.WithDefaultSchema(d.DefaultSchema))
	}
	if d.ApplicationName != "" {
		opts = append(opts, dbsession.WithApplicationName(d.ApplicationName))
	}
	if d.SslMode != "" {
		opts = append(opts, dbsession.WithSslMode(d.SslMode))
	}
	if d.MaintenanceDatabase != "" {
		opts = append(opts, dbsession.WithMaintenanceDatabase(d.MaintenanceDatabase))
	}
	if len(d.ConnectParams) > 0 {
		opts = append(opts, dbsession.WithConnectParams(d.ConnectParams))
	}
	switch d.RetryBackoff {
	case "":
	case "exp":
		opts = append(opts, dbsession.WithBackoff(dbsession.ExpBackoff{}))
	case "const":
		ms := d.RetryBackoffMs
		if ms <= 0 {
			ms = 1000
		}
		opts = append(opts, dbsession.WithBackoff(dbsession.ConstBackoff{DurationMs: time.Duration(ms)}))
	default:
		return nil, fmt.Errorf("retry_backoff must be %q or %q", "exp", "const")
	}
	return opts, nil
}
