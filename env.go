// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dbsession

import (
	"time"

	"github.com/hashicorp/go-dbsession/errors"
	"github.com/kelseyhightower/envconfig"
)

// envConfig is the environment surface of a Descriptor.  Pointer fields
// distinguish unset variables from explicit zero values so that environment
// settings only override defaults when actually present.
type envConfig struct {
	Uri                string            `envconfig:"POSTGRES_URI" required:"true"`
	MinConnection      *int              `envconfig:"PG_MIN_CONNECTION"`
	MaxConnection      *int              `envconfig:"PG_MAX_CONNECTION"`
	ConnectionTimeout  *int              `envconfig:"PG_CONNECTION_TIMEOUT"`
	MaxRetry           *int              `envconfig:"PG_MAX_RETRY"`
	PoolRecycle        *int              `envconfig:"PG_POOL_RECYCLE"`
	EnablePooling      *bool             `envconfig:"PG_ENABLE_POOLING"`
	AntiPersistent     *bool             `envconfig:"PG_ANTI_PERSISTENT"`
	RetryQuery         *bool             `envconfig:"PG_RETRY_QUERY"`
	AutoCreateDatabase *bool             `envconfig:"PG_AUTO_CREATE_DATABASE"`
	ConnectArgs        map[string]string `envconfig:"PG_CONNECT_ARGS"`
	DefaultSchema      *string           `envconfig:"PG_DEFAULT_SCHEMA"`
	ApplicationName    *string           `envconfig:"PG_APPLICATION_NAME"`
	SslMode            *string           `envconfig:"PG_SSL_MODE"`
	MaintenanceDb      *string           `envconfig:"PG_MAINTENANCE_DB"`
	RetryBackoff       *string           `envconfig:"PG_RETRY_BACKOFF"`
	RetryBackoffMs     *int              `envconfig:"PG_RETRY_BACKOFF_MS"`
}

// DescriptorFromEnv creates a Descriptor from POSTGRES_URI and the PG_*
// environment variables.  Options passed in take precedence over the
// environment.  Durations from the environment are in seconds.
func DescriptorFromEnv(opt ...Option) (*Descriptor, error) {
	const op = "dbsession.DescriptorFromEnv"
	var c envConfig
	if err := envconfig.Process("", &c); err != nil {
		return nil, errors.New(errors.InvalidConfiguration, op, "unable to process environment", errors.WithWrap(err))
	}

	envOpts := make([]Option, 0, 16)
	if c.MinConnection != nil {
		envOpts = append(envOpts, WithMinOpenConns(*c.MinConnection))
	}
	if c.MaxConnection != nil {
		envOpts = append(envOpts, WithMaxOpenConns(*c.MaxConnection))
	}
	if c.ConnectionTimeout != nil {
		envOpts = append(envOpts, WithConnectTimeout(time.Duration(*c.ConnectionTimeout)*time.Second))
	}
	if c.MaxRetry != nil {
		envOpts = append(envOpts, WithMaxRetries(*c.MaxRetry))
	}
	if c.PoolRecycle != nil {
		envOpts = append(envOpts, WithConnMaxLifetime(time.Duration(*c.PoolRecycle)*time.Second))
	}
	if c.EnablePooling != nil {
		envOpts = append(envOpts, WithPoolingEnabled(*c.EnablePooling))
	}
	if c.AntiPersistent != nil {
		envOpts = append(envOpts, WithAntiPersistence(*c.AntiPersistent))
	}
	if c.RetryQuery != nil {
		envOpts = append(envOpts, WithQueryRetries(*c.RetryQuery))
	}
	if c.AutoCreateDatabase != nil {
		envOpts = append(envOpts, WithAutoCreateDatabase(*c.AutoCreateDatabase))
	}
	if len(c.ConnectArgs) > 0 {
		envOpts = append(envOpts, WithConnectParams(c.ConnectArgs))
	}
	if c.DefaultSchema != nil {
		envOpts = append(envOpts, WithDefaultSchema(*c.DefaultSchema))
	}
	if c.ApplicationName != nil {
		envOpts = append(envOpts, WithApplicationName(*c.ApplicationName))
	}
	if c.SslMode != nil {
		envOpts = append(envOpts, WithSslMode(*c.SslMode))
	}
	if c.MaintenanceDb != nil {
		envOpts = append(envOpts, WithMaintenanceDatabase(*c.MaintenanceDb))
	}
	if c.RetryBackoff != nil {
		switch *c.RetryBackoff {
		case "exp":
			envOpts = append(envOpts, WithBackoff(ExpBackoff{}))
		case "const":
			ms := 1000
			if c.RetryBackoffMs != nil {
				ms = *c.RetryBackoffMs
			}
			envOpts = append(envOpts, WithBackoff(ConstBackoff{DurationMs: time.Duration(ms)}))
		default:
			return nil, errors.New(errors.InvalidConfiguration, op, "PG_RETRY_BACKOFF must be exp or const")
		}
	}

	return NewDescriptor(c.Uri, append(envOpts, opt...)...)
}
