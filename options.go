// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dbsession

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
)

// getOpts - iterate the inbound Options and return a struct
func getOpts(opt ...Option) options {
	opts := getDefaultOptions()
	for _, o := range opt {
		if o != nil {
			o(&opts)
		}
	}
	return opts
}

// Option - how Options are passed as arguments
type Option func(*options)

// options = how options are represented
type options struct {
	withPassword         string
	withMinOpenConns     int
	withMaxOpenConns     int
	withConnectTimeout   time.Duration
	withMaxRetries       int
	withConnMaxLifetime  time.Duration
	withPoolingEnabled   bool
	withAntiPersistence  bool
	withQueryRetries     bool
	withAutoCreate       bool
	withConnectParams    map[string]string
	withDefaultSchema    string
	withApplicationName  string
	withSslMode          string
	withMaintenanceDb    string
	withDriver           Driver
	withMaterializer     Materializer
	withBackoff          Backoff
	withLogger           hclog.Logger
	withMetrics          prometheus.Registerer
	withMinServerVersion string
	withTenantId         string
	withPrngValues       []string
}

func getDefaultOptions() options {
	return options{
		withMinOpenConns:    1,
		withMaxOpenConns:    10,
		withConnectTimeout:  30 * time.Second,
		withMaxRetries:      5,
		withConnMaxLifetime: 300 * time.Second,
		withAutoCreate:      true,
		withDefaultSchema:   "public",
		withMaintenanceDb:   "postgres",
		withBackoff:         ExpBackoff{},
		withLogger:          hclog.NewNullLogger(),
	}
}

// WithPassword provides the connection password separately from the URL.  A
// password embedded in the URL wins.
func WithPassword(password string) Option {
	return func(o *options) {
		o.withPassword = password
	}
}

// WithMinOpenConns provides the lower pool size bound.
func WithMinOpenConns(n int) Option {
	return func(o *options) {
		o.withMinOpenConns = n
	}
}

// WithMaxOpenConns provides the upper pool size bound.
func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		o.withMaxOpenConns = n
	}
}

// WithConnectTimeout provides the per-attempt connection timeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		o.withConnectTimeout = d
	}
}

// WithMaxRetries provides the number of additional connection attempts made
// after the first one fails with a transient error.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		o.withMaxRetries = n
	}
}

// WithConnMaxLifetime provides how long a pooled connection may be reused
// before it is recycled.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(o *options) {
		o.withConnMaxLifetime = d
	}
}

// WithPoolingEnabled turns on a warm connection pool.  When disabled, idle
// connections are not kept, so every operation dials fresh.
func WithPoolingEnabled(enabled bool) Option {
	return func(o *options) {
		o.withPoolingEnabled = enabled
	}
}

// WithAntiPersistence disables the engine cache: every session request builds
// a fresh engine, runs the hook pipeline, and tears the engine down when the
// session closes.  Intended for test fixtures which must not leak state
// across requests.
func WithAntiPersistence(enabled bool) Option {
	return func(o *options) {
		o.withAntiPersistence = enabled
	}
}

// WithQueryRetries turns on transparent retry of statements which fail
// because the server silently dropped the connection.  Only the first
// statement of a transaction is retried.
func WithQueryRetries(enabled bool) Option {
	return func(o *options) {
		o.withQueryRetries = enabled
	}
}

// WithAutoCreateDatabase controls whether a connection attempt against a
// database that does not exist issues a create-database operation and then
// reconnects.  Enabled by default.
func WithAutoCreateDatabase(enabled bool) Option {
	return func(o *options) {
		o.withAutoCreate = enabled
	}
}

// WithConnectParams provides additional libpq style connection parameters
// (merged over the default TCP keepalive set; the given keys win).
func WithConnectParams(params map[string]string) Option {
	return func(o *options) {
		o.withConnectParams = params
	}
}

// WithDefaultSchema provides the schema placed in search_path for every
// connection.
func WithDefaultSchema(schema string) Option {
	return func(o *options) {
		o.withDefaultSchema = schema
	}
}

// WithApplicationName provides the application_name connection parameter, so
// sessions are attributable in pg_stat_activity.
func WithApplicationName(name string) Option {
	return func(o *options) {
		o.withApplicationName = name
	}
}

// WithSslMode provides the sslmode connection parameter.  The value is
// passed through opaquely.
func WithSslMode(mode string) Option {
	return func(o *options) {
		o.withSslMode = mode
	}
}

// WithMaintenanceDatabase provides the database the factory connects to when
// it needs to create a missing database.
func WithMaintenanceDatabase(name string) Option {
	return func(o *options) {
		o.withMaintenanceDb = name
	}
}

// WithDriver provides the driver adapter engines are opened with.
func WithDriver(d Driver) Option {
	return func(o *options) {
		o.withDriver = d
	}
}

// WithMaterializer provides the schema materializer the orchestrator invokes
// between the precreate and postcreate phases.  Without one the phase is a
// no-op.
func WithMaterializer(m Materializer) Option {
	return func(o *options) {
		o.withMaterializer = m
	}
}

// WithBackoff provides the backoff policy used between connection attempts.
func WithBackoff(b Backoff) Option {
	return func(o *options) {
		o.withBackoff = b
	}
}

// WithLogger provides an hclog.Logger.  The default discards everything.
func WithLogger(l hclog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.withLogger = l
		}
	}
}

// WithMetrics provides a prometheus registerer the manager registers its
// collectors with.
func WithMetrics(r prometheus.Registerer) Option {
	return func(o *options) {
		o.withMetrics = r
	}
}

// WithMinServerVersion provides the minimum server version ("13.0") a new
// engine's backend must report.
func WithMinServerVersion(v string) Option {
	return func(o *options) {
		o.withMinServerVersion = v
	}
}

// WithTenantId provides the tenant id for a session or engine request.  The
// tenant id scopes database name resolution and is passed to every hook.
func WithTenantId(tenantId string) Option {
	return func(o *options) {
		o.withTenantId = tenantId
	}
}

// WithPrngValues provides values used to generate the next id deterministically.
// Only useful in tests.
func WithPrngValues(values []string) Option {
	return func(o *options) {
		o.withPrngValues = values
	}
}
