// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package common holds connection plumbing shared by the postgres backed
// adapters.
package common

import (
	"database/sql"
	"net"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
)

// SqlOpen opens a database/sql handle for a postgres URL using the pgx
// driver.
func SqlOpen(dbUrl string) (*sql.DB, error) {
	cc, err := pgx.ParseConfig(dbUrl)
	if err != nil {
		return nil, err
	}
	ApplyKeepalives(&cc.Config)
	return stdlib.OpenDB(*cc), nil
}

// ApplyKeepalives lifts the libpq TCP keepalive parameters (keepalives,
// keepalives_idle, keepalives_interval, keepalives_count) off the parsed
// configuration and applies them to the dialer.  pgx passes parameters it
// does not recognize through to the server as runtime parameters, and the
// server rejects these, so they must never stay in RuntimeParams.
func ApplyKeepalives(cc *pgconn.Config) {
	kc := net.KeepAliveConfig{Enable: true}
	var seen bool
	if v, ok := takeParam(cc, "keepalives"); ok {
		seen = true
		kc.Enable = v != "0"
	}
	if d, ok := takeSeconds(cc, "keepalives_idle"); ok {
		seen = true
		kc.Idle = d
	}
	if d, ok := takeSeconds(cc, "keepalives_interval"); ok {
		seen = true
		kc.Interval = d
	}
	if v, ok := takeParam(cc, "keepalives_count"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			seen = true
			kc.Count = n
		}
	}
	if !seen {
		return
	}
	dialer := &net.Dialer{KeepAliveConfig: kc}
	if !kc.Enable {
		dialer.KeepAlive = -1
	}
	cc.DialFunc = dialer.DialContext
}

func takeParam(cc *pgconn.Config, name string) (string, bool) {
	v, ok := cc.RuntimeParams[name]
	if ok {
		delete(cc.RuntimeParams, name)
	}
	return v, ok
}

func takeSeconds(cc *pgconn.Config, name string) (time.Duration, bool) {
	v, ok := takeParam(cc, name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}
