// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package base carries the pieces shared by every CLI command: the bound
// ui, the command context, signal driven shutdown and logger construction.
package base

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-uuid"
	"github.com/mitchellh/cli"
)

const (
	// EnvLogLevel is the environment variable the log level is read from
	// when the flag is not given.
	EnvLogLevel = "DBSESSION_LOG_LEVEL"

	// EnvCliNoColor disables colored output when set.
	EnvCliNoColor = "DBSESSION_CLI_NO_COLOR"
)

// Command is embedded by every CLI command.
type Command struct {
	Context    context.Context
	UI         cli.Ui
	ShutdownCh chan struct{}

	FlagLogLevel string
}

// NewCommand returns a Command whose context is canceled when the shutdown
// channel fires.
func NewCommand(ui cli.Ui) *Command {
	ctx, cancel := context.WithCancel(context.Background())
	ret := &Command{
		Context:    ctx,
		UI:         ui,
		ShutdownCh: MakeShutdownCh(),
	}
	go func() {
		<-ret.ShutdownCh
		cancel()
	}()
	return ret
}

// Logger builds an hclog logger at the command's log level, tagged with a
// unique run id so one invocation's lines can be correlated.
func (c *Command) Logger() (hclog.Logger, error) {
	level := c.FlagLogLevel
	if level == "" {
		level = os.Getenv(EnvLogLevel)
	}
	if level == "" {
		level = "info"
	}
	parsed := hclog.LevelFromString(level)
	if parsed == hclog.NoLevel {
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	runId, err := uuid.GenerateUUID()
	if err != nil {
		return nil, fmt.Errorf("unable to generate run id: %w", err)
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:  "dbsession",
		Level: parsed,
	}).With("run_id", runId), nil
}

// MakeShutdownCh returns a channel that fires on SIGINT or SIGTERM.
func MakeShutdownCh() chan struct{} {
	resultCh := make(chan struct{})

	shutdownCh := make(chan os.Signal, 4)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-shutdownCh
		close(resultCh)
	}()
	return resultCh
}
