// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package cmd

import (
	"github.com/hashicorp/go-dbsession/internal/cmd/base"
	"github.com/hashicorp/go-dbsession/internal/cmd/commands/database"
	"github.com/hashicorp/go-dbsession/internal/cmd/commands/version"
	"github.com/mitchellh/cli"
)

// Commands is the mapping of all the available commands.
var Commands map[string]cli.CommandFactory

func initCommands(ui cli.Ui) {
	Commands = map[string]cli.CommandFactory{
		"database init": func() (cli.Command, error) {
			return &database.InitCommand{
				Command: base.NewCommand(ui),
			}, nil
		},
		"database ping": func() (cli.Command, error) {
			return &database.PingCommand{
				Command: base.NewCommand(ui),
			}, nil
		},
		"version": func() (cli.Command, error) {
			return &version.Command{
				Command: base.NewCommand(ui),
			}, nil
		},
	}
}
