// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/hashicorp/go-dbsession/internal/cmd/base"
	colorable "github.com/mattn/go-colorable"
	"github.com/mitchellh/cli"
	"github.com/mitchellh/go-wordwrap"
)

type RunOptions struct {
	Stdout io.Writer
	Stderr io.Writer
}

func Run(args []string) int {
	return RunCustom(args, nil)
}

// RunCustom allows passing in custom output writers, used by tests.
func RunCustom(args []string, runOpts *RunOptions) int {
	if runOpts == nil {
		runOpts = &RunOptions{}
	}

	// Don't use color if disabled
	useColor := true
	if os.Getenv(base.EnvCliNoColor) != "" {
		useColor = false
	}

	if runOpts.Stdout == nil {
		runOpts.Stdout = os.Stdout
	}
	if runOpts.Stderr == nil {
		runOpts.Stderr = os.Stderr
	}

	// Only use colored UI if stdout is a tty, and not disabled
	if useColor {
		if f, ok := runOpts.Stdout.(*os.File); ok {
			runOpts.Stdout = colorable.NewColorable(f)
		}
		if f, ok := runOpts.Stderr.(*os.File); ok {
			runOpts.Stderr = colorable.NewColorable(f)
		}
	} else {
		runOpts.Stdout = colorable.NewNonColorable(runOpts.Stdout)
		runOpts.Stderr = colorable.NewNonColorable(runOpts.Stderr)
	}
	color.NoColor = !useColor

	ui := &cli.ColoredUi{
		ErrorColor: cli.UiColorRed,
		WarnColor:  cli.UiColorYellow,
		Ui: &cli.BasicUi{
			Reader:      os.Stdin,
			Writer:      runOpts.Stdout,
			ErrorWriter: runOpts.Stderr,
		},
	}

	initCommands(ui)

	cliRunner := &cli.CLI{
		Name:     "dbsession",
		Args:     args,
		Commands: Commands,
		HelpFunc: groupedHelpFunc(),

		Autocomplete: true,
	}

	exitCode, err := cliRunner.Run()
	if err != nil {
		fmt.Fprintf(runOpts.Stderr, "Error executing CLI: %s\n", err.Error())
		return 1
	}

	return exitCode
}

var commandSynopses = map[string]string{
	"database": "Database lifecycle commands",
	"version":  "Prints the version",
}

func groupedHelpFunc() cli.HelpFunc {
	return func(commands map[string]cli.CommandFactory) string {
		var b strings.Builder
		tw := tabwriter.NewWriter(&b, 8, 8, 8, ' ', 0)
		fmt.Fprintf(tw, "Usage: dbsession <command> [args]\n\n")
		fmt.Fprintf(tw, "Commands:\n")

		tops := make([]string, 0, len(commands))
		seen := map[string]bool{}
		for name := range commands {
			top := strings.SplitN(name, " ", 2)[0]
			if !seen[top] {
				seen[top] = true
				tops = append(tops, top)
			}
		}
		sort.Strings(tops)
		for _, top := range tops {
			synopsis := commandSynopses[top]
			if synopsis == "" {
				if fac, ok := commands[top]; ok {
					if c, err := fac(); err == nil {
						synopsis = c.Synopsis()
					}
				}
			}
			fmt.Fprintf(tw, "    %s\t%s\n", top, wordwrap.WrapString(synopsis, 60))
		}
		tw.Flush()

		return strings.TrimSpace(b.String()) + "\n"
	}
}
