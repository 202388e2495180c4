// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package base

import (
	"strings"

	"github.com/mitchellh/go-wordwrap"
	"github.com/ryanuber/columnize"
)

// maxLineLength is the maximum width of any line in help output.
const maxLineLength int = 78

// ColumnOutput aligns a list of "key | value | ..." rows.
func ColumnOutput(list []string, c *columnize.Config) string {
	if len(list) == 0 {
		return ""
	}

	if c == nil {
		c = &columnize.Config{}
	}
	if c.Glue == "" {
		c.Glue = "    "
	}
	if c.Empty == "" {
		c.Empty = "n/a"
	}

	return columnize.Format(list, c)
}

// WrapForHelpText wraps the given lines to the standard help width,
// preserving their leading indentation.
func WrapForHelpText(lines []string) string {
	var output []string
	for _, line := range lines {
		output = append(output, wrapAtLengthWithPadding(line))
	}
	return strings.Join(output, "\n")
}

func wrapAtLengthWithPadding(s string) string {
	trimmed := strings.TrimLeft(s, " ")
	pad := len(s) - len(trimmed)
	wrapped := wordwrap.WrapString(trimmed, uint(maxLineLength-pad))
	lines := strings.Split(wrapped, "\n")
	for i, line := range lines {
		lines[i] = strings.Repeat(" ", pad) + line
	}
	return strings.Join(lines, "\n")
}
