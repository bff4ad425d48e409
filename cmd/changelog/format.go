package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"
)

// stdout receives command output. Tests swap it for a buffer.
var stdout io.Writer = os.Stdout

const maxCellWidth = 48

func formatJSON(v any) {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal("encode json", err)
	}
}

// formatTable prints rows under headers with columns padded to the widest
// cell, measured in runes.
func formatTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range rows {
		for i, cell := range row[:min(len(row), len(widths))] {
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}

	line := func(cells []string) {
		var b strings.Builder
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			if i < len(widths) {
				fmt.Fprintf(&b, "%-*s", widths[i], cell)
			} else {
				b.WriteString(cell)
			}
		}
		fmt.Fprintln(stdout, strings.TrimRight(b.String(), " "))
	}

	line(headers)
	rule := make([]string, len(widths))
	for i, w := range widths {
		rule[i] = strings.Repeat("-", w)
	}
	line(rule)
	for _, row := range rows {
		line(row)
	}
}

// formatValue renders a logged property value as one table cell: null is
// spelled out, line breaks are escaped and long values are cut.
func formatValue(v *string) string {
	if v == nil {
		return "<null>"
	}

	s := strings.NewReplacer("\r", `\r`, "\n", `\n`, "\t", `\t`).Replace(*v)
	if utf8.RuneCountInString(s) > maxCellWidth {
		r := []rune(s)
		return string(r[:maxCellWidth-3]) + "..."
	}

	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// output prints v as JSON, or quietVal alone in quiet mode. Commands that
// support table output render it before calling output.
func output(v any, quietVal string) {
	if flagFmt == "quiet" {
		fmt.Fprintln(stdout, quietVal)
		return
	}

	formatJSON(v)
}
