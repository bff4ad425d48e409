package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/persistorai/changelog/internal/config"
)

// captureOutput points stdout and flagFmt at test values for the duration
// of the test and returns the buffer output goes to.
func captureOutput(t *testing.T, format string) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	origOut, origFmt := stdout, flagFmt
	stdout, flagFmt = &buf, format
	t.Cleanup(func() { stdout, flagFmt = origOut, origFmt })

	return &buf
}

func lines(buf *bytes.Buffer) []string {
	return strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
}

func TestFormatJSON(t *testing.T) {
	buf := captureOutput(t, "json")

	formatJSON(map[string]any{"author": "alice", "sequence": 3})

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf)
	}
	if out["author"] != "alice" {
		t.Errorf("author = %v", out["author"])
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Errorf("expected indented JSON: %s", buf)
	}
}

func TestFormatTable(t *testing.T) {
	buf := captureOutput(t, "table")

	formatTable(
		[]string{"TYPE", "REF", "PROPERTY", "VALUE"},
		[][]string{
			{"book", "1", "Title", "Café Society"},
			{"author", "42", "Name", "Ursula"},
		},
	)

	got := lines(buf)
	if len(got) != 4 {
		t.Fatalf("expected header, rule and 2 rows, got %d lines:\n%s", len(got), buf)
	}
	if strings.Trim(got[1], "- ") != "" {
		t.Errorf("rule line = %q", got[1])
	}

	// Columns line up by rune, so "Café" does not shift the VALUE column.
	col := strings.Index(got[0], "VALUE")
	for _, row := range got[2:] {
		runes := []rune(row)
		if col > len(runes) || strings.TrimSpace(string(runes[col-2:col])) != "" {
			t.Errorf("VALUE column misaligned in %q", row)
		}
	}
}

func TestFormatTableEmpty(t *testing.T) {
	buf := captureOutput(t, "table")

	formatTable([]string{"ID", "AUTHOR"}, nil)

	if got := lines(buf); len(got) != 2 || !strings.HasPrefix(got[0], "ID") {
		t.Errorf("expected header and rule only, got %q", got)
	}
}

func TestOutput(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"quiet", "5f0c\n"},
		{"json", "{\n  \"id\": \"5f0c\"\n}\n"},
		{"table", "{\n  \"id\": \"5f0c\"\n}\n"},
	}

	for _, tc := range tests {
		t.Run(tc.format, func(t *testing.T) {
			buf := captureOutput(t, tc.format)

			output(map[string]string{"id": "5f0c"}, "5f0c")

			if buf.String() != tc.want {
				t.Errorf("got %q, want %q", buf.String(), tc.want)
			}
		})
	}
}

func TestFormatValue(t *testing.T) {
	long := strings.Repeat("é", 100)
	short := "Dune"
	multiline := "{\"a\":1,\n\"b\":2}"

	tests := []struct {
		name string
		in   *string
		want string
	}{
		{"nil", nil, "<null>"},
		{"short", &short, "Dune"},
		{"escaped newline", &multiline, `{"a":1,\n"b":2}`},
		{"truncated by rune", &long, strings.Repeat("é", maxCellWidth-3) + "..."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatValue(tc.in); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	if got := formatTime(ts); got != "2026-03-01T11:00:00Z" {
		t.Errorf("got %q", got)
	}
}

func TestVersionString(t *testing.T) {
	origCommit, origDate := commit, buildDate
	t.Cleanup(func() { commit, buildDate = origCommit, origDate })

	commit, buildDate = "", ""
	if s := versionString(); s != "changelog version "+config.Version {
		t.Errorf("dev build: got %q", s)
	}

	commit, buildDate = "abc1234", "2026-01-01"
	s := versionString()
	if !strings.Contains(s, "abc1234") || !strings.Contains(s, "2026-01-01") {
		t.Errorf("release build: got %q", s)
	}
}
