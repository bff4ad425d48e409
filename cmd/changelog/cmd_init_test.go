package main

import (
	"bufio"
	"bytes"
	"net/http"
	"strings"
	"testing"
)

func TestInitWizard(t *testing.T) {
	const key = "good-key-0123456789"

	tests := []struct {
		name        string
		interactive bool
		input       string
		apiKey      string
		wantErr     string
		wantOut     string
	}{
		{
			name:    "flags",
			apiKey:  key,
			wantOut: "Config saved to",
		},
		{
			name:        "prompts",
			interactive: true,
			input:       "SERVER\n" + key + "\n",
			wantOut:     "✓ Connected (1.2.0)",
		},
		{
			name:    "rejected key",
			apiKey:  "wrong-key-0123456789",
			wantErr: "rejected the API key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cliEnv(t)
			srv := fakeServer(t, true, http.StatusOK, key)

			var url string
			if !tt.interactive {
				url = srv
			}

			var out bytes.Buffer
			w := &initWizard{
				interactive: tt.interactive,
				in:          bufio.NewReader(strings.NewReader(strings.ReplaceAll(tt.input, "SERVER", srv))),
				out:         &out,
			}

			err := w.run(url, tt.apiKey, "default")
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				if _, cfg, _ := loadConfig(); cfg != nil {
					t.Error("config written after a failed check")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(out.String(), tt.wantOut) {
				t.Errorf("output %q missing %q", out.String(), tt.wantOut)
			}

			resolveConfig()
			if flagURL != srv || flagKey != key {
				t.Errorf("saved profile resolves to %q %q", flagURL, flagKey)
			}
		})
	}
}

func TestInitWizardQuietWithFlags(t *testing.T) {
	cliEnv(t)
	srv := fakeServer(t, true, http.StatusOK, "")

	var out bytes.Buffer
	w := &initWizard{in: bufio.NewReader(strings.NewReader("")), out: &out}
	if err := w.run(srv, "", "default"); err != nil {
		t.Fatal(err)
	}

	if strings.Contains(out.String(), "Testing connection") || strings.Count(out.String(), "\n") != 1 {
		t.Errorf("non-interactive output = %q", out.String())
	}
}
