package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/persistorai/changelog/client"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose configuration and connectivity",
		Long:  "Run diagnostic checks against config, server, schema, and auth",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor()
		},
	}
}

type checkResult struct {
	Name   string
	Passed bool
	Detail string
	Hint   string
}

func runDoctor() error {
	fmt.Fprintln(stdout, "\nChange Log Doctor")
	fmt.Fprintln(stdout, "=================")

	var results []checkResult

	cfgPath, cfg, cfgErr := loadConfig()
	if cfgErr != nil {
		results = append(results, checkResult{
			Name: "Config file", Passed: false,
			Detail: cfgPath,
			Hint:   "Run: changelog init",
		})
	} else {
		results = append(results, checkResult{
			Name: "Config file", Passed: true,
			Detail: fmt.Sprintf("found (%s)", cfgPath),
		})
	}

	url, apiKey := resolveSettings(cfg)

	results = append(results,
		checkResult{Name: "Profile", Passed: true, Detail: profileName(cfg)},
		checkResult{Name: "Server URL", Passed: true, Detail: url},
	)

	if apiKey == "" {
		results = append(results, checkResult{
			Name: "API key", Passed: false,
			Hint: "Set --api-key, CHANGELOG_TOKEN, or run changelog init",
		})
	} else {
		results = append(results, checkResult{Name: "API key", Passed: true, Detail: "configured"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := client.New(url, client.WithAPIKey(apiKey))
	results = append(results, doctorCheckServer(ctx, c)...)

	if apiKey != "" {
		results = append(results, doctorCheckAuth(ctx, c))
	}

	fmt.Fprintln(stdout)
	allPassed := true
	for _, r := range results {
		mark := "✅"
		if !r.Passed {
			mark = "❌"
			allPassed = false
		}
		if r.Detail != "" {
			fmt.Fprintf(stdout, "%s %s: %s\n", mark, r.Name, r.Detail)
		} else {
			fmt.Fprintf(stdout, "%s %s\n", mark, r.Name)
		}
		if !r.Passed && r.Hint != "" {
			fmt.Fprintf(stdout, "   Hint: %s\n", r.Hint)
		}
	}

	fmt.Fprintln(stdout)
	if !allPassed {
		fmt.Fprintln(stdout, "❌ Some checks failed.")
		return fmt.Errorf("doctor found issues")
	}

	fmt.Fprintln(stdout, "✅ All checks passed!")
	return nil
}

func doctorCheckServer(ctx context.Context, c *client.Client) []checkResult {
	health, err := c.Health(ctx)
	if err != nil {
		return []checkResult{{
			Name: "Server reachable", Passed: false,
			Hint: fmt.Sprintf("Is the server running? Try: changelog serve\n   Error: %v", err),
		}}
	}

	results := []checkResult{{
		Name: "Server reachable", Passed: true,
		Detail: fmt.Sprintf("%s, database %s", health.Version, health.Database),
	}}

	if !health.ChangelogEnabled {
		results = append(results, checkResult{
			Name: "Change logging", Passed: false,
			Detail: "disabled",
			Hint:   "Saves are accepted but not logged. Set CHANGELOG_ENABLED=true on the server.",
		})
	}

	ready, err := c.Ready(ctx)
	if err != nil {
		return append(results, checkResult{
			Name: "Schema", Passed: false,
			Hint: fmt.Sprintf("Run: changelog migrate up\n   Error: %v", err),
		})
	}

	return append(results, checkResult{
		Name: "Schema", Passed: true,
		Detail: fmt.Sprintf("version %d (%s)", ready.SchemaVersion, ready.Status),
	})
}

func doctorCheckAuth(ctx context.Context, c *client.Client) checkResult {
	_, _, err := c.ChangeSets.List(ctx, &client.ChangeSetQueryOptions{Limit: 1})
	switch {
	case err == nil:
		return checkResult{Name: "Authentication", Passed: true, Detail: "valid"}
	case client.IsUnauthorized(err):
		return checkResult{Name: "Authentication", Passed: false, Hint: "The server rejected the API key."}
	case client.IsLockedOut(err):
		wait := "a few minutes"
		if d := client.RetryAfter(err); d > 0 {
			wait = d.String()
		}

		return checkResult{
			Name: "Authentication", Passed: false,
			Hint: "Too many failed attempts from this address. Wait " + wait + " and check the key.",
		}
	default:
		return checkResult{Name: "Authentication", Passed: false, Hint: fmt.Sprintf("Error: %v", err)}
	}
}
