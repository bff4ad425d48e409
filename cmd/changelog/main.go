package main

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/persistorai/changelog/client"
	"github.com/persistorai/changelog/internal/config"
)

// Build-time variables set via ldflags.
var (
	commit    = ""
	buildDate = ""
)

const defaultURL = "http://localhost:3040"

var (
	apiClient   *client.Client
	flagURL     string
	flagKey     string
	flagFmt     string
	flagProfile string
)

var outputFormats = []string{"json", "table", "quiet"}

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("changelog version %s (commit: %s, built: %s)", config.Version, commit, buildDate)
	}
	return fmt.Sprintf("changelog version %s", config.Version)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "changelog",
		Short:   "Change log server and client for audited object history",
		Version: versionString(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(outputFormats, flagFmt) {
				return fmt.Errorf("--format must be one of %s", strings.Join(outputFormats, ", "))
			}

			resolveConfig()
			opts := []client.Option{client.WithUserAgent("changelog-cli/" + config.Version)}
			if flagKey != "" {
				opts = append(opts, client.WithAPIKey(flagKey))
			}
			apiClient = client.New(flagURL, opts...)

			return nil
		},
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&flagURL, "url", defaultURL, "Change log server URL (env: CHANGELOG_URL)")
	rootCmd.PersistentFlags().StringVar(&flagKey, "api-key", "", "API key (env: CHANGELOG_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&flagFmt, "format", "json", "Output format: json|table|quiet")
	rootCmd.PersistentFlags().StringVar(&flagProfile, "profile", "", "Config profile (env: CHANGELOG_PROFILE)")

	skipClient := func(cmd *cobra.Command, args []string) error { return nil }

	for _, cmd := range []*cobra.Command{newServeCmd(), newMigrateCmd(), newInitCmd(), newDoctorCmd()} {
		cmd.PersistentPreRunE = skipClient
		rootCmd.AddCommand(cmd)
	}

	rootCmd.AddCommand(newChangeSetsCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newRecordCmd())

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	os.Exit(1)
}
