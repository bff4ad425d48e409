package main

import (
	"bufio"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/persistorai/changelog/client"
)

var stdin io.Reader = os.Stdin

func newInitCmd() *cobra.Command {
	var url, apiKey string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set up change log CLI configuration",
		Long: "Write a profile to ~/.changelog/config.yaml and make it active. Prompts\n" +
			"for the server URL and API key unless --url or --api-key is given.\n" +
			"Use --profile to name the profile.",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := &initWizard{
				interactive: url == "" && apiKey == "",
				in:          bufio.NewReader(stdin),
				out:         stdout,
			}
			return w.run(url, apiKey, profileName(nil))
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Server URL (skips the prompts)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (skips the prompts)")
	return cmd
}

// initWizard writes a CLI profile after checking the server accepts it.
// Prompts and progress are only shown when interactive.
type initWizard struct {
	interactive bool
	in          *bufio.Reader
	out         io.Writer
}

func (w *initWizard) say(format string, args ...any) {
	if w.interactive {
		fmt.Fprintf(w.out, format, args...)
	}
}

// ask prompts for a line of input; an empty answer or EOF yields def.
func (w *initWizard) ask(prompt, def string) string {
	fmt.Fprint(w.out, prompt)
	line, _ := w.in.ReadString('\n')
	if line = strings.TrimSpace(line); line != "" {
		return line
	}
	return def
}

func (w *initWizard) run(url, apiKey, profile string) error {
	if w.interactive {
		w.say("\n  Change Log Setup (profile %q)\n  ────────────────\n\n", profile)
		url = w.ask(fmt.Sprintf("  Server URL [%s]: ", defaultURL), "")
		apiKey = w.ask("  API Key (blank if the server is open): ", "")
	}
	if url == "" {
		url = defaultURL
	}

	w.say("\n  Testing connection... ")
	version, err := checkServer(url, apiKey)
	if err != nil {
		w.say("✗\n")
		return err
	}
	w.say("✓ Connected (%s)\n", version)

	path, err := writeConfig(url, apiKey, profile)
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	if !w.interactive {
		fmt.Fprintf(w.out, "Config saved to %s\n", path)
		return nil
	}

	w.say("\n  ✓ Config saved to %s\n\n", path)
	w.say("  Next steps:\n")
	w.say("    changelog doctor             # Full diagnostic check\n")
	w.say("    changelog changesets list    # Browse recent change sets\n")
	w.say("    changelog changesets watch   # Follow new change sets live\n\n")

	return nil
}

// checkServer confirms url answers health checks and, given a key, that
// the key is accepted. It returns the server version.
func checkServer(url, apiKey string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := client.New(url, client.WithAPIKey(apiKey))

	health, err := c.Health(ctx)
	if err != nil {
		return "", fmt.Errorf("connection failed: %w", err)
	}

	if apiKey != "" {
		_, _, err := c.ChangeSets.List(ctx, &client.ChangeSetQueryOptions{Limit: 1})
		switch {
		case client.IsUnauthorized(err):
			return "", errors.New("the server rejected the API key")
		case err != nil:
			return "", fmt.Errorf("checking API key: %w", err)
		}
	}

	return cmp.Or(health.Version, "unknown"), nil
}
