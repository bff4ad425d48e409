package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/persistorai/changelog/client"
)

func newChangeSetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "changesets",
		Aliases: []string{"cs"},
		Short:   "Browse recorded change sets",
	}
	cmd.AddCommand(changeSetsListCmd())
	cmd.AddCommand(changeSetsGetCmd())
	cmd.AddCommand(changeSetsWatchCmd())
	return cmd
}

func changeSetsListCmd() *cobra.Command {
	var author, since string
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List change sets, most recent first",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			opts := &client.ChangeSetQueryOptions{
				Author: author,
				Limit:  limit,
				Offset: offset,
			}
			if since != "" {
				t, err := time.Parse(time.RFC3339, since)
				if err != nil {
					fatal("parse --since", err)
				}
				opts.Since = &t
			}
			sets, hasMore, err := apiClient.ChangeSets.List(context.Background(), opts)
			if err != nil {
				fatal("list change sets", err)
			}
			if flagFmt == "table" {
				headers := []string{"ID", "SEQ", "TIMESTAMP", "AUTHOR"}
				var rows [][]string
				for _, cs := range sets {
					rows = append(rows, []string{
						cs.ID.String(), strconv.FormatInt(cs.Sequence, 10), formatTime(cs.Timestamp), cs.Author,
					})
				}
				formatTable(headers, rows)
				if hasMore {
					fmt.Fprintln(stdout, "(more results, use --offset)")
				}
				return
			}
			if flagFmt == "quiet" {
				for _, cs := range sets {
					fmt.Fprintln(stdout, cs.ID)
				}
				return
			}
			output(map[string]any{"data": sets, "has_more": hasMore}, "")
		},
	}
	cmd.Flags().StringVar(&author, "author", "", "Filter by author")
	cmd.Flags().StringVar(&since, "since", "", "Only change sets at or after this RFC3339 time")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Offset")
	return cmd
}

func changeSetsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a change set with its object and property changes",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := uuid.Parse(args[0])
			if err != nil {
				fatal("parse change set id", err)
			}
			cs, err := apiClient.ChangeSets.Get(context.Background(), id)
			if err != nil {
				fatal("get change set", err)
			}
			if flagFmt == "table" {
				headers := []string{"TYPE", "REF", "PROPERTY", "VALUE"}
				var rows [][]string
				for _, oc := range cs.ObjectChanges {
					for _, pc := range oc.PropertyChanges {
						rows = append(rows, []string{oc.TypeName, oc.ObjectReference, pc.PropertyName, formatValue(pc.Value)})
					}
				}
				fmt.Fprintf(stdout, "%s  #%d  %s  %s\n\n", cs.ID, cs.Sequence, formatTime(cs.Timestamp), cs.Author)
				formatTable(headers, rows)
				return
			}
			output(cs, cs.ID.String())
		},
	}
}

func changeSetsWatchCmd() *cobra.Command {
	var types []string
	var after uint64
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream change sets as they are committed",
		Long: "Stream change sets as they are committed, one per line. With --after, buffered\n" +
			"events after that event ID are replayed first.",
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			feed, err := apiClient.Subscribe(ctx, &client.FeedOptions{Types: types, LastEventID: after})
			if err != nil {
				fatal("subscribe to feed", err)
			}
			defer feed.Close() //nolint:errcheck

			err = watch(ctx, feed.Next, stdout)
			if errors.Is(err, client.ErrFeedReset) {
				fmt.Fprintf(os.Stderr, "Events after %d are no longer buffered; use 'changelog changesets list' to catch up.\n", feed.LastEventID())
			}
			if err != nil && ctx.Err() == nil {
				fatal("watch", err)
			}
		},
	}
	cmd.Flags().StringSliceVar(&types, "types", nil, "Only change sets touching these object types")
	cmd.Flags().Uint64Var(&after, "after", 0, "Replay buffered events after this event ID")
	return cmd
}

// watch prints events from next until it fails.
func watch(ctx context.Context, next func(context.Context) (client.FeedEvent, error), w io.Writer) error {
	enc := json.NewEncoder(w)
	for {
		ev, err := next(ctx)
		if err != nil {
			return err
		}

		switch flagFmt {
		case "quiet":
			fmt.Fprintln(w, ev.ChangeSet.ID)
		case "table":
			fmt.Fprintf(w, "%d  %s  %s  %s  %s\n", ev.ID, ev.ChangeSet.ID, formatTime(ev.ChangeSet.Timestamp),
				ev.ChangeSet.Author, describeObjects(ev.ChangeSet))
		default:
			if err := enc.Encode(ev); err != nil {
				return fmt.Errorf("encoding event: %w", err)
			}
		}
	}
}

// describeObjects renders "book/1[Title,Pages] author/3[Name]".
func describeObjects(cs client.ChangeSetSummary) string {
	if cs.Truncated {
		return "(truncated)"
	}

	parts := make([]string, len(cs.Objects))
	for i, o := range cs.Objects {
		parts[i] = o.Type + "/" + o.Ref + "[" + strings.Join(o.Properties, ",") + "]"
	}

	return strings.Join(parts, " ")
}
