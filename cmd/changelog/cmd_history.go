package main

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/persistorai/changelog/client"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Explore the logged history of an object",
	}
	cmd.AddCommand(historyObjectCmd())
	cmd.AddCommand(historyPropertyCmd())
	return cmd
}

func historyObjectCmd() *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "object <type> <ref>",
		Short: "Show the change sets that touched an object, most recent first",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			entries, hasMore, err := apiClient.History.Object(context.Background(), args[0], args[1],
				&client.HistoryOptions{Limit: limit, Offset: offset})
			if err != nil {
				fatal("get object history", err)
			}
			if flagFmt == "table" {
				headers := []string{"SEQ", "TIMESTAMP", "AUTHOR", "PROPERTY", "VALUE"}
				var rows [][]string
				for _, e := range entries {
					for _, name := range slices.Sorted(maps.Keys(e.Properties)) {
						rows = append(rows, []string{
							fmt.Sprint(e.Sequence), formatTime(e.Timestamp), e.Author, name, formatValue(e.Properties[name]),
						})
					}
				}
				formatTable(headers, rows)
				return
			}
			if flagFmt == "quiet" {
				for _, e := range entries {
					fmt.Fprintln(stdout, e.ChangeSetID)
				}
				return
			}
			output(map[string]any{"changes": entries, "has_more": hasMore}, "")
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Offset")
	return cmd
}

func historyPropertyCmd() *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "property <type> <ref> <property>",
		Short: "Show the logged values of one property, most recent first",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			entries, hasMore, err := apiClient.History.Property(context.Background(), args[0], args[1], args[2],
				&client.HistoryOptions{Limit: limit, Offset: offset})
			if err != nil {
				fatal("get property history", err)
			}
			if flagFmt == "table" {
				headers := []string{"TIMESTAMP", "AUTHOR", "VALUE"}
				var rows [][]string
				for _, e := range entries {
					rows = append(rows, []string{formatTime(e.Timestamp), e.Author, formatValue(e.Value)})
				}
				formatTable(headers, rows)
				return
			}
			if flagFmt == "quiet" {
				for _, e := range entries {
					fmt.Fprintln(stdout, formatValue(e.Value))
				}
				return
			}
			output(map[string]any{"changes": entries, "has_more": hasMore}, "")
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Offset")
	return cmd
}
