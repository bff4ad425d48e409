package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/persistorai/changelog/client"
)

func newRecordCmd() *cobra.Command {
	var file, author string
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record object deltas as a change set",
		Long: `Record object deltas that were already saved elsewhere.

Input is a JSON document of the form
  {"author": "...", "objects": [{"type": "...", "ref": "...", "properties": {...}}]}
read from --file, or from stdin when --file is "-" or omitted.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			req, err := readRecordRequest(file, cmd.InOrStdin())
			if err != nil {
				fatal("read deltas", err)
			}
			if author != "" {
				req.Author = author
			}
			res, err := apiClient.ChangeSets.Record(context.Background(), req)
			if err != nil {
				fatal("record", err)
			}
			quiet := ""
			if res.ChangeSetID != nil {
				quiet = res.ChangeSetID.String()
			}
			if flagFmt == "table" {
				fmt.Fprintf(stdout, "change set: %s\nobjects:    %d\nproperties: %d\n",
					valueOr(quiet, "<not logged>"), res.ObjectChanges, res.PropertyChanges)
				return
			}
			output(res, quiet)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON file of deltas, - for stdin")
	cmd.Flags().StringVar(&author, "author", "", "Override the author in the input")
	return cmd
}

func readRecordRequest(path string, stdin io.Reader) (*client.RecordRequest, error) {
	var r io.Reader = stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var req client.RecordRequest
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("decoding JSON: %w", err)
	}
	if len(req.Objects) == 0 {
		return nil, fmt.Errorf("no objects in input")
	}
	return &req, nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
