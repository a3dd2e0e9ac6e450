package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"paperling/internal/api"
	"paperling/internal/attempts"
)

func newAttemptsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "Inspect or reset the retry ledger",
	}
	cmd.AddCommand(newAttemptsListCommand(ctx))
	cmd.AddCommand(newAttemptsResetCommand(ctx))
	return cmd
}

func newAttemptsListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents with recorded conversion failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(store *attempts.Store) error {
				records, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				policy := attempts.PolicyFromConfig(ctx.config)
				dtos := api.FromAttemptRecords(records, policy, time.Now())
				if jsonOutput {
					return writeJSON(cmd, api.AttemptsResponse{Attempts: dtos})
				}
				out := cmd.OutOrStdout()
				if len(dtos) == 0 {
					fmt.Fprintln(out, "No recorded failures")
					return nil
				}
				fmt.Fprintln(out, renderAttemptsTable(dtos))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newAttemptsResetCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "reset [document-id...]",
		Short: "Clear failure history so documents are retried on the next poll",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return errors.New("specify document ids or --all")
			}
			if len(args) > 0 && all {
				return errors.New("document ids and --all are mutually exclusive")
			}
			ids, err := parseDocumentIDs(args)
			if err != nil {
				return err
			}
			return ctx.withLedger(func(store *attempts.Store) error {
				removed, err := store.Reset(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case removed == 0:
					fmt.Fprintln(out, "No matching records")
				case removed == 1:
					fmt.Fprintln(out, "Reset 1 record")
				default:
					fmt.Fprintf(out, "Reset %d records\n", removed)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Reset every record")
	return cmd
}

func parseDocumentIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid document id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func renderAttemptsTable(records []api.AttemptRecord) string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		verdict := rec.Verdict
		if rec.NextAttemptAt != "" {
			verdict += " until " + rec.NextAttemptAt
		}
		rows = append(rows, []string{
			strconv.FormatInt(rec.DocumentID, 10),
			rec.Title,
			strconv.Itoa(rec.Failures),
			fallback(rec.ErrorKind, "-"),
			rec.LastFailedAt,
			verdict,
			rec.LastError,
		})
	}
	return renderTable(
		[]string{"Document", "Title", "Failures", "Kind", "Last failure", "Verdict", "Last error"},
		rows,
		tableOptions{
			aligns:    []columnAlignment{alignRight, alignLeft, alignRight},
			maxWidths: map[int]int{2: titleWidthMax, 7: 60},
		},
	)
}
