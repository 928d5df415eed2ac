package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go-wdtag/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "List recent runs, or the per-file outcomes of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			l, err := ledger.Open(cfg.Ledger.Path)
			if err != nil {
				return err
			}
			defer l.Close()

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			if len(args) == 1 {
				entries, err := l.Entries(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintf(out, "No outcomes recorded for run %s\n", args[0])
					return nil
				}
				fmt.Fprintln(out, renderEntries(entries, colorize))
				return nil
			}

			runs, err := l.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprintln(out, renderRuns(runs, colorize))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show (0 for all)")
	return cmd
}

func renderRuns(runs []ledger.Run, colorize bool) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		status := "finished"
		switch {
		case r.FinishedAt.IsZero():
			status = "incomplete"
		case r.Error != "":
			status = r.Error
		}
		rows = append(rows, []string{
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Dir,
			string(r.Output),
			strconv.Itoa(r.Processed),
			strconv.Itoa(r.Skipped),
			status,
		})
	}
	return renderTable(
		[]string{"Run", "Started", "Directory", "Output", "Processed", "Skipped", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
		colorize,
	)
}

func renderEntries(entries []ledger.Entry, colorize bool) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		detail := e.Error
		if e.Reason == "processed" {
			detail = strings.Join(e.Tags, ", ")
		}
		rows = append(rows, []string{e.Name, e.Reason, detail})
	}
	return renderTable([]string{"File", "Result", "Detail"}, rows, nil, colorize)
}
