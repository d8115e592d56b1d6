package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"imdirdiff/config"
	"imdirdiff/database"
	"imdirdiff/report"
)

const defaultHistoryLimit = 20

var errHistoryDisabled = errors.New("run history is disabled: pass --db or set history.database")

func newHistoryCmd() *cobra.Command {
	var (
		configPath string
		dbPath     string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recent runs, or the records of one run, from the run-history database",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				dbPath = cfg.History.Database
			}
			if dbPath == "" {
				return errHistoryDisabled
			}

			if _, err := os.Stat(dbPath); err != nil {
				return fmt.Errorf("no run history at %s: %w", dbPath, err)
			}

			db, err := database.OpenDatabase(dbPath)
			if err != nil {
				return fmt.Errorf("opening run history: %w", err)
			}
			defer db.Close()

			if len(args) == 1 {
				id, err := database.ResolveRunID(db, args[0])
				if err != nil {
					return err
				}
				records, err := database.GetRunRecords(db, id)
				if err != nil {
					return err
				}
				renderRunRecords(cmd.OutOrStdout(), id, records)
				return nil
			}

			runs, err := database.ListRuns(db, limit)
			if err != nil {
				return err
			}

			renderHistory(cmd.OutOrStdout(), runs, time.Now())
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Configuration file")
	cmd.Flags().StringVar(&dbPath, "db", "", "Run-history database (default: history.database from the configuration)")
	cmd.Flags().IntVar(&limit, "limit", defaultHistoryLimit, "Number of runs to show (0 shows all)")

	return cmd
}

func renderHistory(w io.Writer, runs []database.Run, now time.Time) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Run", "Started", "Took", "Backend", "A", "B", "-A", "+B", "Changed"})

	for _, run := range runs {
		id := run.ID
		if len(id) > 8 {
			id = id[:8]
		}
		tbl.AppendRow(table.Row{
			id,
			humanize.RelTime(run.StartedAt, now, "ago", "from now"),
			run.Duration.Round(time.Millisecond),
			run.Backend,
			run.RootA,
			run.RootB,
			run.Counts.OnlyInA,
			run.Counts.OnlyInB,
			run.Counts.Changed,
		})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d runs", len(runs))})

	fmt.Fprintln(w, tbl.Render())
}

func renderRunRecords(w io.Writer, runID string, records []database.StoredRecord) {
	if len(records) == 0 {
		fmt.Fprintf(w, "Run %s found no differences.\n", runID)
		return
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle("Run " + runID)
	tbl.AppendHeader(table.Row{"Kind", "Path", "Similarity", "Diff"})

	for _, rec := range records {
		similarity := ""
		if rec.Score.Valid {
			similarity = report.FormatSimilarity(rec.Score.Float64)
		}
		tbl.AppendRow(table.Row{rec.Kind, rec.Path, similarity, rec.DiffAsset})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d records", len(records))})

	fmt.Fprintln(w, tbl.Render())
}
