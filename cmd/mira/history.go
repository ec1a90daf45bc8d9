package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bdougie/mira/internal/models"
	"github.com/bdougie/mira/internal/storage"
)

func newHistoryCmd(flags *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [session]",
		Short: "Print stored results of a session",
		Long: `History reads the badger store when storage.badger is enabled and the
session JSON file otherwise. Without a session it lists known sessions
(badger only).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.setup()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !cfg.Storage.Badger.Enabled {
				if len(args) == 0 {
					return fmt.Errorf("session is required without storage.badger")
				}
				files := storage.NewFileStorage(cfg.Session.OutputDir, args[0], 0, logger)
				results, err := files.List(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				return printResults(out, results)
			}

			db, err := storage.NewBadgerStorage(storage.BadgerOptions{Dir: cfg.Storage.Badger.Dir, Logger: logger}, "")
			if err != nil {
				return err
			}
			defer db.Close()

			if len(args) == 0 {
				sessions, err := db.Sessions(cmd.Context())
				if err != nil {
					return err
				}
				for _, s := range sessions {
					fmt.Fprintln(out, s)
				}
				return nil
			}
			results, err := db.List(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return printResults(out, results)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum results")
	return cmd
}

func printResults(w io.Writer, results []models.AnalysisResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTIME\tANALYZER\tKIND\tCONTENT")
	for _, r := range results {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.Seq, r.CapturedAt.Format(time.TimeOnly), r.Analyzer, r.Kind, r.Content)
	}
	return tw.Flush()
}
