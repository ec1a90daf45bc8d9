package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bdougie/mira/internal/session"
	"github.com/bdougie/mira/internal/storage"
)

func newInitDBCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "initdb",
		Short: "Create the PostgreSQL schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.setup()
			if err != nil {
				return err
			}
			if err := storage.InitSchema(cmd.Context(), session.PostgresConfig(cfg), cfg.Embeddings.Dimension); err != nil {
				return err
			}
			logger.Info("schema ready", "dimension", cfg.Embeddings.Dimension)
			return nil
		},
	}
}

func newSearchCmd(flags *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find stored analyses similar to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.setup()
			if err != nil {
				return err
			}
			emb, err := session.NewEmbedder(cfg)
			if err != nil {
				return err
			}
			store, err := storage.NewPostgresStorage(cmd.Context(), session.PostgresConfig(cfg), "", emb, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			results, err := store.SearchSimilarFrames(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range results {
				fmt.Fprintf(out, "%.3f  %s  #%d  %s  %s\n", r.Similarity, r.Session, r.Seq, r.Analyzer, r.Description)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "maximum results")
	return cmd
}
