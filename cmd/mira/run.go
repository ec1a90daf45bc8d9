package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bdougie/mira/internal/session"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	var (
		input    string
		kind     string
		backend  string
		rotation int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Analyze frames until interrupted or the input ends",
		Long: `Run reads frames through ffmpeg and hands each one to the configured
analyzer. Results go to every enabled sink.

Example:
  mira run -c mira.yaml
  mira run --input clip.mp4 --kind text --backend tesseract`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.setup()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("input") {
				cfg.Source.Input = input
				cfg.Source.Format = ""
			}
			if kind != "" {
				cfg.Analyzer.Kind = kind
			}
			if backend != "" {
				cfg.Analyzer.Backend = backend
			}
			if cmd.Flags().Changed("rotation") {
				cfg.Source.Rotation = rotation
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := session.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			logger.Info("starting analysis", "session", s.ID, "analyzer", cfg.Analyzer.Kind, "backend", cfg.Analyzer.Backend, "input", cfg.Source.Input)

			runErr := s.Run(ctx)
			if err := s.Close(); err != nil {
				logger.Error("failed to close session", "error", err)
			}
			return runErr
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "video file or device (clears source.format)")
	cmd.Flags().StringVar(&kind, "kind", "", "analyzer kind: labels, text or luminosity")
	cmd.Flags().StringVar(&backend, "backend", "", "analyzer backend")
	cmd.Flags().IntVar(&rotation, "rotation", 0, "sensor rotation in degrees")
	return cmd
}
