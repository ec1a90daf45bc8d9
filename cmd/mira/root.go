package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/bdougie/mira/internal/config"
)

type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "mira",
		Short:         "Frame analysis pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (yaml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log.level")

	root.AddCommand(
		newRunCmd(flags),
		newInitDBCmd(flags),
		newSearchCmd(flags),
		newHistoryCmd(flags),
	)
	return root
}

// load reads the config file when one is given and applies flag overrides.
func (f *globalFlags) load() (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return nil, err
		}
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	return cfg, nil
}

func newLogger(w io.Writer, name string) (*slog.Logger, error) {
	level, err := config.ParseLevel(name)
	if err != nil {
		return nil, err
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	})), nil
}

func (f *globalFlags) setup() (*config.Config, *slog.Logger, error) {
	cfg, err := f.load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(os.Stderr, cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}
