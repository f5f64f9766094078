package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/mvvm"
	"github.com/aretw0/mvvm/internal/config"
	"github.com/aretw0/mvvm/internal/logging"
	"github.com/aretw0/mvvm/pkg/viewmodel"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mvvm",
	Short: "mvvm runs view-models on a single main loop",
	Long: `mvvm hosts a demo view-model on a main loop, either in the terminal
(demo) or behind an HTTP binding with metrics and an optional Redis requery bridge (serve).`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "mvvm.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides the config file")
}

// setup loads the configuration and builds the logger for a command.
func setup(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}

	logger := logging.NewWithFormat(cmd.ErrOrStderr(), logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	return cfg, logger, nil
}

// runtimeOptions maps the viewmodel section onto runtime options.
func runtimeOptions(cfg config.Config, logger *slog.Logger) ([]mvvm.Option, error) {
	mode, err := viewmodel.ParseBackgroundMode(cfg.ViewModel.BackgroundMode)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	opts := []mvvm.Option{
		mvvm.WithLogger(logger),
		mvvm.WithBackgroundMode(mode),
	}
	if cfg.ViewModel.VerifyPropertyNames != nil {
		opts = append(opts, mvvm.WithPropertyVerification(*cfg.ViewModel.VerifyPropertyNames))
	}
	if cfg.ViewModel.StrictPropertyNames {
		opts = append(opts, mvvm.WithStrictPropertyNames())
	}
	return opts, nil
}
