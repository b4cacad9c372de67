// Package cli implements the chanreplay command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/chanreplay/pkg/chanreplay/config"
)

// app carries state resolved by the root command for its subcommands.
type app struct {
	configPath string
	dir        string
	history    string
	output     string
	verbose    bool

	settings config.Settings
	logger   *slog.Logger
}

// NewRoot builds the chanreplay command tree.
func NewRoot() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "chanreplay",
		Short:         "Inspect, replay and remove channel checkpoints",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
		RunE: func(c *cobra.Command, _ []string) error { return c.Help() },
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "settings file (.yaml, .json or .toml)")
	flags.StringVarP(&a.dir, "dir", "d", "", "checkpoint directory (overrides settings)")
	flags.StringVar(&a.history, "history", "", "replay history database (overrides settings)")
	flags.StringVarP(&a.output, "output", "o", "text", "output format: text, yaml or json")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newStatusCmd(a))
	cmd.AddCommand(newReplayCmd(a))
	cmd.AddCommand(newRemoveCmd(a))
	cmd.AddCommand(newHistoryCmd(a))
	return cmd
}

// load resolves settings: defaults, then the settings file, then the
// environment, then explicit flags.
func (a *app) load(cmd *cobra.Command) error {
	switch a.output {
	case "text", "yaml", "json":
	default:
		return fmt.Errorf("unknown output format %q", a.output)
	}

	s, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if a.dir != "" {
		s.CheckpointDirectory = a.dir
	}
	if a.history != "" {
		s.HistoryPath = a.history
	}
	a.settings = s
	a.logger = newLogger(cmd.ErrOrStderr(), a.verbose)
	return nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
