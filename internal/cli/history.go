package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/chanreplay/pkg/chanreplay/history"
)

// ErrNoHistory is returned by the history command when no database is set.
var ErrNoHistory = errors.New("no replay history configured (set --history or channel.checkpoint.history)")

func newHistoryCmd(a *app) *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "history VERTEX",
		Short: "Show recorded replay attempts of a vertex",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.settings.HistoryPath == "" {
				return ErrNoHistory
			}
			store, err := history.NewSQLiteStore(a.settings.HistoryPath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			if purge {
				return store.Delete(ctx, args[0])
			}

			entries, err := store.List(ctx, args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			return render(w, a.output, entries, func() error {
				for _, e := range entries {
					line := fmt.Sprintf("%4d  %s  %-26s %-10s complete=%t",
						e.Sequence, e.Timestamp.Format(time.RFC3339), e.Attempt, e.Status, e.Complete)
					if e.Error != "" {
						line += "  error=" + e.Error
					}
					fmt.Fprintln(w, line)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&purge, "clear", false, "delete the vertex's history instead of listing it")
	return cmd
}
