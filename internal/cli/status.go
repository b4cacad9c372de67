package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/chanreplay/pkg/chanreplay"
	"github.com/randalmurphal/chanreplay/pkg/chanreplay/transfer"
	"github.com/randalmurphal/chanreplay/pkg/chanreplay/vertex"
)

// StatusOutput describes the checkpoint of one vertex.
type StatusOutput struct {
	Vertex   string `json:"vertex" yaml:"vertex"`
	State    string `json:"state" yaml:"state"`
	Complete bool   `json:"complete" yaml:"complete"`
	Partial  bool   `json:"partial" yaml:"partial"`
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status VERTEX...",
		Short: "Show which checkpoint artifacts are available",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := chanreplay.FromSettings[vertex.Name](a.settings, transfer.Discard,
				chanreplay.WithLogger(a.logger))
			if err != nil {
				return err
			}
			defer m.Shutdown(cmd.Context()) //nolint:errcheck // nothing is running

			out := make([]StatusOutput, 0, len(args))
			for _, arg := range args {
				v, err := parseVertex(arg)
				if err != nil {
					return err
				}
				out = append(out, StatusOutput{
					Vertex:   arg,
					State:    m.CheckpointState(v).String(),
					Complete: m.HasCompleteCheckpointAvailable(v),
					Partial:  m.HasPartialCheckpointAvailable(v),
				})
			}

			w := cmd.OutOrStdout()
			return render(w, a.output, out, func() error {
				for _, s := range out {
					fmt.Fprintf(w, "%-24s %-9s complete=%t partial=%t\n", s.Vertex, s.State, s.Complete, s.Partial)
				}
				return nil
			})
		},
	}
}
