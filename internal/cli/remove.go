package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/chanreplay/pkg/chanreplay"
	"github.com/randalmurphal/chanreplay/pkg/chanreplay/checkpoint"
	"github.com/randalmurphal/chanreplay/pkg/chanreplay/transfer"
	"github.com/randalmurphal/chanreplay/pkg/chanreplay/vertex"
)

// RemoveOutput reports the removal of one vertex's checkpoint.
type RemoveOutput struct {
	Vertex  string   `json:"vertex" yaml:"vertex"`
	Removed []string `json:"removed" yaml:"removed"`
	Errors  []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove VERTEX...",
		Short: "Delete checkpoint artifacts",
		Long: `Delete the checkpoint of each vertex. A complete checkpoint loses only
its final artifact; otherwise segment 0 and the part marker are deleted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := chanreplay.FromSettings[vertex.Name](a.settings, transfer.Discard,
				chanreplay.WithLogger(a.logger))
			if err != nil {
				return err
			}
			defer m.Shutdown(cmd.Context()) //nolint:errcheck // nothing is running

			var (
				out  []RemoveOutput
				errs []error
			)
			for _, arg := range args {
				// Invalid names are reported in the result.
				result := m.RemoveCheckpoint(vertex.Name(arg))
				out = append(out, removeOutput(arg, result))
				if err := result.Err(); err != nil {
					errs = append(errs, err)
				}
			}

			w := cmd.OutOrStdout()
			if err := render(w, a.output, out, func() error {
				for _, r := range out {
					fmt.Fprintf(w, "%s: removed %v\n", r.Vertex, r.Removed)
					for _, e := range r.Errors {
						fmt.Fprintf(w, "%s: %s\n", r.Vertex, e)
					}
				}
				return nil
			}); err != nil {
				return err
			}
			return errors.Join(errs...)
		},
	}
}

func removeOutput(name string, result checkpoint.RemoveResult) RemoveOutput {
	out := RemoveOutput{Vertex: name, Removed: []string{}}
	for _, a := range result.Removed() {
		out.Removed = append(out.Removed, a.String())
	}
	for _, o := range result.Outcomes {
		if o.Err != nil {
			out.Errors = append(out.Errors, o.Err.Error())
		}
	}
	return out
}
