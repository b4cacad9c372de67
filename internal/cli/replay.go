package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/chanreplay/pkg/chanreplay"
	"github.com/randalmurphal/chanreplay/pkg/chanreplay/checkpoint"
	"github.com/randalmurphal/chanreplay/pkg/chanreplay/transfer"
	"github.com/randalmurphal/chanreplay/pkg/chanreplay/vertex"
)

// EnvelopeOutput is one replayed envelope as printed by the replay command.
type EnvelopeOutput struct {
	Source   string `json:"source" yaml:"source"`
	Channel  string `json:"channel" yaml:"channel"`
	Sequence int64  `json:"sequence" yaml:"sequence"`
	Bytes    int    `json:"bytes" yaml:"bytes"`
}

func parseVertex(arg string) (vertex.Name, error) {
	if err := checkpoint.ValidateVertexName(arg); err != nil {
		return "", err
	}
	return vertex.Name(arg), nil
}

func newReplayCmd(a *app) *cobra.Command {
	var (
		timeout time.Duration
		channel string
	)

	cmd := &cobra.Command{
		Use:   "replay VERTEX...",
		Short: "Replay checkpoints and print every envelope",
		Long: `Replay the checkpoint of each vertex into an in-process bus and print
the envelopes it carries. A partial checkpoint is followed until its writer
removes the part marker, so the command may block; bound it with --timeout.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vertices := make([]vertex.Name, 0, len(args))
			for _, arg := range args {
				v, err := parseVertex(arg)
				if err != nil {
					return err
				}
				vertices = append(vertices, v)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			envs, err := a.replay(ctx, vertices, channel)
			w := cmd.OutOrStdout()
			if rerr := render(w, a.output, envs, func() error {
				for _, e := range envs {
					fmt.Fprintf(w, "%s\t%s\t%d\t%dB\n", e.Source, e.Channel, e.Sequence, e.Bytes)
				}
				return nil
			}); rerr != nil {
				return rerr
			}
			return err
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "stop waiting for replays after this long")
	cmd.Flags().StringVar(&channel, "channel", "", "only print envelopes on this channel")
	return cmd
}

// replay runs one replay per vertex and collects what the bus delivers.
func (a *app) replay(ctx context.Context, vertices []vertex.Name, channel string) ([]EnvelopeOutput, error) {
	bus := transfer.NewBus(transfer.BusConfig{
		OnError: func(env transfer.Envelope, sub string, err error) {
			a.logger.Warn("envelope handler failed",
				"subscription", sub, "sequence", env.Sequence, "error", err)
		},
	})

	var (
		mu   sync.Mutex
		envs []EnvelopeOutput
	)
	bus.Subscribe(channel, func(_ context.Context, env transfer.Envelope) error {
		mu.Lock()
		defer mu.Unlock()
		envs = append(envs, EnvelopeOutput{
			Source:   env.Source,
			Channel:  env.Channel,
			Sequence: env.Sequence,
			Bytes:    len(env.Data),
		})
		return nil
	})

	m, err := chanreplay.FromSettings[vertex.Name](a.settings, bus, chanreplay.WithLogger(a.logger))
	if err != nil {
		_ = bus.Close()
		return nil, err
	}

	var errs []error
	for _, v := range vertices {
		if err := m.ReplayCheckpoint(ctx, v); err != nil {
			errs = append(errs, err)
		}
	}
	for _, v := range vertices {
		if err := m.Wait(ctx, v); err != nil {
			errs = append(errs, fmt.Errorf("vertex %s: %w", v, err))
		}
	}

	// Cancel anything still following a writer.
	if err := m.Shutdown(context.WithoutCancel(ctx)); err != nil {
		errs = append(errs, err)
	}
	_ = bus.Close()

	mu.Lock()
	defer mu.Unlock()
	return envs, errors.Join(errs...)
}
