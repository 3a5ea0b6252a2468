package cli

import (
	"context"
	"fmt"
	"sync"

	"github.com/pscheid92/selectionsync/internal/protocol"
	"github.com/spf13/cobra"
)

func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print every message on the bus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, rootOpts, count)
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many messages (0 runs until interrupted)")
	return cmd
}

func runWatch(cmd *cobra.Command, opts *RootOptions, count int) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	bus, closeBus, err := opts.DialBus(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to open bus: %w", err)
	}
	defer func() { _ = closeBus() }()

	formatter := newFormatter(opts, cmd.OutOrStdout())

	var mu sync.Mutex
	seen := 0
	var printErr error

	err = bus.Start(ctx, func(_ context.Context, payload []byte) {
		mu.Lock()
		defer mu.Unlock()

		msg, err := protocol.Decode(payload)
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "malformed message: %v\n", err)
			return
		}
		if err := formatter.Print(msg, describe(msg)); err != nil {
			printErr = err
			cancel()
			return
		}

		seen++
		if count > 0 && seen >= count {
			cancel()
		}
	})
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	return printErr
}

func describe(m protocol.Message) string {
	s := string(m.Kind)
	if m.Origin != nil {
		s += fmt.Sprintf(" origin=%d", *m.Origin)
	}
	if m.Index != nil {
		s += fmt.Sprintf(" index=%d", *m.Index)
	}
	if m.Selected != nil {
		s += fmt.Sprintf(" selected=%t", *m.Selected)
	}
	if m.Group != nil {
		s += fmt.Sprintf(" group=%d", *m.Group)
	}
	if m.ContextType != nil {
		s += fmt.Sprintf(" context=%s", *m.ContextType)
	}
	if m.Kind == protocol.KindSync {
		s += fmt.Sprintf(" indices=%v", m.Indices)
	}
	return s
}
