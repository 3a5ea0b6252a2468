package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pscheid92/selectionsync/internal/domain"
	"github.com/pscheid92/selectionsync/internal/protocol"
	"github.com/spf13/cobra"
)

// originOptions are the flags every app-originated message carries.
type originOptions struct {
	origin int
	group  int
}

func (o *originOptions) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.origin, "origin", 0, "app id the message claims to come from")
	cmd.Flags().IntVar(&o.group, "group", -1, "timeline group of the origin (-1 for none)")
}

func (o *originOptions) groupPtr() *int {
	if o.group < 0 {
		return nil
	}
	g := o.group
	return &g
}

func NewSelectCommand(rootOpts *RootOptions) *cobra.Command {
	var origin originOptions
	var off bool

	cmd := &cobra.Command{
		Use:   "select <index>",
		Short: "Select (or with --off deselect) a timeline row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return publish(cmd, rootOpts, protocol.NewSelect(origin.origin, index, !off, origin.groupPtr()))
		},
	}
	origin.register(cmd)
	cmd.Flags().BoolVar(&off, "off", false, "deselect instead of select")
	return cmd
}

func NewHighlightCommand(rootOpts *RootOptions) *cobra.Command {
	var origin originOptions

	cmd := &cobra.Command{
		Use:   "highlight <index>",
		Short: "Highlight a timeline row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return publish(cmd, rootOpts, protocol.NewHighlight(origin.origin, index, origin.groupPtr()))
		},
	}
	origin.register(cmd)
	return cmd
}

func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	var group int
	var contextType string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear every app of one group and application type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, ok := domain.ParseApplicationType(contextType)
			if !ok {
				return fmt.Errorf("unknown application type %q", contextType)
			}
			return publish(cmd, rootOpts, protocol.NewResetGroup(group, ct))
		},
	}
	cmd.Flags().IntVar(&group, "group", 0, "group to reset")
	cmd.Flags().StringVar(&contextType, "context", string(domain.ContextTimeline), "application type to reset")
	_ = cmd.MarkFlagRequired("group")
	return cmd
}

func NewResetAllCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-all",
		Short: "Clear every app on the wall",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return publish(cmd, rootOpts, protocol.NewResetAll())
		},
	}
}

func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	var origin originOptions

	cmd := &cobra.Command{
		Use:   "sync [index...]",
		Short: "Replace everything the origin app has selected with the given rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			indices := make([]int, 0, len(args))
			for _, arg := range args {
				index, err := parseIndex(arg)
				if err != nil {
					return err
				}
				indices = append(indices, index)
			}
			return publish(cmd, rootOpts, protocol.NewSync(origin.origin, indices, origin.groupPtr()))
		},
	}
	origin.register(cmd)
	return cmd
}

func publish(cmd *cobra.Command, opts *RootOptions, msg protocol.Message) error {
	payload, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	bus, closeBus, err := opts.DialBus(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to open bus: %w", err)
	}
	defer func() { _ = closeBus() }()

	if err := bus.Publish(ctx, payload); err != nil {
		return err
	}

	return newFormatter(opts, cmd.OutOrStdout()).Print(msg, fmt.Sprintf("published %s %s", msg.Kind, msg.ID))
}

func parseIndex(s string) (int, error) {
	index, err := strconv.Atoi(s)
	if err != nil || index < 0 {
		return 0, fmt.Errorf("invalid row index %q", s)
	}
	return index, nil
}
