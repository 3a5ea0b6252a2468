// Package cli implements selectionctl, the operator tool that publishes
// selection messages onto the wall's bus and inspects running apps.
package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/pscheid92/selectionsync/internal/adapter/redis"
	"github.com/pscheid92/selectionsync/internal/domain"
	"github.com/spf13/cobra"
)

// Bus is the transport the publishing commands write to.
type Bus interface {
	domain.Publisher
	Start(ctx context.Context, handler domain.MessageHandler) error
}

// BusDialer opens a bus and returns a function that releases it.
type BusDialer func(ctx context.Context, opts *RootOptions) (Bus, func() error, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	RedisURL string
	Channel  string
	Server   string
	Format   string // "json" | "text"
	Timeout  time.Duration

	DialBus    BusDialer
	HTTPClient *http.Client
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command with the Redis dialer.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithOptions(&RootOptions{DialBus: dialRedis, HTTPClient: http.DefaultClient})
}

// NewRootCommandWithOptions lets callers replace the bus dialer and HTTP client.
func NewRootCommandWithOptions(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "selectionctl",
		Short: "Drive and inspect a selection-synced display wall",
		Long: `selectionctl publishes select, highlight, reset and sync messages onto
the wall's bus exactly as an app would, watches the bus, and reads the
state of a running selectiond.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.RedisURL, "redis-url", envOr("REDIS_URL", "redis://localhost:6379/0"), "Redis URL of the wall bus")
	cmd.PersistentFlags().StringVar(&opts.Channel, "channel", envOr("BUS_CHANNEL", "selection:timeline"), "bus channel")
	cmd.PersistentFlags().StringVar(&opts.Server, "server", envOr("SELECTIOND_URL", "http://localhost:8080"), "base URL of a selectiond instance")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 5*time.Second, "timeout for bus and HTTP calls")

	cmd.AddCommand(NewSelectCommand(opts))
	cmd.AddCommand(NewHighlightCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewResetAllCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewStateCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

func dialRedis(ctx context.Context, opts *RootOptions) (Bus, func() error, error) {
	rdb, err := redis.NewClient(ctx, opts.RedisURL, nil)
	if err != nil {
		return nil, nil, err
	}
	return redis.NewBus(rdb, opts.Channel, nil), rdb.Close, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
