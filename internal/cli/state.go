package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/pscheid92/selectionsync/internal/domain"
	"github.com/pscheid92/selectionsync/internal/platform/version"
	"github.com/spf13/cobra"
)

func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the selection and highlights of a running app",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap domain.SlotSnapshot
			if err := getJSON(cmd.Context(), rootOpts, "/api/state", &snap); err != nil {
				return err
			}
			return newFormatter(rootOpts, cmd.OutOrStdout()).Print(snap, formatSnapshot(snap))
		},
	}
}

func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the selectionctl version, or with --remote the server's",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			if remote {
				if err := getJSON(cmd.Context(), rootOpts, "/version", &info); err != nil {
					return err
				}
			}
			return newFormatter(rootOpts, cmd.OutOrStdout()).Print(info, info.String())
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "query the server instead")
	return cmd
}

func getJSON(ctx context.Context, opts *RootOptions, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	url := strings.TrimRight(opts.Server, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", opts.Server, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func formatSnapshot(snap domain.SlotSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "app %d\n", snap.AppID)
	fmt.Fprintf(&b, "selected (%d):", len(snap.Selection))
	for _, s := range snap.Selection {
		fmt.Fprintf(&b, " %d@%d", s.Index, s.AppID)
	}

	indices := make([]int, 0, len(snap.Highlighted))
	for index := range snap.Highlighted {
		indices = append(indices, index)
	}
	slices.Sort(indices)

	fmt.Fprintf(&b, "\nhighlighted (%d):", len(indices))
	for _, index := range indices {
		fmt.Fprintf(&b, " %d(%d)", index, snap.Highlighted[index])
	}
	return b.String()
}
