package commands

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/vendorlink/marketplace/cmd/marketplace/discovery"
	"github.com/vendorlink/marketplace/cmd/marketplace/store"
)

type discoverResult struct {
	Suppliers     any                      `json:"suppliers"`
	Total         int                      `json:"total"`
	Sort          discovery.SortKey        `json:"sort"`
	ActiveFilters int                      `json:"activeFilters"`
	Ignored       []discovery.IgnoredParam `json:"ignored,omitempty"`
}

// discoverCmd runs the discovery pipeline against the configured store and
// prints the visible suppliers as JSON. Flags take the same values as the
// HTTP query parameters.
func discoverCmd() *cobra.Command {
	params := map[string]*string{}
	names := []string{"search", "category", "city", "rating", "distance", "verifiedOnly", "sort", "lat", "lng"}

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Filter and sort suppliers from the command line",
		RunE: func(cmd *cobra.Command, args []string) error {
			values := url.Values{}
			for _, name := range names {
				if cmd.Flags().Changed(name) {
					values.Set(name, *params[name])
				}
			}
			filters, sortKey, ignored := discovery.ParseFilters(values)
			for _, p := range ignored {
				log.Warn().Str("param", p.Code).Str("value", p.Value).Str("reason", p.Reason).Msg("Ignoring flag")
			}

			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			suppliers, err := a.documents.ListSuppliers(cmd.Context(), &store.SupplierQuery{
				Category: filters.Category,
				City:     filters.City,
			})
			if err != nil {
				return err
			}
			visible := a.pipeline.Run(suppliers, filters, sortKey)

			data, err := json.MarshalIndent(discoverResult{
				Suppliers:     visible,
				Total:         len(visible),
				Sort:          sortKey,
				ActiveFilters: filters.ActiveCount(),
				Ignored:       ignored,
			}, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode result: %w", err)
			}
			fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}

	for _, name := range names {
		params[name] = cmd.Flags().String(name, "", fmt.Sprintf("%s query parameter", name))
	}
	return cmd
}
