package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vendorlink/marketplace/cmd/marketplace/store"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <suppliers.yaml>",
		Short: "Load suppliers from a YAML seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := store.LoadSeed(args[0])
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := store.ApplySeed(cmd.Context(), a.documents, seed, log)
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %d suppliers from %s\n", n, args[0])
			return nil
		},
	}
}
