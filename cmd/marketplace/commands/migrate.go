package commands

import (
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the marketplace tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.migrate(cmd.Context(), cfg); err != nil {
				return err
			}
			log.Info().Str("db_driver", cfg.DBDriver).Msg("Migration complete")
			return nil
		},
	}
}
