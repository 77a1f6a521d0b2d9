package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vendorlink/marketplace/cmd/marketplace/config"
	"github.com/vendorlink/marketplace/cmd/marketplace/output"
)

var (
	envFile  string
	logLevel string

	cfg    *config.Config
	logOut *output.LogOutput
	log    zerolog.Logger
)

func Execute() error {
	root := &cobra.Command{
		Use:           "marketplace",
		Short:         "Vendor and supplier marketplace service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(envFile)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}

			logOut, err = output.NewLogOutput(cfg.LogLevel, cfg.LogFile)
			if err != nil {
				return err
			}
			log = logOut.Logger.With().Str("command", cmd.Name()).Logger()
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logOut == nil {
				return nil
			}
			return logOut.Close()
		},
	}

	root.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file with MARKETPLACE_* settings")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override MARKETPLACE_LOG_LEVEL")

	root.AddCommand(serveCmd(), migrateCmd(), seedCmd(), discoverCmd())

	err := root.Execute()
	if err != nil {
		if logOut != nil {
			log.Error().Err(err).Msg("Command failed")
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	return err
}
