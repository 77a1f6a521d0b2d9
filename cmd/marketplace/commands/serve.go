package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/vendorlink/marketplace/cmd/marketplace/api"
	"github.com/vendorlink/marketplace/cmd/marketplace/auth"
	"github.com/vendorlink/marketplace/cmd/marketplace/favorites"
	"github.com/vendorlink/marketplace/cmd/marketplace/loyalty"
	"github.com/vendorlink/marketplace/cmd/marketplace/session"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var addr string
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the marketplace HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if addr != "" {
				cfg.Addr = addr
			}

			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if migrate {
				if err := a.migrate(ctx, cfg); err != nil {
					return err
				}
			}

			cost := cfg.BcryptCost
			if cost == 0 {
				cost = bcrypt.DefaultCost
			}
			authService := auth.NewAuthService(a.accounts, a.documents, cost, log)
			sessions := session.NewRegistry(authService, session.RegistryConfig{IdleTimeout: cfg.SessionIdleTimeout}, log)
			defer sessions.CloseAll()

			router := api.NewMarketplaceRouter(
				a.documents,
				sessions,
				favorites.NewFavoritesService(a.documents, a.documents, a.pipeline, log),
				loyalty.NewLoyaltyService(a.documents, log),
				a.pipeline,
				log,
			)

			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           router.SetupRoutes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errc := make(chan error, 1)
			go func() {
				log.Info().Str("addr", cfg.Addr).Msg("Starting marketplace API")
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			log.Info().Msg("Shutting down marketplace API")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			// Open event streams only end once their sessions are closed.
			sessions.CloseAll()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides MARKETPLACE_ADDR)")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "create missing tables before serving")
	return cmd
}
