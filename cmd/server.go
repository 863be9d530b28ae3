package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/example/deskbook/internal/application/usecases"
	"github.com/example/deskbook/internal/auth"
	"github.com/example/deskbook/internal/availability"
	"github.com/example/deskbook/internal/domain/slot"
	"github.com/example/deskbook/internal/infrastructure/config"
	"github.com/example/deskbook/internal/infrastructure/crypto"
	"github.com/example/deskbook/internal/infrastructure/logging"
	"github.com/example/deskbook/internal/infrastructure/postgres"
	"github.com/example/deskbook/internal/infrastructure/spazio"
	"github.com/example/deskbook/internal/presenter"
	"github.com/example/deskbook/internal/web"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the booking web UI + background availability refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.RequireServerKeys(); err != nil {
				return err
			}

			log, err := logging.New(cfg.Env, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("db ping: %w", err)
			}
			if migrateUp {
				if err := postgres.Migrate(ctx, pool); err != nil {
					return err
				}
			}

			aead, err := crypto.New(cfg.TokenEncKey)
			if err != nil {
				return err
			}

			window := slot.Window{Open: cfg.OpenHour, Close: cfg.CloseHour}
			client := spazio.New(cfg.APIBaseURL, window, log)
			store := availability.NewStore(client, log)
			refresher := &availability.Refresher{
				Store:    store,
				Interval: cfg.RefreshInterval(),
				Log:      log,
			}
			go func() { _ = refresher.Run(ctx) }()

			users := postgres.NewUserRepo(pool)
			history := postgres.NewHistoryRepo(pool)
			authStore := auth.NewStore(users, cfg.CookieHashKey, cfg.CookieBlockKey)

			submitter := &usecases.Submitter{
				Availability: store,
				API:          client,
				Log:          log,
				MaxAttempts:  cfg.SubmitMaxAttempts,
				BackoffBase:  cfg.SubmitBackoff(),
			}

			ws := &web.Server{
				Auth:         authStore,
				Users:        users,
				History:      history,
				Availability: store,
				Refresher:    refresher,
				Submitter:    submitter,
				AEAD:         aead,
				Presenter:    presenter.Presenter{Pricer: slot.Pricer{HourlyRateCents: cfg.UnitRateCents}},
				Log:          log,
			}
			return web.Start(ctx, cfg.ListenAddr, ws.Routes(), log)
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	return cmd
}
