package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xaenox/botpanel/internal/bot"
	"github.com/xaenox/botpanel/internal/dispatcher"
	"github.com/xaenox/botpanel/internal/identity"
	"github.com/xaenox/botpanel/internal/panel"
	"github.com/xaenox/botpanel/internal/secrets"
	"github.com/xaenox/botpanel/internal/server"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard API and the Telegram console",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()

			if cfg.Server.JWTSecret == "" {
				return errors.New("server.jwt_secret (PANEL_JWT_SECRET) is required")
			}
			if cfg.Secrets.AgeIdentity == "" {
				return errors.New("secrets.age_identity (PANEL_AGE_IDENTITY) is required; run `panel keygen`")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := openStore(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer store.Close()

			vault, err := secrets.NewVault(store, cfg.Secrets.AgeIdentity)
			if err != nil {
				return err
			}

			service := panel.NewService(store, vault, dispatcher.New(store, log), log)
			sessions := panel.NewSessions(store, cfg.Poller.Interval, log)
			defer sessions.Close()

			srv := server.New(service, sessions, identity.NewVerifier(cfg.Server.JWTSecret), log)

			var console *bot.Bot
			if cfg.Telegram.Token != "" {
				console, err = bot.New(cfg.Telegram.Token, service, sessions, cfg.Telegram.OperatorMap(), log)
				if err != nil {
					return err
				}
			} else {
				log.Info("Telegram token not set, console disabled")
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.Run(gctx, cfg.Server.Addr)
			})
			if console != nil {
				g.Go(func() error {
					return console.Start(gctx)
				})
			}

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Panel stopped with error", zap.Error(err))
				return err
			}
			log.Info("Panel stopped")
			return nil
		},
	}
}
