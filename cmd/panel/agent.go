package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xaenox/botpanel/internal/agent"
	"github.com/xaenox/botpanel/internal/identity"
	"github.com/xaenox/botpanel/internal/secrets"
	"go.uber.org/zap"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the reference agent for one bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()

			if id, _ := cmd.Flags().GetString("bot"); id != "" {
				cfg.Agent.BotID = id
			}
			if owner, _ := cmd.Flags().GetString("owner"); owner != "" {
				cfg.Agent.Owner = owner
			}
			if cfg.Agent.BotID == "" || cfg.Agent.Owner == "" {
				return errors.New("agent.bot_id and agent.owner are required")
			}
			if cfg.Secrets.AgeIdentity == "" {
				return errors.New("secrets.age_identity (PANEL_AGE_IDENTITY) is required")
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

			ctx = identity.Agent(ctx, cfg.Agent.Owner, cfg.Agent.BotID)
			a := agent.New(
				store,
				cfg.Agent.BotID,
				agent.NewLogDriver(log),
				agent.VaultEngineFactory(vault.Open, log),
				cfg.Agent.Interval,
				log,
			)

			log.Info("Agent starting", zap.String("bot_id", cfg.Agent.BotID), zap.Duration("interval", cfg.Agent.Interval))
			if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			log.Info("Agent exited", zap.String("bot_id", cfg.Agent.BotID))
			return nil
		},
	}

	cmd.Flags().String("bot", "", "Bot id to drive (overrides agent.bot_id)")
	cmd.Flags().String("owner", "", "Owner of the bot (overrides agent.owner)")
	return cmd
}
