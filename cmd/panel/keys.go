package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/xaenox/botpanel/internal/identity"
	"github.com/xaenox/botpanel/internal/secrets"
	"github.com/xaenox/botpanel/pkg/config"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an age identity for secrets.age_identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secrets.GenerateIdentity()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a session token for an operator or a bot agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadConfig(path)
			if err != nil {
				return err
			}
			if cfg.Server.JWTSecret == "" {
				return errors.New("server.jwt_secret (PANEL_JWT_SECRET) is required")
			}

			botID, _ := cmd.Flags().GetString("agent")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			id := identity.Identity{UserID: args[0], Role: identity.RoleOperator}
			if botID != "" {
				id.Role = identity.RoleAgent
				id.BotID = botID
			}

			token, err := identity.NewVerifier(cfg.Server.JWTSecret).Issue(id, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().String("agent", "", "Issue an agent token bound to this bot id")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
