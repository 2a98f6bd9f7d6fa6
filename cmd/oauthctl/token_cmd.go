package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/config"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/oauth"
	"github.com/spf13/cobra"
)

func newTokenCommand(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Revoke and prune tokens",
	}
	cmd.AddCommand(
		newRevokeCommand(env, "revoke-access", "Revoke an access token immediately",
			func(ctx context.Context, m *auth.TokenManager, id string) error { return m.RevokeAccessToken(ctx, id) }),
		newRevokeCommand(env, "revoke-refresh", "Revoke a refresh token, honouring the grace period",
			func(ctx context.Context, m *auth.TokenManager, id string) error { return m.RevokeRefreshToken(ctx, id) }),
		newPruneCommand(env),
	)
	return cmd
}

func newRevokeCommand(env *environment, use, short string, revoke func(context.Context, *auth.TokenManager, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <token-id|jwt>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			manager, err := env.tokenManager(ctx)
			if err != nil {
				return err
			}
			id, err := tokenID(ctx, env.config, args[0])
			if err != nil {
				return err
			}
			if err := revoke(ctx, manager, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", id)
			return nil
		},
	}
}

// tokenID accepts either a bare token id or a JWT issued by the server.
func tokenID(ctx context.Context, conf *config.Config, raw string) (string, error) {
	if strings.Count(raw, ".") != 2 {
		return raw, nil
	}
	secret, err := config.ResolveJWTSecret(ctx, conf)
	if err != nil {
		return "", err
	}
	return oauth.NewTokenCodec([]byte(secret)).Identifier(raw)
}

func newPruneCommand(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete expired tokens, including refresh tokens past their grace period",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := env.tokenManager(cmd.Context())
			if err != nil {
				return err
			}
			n, err := manager.PruneExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d records\n", n)
			return nil
		},
	}
}
