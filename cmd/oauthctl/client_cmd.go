package main

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/models"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/services"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var supportedGrants = []string{"authorization_code", "password", "client_credentials", "refresh_token"}

func newClientCommand(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage OAuth2 clients",
	}
	cmd.AddCommand(
		newClientCreateCommand(env),
		newClientListCommand(env),
		newClientDeleteCommand(env),
	)
	return cmd
}

func newClientCreateCommand(env *environment) *cobra.Command {
	var (
		id, name     string
		public       bool
		redirectURIs []string
		scopes       []string
		grants       []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a client and print its credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := env.open(ctx)
			if err != nil {
				return err
			}
			if id == "" {
				id = uuid.NewString()
			}
			if name == "" {
				name = id
			}

			client := &models.OAuthClient{ID: id, Name: name}
			for _, uri := range redirectURIs {
				client.RedirectURIs = append(client.RedirectURIs, models.OAuthClientRedirectURI{URI: uri})
			}
			if cmd.Flags().Changed("grants") {
				client.RestrictGrants = true
				for _, grant := range grants {
					if !slices.Contains(supportedGrants, grant) {
						return fmt.Errorf("unsupported grant type %q", grant)
					}
					client.Grants = append(client.Grants, models.OAuthClientGrant{GrantType: grant})
				}
			}
			if cmd.Flags().Changed("scopes") {
				client.RestrictScopes = true
				scopeService := services.NewScopeService(db)
				for _, scope := range scopes {
					if _, err := scopeService.FindScope(ctx, scope); err != nil {
						return fmt.Errorf("scope %q: %w", scope, err)
					}
					client.Scopes = append(client.Scopes, models.OAuthClientScope{ScopeID: scope})
				}
			}

			var secret string
			if !public {
				secret = uuid.NewString()
				hash, err := auth.HashSecret(secret)
				if err != nil {
					return err
				}
				client.SecretHash = &hash
			}
			if err := services.NewClientService(db).CreateClient(ctx, client); err != nil {
				return fmt.Errorf("create client: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "client_id:     %s\n", client.ID)
			if public {
				fmt.Fprintln(out, "client_secret: (public client)")
			} else {
				fmt.Fprintf(out, "client_secret: %s\n", secret)
				fmt.Fprintln(out, "Store the secret now, it cannot be shown again.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "client id (random UUID when empty)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().BoolVar(&public, "public", false, "register a public client without a secret")
	cmd.Flags().StringSliceVar(&redirectURIs, "redirect-uri", nil, "registered redirect URI (repeatable)")
	cmd.Flags().StringSliceVar(&scopes, "scopes", nil, "restrict the client to these scopes")
	cmd.Flags().StringSliceVar(&grants, "grants", nil, "restrict the client to these grant types")
	return cmd
}

func newClientListCommand(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := env.open(cmd.Context())
			if err != nil {
				return err
			}
			clients, err := services.NewClientService(db).ListClients(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tSCOPES\tGRANTS")
			for i := range clients {
				c := services.ToAuthClient(&clients[i])
				kind := "confidential"
				if !c.IsConfidential() {
					kind = "public"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Name, kind, listOrAny(c.AllowedScopes), listOrAny(c.AllowedGrantTypes))
			}
			return w.Flush()
		},
	}
}

func listOrAny(values []string) string {
	if values == nil {
		return "*"
	}
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ",")
}

func newClientDeleteCommand(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <client-id>",
		Short: "Delete a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := env.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := services.NewClientService(db).DeleteClient(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete client %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted client %s\n", args[0])
			return nil
		},
	}
}
