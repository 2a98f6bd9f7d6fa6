package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/models"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/services"
	"github.com/spf13/cobra"
)

func newScopeCommand(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scope",
		Short: "Manage the scope directory",
	}
	cmd.AddCommand(newScopeCreateCommand(env), newScopeListCommand(env))
	return cmd
}

func newScopeCreateCommand(env *environment) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create <scope>",
		Short: "Register a scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !auth.ValidScopeToken(args[0]) {
				return fmt.Errorf("%q is not a valid scope token", args[0])
			}
			db, err := env.open(cmd.Context())
			if err != nil {
				return err
			}
			scope := &models.OAuthScope{ID: args[0], Description: description}
			if err := services.NewScopeService(db).CreateScope(cmd.Context(), scope); err != nil {
				return fmt.Errorf("create scope %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created scope %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "human readable description")
	return cmd
}

func newScopeListCommand(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered scopes",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := env.open(cmd.Context())
			if err != nil {
				return err
			}
			scopes, err := services.NewScopeService(db).ListScopes(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SCOPE\tDESCRIPTION")
			for _, s := range scopes {
				fmt.Fprintf(w, "%s\t%s\n", s.ID, s.Description)
			}
			return w.Flush()
		},
	}
}
