package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/models"
	"github.com/franciscosanchezn/gin-oauth2-server/internal/services"
	"github.com/spf13/cobra"
)

func newUserCommand(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage resource owners",
	}
	cmd.AddCommand(newUserCreateCommand(env))
	return cmd
}

func newUserCreateCommand(env *environment) *cobra.Command {
	var name, role string
	cmd := &cobra.Command{
		Use:   "create <email>",
		Short: "Create a resource owner. The password is read from OAUTHCTL_PASSWORD.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := os.Getenv("OAUTHCTL_PASSWORD")
			if len(password) < 8 {
				return errors.New("OAUTHCTL_PASSWORD must hold a password of at least 8 characters")
			}
			if role != "user" && role != "admin" {
				return fmt.Errorf("invalid role %q", role)
			}
			db, err := env.open(cmd.Context())
			if err != nil {
				return err
			}
			user := &models.User{Email: args[0], Name: name, Role: role}
			if err := services.NewUserService(db).CreateUser(cmd.Context(), user, password); err != nil {
				return fmt.Errorf("create user %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d)\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "user", "role (user|admin)")
	return cmd
}
