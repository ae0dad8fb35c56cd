package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mind-engage/cityprosperity/internal/auth"
)

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage API users",
	}
	cmd.AddCommand(usersAddCmd())
	cmd.AddCommand(usersListCmd())
	return cmd
}

func usersAddCmd() *cobra.Command {
	var username, password, role string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			u, err := auth.NewUsers(a.db).Create(cmd.Context(), username, password, role)
			if err != nil {
				return err
			}
			fmt.Printf("created %s (%s) id=%s\n", u.Username, u.Role, u.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().StringVar(&role, "role", "analyst", "viewer|analyst|admin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func usersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			list, err := auth.NewUsers(a.db).List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(list)
		},
	}
}
