package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUsersCommand(opts *clientOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Call the role-gated user routes",
	}
	cmd.AddCommand(
		newAccessCommand(opts, "admin", "Check tenant or platform admin access"),
		newAccessCommand(opts, "customer", "Check customer access"),
	)
	return cmd
}

func newAccessCommand(opts *clientOptions, name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				Message string `json:"message"`
				UserID  int64  `json:"user_id"`
			}
			if err := newAPIClient(opts).getAuthed(cmd.Context(), "/api/v1/users/"+name, &result); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (user %d)\n", result.Message, result.UserID)
			return nil
		},
	}
}
