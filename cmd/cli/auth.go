package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

type loginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      int64  `json:"user_id"`
	Role        string `json:"role"`
	TenantID    int64  `json:"tenant_id"`
	ExpiresIn   int64  `json:"expires_in"`
}

func newAuthCommand(opts *clientOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign up, log in and manage the saved token",
	}
	cmd.AddCommand(
		newSignupCommand(opts),
		newLoginCommand(opts),
		newTokenCommand(opts),
		newLogoutCommand(opts),
		newWhoAmICommand(opts),
	)
	return cmd
}

func newSignupCommand(opts *clientOptions) *cobra.Command {
	var (
		email    string
		password string
		phone    string
		tenant   int64
	)

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a customer account",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{
				"email":     email,
				"password":  password,
				"tenant_id": tenant,
			}
			if phone != "" {
				payload["phone_number"] = phone
			}

			var result struct {
				Msg string `json:"msg"`
			}
			if err := newAPIClient(opts).postJSON(cmd.Context(), "/auth/signup", payload, &result); err != nil {
				return fmt.Errorf("signup failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", result.Msg, email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.Flags().StringVar(&phone, "phone", "", "Phone number (optional)")
	cmd.Flags().Int64Var(&tenant, "tenant", 0, "Tenant id")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func newLoginCommand(opts *clientOptions) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(opts)

			var result loginResult
			payload := map[string]string{"email": email, "password": password}
			if err := client.postJSON(cmd.Context(), "/auth/login", payload, &result); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if err := client.saveToken(result.AccessToken); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as user %d (role %s, tenant %d); token expires in %ds\n",
				result.UserID, result.Role, result.TenantID, result.ExpiresIn)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newTokenCommand(opts *clientOptions) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Log in through the form endpoint and save the access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(opts)

			var result loginResult
			form := url.Values{"username": {username}, "password": {password}}
			if err := client.postForm(cmd.Context(), "/auth/token", form, &result); err != nil {
				return fmt.Errorf("token request failed: %w", err)
			}
			if err := client.saveToken(result.AccessToken); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token saved (%s)\n", result.TokenType)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCommand(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newAPIClient(opts).removeToken(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoAmICommand(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user the saved token belongs to",
		RunE: func(cmd *cobra.Command, args []string) error {
			var me struct {
				ID       int64  `json:"id"`
				Email    string `json:"email"`
				TenantID int64  `json:"tenant_id"`
				Role     string `json:"role"`
			}
			if err := newAPIClient(opts).getAuthed(cmd.Context(), "/api/v1/users/me", &me); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (id %d, role %s, tenant %d)\n", me.Email, me.ID, me.Role, me.TenantID)
			return nil
		},
	}
}
