package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &clientOptions{}

	cmd := &cobra.Command{
		Use:           "orderme",
		Short:         "Command line client for the OrderMe auth API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.apiURL, "api", defaultAPIURL(), "API endpoint (env ORDERME_API)")
	cmd.PersistentFlags().StringVar(&opts.tokenPath, "token-file", defaultTokenPath(), "Where the access token is stored")

	cmd.AddCommand(
		newAuthCommand(opts),
		newUsersCommand(opts),
		newKeysCommand(),
	)
	return cmd
}
