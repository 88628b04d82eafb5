// Command webhookctl drives the gateway's operator API: webhook status and
// registration, event simulations and bearer token invalidation.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	server  string
	secret  string
	subject string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "webhookctl",
		Short:         "Operate the PayPal webhook gateway",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.server, "server", envOr("WEBHOOKCTL_SERVER", "http://localhost:8080"), "Gateway base URL")
	rootCmd.PersistentFlags().StringVar(&opts.secret, "secret", os.Getenv("ADMIN_JWT_SECRET"), "Operator JWT secret (ADMIN_JWT_SECRET)")
	rootCmd.PersistentFlags().StringVar(&opts.subject, "subject", envOr("USER", "webhookctl"), "Subject recorded in the operator token")

	rootCmd.AddCommand(statusCmd(opts))
	rootCmd.AddCommand(registerCmd(opts))
	rootCmd.AddCommand(unregisterCmd(opts))
	rootCmd.AddCommand(simulateCmd(opts))
	rootCmd.AddCommand(tokenCmd(opts))

	return rootCmd
}

func statusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the webhook subscription, retry and simulation state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(opts).call(cmd.Context(), cmd.OutOrStdout(), http.MethodGet, "/api/webhooks")
		},
	}
}

func registerCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Register the webhook with PayPal, replacing any registration for the same URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(opts).call(cmd.Context(), cmd.OutOrStdout(), http.MethodPost, "/api/webhooks/register")
		},
	}
}

func unregisterCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "unregister",
		Short: "Remove the webhook from PayPal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(opts).call(cmd.Context(), cmd.OutOrStdout(), http.MethodDelete, "/api/webhooks")
		},
	}
}

func simulateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulated event deliveries",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Ask PayPal to deliver a simulated event",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(opts).call(cmd.Context(), cmd.OutOrStdout(), http.MethodPost, "/api/webhooks/simulation")
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether the simulated event has arrived",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(opts).call(cmd.Context(), cmd.OutOrStdout(), http.MethodGet, "/api/webhooks/simulation")
		},
	})

	return cmd
}

func tokenCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "PayPal bearer token cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "invalidate",
		Short: "Drop the cached bearer token so the next call fetches a new one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(opts).call(cmd.Context(), cmd.OutOrStdout(), http.MethodDelete, "/api/auth/token")
		},
	})

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
