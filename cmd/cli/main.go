package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &clientOptions{}

	rootCmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Marketplace billing ledger CLI",
		Long:          `Operator tooling for the billing ledger API: withdrawal review, balance adjustments, reconciliation and database migrations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.baseURL, "url", envOr("LEDGER_URL", "http://localhost:8080"), "Base URL of the billing API")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	flags.StringVar(&opts.token, "token", os.Getenv("LEDGER_TOKEN"), "Bearer token (takes precedence over --as)")
	flags.StringVar(&opts.principal, "as", envOr("LEDGER_PRINCIPAL", "ops"), "Principal ID sent in identity headers")
	flags.StringVar(&opts.role, "role", "admin", "Role sent in identity headers")

	rootCmd.AddCommand(
		newCommissionCmd(opts),
		newOverviewCmd(opts),
		newAccountCmd(opts),
		newWithdrawalsCmd(opts),
		newAdjustCmd(opts),
		newReconcileCmd(opts),
		newAuditCmd(opts),
		newTokenCmd(),
		newMigrateCmd(),
	)

	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
