package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/marketledger/internal/adapter/http/dto"
	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/infrastructure/auth"
	"github.com/iho/marketledger/internal/infrastructure/postgres"
)

// errUnreconciled is returned when a reconciliation run finds drift so
// scripts can alert on the exit code.
var errUnreconciled = errors.New("reconciliation found discrepancies")

func newCommissionCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "commission",
		Short: "Show the active commission split",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, "/commission-config", nil, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
}

func newOverviewCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Show platform totals and the pending withdrawal queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, "/admin/overview", nil, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
}

func newAccountCmd(opts *clientOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Inspect and manage principal accounts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <principal-id>",
		Short: "Show an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, "/admin/accounts/"+url.PathEscape(args[0]), nil, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	})

	var reason string
	suspendCmd := &cobra.Command{
		Use:   "suspend <principal-id>",
		Short: "Block withdrawals for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := newAPIClient(opts).do(cmd.Context(), http.MethodPost,
				"/admin/accounts/"+url.PathEscape(args[0])+"/suspend", nil, dto.SuspendAccountRequest{Reason: reason})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
	suspendCmd.Flags().StringVar(&reason, "reason", "", "Why the account is suspended")
	_ = suspendCmd.MarkFlagRequired("reason")

	cmd.AddCommand(suspendCmd, &cobra.Command{
		Use:   "reactivate <principal-id>",
		Short: "Lift a suspension",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := newAPIClient(opts).do(cmd.Context(), http.MethodPost,
				"/admin/accounts/"+url.PathEscape(args[0])+"/reactivate", nil, struct{}{})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	})

	return cmd
}

func newWithdrawalsCmd(opts *clientOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "withdrawals",
		Aliases: []string{"wd"},
		Short:   "Review and settle withdrawal requests",
	}

	var (
		status    string
		principal string
		limit     int
		page      int
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List withdrawal requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			if status != "" {
				q.Set("status", status)
			}
			if principal != "" {
				q.Set("principal_id", principal)
			}
			q.Set("limit", strconv.Itoa(limit))
			if page > 0 {
				q.Set("page", strconv.Itoa(page))
			}

			body, err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, "/admin/withdrawals", q, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
	listCmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, approved, processing, completed, rejected, cancelled)")
	listCmd.Flags().StringVar(&principal, "principal", "", "Filter by principal ID")
	listCmd.Flags().IntVar(&limit, "limit", 20, "Page size")
	listCmd.Flags().IntVar(&page, "page", 0, "Page number, starting at 1")

	cmd.AddCommand(listCmd, newProcessCmd(opts, true), newProcessCmd(opts, false))

	cmd.AddCommand(&cobra.Command{
		Use:   "processing <withdrawal-id>",
		Short: "Mark an approved payout as in flight",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := newAPIClient(opts).do(cmd.Context(), http.MethodPost,
				"/admin/withdrawals/"+url.PathEscape(args[0])+"/processing", nil, struct{}{})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	})

	var complete dto.CompleteWithdrawalRequest
	completeCmd := &cobra.Command{
		Use:   "complete <withdrawal-id>",
		Short: "Confirm a payout was sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := newAPIClient(opts).do(cmd.Context(), http.MethodPost,
				"/admin/withdrawals/"+url.PathEscape(args[0])+"/complete", nil, complete)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
	completeCmd.Flags().StringVar(&complete.TrackingNumber, "tracking", "", "Payout tracking number")
	completeCmd.Flags().StringVar(&complete.Notes, "notes", "", "Operator notes")
	cmd.AddCommand(completeCmd)

	return cmd
}

// newProcessCmd builds the approve and reject subcommands, which share
// the process endpoint.
func newProcessCmd(opts *clientOptions, approve bool) *cobra.Command {
	var (
		req    dto.ProcessWithdrawalRequest
		arrive string
	)

	use, short := "approve <withdrawal-id>", "Approve a pending request"
	if !approve {
		use, short = "reject <withdrawal-id>", "Reject a pending request and refund the reserve"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Approved = &approve
			if arrive != "" {
				t, err := time.Parse(time.DateOnly, arrive)
				if err != nil {
					return fmt.Errorf("--eta must be YYYY-MM-DD: %w", err)
				}
				req.EstimatedArrivalDate = &t
			}

			body, err := newAPIClient(opts).do(cmd.Context(), http.MethodPost,
				"/admin/withdrawals/"+url.PathEscape(args[0])+"/process", nil, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}

	cmd.Flags().StringVar(&req.Notes, "notes", "", "Operator notes")
	if approve {
		cmd.Flags().StringVar(&req.TransactionHash, "tx-hash", "", "On-chain transaction hash for crypto payouts")
		cmd.Flags().StringVar(&arrive, "eta", "", "Estimated arrival date (YYYY-MM-DD)")
	} else {
		cmd.Flags().StringVar(&req.FailureReason, "reason", "", "Reason shown to the seller")
		_ = cmd.MarkFlagRequired("reason")
	}

	return cmd
}

func newAdjustCmd(opts *clientOptions) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "adjust <principal-id> <amount>",
		Short: "Post a signed manual balance adjustment",
		Example: `  ledgerctl adjust seller-1 25 --reason "goodwill credit"
  ledgerctl adjust --reason "duplicate payout" seller-1 -- -10.50`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}

			body, err := newAPIClient(opts).do(cmd.Context(), http.MethodPost,
				"/admin/adjust-balance/"+url.PathEscape(args[0]), nil,
				dto.AdjustBalanceRequest{Amount: amount, Reason: reason})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded in the audit log")
	_ = cmd.MarkFlagRequired("reason")

	return cmd
}

func newReconcileCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [principal-id]",
		Short: "Compare stored balances with the transaction log",
		Long:  `Reconciles one account, or every account when no principal is given. Exits non-zero when any balance has drifted.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(opts)

			if len(args) == 1 {
				body, err := client.do(cmd.Context(), http.MethodGet, "/admin/reconciliation/"+url.PathEscape(args[0]), nil, nil)
				if err != nil {
					return err
				}
				var result dto.ReconciliationResponse
				if err := json.Unmarshal(body, &result); err != nil {
					return fmt.Errorf("decode response: %w", err)
				}
				if err := printJSON(cmd.OutOrStdout(), body); err != nil {
					return err
				}
				if !result.IsReconciled {
					return errUnreconciled
				}
				return nil
			}

			body, err := client.do(cmd.Context(), http.MethodGet, "/admin/reconciliation", nil, nil)
			if err != nil {
				return err
			}
			var report dto.ReconciliationReportResponse
			if err := json.Unmarshal(body, &report); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			if err := printJSON(cmd.OutOrStdout(), body); err != nil {
				return err
			}
			if len(report.Discrepancies) > 0 || !report.LedgerConsistent {
				return errUnreconciled
			}
			return nil
		},
	}
}

func newAuditCmd(opts *clientOptions) *cobra.Command {
	var (
		userID       string
		action       string
		resourceType string
		resourceID   string
		since        time.Duration
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List audit log entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			for key, v := range map[string]string{
				"user_id":       userID,
				"action":        action,
				"resource_type": resourceType,
				"resource_id":   resourceID,
			} {
				if v != "" {
					q.Set(key, v)
				}
			}
			if since > 0 {
				q.Set("start_date", time.Now().Add(-since).UTC().Format(time.RFC3339))
			}
			q.Set("limit", strconv.Itoa(limit))

			body, err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, "/admin/audit-logs", q, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Filter by acting principal")
	cmd.Flags().StringVar(&action, "action", "", "Filter by action, e.g. withdrawal_approve")
	cmd.Flags().StringVar(&resourceType, "resource-type", "", "Filter by resource type")
	cmd.Flags().StringVar(&resourceID, "resource-id", "", "Filter by resource ID")
	cmd.Flags().DurationVar(&since, "since", 0, "Only entries newer than this, e.g. 24h")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries")

	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		secret  string
		subject string
		email   string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with the server's JWT secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				return errors.New("--secret or JWT_SECRET is required")
			}
			r := domain.Role(role)
			if !r.IsValid() {
				return fmt.Errorf("unknown role %q", role)
			}

			token, err := auth.NewJWTManager(secret, ttl).GenerateWithTTL(&domain.Principal{
				ID:    subject,
				Email: email,
				Role:  r,
			}, ttl)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "HMAC secret")
	cmd.Flags().StringVar(&subject, "subject", "", "Principal ID")
	cmd.Flags().StringVar(&email, "email", "", "Principal email")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleUser), "Principal role")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

func newMigrateCmd() *cobra.Command {
	var (
		databaseURL string
		path        string
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	cmd.PersistentFlags().StringVar(&path, "path", "", "Migrations directory (embedded migrations when empty)")

	logger := func(cmd *cobra.Command) zerolog.Logger {
		return zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).With().Timestamp().Logger()
	}
	requireURL := func() error {
		if databaseURL == "" {
			return errors.New("--database-url or DATABASE_URL is required")
		}
		return nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := requireURL(); err != nil {
					return err
				}
				return postgres.RunMigrations(databaseURL, path, logger(cmd))
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := requireURL(); err != nil {
					return err
				}
				return postgres.RunMigrationsDown(databaseURL, path, logger(cmd))
			},
		},
	)

	return cmd
}
