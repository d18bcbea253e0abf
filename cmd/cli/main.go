package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/clubmarket/internal/adapter/http/dto"
	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/infrastructure/auth"
	"github.com/iho/clubmarket/internal/infrastructure/logger"
	"github.com/iho/clubmarket/internal/infrastructure/postgres"
)

// client talks to the clubmarket API on behalf of one identity.
type client struct {
	baseURL string
	token   string
	userID  string
	clubID  string
	role    string
	http    *http.Client
}

func (c *client) do(method, path string, body any) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, strings.TrimRight(c.baseURL, "/")+path, reader)
	if err != nil {
		return nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}
	if c.clubID != "" {
		req.Header.Set("X-Club-ID", c.clubID)
	}
	if c.role != "" {
		req.Header.Set("X-Role", c.role)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return raw, resp.StatusCode, nil
}

// call performs a request and decodes a 2xx JSON body into out.
func (c *client) call(method, path string, body, out any) error {
	raw, status, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		var apiErr dto.ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			if apiErr.Message != "" {
				return fmt.Errorf("%s (status %d): %s", apiErr.Error, status, apiErr.Message)
			}
			return fmt.Errorf("%s (status %d)", apiErr.Error, status)
		}
		return fmt.Errorf("request failed (status %d): %s", status, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &client{}
	var timeout time.Duration

	rootCmd := &cobra.Command{
		Use:           "clubmarket-cli",
		Short:         "ClubMarket CLI tool",
		Long:          `A command line interface for operating the ClubMarket transfer API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.http = &http.Client{Timeout: timeout}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.baseURL, "url", "http://localhost:8080", "Base URL of the ClubMarket API")
	flags.DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	flags.StringVar(&c.token, "token", os.Getenv("CLUBMARKET_TOKEN"), "Bearer token")
	flags.StringVar(&c.userID, "user", "cli", "User id sent when authentication is disabled")
	flags.StringVar(&c.clubID, "club", "", "Club id sent when authentication is disabled")
	flags.StringVar(&c.role, "role", string(domain.RoleAdmin), "Role sent when authentication is disabled")

	rootCmd.AddCommand(
		newMarketCmd(c),
		newOffersCmd(c),
		newWalletCmd(c),
		newLedgerCmd(c),
		newRepairCmd(c),
		newTokenCmd(),
		newMigrateCmd(),
	)
	return rootCmd
}

func newMarketCmd(c *client) *cobra.Command {
	marketCmd := &cobra.Command{
		Use:   "market",
		Short: "Transfer window operations",
	}

	printWindow := func(cmd *cobra.Command, resp dto.MarketResponse) {
		state := "closed"
		if resp.Open {
			state = "open"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Market is %s\n", state)
	}

	setWindow := func(open bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			var resp dto.MarketResponse
			if err := c.call(http.MethodPut, "/api/v1/market", dto.SetMarketRequest{Open: &open}, &resp); err != nil {
				return err
			}
			printWindow(cmd, resp)
			return nil
		}
	}

	marketCmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show whether the transfer window is open",
			RunE: func(cmd *cobra.Command, args []string) error {
				var resp dto.MarketResponse
				if err := c.call(http.MethodGet, "/api/v1/market", nil, &resp); err != nil {
					return err
				}
				printWindow(cmd, resp)
				return nil
			},
		},
		&cobra.Command{Use: "open", Short: "Open the transfer window", RunE: setWindow(true)},
		&cobra.Command{Use: "close", Short: "Close the transfer window", RunE: setWindow(false)},
	)
	return marketCmd
}

func newOffersCmd(c *client) *cobra.Command {
	offersCmd := &cobra.Command{
		Use:   "offers",
		Short: "Offer operations",
	}

	var playerID, clubID, status string
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List offers",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if playerID != "" {
				q.Set("player_id", playerID)
			}
			if clubID != "" {
				q.Set("club_id", clubID)
			}
			if status != "" {
				q.Set("status", status)
			}
			q.Set("limit", strconv.Itoa(limit))

			var resp dto.ListOffersResponse
			if err := c.call(http.MethodGet, "/api/v1/offers?"+q.Encode(), nil, &resp); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPLAYER\tSELLER\tBUYER\tAMOUNT\tSTATUS")
			for _, o := range resp.Offers {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					o.ID, truncate(o.PlayerName, 24), o.SellerClubID, o.BuyerClubID, o.Amount, o.Status)
			}
			return w.Flush()
		},
	}
	listCmd.Flags().StringVar(&playerID, "player", "", "Filter by player id")
	listCmd.Flags().StringVar(&clubID, "club-id", "", "Filter by club on either side")
	listCmd.Flags().StringVar(&status, "status", "", "Filter by status")
	listCmd.Flags().IntVar(&limit, "limit", domain.DefaultPageSize, "Maximum offers to list")

	offersCmd.AddCommand(listCmd)
	return offersCmd
}

func newWalletCmd(c *client) *cobra.Command {
	walletCmd := &cobra.Command{
		Use:   "wallet",
		Short: "Club wallet operations",
	}

	balanceCmd := &cobra.Command{
		Use:   "balance <account-id>",
		Short: "Show an account balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.WalletResponse
			if err := c.call(http.MethodGet, "/api/v1/wallets/"+url.PathEscape(args[0]), nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d (version %d)\n", resp.AccountID, resp.Balance, resp.Version)
			return nil
		},
	}

	var limit int
	historyCmd := &cobra.Command{
		Use:   "history <account-id>",
		Short: "List account transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/v1/wallets/%s/transactions?limit=%d", url.PathEscape(args[0]), limit)
			var resp dto.ListWalletTransactionsResponse
			if err := c.call(http.MethodGet, path, nil, &resp); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tTYPE\tCATEGORY\tREASON\tEFFECT\tBALANCE")
			for _, tx := range resp.Transactions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%+d\t%d\n",
					tx.CreatedAt.Format(time.RFC3339), tx.Type, tx.Category, truncate(tx.Reason, 32), tx.Effect, tx.BalanceAfter)
			}
			return w.Flush()
		},
	}
	historyCmd.Flags().IntVar(&limit, "limit", domain.DefaultPageSize, "Maximum transactions to list")

	var output string
	exportCmd := &cobra.Command{
		Use:   "export <account-id>",
		Short: "Export account transactions as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, status, err := c.do(http.MethodGet, "/api/v1/wallets/"+url.PathEscape(args[0])+"/transactions.csv", nil)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("export failed (status %d): %s", status, strings.TrimSpace(string(raw)))
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(raw)
				return err
			}
			return os.WriteFile(output, raw, 0o644)
		},
	}
	exportCmd.Flags().StringVarP(&output, "output", "o", "", "Write CSV to this file instead of stdout")

	reconcileCmd := &cobra.Command{
		Use:   "reconcile <account-id>",
		Short: "Compare an account balance with its transaction history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result dto.ReconciliationResponse
			if err := c.call(http.MethodGet, "/api/v1/wallets/"+url.PathEscape(args[0])+"/reconcile", nil, &result); err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), result)
			if !result.IsReconciled {
				return fmt.Errorf("account %s is off by %d", result.AccountID, result.Difference)
			}
			return nil
		},
	}

	walletCmd.AddCommand(balanceCmd, historyCmd, exportCmd, reconcileCmd)
	return walletCmd
}

func newLedgerCmd(c *client) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Check every account against its transaction history",
		RunE: func(cmd *cobra.Command, args []string) error {
			var report dto.ReconciliationReportResponse
			if err := c.call(http.MethodGet, "/api/v1/reconcile", nil, &report); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Accounts: %d, reconciled: %d\n", report.TotalAccounts, report.ReconciledAccounts)
			for _, d := range report.Discrepancies {
				fmt.Fprintf(out, "  %s: recorded %d, calculated %d\n", d.AccountID, d.RecordedBalance, d.CalculatedBalance)
			}
			if !report.LedgerConsistent {
				return fmt.Errorf("consistency check FAILED: %d discrepancies", len(report.Discrepancies))
			}
			fmt.Fprintln(out, "Consistency check PASSED")
			return nil
		},
	}

	ledgerCmd.AddCommand(reconcileCmd)
	return ledgerCmd
}

func newRepairCmd(c *client) *cobra.Command {
	repairCmd := &cobra.Command{
		Use:   "repair",
		Short: "Data repair operations",
	}

	var dryRun bool
	offersCmd := &cobra.Command{
		Use:   "offers",
		Short: "Relink open offers whose player id no longer resolves",
		RunE: func(cmd *cobra.Command, args []string) error {
			var report json.RawMessage
			if err := c.call(http.MethodPost, "/api/v1/repair/offers", dto.RepairRequest{DryRun: dryRun}, &report); err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), report)
			return nil
		},
	}
	offersCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without writing")

	repairCmd.AddCommand(offersCmd)
	return repairCmd
}

func newTokenCmd() *cobra.Command {
	var secret, userID, clubID, role string
	var ttl time.Duration

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a development JWT",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("a signing secret is required (--secret or JWT_SECRET)")
			}
			actor := &domain.Actor{UserID: userID, ClubID: clubID, Role: domain.Role(role)}
			if !actor.Role.IsValid() {
				return fmt.Errorf("invalid role %q", role)
			}

			token, err := auth.NewJWTManager(secret, ttl).Generate(actor)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "HMAC signing secret")
	tokenCmd.Flags().StringVar(&userID, "user-id", "dev", "Subject of the token")
	tokenCmd.Flags().StringVar(&clubID, "club-id", "", "Club the token acts for")
	tokenCmd.Flags().StringVar(&role, "as", string(domain.RoleManager), "Role claim")
	tokenCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return tokenCmd
}

func newMigrateCmd() *cobra.Command {
	var databaseURL, path string

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database schema migrations",
	}
	migrateCmd.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	migrateCmd.PersistentFlags().StringVar(&path, "path", "internal/infrastructure/postgres/migrations", "Migrations directory")

	migrator := func() (*postgres.Migrator, error) {
		if databaseURL == "" {
			return nil, fmt.Errorf("a database url is required (--database-url or DATABASE_URL)")
		}
		log := logger.New(logger.Config{Level: "info", Format: "console", Output: os.Stderr, Service: "clubmarket-cli"})
		return postgres.NewMigrator(databaseURL, path, log), nil
	}

	var steps int
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := migrator()
			if err != nil {
				return err
			}
			return m.Down(steps)
		},
	}
	downCmd.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := migrator()
				if err != nil {
					return err
				}
				return m.Up()
			},
		},
		downCmd,
	)
	return migrateCmd
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(w, "failed to encode response: %v\n", err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
