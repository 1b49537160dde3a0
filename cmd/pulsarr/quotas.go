package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var quotasCmd = &cobra.Command{
	Use:   "quotas",
	Short: "Manage user quotas",
	Long: `Inspect and configure per-user request quotas.

Examples:
  pulsarr quotas status 7 --type movie
  pulsarr quotas set 7 --type movie --quota daily --limit 5
  pulsarr quotas set 7 --type show --quota weekly_rolling --limit 10 --bypass
  pulsarr quotas clear 7 --type movie`,
}

var quotasStatusCmd = &cobra.Command{
	Use:   "status <user-id>",
	Short: "Show a user's current quota standing",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuotasStatusCmd,
}

var quotasSetCmd = &cobra.Command{
	Use:   "set <user-id>",
	Short: "Create or replace a user's quota",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuotasSetCmd,
}

var quotasClearCmd = &cobra.Command{
	Use:   "clear <user-id>",
	Short: "Remove a user's quota",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuotasClearCmd,
}

func init() {
	rootCmd.AddCommand(quotasCmd)
	quotasCmd.AddCommand(quotasStatusCmd)
	quotasCmd.AddCommand(quotasSetCmd)
	quotasCmd.AddCommand(quotasClearCmd)

	quotasStatusCmd.Flags().StringP("type", "t", "movie", "Content type (movie or show)")

	quotasSetCmd.Flags().StringP("type", "t", "movie", "Content type (movie or show)")
	quotasSetCmd.Flags().String("quota", "daily", "Quota window (daily, weekly_rolling, monthly)")
	quotasSetCmd.Flags().Int("limit", 0, "Maximum requests per window (required)")
	quotasSetCmd.Flags().Bool("bypass", false, "Route instead of deferring when the quota is exceeded")
	_ = quotasSetCmd.MarkFlagRequired("limit")

	quotasClearCmd.Flags().StringP("type", "t", "movie", "Content type (movie or show)")
}

func parseUserID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user ID: %s", arg)
	}
	return id, nil
}

func runQuotasStatusCmd(cmd *cobra.Command, args []string) error {
	userID, err := parseUserID(args[0])
	if err != nil {
		return err
	}
	contentType, _ := cmd.Flags().GetString("type")

	client := NewClient(serverURL)
	status, err := client.QuotaStatus(userID, contentType)
	if err != nil {
		return fmt.Errorf("failed to fetch quota status: %w", err)
	}

	if jsonOutput {
		printJSON(status)
		return nil
	}

	if status.Unlimited {
		fmt.Printf("User %d has no %s quota (unlimited)\n", userID, contentType)
		return nil
	}

	fmt.Printf("Quota for user %d (%s):\n\n", status.UserID, status.ContentType)
	fmt.Printf("  Window:   %s\n", status.QuotaType)
	fmt.Printf("  Usage:    %d / %d\n", status.CurrentUsage, status.Limit)
	fmt.Printf("  Exceeded: %t\n", status.Exceeded)
	if status.BypassApproval {
		fmt.Println("  Bypass:   enabled (exceeded requests route anyway)")
	}
	if status.ResetDate != "" {
		fmt.Printf("  Resets:   %s\n", status.ResetDate)
	}
	return nil
}

func runQuotasSetCmd(cmd *cobra.Command, args []string) error {
	userID, err := parseUserID(args[0])
	if err != nil {
		return err
	}
	contentType, _ := cmd.Flags().GetString("type")
	quotaType, _ := cmd.Flags().GetString("quota")
	limit, _ := cmd.Flags().GetInt("limit")
	bypass, _ := cmd.Flags().GetBool("bypass")

	client := NewClient(serverURL)
	quota, err := client.SetQuota(userID, contentType, quotaType, limit, bypass)
	if err != nil {
		return fmt.Errorf("failed to set quota: %w", err)
	}

	if jsonOutput {
		printJSON(quota)
		return nil
	}

	fmt.Printf("Set %s quota for user %d: %d per %s window\n",
		quota.ContentType, quota.UserID, quota.Limit, quota.QuotaType)
	return nil
}

func runQuotasClearCmd(cmd *cobra.Command, args []string) error {
	userID, err := parseUserID(args[0])
	if err != nil {
		return err
	}
	contentType, _ := cmd.Flags().GetString("type")

	client := NewClient(serverURL)
	if err := client.ClearQuota(userID, contentType); err != nil {
		return fmt.Errorf("failed to clear quota: %w", err)
	}

	fmt.Printf("Cleared %s quota for user %d\n", contentType, userID)
	return nil
}
