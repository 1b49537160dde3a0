package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "Manage approval requests",
	Long: `List, inspect, and resolve deferred routing decisions.

Examples:
  pulsarr approvals list --status pending
  pulsarr approvals show 42
  pulsarr approvals approve 42 --by admin --notes "looks fine"
  pulsarr approvals reject 42 --by admin`,
}

var approvalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List approval requests",
	RunE:  runApprovalsListCmd,
}

var approvalsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one approval request with its event history",
	Args:  cobra.ExactArgs(1),
	RunE:  runApprovalsShowCmd,
}

var approvalsApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a pending request and replay its acquisition",
	Args:  cobra.ExactArgs(1),
	RunE:  runApprovalsApproveCmd,
}

var approvalsRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a pending request",
	Args:  cobra.ExactArgs(1),
	RunE:  runApprovalsRejectCmd,
}

var approvalsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an approval request",
	Args:  cobra.ExactArgs(1),
	RunE:  runApprovalsDeleteCmd,
}

func init() {
	rootCmd.AddCommand(approvalsCmd)
	approvalsCmd.AddCommand(approvalsListCmd)
	approvalsCmd.AddCommand(approvalsShowCmd)
	approvalsCmd.AddCommand(approvalsApproveCmd)
	approvalsCmd.AddCommand(approvalsRejectCmd)
	approvalsCmd.AddCommand(approvalsDeleteCmd)

	approvalsListCmd.Flags().StringP("status", "s", "", "Filter by status (pending, approved, rejected, expired)")
	approvalsListCmd.Flags().Int64("user", 0, "Filter by user ID")
	approvalsListCmd.Flags().IntP("limit", "n", 50, "Number of requests to show")

	approvalsApproveCmd.Flags().String("by", "", "Name of the approving admin (required)")
	approvalsApproveCmd.Flags().String("notes", "", "Optional resolution notes")
	_ = approvalsApproveCmd.MarkFlagRequired("by")

	approvalsRejectCmd.Flags().String("by", "", "Name of the rejecting admin (required)")
	approvalsRejectCmd.Flags().String("notes", "", "Optional resolution notes")
	_ = approvalsRejectCmd.MarkFlagRequired("by")
}

func parseApprovalID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid approval ID: %s", arg)
	}
	return id, nil
}

func runApprovalsListCmd(cmd *cobra.Command, args []string) error {
	status, _ := cmd.Flags().GetString("status")
	userID, _ := cmd.Flags().GetInt64("user")
	limit, _ := cmd.Flags().GetInt("limit")

	var userFilter *int64
	if cmd.Flags().Changed("user") {
		userFilter = &userID
	}

	client := NewClient(serverURL)
	approvals, err := client.Approvals(status, userFilter, limit)
	if err != nil {
		return fmt.Errorf("failed to fetch approvals: %w", err)
	}

	if jsonOutput {
		printJSON(approvals)
		return nil
	}

	if len(approvals) == 0 {
		fmt.Println("No approval requests")
		return nil
	}

	fmt.Printf("Approval Requests (%d):\n\n", len(approvals))
	fmt.Printf("  %-5s %-6s %-9s %-30s %-16s %-12s\n", "ID", "USER", "STATUS", "TITLE", "TRIGGER", "AGE")
	fmt.Println("  " + strings.Repeat("-", 82))

	for _, a := range approvals {
		created, _ := time.Parse(time.RFC3339, a.CreatedAt)
		title := a.ContentTitle
		if len(title) > 30 {
			title = title[:27] + "..."
		}
		fmt.Printf("  %-5d %-6d %-9s %-30s %-16s %-12s\n",
			a.ID, a.UserID, a.Status, title, a.TriggeredBy, formatTimeAgo(created))
	}

	return nil
}

func runApprovalsShowCmd(cmd *cobra.Command, args []string) error {
	id, err := parseApprovalID(args[0])
	if err != nil {
		return err
	}

	client := NewClient(serverURL)
	req, err := client.Approval(id)
	if err != nil {
		return fmt.Errorf("failed to fetch approval: %w", err)
	}

	// History is optional: the server may run without an event log.
	history, histErr := client.ApprovalHistory(id)

	if jsonOutput {
		out := map[string]any{"request": req}
		if histErr == nil {
			out["history"] = history
		}
		printJSON(out)
		return nil
	}

	printApproval(req)

	if histErr == nil && len(history) > 0 {
		fmt.Println("\nHistory:")
		for _, e := range history {
			t, _ := time.Parse(time.RFC3339, e.OccurredAt)
			fmt.Printf("  %-12s %s\n", formatTimeAgo(t), e.EventType)
		}
	}

	return nil
}

func printApproval(a *ApprovalResponse) {
	fmt.Printf("Approval #%d (%s)\n\n", a.ID, a.Status)
	fmt.Printf("  Title:     %s (%s)\n", a.ContentTitle, a.ContentType)
	fmt.Printf("  User:      %d\n", a.UserID)
	fmt.Printf("  Trigger:   %s\n", a.TriggeredBy)
	if a.ApprovalReason != "" {
		fmt.Printf("  Reason:    %s\n", a.ApprovalReason)
	}
	if proposed := a.ProposedDecision.Approval; proposed != nil && proposed.ProposedRouting != nil {
		r := proposed.ProposedRouting
		fmt.Printf("  Proposed:  instance %d", r.InstanceID)
		if r.RuleName != "" {
			fmt.Printf(" (rule %q)", r.RuleName)
		}
		fmt.Println()
	}
	if a.ApprovedBy != "" {
		fmt.Printf("  Resolved:  by %s\n", a.ApprovedBy)
	}
	if a.ApprovalNotes != "" {
		fmt.Printf("  Notes:     %s\n", a.ApprovalNotes)
	}
	if a.ExpiresAt != nil {
		fmt.Printf("  Expires:   %s\n", *a.ExpiresAt)
	}
	fmt.Printf("  Created:   %s\n", a.CreatedAt)
}

func runApprovalsApproveCmd(cmd *cobra.Command, args []string) error {
	id, err := parseApprovalID(args[0])
	if err != nil {
		return err
	}
	by, _ := cmd.Flags().GetString("by")
	notes, _ := cmd.Flags().GetString("notes")

	client := NewClient(serverURL)
	req, err := client.Approve(id, by, notes)
	if err != nil {
		return fmt.Errorf("approve failed: %w", err)
	}

	if jsonOutput {
		printJSON(req)
		return nil
	}

	fmt.Printf("Approved #%d: %s\n", req.ID, req.ContentTitle)
	return nil
}

func runApprovalsRejectCmd(cmd *cobra.Command, args []string) error {
	id, err := parseApprovalID(args[0])
	if err != nil {
		return err
	}
	by, _ := cmd.Flags().GetString("by")
	notes, _ := cmd.Flags().GetString("notes")

	client := NewClient(serverURL)
	req, err := client.Reject(id, by, notes)
	if err != nil {
		return fmt.Errorf("reject failed: %w", err)
	}

	if jsonOutput {
		printJSON(req)
		return nil
	}

	fmt.Printf("Rejected #%d: %s\n", req.ID, req.ContentTitle)
	return nil
}

func runApprovalsDeleteCmd(cmd *cobra.Command, args []string) error {
	id, err := parseApprovalID(args[0])
	if err != nil {
		return err
	}

	client := NewClient(serverURL)
	if err := client.DeleteApproval(id); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}

	fmt.Printf("Deleted approval #%d\n", id)
	return nil
}
