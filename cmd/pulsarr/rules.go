package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect routing rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List routing rules",
	RunE:  runRulesListCmd,
}

var rulesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one routing rule with its criteria",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesShowCmd,
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a routing rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesDeleteCmd,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesShowCmd)
	rulesCmd.AddCommand(rulesDeleteCmd)
}

func parseRuleID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rule ID: %s", arg)
	}
	return id, nil
}

func runRulesListCmd(cmd *cobra.Command, args []string) error {
	client := NewClient(serverURL)
	rules, err := client.Rules()
	if err != nil {
		return fmt.Errorf("failed to fetch rules: %w", err)
	}

	if jsonOutput {
		printJSON(rules)
		return nil
	}

	if len(rules) == 0 {
		fmt.Println("No routing rules")
		return nil
	}

	fmt.Printf("Routing Rules (%d):\n\n", len(rules))
	fmt.Printf("  %-5s %-24s %-12s %-8s %-8s %-8s %-8s\n",
		"ID", "NAME", "FAMILY", "TARGET", "PRIO", "ENABLED", "APPROVAL")
	fmt.Println("  " + strings.Repeat("-", 78))

	for _, r := range rules {
		name := r.Name
		if len(name) > 24 {
			name = name[:21] + "..."
		}
		fmt.Printf("  %-5d %-24s %-12s %-8s %-8d %-8t %-8t\n",
			r.ID, name, r.Type, r.TargetType, r.Priority, r.Enabled, r.RequireApproval)
	}

	return nil
}

func runRulesShowCmd(cmd *cobra.Command, args []string) error {
	id, err := parseRuleID(args[0])
	if err != nil {
		return err
	}

	client := NewClient(serverURL)
	rule, err := client.Rule(id)
	if err != nil {
		return fmt.Errorf("failed to fetch rule: %w", err)
	}

	if jsonOutput {
		printJSON(rule)
		return nil
	}

	fmt.Printf("Rule #%d: %s\n\n", rule.ID, rule.Name)
	fmt.Printf("  Family:    %s\n", rule.Type)
	fmt.Printf("  Target:    %s instance %d\n", rule.TargetType, rule.TargetInstanceID)
	fmt.Printf("  Priority:  %d\n", rule.Priority)
	fmt.Printf("  Enabled:   %t\n", rule.Enabled)
	fmt.Printf("  Approval:  %t\n", rule.RequireApproval)
	if rule.QualityProfile != "" {
		fmt.Printf("  Profile:   %s\n", rule.QualityProfile)
	}
	if rule.RootFolder != "" {
		fmt.Printf("  Folder:    %s\n", rule.RootFolder)
	}
	if len(rule.Tags) > 0 {
		fmt.Printf("  Tags:      %s\n", strings.Join(rule.Tags, ", "))
	}
	fmt.Printf("  Criteria:  %s\n", string(rule.Criteria))
	return nil
}

func runRulesDeleteCmd(cmd *cobra.Command, args []string) error {
	id, err := parseRuleID(args[0])
	if err != nil {
		return err
	}

	client := NewClient(serverURL)
	if err := client.DeleteRule(id); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}

	fmt.Printf("Deleted rule #%d\n", id)
	return nil
}
