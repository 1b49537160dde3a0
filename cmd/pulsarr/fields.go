package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List rule-authoring fields by evaluator family",
	RunE:  runFieldsCmd,
}

var instancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "List configured target instances",
	RunE:  runInstancesCmd,
}

func init() {
	rootCmd.AddCommand(fieldsCmd)
	rootCmd.AddCommand(instancesCmd)
}

func runFieldsCmd(cmd *cobra.Command, args []string) error {
	client := NewClient(serverURL)
	families, err := client.Fields()
	if err != nil {
		return fmt.Errorf("failed to fetch fields: %w", err)
	}

	if jsonOutput {
		printJSON(families)
		return nil
	}

	for _, fam := range families {
		fmt.Printf("%s (priority %d)\n", fam.Name, fam.Priority)
		if fam.Description != "" {
			fmt.Printf("  %s\n", fam.Description)
		}
		for _, f := range fam.Fields {
			fmt.Printf("  %-16s operators: %s\n", f.Field, strings.Join(f.Operators, ", "))
		}
		fmt.Println()
	}

	return nil
}

func runInstancesCmd(cmd *cobra.Command, args []string) error {
	client := NewClient(serverURL)
	instances, err := client.Instances()
	if err != nil {
		return fmt.Errorf("failed to fetch instances: %w", err)
	}

	if jsonOutput {
		printJSON(instances)
		return nil
	}

	if len(instances) == 0 {
		fmt.Println("No instances configured")
		return nil
	}

	fmt.Printf("Instances (%d):\n\n", len(instances))
	fmt.Printf("  %-5s %-20s %-8s %-30s %-8s %-8s\n", "ID", "NAME", "TYPE", "URL", "ENABLED", "DEFAULT")
	fmt.Println("  " + strings.Repeat("-", 84))

	for _, inst := range instances {
		fmt.Printf("  %-5d %-20s %-8s %-30s %-8t %-8t\n",
			inst.ID, inst.Name, inst.Type, inst.BaseURL, inst.Enabled, inst.Default)
	}

	return nil
}
