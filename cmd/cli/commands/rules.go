package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/commentpilot/commentpilot/internal/models"
	"github.com/spf13/cobra"
)

var (
	ruleName      string
	ruleType      string
	ruleKeywords  []string
	ruleMediaIDs  []string
	ruleResponses []string
	ruleDMs       []string
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage automation rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the workspace's automation rules",
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient(true)

		result, err := client.ListRules()
		if err != nil {
			fmt.Printf("❌ Failed to list rules: %v\n", err)
			os.Exit(1)
		}

		if outputJSON {
			printJSON(result.Rules)
			return
		}

		if len(result.Rules) == 0 {
			fmt.Println("📭 No rules found")
			fmt.Println("\n💡 Create one:")
			fmt.Println(`  commentpilot rules create --name "Price inquiries" --type comment_dm --keyword price --response "Check your DMs!" --dm "Our price list: ..."`)
			return
		}

		fmt.Printf("\n📋 Found %d rule(s):\n\n", len(result.Rules))
		for _, r := range result.Rules {
			status := "✅ active"
			if !r.IsActive {
				status = "❌ inactive"
			}
			fmt.Printf("%s  %s\n", r.ID, status)
			fmt.Printf("  Name:     %s\n", r.Name)
			fmt.Printf("  Type:     %s\n", r.RuleType)
			fmt.Printf("  Keywords: %s\n", strings.Join(r.Keywords, ", "))
			if len(r.TargetMediaIDs) > 0 {
				fmt.Printf("  Posts:    %s\n", strings.Join(r.TargetMediaIDs, ", "))
			}
			fmt.Println()
		}
	},
}

var rulesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an automation rule",
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient(true)

		rule, err := client.CreateRule(&models.CreateRuleRequest{
			Name:           ruleName,
			RuleType:       models.RuleType(ruleType),
			Keywords:       ruleKeywords,
			TargetMediaIDs: ruleMediaIDs,
			Responses:      ruleResponses,
			DMResponses:    ruleDMs,
		})
		if err != nil {
			fmt.Printf("❌ Failed to create rule: %v\n", err)
			os.Exit(1)
		}

		if outputJSON {
			printJSON(rule)
			return
		}

		fmt.Printf("✅ Rule created: %s\n", rule.ID)
	},
}

var rulesGetCmd = &cobra.Command{
	Use:   "get <rule-id>",
	Short: "Show a rule",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient(true)

		rule, err := client.GetRule(args[0])
		if err != nil {
			fmt.Printf("❌ Failed to get rule: %v\n", err)
			os.Exit(1)
		}

		printJSON(rule)
	},
}

var rulesEnableCmd = &cobra.Command{
	Use:   "enable <rule-id>",
	Short: "Activate a rule",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient(true)
		if err := client.EnableRule(args[0]); err != nil {
			fmt.Printf("❌ Failed to enable rule: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✅ Rule enabled")
	},
}

var rulesDisableCmd = &cobra.Command{
	Use:   "disable <rule-id>",
	Short: "Deactivate a rule",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient(true)
		if err := client.DisableRule(args[0]); err != nil {
			fmt.Printf("❌ Failed to disable rule: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✅ Rule disabled")
	},
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <rule-id>",
	Short: "Delete a rule",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient(true)
		if err := client.DeleteRule(args[0]); err != nil {
			fmt.Printf("❌ Failed to delete rule: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("🗑️  Rule deleted")
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesCreateCmd)
	rulesCmd.AddCommand(rulesGetCmd)
	rulesCmd.AddCommand(rulesEnableCmd)
	rulesCmd.AddCommand(rulesDisableCmd)
	rulesCmd.AddCommand(rulesDeleteCmd)

	rulesCreateCmd.Flags().StringVar(&ruleName, "name", "", "Rule name")
	rulesCreateCmd.Flags().StringVar(&ruleType, "type", "comment_dm", "Rule type: comment_dm, comment_only, dm_only")
	rulesCreateCmd.Flags().StringSliceVar(&ruleKeywords, "keyword", nil, "Trigger keyword (repeatable)")
	rulesCreateCmd.Flags().StringSliceVar(&ruleMediaIDs, "media", nil, "Target media ID (repeatable); omit to match all posts")
	rulesCreateCmd.Flags().StringSliceVar(&ruleResponses, "response", nil, "Public comment response (repeatable)")
	rulesCreateCmd.Flags().StringSliceVar(&ruleDMs, "dm", nil, "Private reply response (repeatable)")
	rulesCreateCmd.MarkFlagRequired("name")
	rulesCreateCmd.MarkFlagRequired("keyword")
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("❌ Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}
