package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var logLimit int

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the automation audit trail",
	Long: `Show the workspace's automation log, newest first. Every attempted
reply appears here, including failures.

Examples:
  commentpilot logs
  commentpilot logs --limit 50 --json`,
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient(true)

		result, err := client.ListLogs(logLimit)
		if err != nil {
			fmt.Printf("❌ Failed to list logs: %v\n", err)
			os.Exit(1)
		}

		if outputJSON {
			printJSON(result.Logs)
			return
		}

		if len(result.Logs) == 0 {
			fmt.Println("📭 No automation activity yet")
			return
		}

		fmt.Printf("\n📜 %d of %d log entries:\n\n", len(result.Logs), result.Total)
		for _, entry := range result.Logs {
			status := "✅"
			if entry.Status == "failed" {
				status = "❌"
			}
			fmt.Printf("%s %s  %s → @%s\n", status, entry.CreatedAt.Format("2006-01-02 15:04:05"), entry.ActionType, entry.TargetUsername)
			fmt.Printf("   Trigger:  %s\n", truncate(entry.TriggerText, 70))
			fmt.Printf("   Response: %s\n", truncate(entry.ResponseText, 70))
			if entry.Error != nil {
				fmt.Printf("   Error:    %s\n", *entry.Error)
			}
			fmt.Println()
		}
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().IntVar(&logLimit, "limit", 20, "Maximum entries to show")
}
