package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	simPageID    string
	simMediaID   string
	simCommentID string
	simUserID    string
	simUsername  string
	simText      string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Send a synthetic comment through the webhook endpoint",
	Long: `Send a synthetic comment delivery to a running server, exercising the
full pipeline: signature check, dedup, account resolution, rule matching,
and reply dispatch. Check the result with 'commentpilot logs'.

Examples:
  commentpilot simulate --page 17841400000000000 --text "what's the price?"
  commentpilot simulate --page 17841400000000000 --media m123 --username shopper --text "more info please"`,
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient(false)

		if err := client.HealthCheck(); err != nil {
			fmt.Printf("❌ API health check failed: %v\n", err)
			fmt.Println("💡 Tip: Make sure the API server is running")
			os.Exit(1)
		}

		commentID := simCommentID
		if commentID == "" {
			commentID = "sim_" + uuid.New().String()
		}

		if err := client.SimulateComment(simPageID, commentID, simMediaID, simUserID, simUsername, simText); err != nil {
			fmt.Printf("❌ Simulation failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("✅ Delivery accepted")
		fmt.Printf("   Comment %s on page %s: %q\n", commentID, simPageID, simText)
		fmt.Println("\n📖 Processing is asynchronous; check the outcome:")
		fmt.Println("  commentpilot logs")

		// Brief pause so an immediate follow-up 'logs' call sees the result.
		time.Sleep(100 * time.Millisecond)
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVar(&simPageID, "page", "", "Page ID the comment arrives for")
	simulateCmd.Flags().StringVar(&simMediaID, "media", "sim_media", "Media ID the comment is on")
	simulateCmd.Flags().StringVar(&simCommentID, "comment", "", "Comment ID (generated when omitted)")
	simulateCmd.Flags().StringVar(&simUserID, "user", "sim_user", "Commenting user's ID")
	simulateCmd.Flags().StringVar(&simUsername, "username", "simulated_user", "Commenting user's username")
	simulateCmd.Flags().StringVar(&simText, "text", "", "Comment text")
	simulateCmd.MarkFlagRequired("page")
	simulateCmd.MarkFlagRequired("text")
}
