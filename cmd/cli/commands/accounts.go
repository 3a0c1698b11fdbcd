package commands

import (
	"fmt"
	"os"

	"github.com/commentpilot/commentpilot/internal/models"
	"github.com/spf13/cobra"
)

var (
	accountPageID    string
	accountUsername  string
	accountToken     string
	accountIsPrimary bool
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage connected social accounts",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the workspace's connected accounts",
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient(true)

		accounts, err := client.ListAccounts()
		if err != nil {
			fmt.Printf("❌ Failed to list accounts: %v\n", err)
			os.Exit(1)
		}

		if outputJSON {
			printJSON(accounts)
			return
		}

		if len(accounts) == 0 {
			fmt.Println("📭 No connected accounts")
			return
		}

		fmt.Printf("\n🔗 %d connected account(s):\n\n", len(accounts))
		for _, a := range accounts {
			primary := ""
			if a.IsPrimary {
				primary = " ⭐ primary"
			}
			fmt.Printf("@%s (%s)%s\n", a.Username, a.Platform, primary)
			fmt.Printf("  Page ID: %s\n", a.PageID)
			fmt.Println()
		}
	},
}

var accountsConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect an Instagram account",
	Long: `Connect an Instagram professional account to the workspace. The page
ID becomes the routing key for inbound webhook events; reconnecting the same
page refreshes its token.`,
	Run: func(cmd *cobra.Command, args []string) {
		client := newClient(true)

		account, err := client.ConnectAccount(&models.ConnectAccountRequest{
			Platform:    models.PlatformInstagram,
			PageID:      accountPageID,
			Username:    accountUsername,
			AccessToken: accountToken,
			IsPrimary:   accountIsPrimary,
		})
		if err != nil {
			fmt.Printf("❌ Failed to connect account: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("✅ Connected @%s (page %s)\n", account.Username, account.PageID)
	},
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsConnectCmd)

	accountsConnectCmd.Flags().StringVar(&accountPageID, "page", "", "Instagram page ID")
	accountsConnectCmd.Flags().StringVar(&accountUsername, "username", "", "Account username")
	accountsConnectCmd.Flags().StringVar(&accountToken, "token", "", "Page access token")
	accountsConnectCmd.Flags().BoolVar(&accountIsPrimary, "primary", false, "Mark as the workspace's primary account")
	accountsConnectCmd.MarkFlagRequired("page")
	accountsConnectCmd.MarkFlagRequired("username")
	accountsConnectCmd.MarkFlagRequired("token")
}
