package commands

import (
	"fmt"
	"os"

	"github.com/commentpilot/commentpilot/internal/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile     string
	apiURL      string
	workspaceID string
	appSecret   string
	outputJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "commentpilot",
	Short: "CommentPilot CLI - Manage comment automation rules",
	Long: `The CommentPilot CLI manages Instagram comment automation rules,
connected accounts, and the automation audit trail from the command line.

Examples:
  commentpilot rules list
  commentpilot rules create --name "Price inquiries" --type comment_dm --keyword price --response "Check your DMs!" --dm "Our price list: ..."
  commentpilot rules disable <rule-id>
  commentpilot logs
  commentpilot simulate --page <page-id> --text "what's the price?"`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initConfig()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.commentpilot.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "CommentPilot API URL")
	rootCmd.PersistentFlags().StringVar(&workspaceID, "workspace", "", "Workspace ID")
	rootCmd.PersistentFlags().StringVar(&appSecret, "app-secret", "", "Meta app secret, used to sign simulated webhook deliveries")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output results in JSON format")

	viper.BindPFlag("api.url", rootCmd.PersistentFlags().Lookup("api-url"))
	viper.BindPFlag("api.workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	viper.BindPFlag("api.app_secret", rootCmd.PersistentFlags().Lookup("app-secret"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".commentpilot")
	}

	viper.SetEnvPrefix("COMMENTPILOT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if !outputJSON {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}

	if apiURL != "" && apiURL != "http://localhost:8080" {
		viper.Set("api.url", apiURL)
	}
	if workspaceID != "" {
		viper.Set("api.workspace", workspaceID)
	}
	if appSecret != "" {
		viper.Set("api.app_secret", appSecret)
	}
}

// newClient builds an API client from the resolved configuration. Commands
// that operate on a workspace require one to be set.
func newClient(requireWorkspace bool) *cli.Client {
	workspace := viper.GetString("api.workspace")
	if requireWorkspace && workspace == "" {
		fmt.Println("❌ No workspace set")
		fmt.Println("💡 Tip: pass --workspace or set COMMENTPILOT_API_WORKSPACE")
		os.Exit(1)
	}

	return cli.NewClient(
		viper.GetString("api.url"),
		workspace,
		viper.GetString("api.app_secret"),
	)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
