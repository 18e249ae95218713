package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/whit3rabbit/pymixer/internal/setup"
)

var startBot bool

// setupCmd represents the setup command
var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Collects the Telegram bot token and admin id",
	Long: `Prompts for the bot token and the Telegram id of the administrator and
saves them to the credentials file (bot.credentials_file, default config.json).
When the file already exists you can reuse it instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("configuration not loaded")
		}
		cmd.SilenceUsage = true

		if _, err := setup.Run(cmd.InOrStdin(), cmd.OutOrStdout(), cfg.Bot.CredentialsFile); err != nil {
			return fmt.Errorf("setup failed: %w", err)
		}
		if !startBot {
			fmt.Fprintln(cmd.OutOrStdout(), "Ready to run the bot: pymixer bot")
			return nil
		}
		return botCmd.RunE(cmd, nil)
	},
}

func init() {
	setupCmd.Flags().BoolVar(&startBot, "start", false, "Start the bot once the credentials are saved")
}
