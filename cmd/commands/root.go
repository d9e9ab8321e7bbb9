package commands

// Root command for the CLI
// Registers the bot and check subcommands

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "demex-health-bot",
	Short: "Demex Health Factor Monitor - Telegram bot for Carbon CDP health factor alerts",
	Long: `Demex Health Factor Monitor is a Telegram bot that periodically polls the
Carbon CDP API for the health factor of subscribed Demex addresses and pushes
an alert when a factor drops below the subscriber's threshold.`,
	Version: "1.0.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(botCmd)
	rootCmd.AddCommand(checkCmd)
}
