package commands

// One-off health factor lookup from the command line, useful for verifying
// API access without starting the bot

import (
	"context"
	"fmt"
	"time"

	"demex-health-bot/internal/clients_api/carbon"
	"demex-health-bot/internal/monitor"

	"github.com/spf13/cobra"
)

var checkNetwork string

var checkCmd = &cobra.Command{
	Use:   "check <address>",
	Short: "Fetch the current health factor for a Demex address",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkNetwork, "network", "mainnet", "Network: mainnet or testnet")
}

func runCheck(cmd *cobra.Command, args []string) error {
	address := args[0]
	if !monitor.ValidAddress(address) {
		return fmt.Errorf("invalid address %q: Demex addresses must start with %q", address, monitor.AddressPrefix)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	client := carbon.NewClient(checkNetwork, 30)
	healthFactor, err := client.HealthFactor(ctx, address)
	if err != nil {
		return fmt.Errorf("failed to fetch health factor: %w", err)
	}

	fmt.Printf("Health factor for %s: %g\n", address, healthFactor)
	return nil
}
