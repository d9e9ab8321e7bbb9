package commands

// Command to run the bot
// Loads configuration, initializes the Telegram bot and starts the command
// handler plus the periodic health factor monitor
// Implements graceful shutdown on SIGINT/SIGTERM

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"demex-health-bot/bots_monitor"
	"demex-health-bot/internal/clients_api/carbon"
	"demex-health-bot/internal/infra/config"
	logging "demex-health-bot/internal/infra/log"
	"demex-health-bot/internal/monitor"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot with the periodic health factor monitor",
	RunE:  runBot,
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.LogError("Failed to load config", zap.Error(err))
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logging.LogError("Failed to initialize bot", zap.Error(err))
		return fmt.Errorf("failed to initialize bot: %w", err)
	}
	logging.LogSuccess("Bot authorized", zap.String("username", bot.Self.UserName))

	store := monitor.NewStore(cfg.App.UserDataFile)
	if err := store.Load(); err != nil {
		logging.LogError("Failed to load subscriptions", zap.Error(err))
		return fmt.Errorf("failed to load subscriptions: %w", err)
	}

	client := carbon.NewClient(cfg.Carbon.Network, cfg.Carbon.RequestTimeout)
	sender := bots_monitor.NewSender(bot)

	healthMonitor := bots_monitor.NewHealthMonitor(
		sender, store, client, cfg.App.DataDir,
		cfg.App.CheckInterval, cfg.App.FirstCheckDelay)

	handlers := bots_monitor.NewHandlers(
		sender, store, client, healthMonitor,
		cfg.App.DataDir, cfg.App.CheckInterval)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		bots_monitor.RunCommandHandler(ctx, bot, handlers)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		healthMonitor.Run(ctx)
	}()

	logging.LogSuccess("Bot is running", zap.Int("subscriptions", store.Len()))

	<-ctx.Done()
	logging.LogInfo("Shutdown signal received, gracefully stopping...")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.LogSuccess("Stopped gracefully")
	case <-time.After(10 * time.Second):
		logging.LogWarn("Timeout waiting for shutdown, forcing exit")
	}

	return nil
}
