package bots_monitor

// Telegram command handling. Every command is stateless: it works off the
// current store contents plus the message's own arguments.

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"demex-health-bot/internal/features/tg_charts"
	logging "demex-health-bot/internal/infra/log"
	"demex-health-bot/internal/monitor"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	invalidAddressReply = "Invalid address. Demex addresses must start with 'swth'."
	fetchFailedReply    = "Unable to fetch health factor. Please try again later."
)

// Handlers routes incoming Telegram updates to the command implementations.
type Handlers struct {
	sender        *Sender
	store         *monitor.Store
	fetcher       healthFetcher
	healthMonitor *HealthMonitor
	dataDir       string
	checkInterval int // seconds, shown in the /start help text
}

func NewHandlers(sender *Sender, store *monitor.Store, fetcher healthFetcher, healthMonitor *HealthMonitor, dataDir string, checkIntervalSec int) *Handlers {
	return &Handlers{
		sender:        sender,
		store:         store,
		fetcher:       fetcher,
		healthMonitor: healthMonitor,
		dataDir:       dataDir,
		checkInterval: checkIntervalSec,
	}
}

// RunCommandHandler consumes the bot's update channel until ctx is cancelled.
func RunCommandHandler(ctx context.Context, bot *tgbotapi.BotAPI, handlers *Handlers) {
	if bot == nil {
		logging.LogWarn("Bot is nil, command handler not started")
		return
	}

	logging.LogInfo("Starting command handler")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			logging.LogInfo("Command handler stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			handlers.HandleMessage(ctx, update.Message)
		}
	}
}

// HandleMessage dispatches one incoming message.
func (h *Handlers) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		command := msg.Command()
		args := strings.Fields(msg.CommandArguments())

		logging.LogDebug("Received command",
			zap.String("command", command),
			zap.Strings("args", args),
			zap.Int64("chatID", chatID))

		switch command {
		case "start", "help":
			h.handleStart(ctx, chatID)
		case "monitor":
			h.handleMonitor(ctx, chatID, args)
		case "check":
			h.handleCheck(ctx, chatID, args)
		case "stop":
			h.handleStop(ctx, chatID)
		case "chart":
			h.handleChart(ctx, chatID, args)
		}
		return
	}

	// Any non-command text is treated as a candidate address
	if text := strings.TrimSpace(msg.Text); text != "" {
		h.handleAddress(ctx, chatID, text)
	}
}

func (h *Handlers) handleStart(ctx context.Context, chatID int64) {
	h.sender.SendText(ctx, chatID,
		"Welcome to the Demex Health Factor Monitor Bot!\n\n"+
			"Here are the available commands:\n"+
			"/start - Show this help message\n"+
			"/check <address> - Check health factor for any address\n"+
			"/monitor <threshold> <address> - Start monitoring an address\n"+
			"/chart [address] - Chart of recorded health factor history\n"+
			"/stop - Stop monitoring\n\n"+
			"You can also paste a Demex address to check its current health factor.\n\n"+
			fmt.Sprintf("The health factor is checked periodically every %d seconds.\n\n", h.checkInterval)+
			"DISCLAIMER: This bot is not officially affiliated with or endorsed by Demex. "+
			"It is an independent tool created for informational purposes only. "+
			"The bot is not guaranteed to be always accurate or available. "+
			"Users should not rely solely on this bot for making financial decisions.")
}

// handleMonitor validates "<threshold> <address>", stores the subscription and
// runs one immediate notification check so the user gets instant feedback
// instead of waiting for the next cycle.
func (h *Handlers) handleMonitor(ctx context.Context, chatID int64, args []string) {
	if len(args) != 2 {
		h.sender.SendText(ctx, chatID, "Usage: /monitor <threshold> <address>")
		return
	}

	threshold, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		h.sender.SendText(ctx, chatID, "Usage: /monitor <threshold> <address>")
		return
	}

	address := args[1]
	if !monitor.ValidAddress(address) {
		h.sender.SendText(ctx, chatID, invalidAddressReply)
		return
	}

	id := formatChatID(chatID)
	sub := monitor.Subscription{Threshold: threshold, Address: address}

	logging.LogInfo("Setting up monitoring",
		zap.String("chatID", id),
		zap.String("address", address),
		zap.Float64("threshold", threshold))

	h.store.Upsert(id, sub)

	h.sender.SendText(ctx, chatID, fmt.Sprintf(
		"Started monitoring address %s with threshold %s", address, formatFactor(threshold)))

	h.healthMonitor.CheckAndNotify(ctx, id, sub)
}

// handleCheck answers a one-off lookup. With an address argument the store is
// never touched; without one the caller's own subscription is reported.
func (h *Handlers) handleCheck(ctx context.Context, chatID int64, args []string) {
	h.sender.SendText(ctx, chatID, "Checking...")

	if len(args) > 0 {
		address := args[0]
		if !monitor.ValidAddress(address) {
			h.sender.SendText(ctx, chatID, invalidAddressReply)
			return
		}

		healthFactor, err := h.fetcher.HealthFactor(ctx, address)
		if err != nil {
			h.sender.SendText(ctx, chatID, fetchFailedReply)
			return
		}
		h.sender.SendText(ctx, chatID, fmt.Sprintf(
			"Health factor for %s: %s", address, formatFactor(healthFactor)))
		return
	}

	sub, ok := h.store.Get(formatChatID(chatID))
	if !ok {
		h.sender.SendText(ctx, chatID, "Usage: /check <address> or set up monitoring first with /monitor")
		return
	}

	healthFactor, err := h.fetcher.HealthFactor(ctx, sub.Address)
	if err != nil {
		h.sender.SendText(ctx, chatID, fmt.Sprintf(
			"Currently monitoring address %s\nThreshold: %s\nUnable to fetch current health factor. Please try again later.",
			sub.Address, formatFactor(sub.Threshold)))
		return
	}

	h.sender.SendText(ctx, chatID, fmt.Sprintf(
		"Currently monitoring address %s\nThreshold: %s\nCurrent health factor: %s",
		sub.Address, formatFactor(sub.Threshold), formatFactor(healthFactor)))
}

func (h *Handlers) handleStop(ctx context.Context, chatID int64) {
	if h.store.Delete(formatChatID(chatID)) {
		h.sender.SendText(ctx, chatID, "Monitoring stopped.")
	} else {
		h.sender.SendText(ctx, chatID, "You were not monitoring any address.")
	}
}

// handleChart renders the recorded history of an address. Without an argument
// the caller's monitored address (and threshold) is used.
func (h *Handlers) handleChart(ctx context.Context, chatID int64, args []string) {
	var address string
	var threshold float64

	if len(args) > 0 {
		address = args[0]
		if !monitor.ValidAddress(address) {
			h.sender.SendText(ctx, chatID, invalidAddressReply)
			return
		}
	} else {
		sub, ok := h.store.Get(formatChatID(chatID))
		if !ok {
			h.sender.SendText(ctx, chatID, "Usage: /chart <address> or set up monitoring first with /monitor")
			return
		}
		address = sub.Address
		threshold = sub.Threshold
	}

	chartPath, err := tg_charts.GenerateHealthChart(h.dataDir, address, threshold)
	if err != nil {
		if errors.Is(err, tg_charts.ErrNotEnoughSamples) {
			h.sender.SendText(ctx, chatID,
				"Not enough recorded history for this address yet. Samples are collected on every periodic check.")
			return
		}
		logging.LogError("Failed to generate health chart",
			zap.String("address", address), zap.Error(err))
		h.sender.SendText(ctx, chatID, "Unable to generate chart. Please try again later.")
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(chartPath))
	photo.Caption = fmt.Sprintf("Health factor history for %s", address)
	if err := h.sender.Send(ctx, photo); err != nil {
		logging.LogError("Failed to send health chart",
			zap.Int64("chatID", chatID), zap.Error(err))
	}
}

// handleAddress performs the same one-off lookup as /check <address> for
// pasted free text. The store is never touched.
func (h *Handlers) handleAddress(ctx context.Context, chatID int64, address string) {
	if !monitor.ValidAddress(address) {
		h.sender.SendText(ctx, chatID, invalidAddressReply)
		return
	}

	healthFactor, err := h.fetcher.HealthFactor(ctx, address)
	if err != nil {
		h.sender.SendText(ctx, chatID, fetchFailedReply)
		return
	}

	h.sender.SendText(ctx, chatID, fmt.Sprintf(
		"Current health factor for %s: %s", address, formatFactor(healthFactor)))

	logging.LogInfo("Health factor check requested", zap.String("address", address))
}

func formatChatID(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
