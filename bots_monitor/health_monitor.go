package bots_monitor

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"demex-health-bot/internal/infra/fs"
	logging "demex-health-bot/internal/infra/log"
	"demex-health-bot/internal/monitor"

	"go.uber.org/zap"
)

// healthFetcher is the part of the Carbon client the monitor needs.
type healthFetcher interface {
	HealthFactor(ctx context.Context, address string) (float64, error)
}

// nitronURL is where subscribers manage their positions.
const nitronURL = "https://app.dem.exchange/nitron"

// HealthMonitor runs the periodic notification cycle: every interval it takes
// a snapshot of the subscriptions, fetches each address's health factor
// concurrently and alerts subscribers whose factor fell below their threshold.
type HealthMonitor struct {
	sender     *Sender
	store      *monitor.Store
	fetcher    healthFetcher
	dataDir    string
	interval   time.Duration
	firstDelay time.Duration

	cycleRunning atomic.Bool
	historyMu    sync.Mutex
}

func NewHealthMonitor(sender *Sender, store *monitor.Store, fetcher healthFetcher, dataDir string, intervalSec, firstDelaySec int) *HealthMonitor {
	return &HealthMonitor{
		sender:     sender,
		store:      store,
		fetcher:    fetcher,
		dataDir:    dataDir,
		interval:   time.Duration(intervalSec) * time.Second,
		firstDelay: time.Duration(firstDelaySec) * time.Second,
	}
}

// Run blocks until ctx is cancelled. The first cycle starts after firstDelay,
// then one cycle per interval. A tick that fires while the previous cycle is
// still running is skipped, never queued.
func (m *HealthMonitor) Run(ctx context.Context) {
	logging.LogInfo("Starting health factor monitor",
		zap.Duration("interval", m.interval),
		zap.Duration("firstDelay", m.firstDelay))

	select {
	case <-ctx.Done():
		return
	case <-time.After(m.firstDelay):
	}
	m.startCycle(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.LogInfo("Health factor monitor stopped")
			return
		case <-ticker.C:
			m.startCycle(ctx)
		}
	}
}

// startCycle launches one cycle unless the previous one is still running.
func (m *HealthMonitor) startCycle(ctx context.Context) {
	if !m.cycleRunning.CompareAndSwap(false, true) {
		logging.LogWarn("Previous check cycle still running, skipping this tick")
		return
	}
	go func() {
		defer m.cycleRunning.Store(false)
		m.RunCycle(ctx)
	}()
}

// RunCycle checks every current subscription once. Per-subscriber work fans
// out concurrently so one slow address does not delay the others; failures
// are isolated per subscriber.
func (m *HealthMonitor) RunCycle(ctx context.Context) {
	snapshot := m.store.Snapshot()
	if len(snapshot) == 0 {
		logging.LogDebug("No subscriptions, skipping check cycle")
		return
	}

	logging.LogInfo("Running check cycle", zap.Int("subscriptions", len(snapshot)))
	start := time.Now()

	var wg sync.WaitGroup
	for chatID, sub := range snapshot {
		wg.Add(1)
		go func(chatID string, sub monitor.Subscription) {
			defer wg.Done()
			m.CheckAndNotify(ctx, chatID, sub)
		}(chatID, sub)
	}
	wg.Wait()

	logging.LogInfo("Check cycle finished",
		zap.Int("subscriptions", len(snapshot)),
		zap.Duration("took", time.Since(start)))
}

// CheckAndNotify fetches the health factor for one subscription and pushes an
// alert if it is below the threshold, or an "unable to fetch" notice when the
// fetch fails. Alerts repeat every cycle while the condition holds; there is
// no deduplication.
func (m *HealthMonitor) CheckAndNotify(ctx context.Context, chatID string, sub monitor.Subscription) {
	id, err := parseChatID(chatID)
	if err != nil {
		logging.LogError("Invalid chat id in store", zap.String("chatID", chatID), zap.Error(err))
		return
	}

	healthFactor, err := m.fetcher.HealthFactor(ctx, sub.Address)
	if err != nil {
		logging.LogError("Failed to fetch health factor for subscriber",
			zap.String("chatID", chatID),
			zap.String("address", sub.Address),
			zap.Error(err))
		m.sender.SendText(ctx, id, fmt.Sprintf(
			"Unable to fetch health factor for %s. Please check the logs for more information.", sub.Address))
		return
	}

	m.recordSample(sub.Address, healthFactor)

	if healthFactor < sub.Threshold {
		m.sender.SendText(ctx, id, fmt.Sprintf(
			"Alert: Health factor for %s is %s, which is below your threshold of %s!\nCheck your position here: %s",
			sub.Address, formatFactor(healthFactor), formatFactor(sub.Threshold), nitronURL))
	}
}

// recordSample appends one reading to the history file, serialized because
// cycle fan-out is concurrent and the history file is rewritten wholesale.
func (m *HealthMonitor) recordSample(address string, healthFactor float64) {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	if err := fs.AppendHealthSample(m.dataDir, address, healthFactor); err != nil {
		logging.LogWarn("Failed to record health sample",
			zap.String("address", address), zap.Error(err))
	}
}

func parseChatID(chatID string) (int64, error) {
	return strconv.ParseInt(chatID, 10, 64)
}

// formatFactor prints a health factor without trailing zero noise (1.5, not 1.500000).
func formatFactor(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
