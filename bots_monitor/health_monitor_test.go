package bots_monitor

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"demex-health-bot/internal/infra/fs"
	"demex-health-bot/internal/monitor"
)

func newTestMonitor(t *testing.T, fetcher *fakeFetcher) (*HealthMonitor, *fakeAPI, *monitor.Store, string) {
	t.Helper()
	api := &fakeAPI{}
	store := monitor.NewStore(filepath.Join(t.TempDir(), "subs.json"))
	dataDir := t.TempDir()
	m := NewHealthMonitor(NewSender(api), store, fetcher, dataDir, 3600, 0)
	return m, api, store, dataDir
}

func TestRunCycle_AlertsOnlyBelowThreshold(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]float64{
		"swthaaa": 1.0, // below threshold 2.0 -> alert
		"swthbbb": 5.0, // above threshold 1.0 -> silent
	}}
	m, api, store, _ := newTestMonitor(t, fetcher)
	store.Upsert("100", monitor.Subscription{Threshold: 2.0, Address: "swthaaa"})
	store.Upsert("200", monitor.Subscription{Threshold: 1.0, Address: "swthbbb"})

	m.RunCycle(context.Background())

	if got := api.countContaining("Alert:"); got != 1 {
		t.Fatalf("alerts sent = %d, want exactly 1; texts: %v", got, api.texts())
	}
	if api.countContaining("Alert: Health factor for swthaaa") != 1 {
		t.Errorf("alert should be for swthaaa, texts: %v", api.texts())
	}
	if fetcher.callCount() != 2 {
		t.Errorf("fetch calls = %d, want 2 (one per subscription)", fetcher.callCount())
	}
}

func TestRunCycle_RepeatsAlertEveryCycle(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]float64{"swthaaa": 1.0}}
	m, api, store, _ := newTestMonitor(t, fetcher)
	store.Upsert("100", monitor.Subscription{Threshold: 2.0, Address: "swthaaa"})

	m.RunCycle(context.Background())
	m.RunCycle(context.Background())

	// at-least-once, no deduplication across cycles
	if got := api.countContaining("Alert:"); got != 2 {
		t.Errorf("alerts sent = %d, want 2", got)
	}
}

func TestRunCycle_FetchFailureNotifiesSubscriber(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]float64{}} // every fetch fails
	m, api, store, _ := newTestMonitor(t, fetcher)
	store.Upsert("100", monitor.Subscription{Threshold: 2.0, Address: "swthaaa"})

	m.RunCycle(context.Background())

	if api.countContaining("Unable to fetch health factor for swthaaa") != 1 {
		t.Errorf("missing unavailable notice, texts: %v", api.texts())
	}
	if api.countContaining("Alert:") != 0 {
		t.Error("no numeric alert may be sent on fetch failure")
	}
}

func TestRunCycle_EmptyStoreSendsNothing(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]float64{}}
	m, api, _, _ := newTestMonitor(t, fetcher)

	m.RunCycle(context.Background())

	if len(api.texts()) != 0 {
		t.Errorf("expected no messages, got %v", api.texts())
	}
	if fetcher.callCount() != 0 {
		t.Errorf("expected no fetches, got %d", fetcher.callCount())
	}
}

func TestRunCycle_RecordsHistorySamples(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]float64{"swthaaa": 3.0}}
	m, _, store, dataDir := newTestMonitor(t, fetcher)
	store.Upsert("100", monitor.Subscription{Threshold: 1.0, Address: "swthaaa"})

	m.RunCycle(context.Background())

	history, err := fs.LoadHealthHistory(dataDir)
	if err != nil {
		t.Fatalf("LoadHealthHistory returned error: %v", err)
	}
	samples := history.ForAddress("swthaaa")
	if len(samples) != 1 {
		t.Fatalf("recorded samples = %d, want 1", len(samples))
	}
	if samples[0].HealthFactor != 3.0 {
		t.Errorf("recorded factor = %v, want 3.0", samples[0].HealthFactor)
	}
}

func TestStartCycle_SkipsWhileCycleRunning(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]float64{"swthaaa": 3.0}}
	m, _, store, _ := newTestMonitor(t, fetcher)
	store.Upsert("100", monitor.Subscription{Threshold: 1.0, Address: "swthaaa"})

	// Simulate a cycle that outlives the interval
	m.cycleRunning.Store(true)
	m.startCycle(context.Background())
	time.Sleep(50 * time.Millisecond)

	if fetcher.callCount() != 0 {
		t.Errorf("tick during a running cycle must be skipped, got %d fetches", fetcher.callCount())
	}
	m.cycleRunning.Store(false)
}

func TestCheckAndNotify_AlertMentionsThresholdAndLink(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]float64{"swthaaa": 1.25}}
	m, api, _, _ := newTestMonitor(t, fetcher)

	m.CheckAndNotify(context.Background(), "100", monitor.Subscription{Threshold: 2.5, Address: "swthaaa"})

	last := api.lastText()
	for _, want := range []string{"1.25", "2.5", nitronURL} {
		if !strings.Contains(last, want) {
			t.Errorf("alert %q missing %q", last, want)
		}
	}
}

func TestCheckAndNotify_InvalidChatIDDoesNothing(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]float64{"swthaaa": 1.0}}
	m, api, _, _ := newTestMonitor(t, fetcher)

	m.CheckAndNotify(context.Background(), "not-a-number", monitor.Subscription{Threshold: 2.0, Address: "swthaaa"})

	if len(api.texts()) != 0 {
		t.Errorf("expected no messages for invalid chat id, got %v", api.texts())
	}
}
