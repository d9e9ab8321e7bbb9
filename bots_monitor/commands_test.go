package bots_monitor

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"demex-health-bot/internal/monitor"
)

func newTestHandlers(t *testing.T, fetcher *fakeFetcher) (*Handlers, *fakeAPI, *monitor.Store) {
	t.Helper()
	api := &fakeAPI{}
	sender := NewSender(api)
	store := monitor.NewStore(filepath.Join(t.TempDir(), "subs.json"))
	dataDir := t.TempDir()
	healthMonitor := NewHealthMonitor(sender, store, fetcher, dataDir, 3600, 0)
	handlers := NewHandlers(sender, store, fetcher, healthMonitor, dataDir, 3600)
	return handlers, api, store
}

func TestMonitor_InvalidAddressRejectedWithoutSideEffects(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]float64{}}
	h, api, store := newTestHandlers(t, fetcher)

	h.handleMonitor(context.Background(), 42, []string{"1.5", "cosmos1abc"})

	if api.lastText() != invalidAddressReply {
		t.Errorf("reply = %q, want invalid address reply", api.lastText())
	}
	if store.Len() != 0 {
		t.Error("invalid address must not mutate the store")
	}
	if fetcher.callCount() != 0 {
		t.Error("invalid address must not trigger a network call")
	}
}

func TestMonitor_WrongArgCountRepliesUsage(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]float64{}}
	h, api, store := newTestHandlers(t, fetcher)

	for _, args := range [][]string{{}, {"1.5"}, {"1.5", "swthabc", "extra"}} {
		h.handleMonitor(context.Background(), 42, args)
		if !strings.HasPrefix(api.lastText(), "Usage: /monitor") {
			t.Errorf("args %v: reply = %q, want usage message", args, api.lastText())
		}
	}
	if store.Len() != 0 {
		t.Error("malformed input must not mutate the store")
	}
}

func TestMonitor_NonNumericThresholdRepliesUsage(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]float64{}}
	h, api, store := newTestHandlers(t, fetcher)

	h.handleMonitor(context.Background(), 42, []string{"high", "swthabc"})

	if !strings.HasPrefix(api.lastText(), "Usage: /monitor") {
		t.Errorf("reply = %q, want usage message", api.lastText())
	}
	if store.Len() != 0 {
		t.Error("non-numeric threshold must not mutate the store")
	}
}

func TestMonitor_StoresSubscriptionAndChecksImmediately(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]float64{"swthabc": 1.0}}
	h, api, store := newTestHandlers(t, fetcher)

	h.handleMonitor(context.Background(), 42, []string{"2.0", "swthabc"})

	sub, ok := store.Get("42")
	if !ok {
		t.Fatal("subscription was not stored")
	}
	if sub.Threshold != 2.0 || sub.Address != "swthabc" {
		t.Errorf("stored subscription = %+v", sub)
	}
	if api.countContaining("Started monitoring address swthabc") != 1 {
		t.Errorf("missing confirmation, texts: %v", api.texts())
	}
	// instant feedback: factor 1.0 is below threshold 2.0, alert included
	if api.countContaining("Alert: Health factor for swthabc") != 1 {
		t.Errorf("expected immediate alert, texts: %v", api.texts())
	}
	if fetcher.callCount() != 1 {
		t.Errorf("fetch calls = %d, want 1 (immediate check)", fetcher.callCount())
	}
}

func TestMonitor_SecondCallUpdatesInsteadOfDuplicating(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]float64{"swthabc": 5.0}}
	h, _, store := newTestHandlers(t, fetcher)

	h.handleMonitor(context.Background(), 42, []string{"1.5", "swthabc"})
	h.handleMonitor(context.Background(), 42, []string{"2.0", "swthabc"})

	if store.Len() != 1 {
		t.Fatalf("store has %d subscriptions, want 1", store.Len())
	}
	sub, _ := store.Get("42")
	if sub.Threshold != 2.0 {
		t.Errorf("threshold = %v, want 2.0 (update semantics)", sub.Threshold)
	}
}

func TestMonitorThenStop_LeavesStoreEmpty(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]float64{"swthabc": 5.0}}
	h, api, store := newTestHandlers(t, fetcher)

	h.handleMonitor(context.Background(), 42, []string{"1.5", "swthabc"})
	h.handleStop(context.Background(), 42)

	if store.Len() != 0 {
		t.Errorf("store has %d subscriptions after stop, want 0", store.Len())
	}
	if api.lastText() != "Monitoring stopped." {
		t.Errorf("reply = %q", api.lastText())
	}

	// /check afterward reports no monitoring configured
	h.handleCheck(context.Background(), 42, nil)
	if !strings.Contains(api.lastText(), "set up monitoring first") {
		t.Errorf("reply = %q, want not-monitoring guidance", api.lastText())
	}
}

func TestStop_WithoutSubscription(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]float64{}}
	h, api, _ := newTestHandlers(t, fetcher)

	h.handleStop(context.Background(), 42)
	if api.lastText() != "You were not monitoring any address." {
		t.Errorf("reply = %q", api.lastText())
	}
}

func TestCheck_WithAddress(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]float64{"swthabc": 3.25}}
	h, api, store := newTestHandlers(t, fetcher)

	h.handleCheck(context.Background(), 42, []string{"swthabc"})

	if api.countContaining("Health factor for swthabc: 3.25") != 1 {
		t.Errorf("missing lookup reply, texts: %v", api.texts())
	}
	if store.Len() != 0 {
		t.Error("/check <address> must not touch the store")
	}
}

func TestCheck_WithInvalidAddress(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]float64{}}
	h, api, _ := newTestHandlers(t, fetcher)

	h.handleCheck(context.Background(), 42, []string{"notanaddress"})

	if api.lastText() != invalidAddressReply {
		t.Errorf("reply = %q, want invalid address reply", api.lastText())
	}
	if fetcher.callCount() != 0 {
		t.Error("invalid address must not trigger a network call")
	}
}

func TestCheck_OwnSubscription(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]float64{"swthabc": 4.5}}
	h, api, store := newTestHandlers(t, fetcher)
	store.Upsert("42", monitor.Subscription{Threshold: 1.5, Address: "swthabc"})

	h.handleCheck(context.Background(), 42, nil)

	last := api.lastText()
	for _, want := range []string{"swthabc", "Threshold: 1.5", "Current health factor: 4.5"} {
		if !strings.Contains(last, want) {
			t.Errorf("reply %q missing %q", last, want)
		}
	}
}

func TestCheck_FetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]float64{}}
	h, api, _ := newTestHandlers(t, fetcher)

	h.handleCheck(context.Background(), 42, []string{"swthabc"})

	if api.lastText() != fetchFailedReply {
		t.Errorf("reply = %q, want fetch failed reply", api.lastText())
	}
}

func TestFreeText_ValidAddress(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]float64{"swthabc": 2.75}}
	h, api, store := newTestHandlers(t, fetcher)

	h.handleAddress(context.Background(), 42, "swthabc")

	if api.countContaining("Current health factor for swthabc: 2.75") != 1 {
		t.Errorf("missing lookup reply, texts: %v", api.texts())
	}
	if store.Len() != 0 {
		t.Error("free-text lookup must not touch the store")
	}
}

func TestFreeText_InvalidAddress(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]float64{}}
	h, api, _ := newTestHandlers(t, fetcher)

	h.handleAddress(context.Background(), 42, "hello bot")

	if api.lastText() != invalidAddressReply {
		t.Errorf("reply = %q, want invalid address reply", api.lastText())
	}
	if fetcher.callCount() != 0 {
		t.Error("invalid free text must not trigger a network call")
	}
}

func TestChart_NoHistoryRepliesNotice(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]float64{}}
	h, api, _ := newTestHandlers(t, fetcher)

	h.handleChart(context.Background(), 42, []string{"swthabc"})

	if !strings.Contains(api.lastText(), "Not enough recorded history") {
		t.Errorf("reply = %q, want no-history notice", api.lastText())
	}
}

func TestChart_WithoutArgumentOrSubscription(t *testing.T) {
	fetcher := &fakeFetcher{values: map[string]float64{}}
	h, api, _ := newTestHandlers(t, fetcher)

	h.handleChart(context.Background(), 42, nil)

	if !strings.Contains(api.lastText(), "set up monitoring first") {
		t.Errorf("reply = %q, want not-monitoring guidance", api.lastText())
	}
}
