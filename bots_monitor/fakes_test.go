package bots_monitor

import (
	"context"
	"errors"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// fakeAPI records everything the bot would have sent to Telegram.
type fakeAPI struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg.Text)
		}
	}
	return out
}

func (f *fakeAPI) countContaining(substr string) int {
	n := 0
	for _, text := range f.texts() {
		if strings.Contains(text, substr) {
			n++
		}
	}
	return n
}

func (f *fakeAPI) lastText() string {
	texts := f.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

// fakeFetcher serves canned health factors per address.
type fakeFetcher struct {
	mu     sync.Mutex
	values map[string]float64
	err    error
	calls  int
}

func (f *fakeFetcher) HealthFactor(ctx context.Context, address string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	v, ok := f.values[address]
	if !ok {
		return 0, errors.New("unknown address")
	}
	return v, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
