package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"demex-health-bot/internal/infra/log"

	"go.uber.org/zap"
)

// Store is the durable subscription registry: an in-memory map keyed by chat
// id, mirrored to a single JSON file after every mutation. The in-memory map
// is the source of truth during a run; the file is only a recovery snapshot
// read once at startup.
//
// One mutex serializes every mutation together with its save, so two
// concurrent writers cannot interleave their full-file rewrites and drop an
// update.
type Store struct {
	path string

	mu   sync.Mutex
	subs map[string]Subscription
}

// NewStore creates a store backed by the given file. It does not touch the
// file; call Load once at startup.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		subs: make(map[string]Subscription),
	}
}

// Load reads the snapshot file. A missing or empty file yields an empty
// registry; a corrupt file is logged and also yields an empty registry, so a
// damaged snapshot never prevents the bot from starting.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.LogInfo("Subscriptions file not found, starting empty", zap.String("path", s.path))
			return nil
		}
		return fmt.Errorf("failed to read subscriptions file: %w", err)
	}

	if len(data) == 0 {
		log.LogInfo("Subscriptions file is empty", zap.String("path", s.path))
		return nil
	}

	var subs map[string]Subscription
	if err := json.Unmarshal(data, &subs); err != nil {
		log.LogError("Failed to parse subscriptions file, starting empty",
			zap.String("path", s.path), zap.Error(err))
		return nil
	}
	if subs == nil {
		// a literal "null" in the file unmarshals to a nil map
		subs = make(map[string]Subscription)
	}

	s.subs = subs
	log.LogInfo("Loaded subscriptions", zap.String("path", s.path), zap.Int("count", len(subs)))
	return nil
}

// Get returns the subscription for a chat id, if any.
func (s *Store) Get(chatID string) (Subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[chatID]
	return sub, ok
}

// Upsert creates or fully replaces a subscription and persists the registry.
// At most one subscription exists per chat id.
func (s *Store) Upsert(chatID string, sub Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[chatID] = sub
	s.saveLocked()
}

// Delete removes a subscription and persists the registry. It reports whether
// a subscription existed.
func (s *Store) Delete(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subs[chatID]
	if !ok {
		return false
	}
	delete(s.subs, chatID)
	s.saveLocked()
	return true
}

// Snapshot returns a copy of the registry. The periodic cycle iterates the
// copy so command handlers can mutate the store mid-cycle.
func (s *Store) Snapshot() map[string]Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[string]Subscription, len(s.subs))
	for id, sub := range s.subs {
		snapshot[id] = sub
	}
	return snapshot
}

// Len returns the number of subscriptions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// saveLocked rewrites the whole snapshot file. Callers hold s.mu. A write
// failure is logged, not returned: the in-memory registry stays authoritative
// and may silently diverge from disk until the next successful save.
func (s *Store) saveLocked() {
	data, err := json.Marshal(s.subs)
	if err != nil {
		log.LogError("Failed to marshal subscriptions", zap.Error(err))
		return
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		log.LogError("Failed to save subscriptions file",
			zap.String("path", s.path), zap.Error(err))
		return
	}
	log.LogDebug("Subscriptions saved", zap.String("path", s.path), zap.Int("count", len(s.subs)))
}
