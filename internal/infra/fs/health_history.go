package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	healthHistoryFile = "health_history.json"

	// maxHistoryEntries caps the history file; oldest samples are dropped.
	maxHistoryEntries = 2000
)

// HealthSample is one recorded health factor reading.
type HealthSample struct {
	Timestamp    string  `json:"timestamp"` // RFC3339
	Date         string  `json:"date"`      // YYYY-MM-DD
	Address      string  `json:"address"`
	HealthFactor float64 `json:"health_factor"`
}

// HealthHistory is the file structure for health_history.json.
type HealthHistory struct {
	Entries []HealthSample `json:"entries"`
}

// LoadHealthHistory loads recorded samples from the data dir.
// Returns an empty dataset if the file doesn't exist (not an error).
func LoadHealthHistory(dataDir string) (*HealthHistory, error) {
	filePath := filepath.Join(dataDir, healthHistoryFile)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return &HealthHistory{Entries: []HealthSample{}}, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read health history file: %w", err)
	}

	if len(data) == 0 {
		return &HealthHistory{Entries: []HealthSample{}}, nil
	}

	var history HealthHistory
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to parse health history JSON: %w", err)
	}

	if history.Entries == nil {
		history.Entries = []HealthSample{}
	}

	return &history, nil
}

// AppendHealthSample appends one reading for an address into health_history.json.
func AppendHealthSample(dataDir, address string, healthFactor float64) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	history, err := LoadHealthHistory(dataDir)
	if err != nil {
		return err
	}

	now := time.Now()
	history.Entries = append(history.Entries, HealthSample{
		Timestamp:    now.Format(time.RFC3339),
		Date:         now.Format("2006-01-02"),
		Address:      address,
		HealthFactor: healthFactor,
	})

	if len(history.Entries) > maxHistoryEntries {
		history.Entries = history.Entries[len(history.Entries)-maxHistoryEntries:]
	}

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal health history: %w", err)
	}

	filePath := filepath.Join(dataDir, healthHistoryFile)
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to save health history file: %w", err)
	}
	return nil
}

// ForAddress returns the samples recorded for one address, oldest first.
func (h *HealthHistory) ForAddress(address string) []HealthSample {
	var samples []HealthSample
	for _, e := range h.Entries {
		if e.Address == address {
			samples = append(samples, e)
		}
	}
	return samples
}
