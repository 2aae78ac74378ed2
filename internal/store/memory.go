package store

import (
	"errors"
	"sync"

	"github.com/i474232898/moisture-alerts/internal/sensor"
)

var (
	// ErrNotFound is returned when no reading has been ingested yet.
	ErrNotFound = errors.New("no reading available")
)

// ReadingStore is a concurrency-safe holder for the most recent reading.
// It keeps no history; every Set replaces the previous value.
type ReadingStore struct {
	mu sync.RWMutex

	latest sensor.Reading
	set    bool
}

// NewReadingStore creates an empty ReadingStore.
func NewReadingStore() *ReadingStore {
	return &ReadingStore{}
}

// Set replaces the current reading. Value and timestamp are swapped together.
func (s *ReadingStore) Set(r sensor.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = r
	s.set = true
}

// Latest returns the most recent reading or ErrNotFound.
func (s *ReadingStore) Latest() (sensor.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.set {
		return sensor.Reading{}, ErrNotFound
	}
	return s.latest, nil
}
