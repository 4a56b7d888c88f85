package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/snow-patrol/internal/scheduler"
	"github.com/i474232898/snow-patrol/internal/weather"
)

var (
	// ErrNotFound is returned when no poll matches the query.
	ErrNotFound = errors.New("no poll records")
)

// PollRecord is what the patrol saw and decided on one poll.
type PollRecord struct {
	ID         uuid.UUID            `json:"id"`
	CheckedAt  time.Time            `json:"checked_at"`
	Transition scheduler.Transition `json:"transition"`
	Snowing    bool                 `json:"snowing"`
	NextPoll   time.Time            `json:"next_poll"`
	Event      *weather.SnowEvent   `json:"event,omitempty"`
	Notified   bool                 `json:"notified"`
}

// MemoryStore is a concurrency-safe in-memory poll history. Nothing survives
// a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records []PollRecord

	// retention configuration
	maxHistory int           // max number of records
	maxAge     time.Duration // max age relative to the newest record
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory or maxAge is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}
}

// Save appends a record, assigning an ID when it has none, and enforces
// retention. Records are expected in CheckedAt order.
func (s *MemoryStore) Save(rec PollRecord) PollRecord {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(s.records) > s.maxHistory {
		over := len(s.records) - s.maxHistory
		s.records = append([]PollRecord(nil), s.records[over:]...)
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := rec.CheckedAt.Add(-s.maxAge)
		i := 0
		for ; i < len(s.records); i++ {
			if !s.records[i].CheckedAt.Before(cutoff) {
				break
			}
		}
		if i > 0 {
			s.records = append([]PollRecord(nil), s.records[i:]...)
		}
	}

	return rec
}

// Latest returns the most recent poll.
func (s *MemoryStore) Latest() (PollRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return PollRecord{}, ErrNotFound
	}
	return s.records[len(s.records)-1], nil
}

// Range returns all polls checked between from and to (inclusive).
func (s *MemoryStore) Range(from, to time.Time) ([]PollRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []PollRecord
	for _, rec := range s.records {
		if !rec.CheckedAt.Before(from) && !rec.CheckedAt.After(to) {
			result = append(result, rec)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

// LastSnow returns the most recent poll that found it snowing.
func (s *MemoryStore) LastSnow() (PollRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].Snowing {
			return s.records[i], nil
		}
	}
	return PollRecord{}, ErrNotFound
}

// Len returns the number of retained records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
