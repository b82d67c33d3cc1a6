// Package history keeps a short rolling window of live-feed
// detections so the UI can show what the camera has seen recently.
package history

import (
	"sync"
	"time"

	"github.com/moodfi/vibecheck/pkg/emotion"
)

// DefaultCapacity covers roughly the last three seconds of live
// detections at the feed's cadence.
const DefaultCapacity = 3

// Entry is one completed live-feed detection.
type Entry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Dominant   emotion.Label  `json:"dominant_emotion"`
	Scores     emotion.Scores `json:"emotion_scores"`
	Confidence int            `json:"confidence"`
}

// Ring is a bounded buffer of recent entries. When full, adding a
// new entry evicts the oldest. Safe for concurrent use.
type Ring struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
}

// NewRing creates a ring with the given capacity.
// Non-positive capacities fall back to DefaultCapacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{capacity: capacity}
}

// Add appends an entry, evicting the oldest when the ring is full.
func (r *Ring) Add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, e)
	if len(r.entries) > r.capacity {
		r.entries = r.entries[len(r.entries)-r.capacity:]
	}
}

// Entries returns a copy of the buffer, oldest first.
func (r *Ring) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Latest returns the most recent entry, if any.
func (r *Ring) Latest() (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.entries) == 0 {
		return Entry{}, false
	}
	return r.entries[len(r.entries)-1], true
}

// Len returns the number of buffered entries.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear empties the ring.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}
