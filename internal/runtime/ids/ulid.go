// Package ids produces identifiers for published broker messages.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Source hands out monotonic ULIDs. Ids from one Source sort in creation
// order even within the same millisecond.
type Source struct {
	mu      sync.Mutex
	now     func() time.Time
	entropy *ulid.MonotonicEntropy
}

// NewSource returns a Source stamping ids with now. A nil now uses time.Now.
func NewSource(now func() time.Time) *Source {
	if now == nil {
		now = time.Now
	}
	return &Source{now: now, entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Next returns the next id.
func (s *Source) Next() ulid.ULID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy)
}

var defaultSource = NewSource(nil)

// NewMessageID returns a time-sortable ULID encoded as a 26-character string.
func NewMessageID() string {
	return defaultSource.Next().String()
}

// Timestamp extracts the creation time of id.
func Timestamp(id string) (time.Time, error) {
	parsed, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
