package commons

import (
	"sync"
	"time"
)

const defaultErrorLogCap = 50

// ErrorEntry is one recorded failure with the context it happened in.
type ErrorEntry struct {
	Message   string
	Context   map[string]string
	Timestamp time.Time
}

// ErrorLog is a capped in-memory journal of failures kept for diagnostics.
// Oldest entries are dropped once the cap is reached. The journal is never
// persisted.
type ErrorLog struct {
	mu      sync.Mutex
	entries []ErrorEntry
	cap     int
	clock   func() time.Time
}

func NewErrorLog(capacity int) *ErrorLog {
	if capacity <= 0 {
		capacity = defaultErrorLogCap
	}
	return &ErrorLog{
		cap:   capacity,
		clock: time.Now,
	}
}

// Record appends an error with optional context. Safe on a nil journal so
// diagnostics stay optional for callers.
func (l *ErrorLog) Record(err error, context map[string]string) {
	if l == nil || err == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, ErrorEntry{
		Message:   err.Error(),
		Context:   context,
		Timestamp: l.clock(),
	})
	if len(l.entries) > l.cap {
		l.entries = l.entries[len(l.entries)-l.cap:]
	}
}

// Entries returns a snapshot of the journal, oldest first.
func (l *ErrorLog) Entries() []ErrorEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]ErrorEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Clear drops all recorded entries.
func (l *ErrorLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
