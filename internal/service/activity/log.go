package activity

import (
	"sync"
	"time"
)

// Entry is one recorded event.
type Entry struct {
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Log is a bounded ring of recent events, newest first. It is for
// observability only and is never load-bearing.
type Log struct {
	mu      sync.Mutex
	max     int
	entries []Entry
}

func NewLog(max int) *Log {
	if max <= 0 {
		max = 10
	}
	return &Log{max: max, entries: make([]Entry, 0, max)}
}

// Add records an event, evicting the oldest when full.
func (l *Log) Add(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append([]Entry{{Message: message, Time: time.Now()}}, l.entries...)
	if len(l.entries) > l.max {
		l.entries = l.entries[:l.max]
	}
}

// Recent returns a copy of the buffer, newest first.
func (l *Log) Recent() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}
