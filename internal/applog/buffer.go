// Package applog keeps the most recent process log lines in memory so the UI
// can show them. A Buffer is an io.Writer meant to sit behind the standard
// logger:
//
//	log.SetOutput(io.MultiWriter(os.Stderr, buf))
package applog

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

// DefaultMaxEntries is used when NewBuffer is given a non-positive size.
const DefaultMaxEntries = 1000

// Levels derived from the line text.
const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Entry is one log line.
type Entry struct {
	Level     string    `json:"level"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

var (
	// date and time written by log.LstdFlags, with optional microseconds
	stdPrefix    = regexp.MustCompile(`^\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}(\.\d+)? `)
	sourcePrefix = regexp.MustCompile(`^([a-z][a-z0-9_-]*): `)
)

// Buffer holds the newest entries, oldest first.
type Buffer struct {
	mu      sync.RWMutex
	entries []Entry
	max     int

	listenersMu sync.RWMutex
	listeners   map[int]func(Entry)
	nextID      int
}

func NewBuffer(maxEntries int) *Buffer {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Buffer{max: maxEntries, listeners: make(map[int]func(Entry))}
}

// Write records every non-empty line in p. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	now := time.Now()
	var added []Entry
	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		added = append(added, parse(line, now))
	}
	if len(added) == 0 {
		return len(p), nil
	}

	b.mu.Lock()
	b.entries = append(b.entries, added...)
	if over := len(b.entries) - b.max; over > 0 {
		b.entries = append([]Entry(nil), b.entries[over:]...)
	}
	b.mu.Unlock()

	b.listenersMu.RLock()
	for _, fn := range b.listeners {
		for _, e := range added {
			fn(e)
		}
	}
	b.listenersMu.RUnlock()
	return len(p), nil
}

func parse(line string, now time.Time) Entry {
	msg := stdPrefix.ReplaceAllString(line, "")
	level := LevelInfo
	switch {
	case strings.HasPrefix(msg, "WARNING: "):
		level, msg = LevelWarn, strings.TrimPrefix(msg, "WARNING: ")
	case strings.HasPrefix(msg, "ERROR: "):
		level, msg = LevelError, strings.TrimPrefix(msg, "ERROR: ")
	}

	source := "app"
	if m := sourcePrefix.FindStringSubmatch(msg); m != nil {
		source, msg = m[1], msg[len(m[0]):]
	}
	if level == LevelInfo {
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "error") || strings.Contains(lower, "failed") {
			level = LevelError
		}
	}
	return Entry{Level: level, Source: source, Message: msg, Timestamp: now}
}

// Entries returns up to limit of the newest entries, oldest first. A
// non-positive limit returns everything held.
func (b *Buffer) Entries(limit int) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	start := 0
	if limit > 0 && limit < len(b.entries) {
		start = len(b.entries) - limit
	}
	return append([]Entry{}, b.entries[start:]...)
}

// Len reports how many entries are held.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

func (b *Buffer) Clear() {
	b.mu.Lock()
	b.entries = nil
	b.mu.Unlock()
}

// Subscribe calls fn for every entry written from now on and returns a
// function that removes it. fn runs inside the log writer, so it must not
// log.
func (b *Buffer) Subscribe(fn func(Entry)) (cancel func()) {
	b.listenersMu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.listenersMu.Unlock()

	return func() {
		b.listenersMu.Lock()
		delete(b.listeners, id)
		b.listenersMu.Unlock()
	}
}
