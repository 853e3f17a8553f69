package ingest

import (
	"sync"

	"github.com/darkden-lab/mqscope/internal/mq"
)

// MessageStore holds consumed messages, exposed newest first. Internally the
// slice is kept in arrival order so admitting a message is an append.
type MessageStore struct {
	mu   sync.RWMutex
	msgs []mq.Message // oldest first

	hooksMu sync.RWMutex
	hooks   []func(mq.Message)
}

func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}

// Snapshot returns a copy of the stored messages, newest first.
func (s *MessageStore) Snapshot() []mq.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]mq.Message, len(s.msgs))
	for i, m := range s.msgs {
		out[len(s.msgs)-1-i] = m
	}
	return out
}

// Newest returns the most recently admitted message.
func (s *MessageStore) Newest() (mq.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.msgs) == 0 {
		return mq.Message{}, false
	}
	return s.msgs[len(s.msgs)-1], true
}

// admit adds msg as the newest entry if the store holds fewer than limit
// messages. The length check and the insert happen under one lock.
func (s *MessageStore) admit(msg mq.Message, limit int) (bool, int) {
	s.mu.Lock()
	n := len(s.msgs)
	if n >= limit {
		s.mu.Unlock()
		return false, n
	}
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()

	s.hooksMu.RLock()
	for _, hook := range s.hooks {
		hook(msg)
	}
	s.hooksMu.RUnlock()
	return true, n + 1
}

// Replace swaps the contents for newestFirst, used when restoring a saved
// checkpoint. No hooks run.
func (s *MessageStore) Replace(newestFirst []mq.Message) {
	msgs := make([]mq.Message, len(newestFirst))
	for i, m := range newestFirst {
		msgs[len(newestFirst)-1-i] = m
	}
	s.mu.Lock()
	s.msgs = msgs
	s.mu.Unlock()
}

// Clear drops every stored message.
func (s *MessageStore) Clear() {
	s.mu.Lock()
	s.msgs = nil
	s.mu.Unlock()
}

// OnAdmit registers a hook called after each admitted message. Hooks run on
// the admitting goroutine and should not block.
func (s *MessageStore) OnAdmit(hook func(mq.Message)) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, hook)
}
