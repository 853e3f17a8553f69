package settings

import (
	"context"
	"log"
	"sync"

	"github.com/darkden-lab/mqscope/internal/ingest"
	"github.com/darkden-lab/mqscope/internal/mq"
)

const (
	keyConsumerState    = "consumer_state"
	keyConsumerMessages = "consumer_messages"
)

// Persister checkpoints the consumer state and the message store.
type Persister struct {
	store    *Store
	state    *ConsumerState
	messages *ingest.MessageStore

	mu sync.Mutex // serialises checkpoints
}

func NewPersister(store *Store, state *ConsumerState, messages *ingest.MessageStore) *Persister {
	return &Persister{store: store, state: state, messages: messages}
}

// Save writes the current state and messages.
func (p *Persister) Save(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.store.Put(ctx, keyConsumerState, p.state.Get()); err != nil {
		return err
	}
	return p.store.Put(ctx, keyConsumerMessages, p.messages.Snapshot())
}

// Load restores the last checkpoint. No session survives a restart, so a
// saved Consuming flag is cleared. A saved message list longer than the
// saved limit is cut down to its newest MaxMessages entries.
func (p *Persister) Load(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var s State
	found, err := p.store.Get(ctx, keyConsumerState, &s)
	if err != nil {
		return err
	}
	if found {
		if s.Consuming {
			log.Printf("settings: clearing stale session %s from checkpoint", s.SubscriptionID)
		}
		s.Consuming = false
		s.SubscriptionID = ""
		p.state.replace(s)
	}

	var msgs []mq.Message
	found, err = p.store.Get(ctx, keyConsumerMessages, &msgs)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if limit := p.state.MaxMessages(); len(msgs) > limit {
		log.Printf("settings: truncating %d restored messages to %d", len(msgs), limit)
		msgs = msgs[:limit]
	}
	p.messages.Replace(msgs)
	return nil
}

// Checkpoint saves and logs failures. Used from places that cannot return
// an error.
func (p *Persister) Checkpoint(ctx context.Context, reason string) {
	if err := p.Save(ctx); err != nil {
		log.Printf("settings: checkpoint on %s failed: %v", reason, err)
	}
}
