package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store reads and writes JSON values in the settings table. Without a pool
// the values live in memory for the life of the process.
type Store struct {
	pool *pgxpool.Pool

	mu  sync.RWMutex
	mem map[string][]byte
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, mem: make(map[string][]byte)}
}

// Get decodes the value stored under key into v. It reports false when the
// key does not exist.
func (s *Store) Get(ctx context.Context, key string, v interface{}) (bool, error) {
	var raw []byte
	if s.pool == nil {
		s.mu.RLock()
		raw = s.mem[key]
		s.mu.RUnlock()
		if raw == nil {
			return false, nil
		}
	} else {
		err := s.pool.QueryRow(ctx, "SELECT value FROM settings WHERE key = $1", key).Scan(&raw)
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("read setting %s: %w", key, err)
		}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode setting %s: %w", key, err)
	}
	return true, nil
}

// Put upserts v under key.
func (s *Store) Put(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", key, err)
	}
	if s.pool == nil {
		s.mu.Lock()
		s.mem[key] = raw
		s.mu.Unlock()
		return nil
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO settings (key, value, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO UPDATE
		   SET value = EXCLUDED.value,
		       updated_at = NOW()`,
		key, raw,
	)
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}
