package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/darkden-lab/mqscope/internal/mq"
)

// Template is a reusable message for the producer form.
type Template struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Topic     string            `json:"topic"`
	Key       string            `json:"key"`
	Value     string            `json:"value"`
	Headers   map[string]string `json:"headers"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Store provides CRUD operations for the templates table, or an in-memory
// map when no pool is configured.
type Store struct {
	pool *pgxpool.Pool

	mu  sync.RWMutex
	mem map[string]Template
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, mem: make(map[string]Template)}
}

const selectColumns = `SELECT id, name, topic, message_key, value, headers, created_at, updated_at FROM templates`

func scan(row pgx.Row) (Template, error) {
	var t Template
	var headers []byte
	if err := row.Scan(&t.ID, &t.Name, &t.Topic, &t.Key, &t.Value, &headers, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return t, err
	}
	if err := json.Unmarshal(headers, &t.Headers); err != nil {
		return t, fmt.Errorf("decode headers for %s: %w", t.ID, err)
	}
	return t, nil
}

// List returns templates newest first.
func (s *Store) List(ctx context.Context) ([]Template, error) {
	if s.pool == nil {
		s.mu.RLock()
		out := make([]Template, 0, len(s.mem))
		for _, t := range s.mem {
			out = append(out, t)
		}
		s.mu.RUnlock()
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
		return out, nil
	}

	rows, err := s.pool.Query(ctx, selectColumns+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	out := []Template{}
	for rows.Next() {
		t, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (*Template, error) {
	if s.pool == nil {
		s.mu.RLock()
		t, ok := s.mem[id]
		s.mu.RUnlock()
		if !ok {
			return nil, mq.NewNotFoundError("template", id)
		}
		return &t, nil
	}
	t, err := scan(s.pool.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, mq.NewNotFoundError("template", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return &t, nil
}

func (s *Store) Create(ctx context.Context, t Template) (*Template, error) {
	if t.Name == "" {
		return nil, mq.NewValidationError("name is required", "")
	}
	now := time.Now()
	t.ID = uuid.New().String()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.Headers == nil {
		t.Headers = map[string]string{}
	}

	if s.pool == nil {
		s.mu.Lock()
		s.mem[t.ID] = t
		s.mu.Unlock()
		return &t, nil
	}
	headers, _ := json.Marshal(t.Headers)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO templates (id, name, topic, message_key, value, headers, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.Name, t.Topic, t.Key, t.Value, headers, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	return &t, nil
}

func (s *Store) Update(ctx context.Context, id string, t Template) (*Template, error) {
	if t.Name == "" {
		return nil, mq.NewValidationError("name is required", "")
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	t.ID = id
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now()
	if t.Headers == nil {
		t.Headers = map[string]string{}
	}

	if s.pool == nil {
		s.mu.Lock()
		s.mem[id] = t
		s.mu.Unlock()
		return &t, nil
	}
	headers, _ := json.Marshal(t.Headers)
	_, err = s.pool.Exec(ctx,
		`UPDATE templates SET name = $2, topic = $3, message_key = $4, value = $5, headers = $6, updated_at = $7
		 WHERE id = $1`,
		id, t.Name, t.Topic, t.Key, t.Value, headers, t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	return &t, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if s.pool == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.mem[id]; !ok {
			return mq.NewNotFoundError("template", id)
		}
		delete(s.mem, id)
		return nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return mq.NewNotFoundError("template", id)
	}
	return nil
}
