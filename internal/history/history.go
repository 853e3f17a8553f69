package history

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Type string

const (
	TypeProduce Type = "produce"
	TypeConsume Type = "consume"
	TypeTest    Type = "test"
)

// memoryCap bounds the in-memory history kept when running without a
// database.
const memoryCap = 1000

// Record is a single produce, consume or connection-test entry.
type Record struct {
	ID           string    `json:"id"`
	Type         Type      `json:"type"`
	ConnectionID string    `json:"connection_id"`
	Topic        string    `json:"topic"`
	Key          string    `json:"key,omitempty"`
	Value        string    `json:"value,omitempty"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	LatencyMs    int64     `json:"latency_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

// ListParams holds the query filters for listing history.
type ListParams struct {
	Type         Type
	ConnectionID string
	Limit        int
	Offset       int
}

// Store provides access to the history table, or an in-memory ring when no
// pool is configured.
type Store struct {
	pool *pgxpool.Pool

	mu  sync.RWMutex
	mem []Record // oldest first
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Insert records an entry. ID and Timestamp are filled in when empty.
func (s *Store) Insert(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if s.pool == nil {
		s.mu.Lock()
		s.mem = append(s.mem, rec)
		if len(s.mem) > memoryCap {
			s.mem = s.mem[len(s.mem)-memoryCap:]
		}
		s.mu.Unlock()
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO history (id, type, connection_id, topic, message_key, message_value, success, error, latency_ms, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, string(rec.Type), rec.ConnectionID, rec.Topic, rec.Key, rec.Value,
		rec.Success, rec.Error, rec.LatencyMs, rec.Timestamp,
	)
	return err
}

// List returns entries newest first together with the total matching count.
func (s *Store) List(ctx context.Context, params ListParams) ([]Record, int, error) {
	if params.Limit <= 0 || params.Limit > 500 {
		params.Limit = 50
	}
	if params.Offset < 0 {
		params.Offset = 0
	}
	if s.pool == nil {
		return s.listMemory(params), s.countMemory(params), nil
	}

	where := ` WHERE 1=1`
	args := []interface{}{}
	if params.Type != "" {
		args = append(args, string(params.Type))
		where += ` AND type = $` + strconv.Itoa(len(args))
	}
	if params.ConnectionID != "" {
		args = append(args, params.ConnectionID)
		where += ` AND connection_id = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM history`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, type, connection_id, topic, message_key, message_value, success, error, latency_ms, timestamp FROM history` +
		where + ` ORDER BY timestamp DESC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, params.Limit, params.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		var typ string
		if err := rows.Scan(&r.ID, &typ, &r.ConnectionID, &r.Topic, &r.Key, &r.Value,
			&r.Success, &r.Error, &r.LatencyMs, &r.Timestamp); err != nil {
			return nil, 0, err
		}
		r.Type = Type(typ)
		records = append(records, r)
	}
	return records, total, rows.Err()
}

// Clear deletes all history.
func (s *Store) Clear(ctx context.Context) error {
	if s.pool == nil {
		s.mu.Lock()
		s.mem = nil
		s.mu.Unlock()
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM history`)
	return err
}

func (p ListParams) matches(r Record) bool {
	if p.Type != "" && r.Type != p.Type {
		return false
	}
	if p.ConnectionID != "" && r.ConnectionID != p.ConnectionID {
		return false
	}
	return true
}

func (s *Store) listMemory(p ListParams) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Record{}
	skipped := 0
	for i := len(s.mem) - 1; i >= 0 && len(out) < p.Limit; i-- {
		if !p.matches(s.mem[i]) {
			continue
		}
		if skipped < p.Offset {
			skipped++
			continue
		}
		out = append(out, s.mem[i])
	}
	return out
}

func (s *Store) countMemory(p ListParams) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.mem {
		if p.matches(r) {
			n++
		}
	}
	return n
}
