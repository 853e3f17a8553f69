package connections

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

	"github.com/darkden-lab/mqscope/internal/crypto"
	"github.com/darkden-lab/mqscope/internal/mq"
)

// Store persists broker connections. Passwords are sealed with the
// encryption key before they reach the database. Without a pool the
// connections are kept in memory.
type Store struct {
	pool   *pgxpool.Pool
	encKey string

	mu  sync.RWMutex
	mem map[string]mq.ConnectionConfig
}

func NewStore(pool *pgxpool.Pool, encKey string) *Store {
	return &Store{pool: pool, encKey: encKey, mem: make(map[string]mq.ConnectionConfig)}
}

// Validate checks the fields every broker needs.
func Validate(cfg *mq.ConnectionConfig) error {
	if cfg.Name == "" {
		return mq.NewValidationError("name is required", "")
	}
	if cfg.Type != mq.BrokerKafka && cfg.Type != mq.BrokerRabbitMQ {
		return mq.NewValidationError("unsupported broker type", string(cfg.Type))
	}
	if cfg.Host == "" {
		return mq.NewValidationError("host is required", "")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return mq.NewValidationError("port out of range", fmt.Sprint(cfg.Port))
	}
	return nil
}

// List returns all connections ordered by name, with passwords removed.
func (s *Store) List(ctx context.Context) ([]mq.ConnectionConfig, error) {
	if s.pool == nil {
		s.mu.RLock()
		out := make([]mq.ConnectionConfig, 0, len(s.mem))
		for _, c := range s.mem {
			c.Password = ""
			out = append(out, c)
		}
		s.mu.RUnlock()
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, name, type, host, port, username, vhost, group_id, extra, created_at, updated_at
		 FROM connections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	out := []mq.ConnectionConfig{}
	for rows.Next() {
		var c mq.ConnectionConfig
		var typ string
		var extra []byte
		if err := rows.Scan(&c.ID, &c.Name, &typ, &c.Host, &c.Port, &c.Username, &c.VHost,
			&c.GroupID, &extra, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Type = mq.BrokerType(typ)
		if err := json.Unmarshal(extra, &c.Extra); err != nil {
			return nil, fmt.Errorf("decode extra for %s: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Get returns a connection with its password decrypted, ready to dial.
func (s *Store) Get(ctx context.Context, id string) (*mq.ConnectionConfig, error) {
	if s.pool == nil {
		s.mu.RLock()
		c, ok := s.mem[id]
		s.mu.RUnlock()
		if !ok {
			return nil, mq.NewNotFoundError("connection", id)
		}
		return &c, nil
	}

	var c mq.ConnectionConfig
	var typ, sealed string
	var extra []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, type, host, port, username, password, vhost, group_id, extra, created_at, updated_at
		 FROM connections WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &typ, &c.Host, &c.Port, &c.Username, &sealed, &c.VHost,
		&c.GroupID, &extra, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, mq.NewNotFoundError("connection", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	c.Type = mq.BrokerType(typ)
	if err := json.Unmarshal(extra, &c.Extra); err != nil {
		return nil, fmt.Errorf("decode extra for %s: %w", id, err)
	}
	if c.Password, err = crypto.DecryptString(sealed, s.encKey); err != nil {
		return nil, fmt.Errorf("decrypt password for %s: %w", id, err)
	}
	return &c, nil
}

// Create stores a new connection and returns it without its password.
func (s *Store) Create(ctx context.Context, cfg mq.ConnectionConfig) (*mq.ConnectionConfig, error) {
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	now := time.Now()
	cfg.ID = uuid.New().String()
	cfg.CreatedAt, cfg.UpdatedAt = now, now
	if cfg.Extra == nil {
		cfg.Extra = map[string]string{}
	}
	if err := s.write(ctx, cfg, true); err != nil {
		return nil, err
	}
	cfg.Password = ""
	return &cfg, nil
}

// Update replaces a connection. An empty password keeps the stored one.
func (s *Store) Update(ctx context.Context, id string, cfg mq.ConnectionConfig) (*mq.ConnectionConfig, error) {
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cfg.ID = id
	cfg.CreatedAt = existing.CreatedAt
	cfg.UpdatedAt = time.Now()
	if cfg.Password == "" {
		cfg.Password = existing.Password
	}
	if cfg.Extra == nil {
		cfg.Extra = map[string]string{}
	}
	if err := s.write(ctx, cfg, false); err != nil {
		return nil, err
	}
	cfg.Password = ""
	return &cfg, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if s.pool == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.mem[id]; !ok {
			return mq.NewNotFoundError("connection", id)
		}
		delete(s.mem, id)
		return nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM connections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return mq.NewNotFoundError("connection", id)
	}
	return nil
}

func (s *Store) write(ctx context.Context, cfg mq.ConnectionConfig, insert bool) error {
	if s.pool == nil {
		s.mu.Lock()
		s.mem[cfg.ID] = cfg
		s.mu.Unlock()
		return nil
	}

	sealed, err := crypto.EncryptString(cfg.Password, s.encKey)
	if err != nil {
		return fmt.Errorf("encrypt password: %w", err)
	}
	extra, err := json.Marshal(cfg.Extra)
	if err != nil {
		return fmt.Errorf("encode extra: %w", err)
	}

	if insert {
		_, err = s.pool.Exec(ctx,
			`INSERT INTO connections (id, name, type, host, port, username, password, vhost, group_id, extra, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			cfg.ID, cfg.Name, string(cfg.Type), cfg.Host, cfg.Port, cfg.Username, sealed,
			cfg.VHost, cfg.GroupID, extra, cfg.CreatedAt, cfg.UpdatedAt)
	} else {
		_, err = s.pool.Exec(ctx,
			`UPDATE connections SET name = $2, type = $3, host = $4, port = $5, username = $6,
			   password = $7, vhost = $8, group_id = $9, extra = $10, updated_at = $11
			 WHERE id = $1`,
			cfg.ID, cfg.Name, string(cfg.Type), cfg.Host, cfg.Port, cfg.Username, sealed,
			cfg.VHost, cfg.GroupID, extra, cfg.UpdatedAt)
	}
	if err != nil {
		return fmt.Errorf("save connection: %w", err)
	}
	return nil
}
