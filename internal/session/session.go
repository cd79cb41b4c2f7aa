// Package session keeps multi-turn flow state in Redis so conversations
// survive process restarts.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"webgen-bot/internal/common/database"
)

// Flow identifiers stored in session records.
const (
	FlowRegister     = "register"
	FlowWebPage      = "webpage"
	FlowSubscription = "subscription"
)

// Record is the explicit state of an in-progress flow. Data holds the
// flow-specific state, marshaled by the owning package.
type Record struct {
	Flow      string          `json:"flow"`
	Step      int             `json:"step"`
	Data      json.RawMessage `json:"data,omitempty"`
	StartedAt time.Time       `json:"startedAt"`
}

// DecodeData unmarshals the flow payload into v.
func (r *Record) DecodeData(v interface{}) error {
	if len(r.Data) == 0 {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}

// EncodeData marshals the flow payload from v.
func (r *Record) EncodeData(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.Data = data
	return nil
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
}

// Manager reads and writes session records keyed by phone.
type Manager struct {
	redis  *database.RedisClient
	ttl    time.Duration
	prefix string
	logger Logger
}

func NewManager(rdb *database.RedisClient, ttl time.Duration, prefix string, log Logger) *Manager {
	if prefix == "" {
		prefix = "session:"
	}
	return &Manager{redis: rdb, ttl: ttl, prefix: prefix, logger: log}
}

func (m *Manager) key(phone string) string {
	return m.prefix + phone
}

// Get returns the active session for a phone, or nil when there is none.
// A corrupt record is dropped so the conversation can start over.
func (m *Manager) Get(ctx context.Context, phone string) (*Record, error) {
	raw, err := m.redis.Get(ctx, m.key(phone))
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session get: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		m.logger.Warn("dropping corrupt session record", map[string]interface{}{
			"phone": phone,
			"error": err.Error(),
		})
		_ = m.redis.Del(ctx, m.key(phone))
		return nil, nil
	}
	return &rec, nil
}

// Put stores the session with the configured TTL.
func (m *Manager) Put(ctx context.Context, phone string, rec *Record) error {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session marshal: %w", err)
	}
	if err := m.redis.Set(ctx, m.key(phone), data, m.ttl); err != nil {
		return fmt.Errorf("session put: %w", err)
	}
	return nil
}

// Clear removes the session, ending the flow.
func (m *Manager) Clear(ctx context.Context, phone string) error {
	if err := m.redis.Del(ctx, m.key(phone)); err != nil {
		return fmt.Errorf("session clear: %w", err)
	}
	return nil
}
