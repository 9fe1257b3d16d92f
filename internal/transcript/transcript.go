// Package transcript mirrors live conversation transcripts into a shared
// store so they survive process restarts and can be read by other instances.
// The orchestrator remains the source of truth; the mirror is written on
// every state change and read only for recovery and export.
package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/colloquy-ai/colloquy/config"
	"github.com/colloquy-ai/colloquy/types"
)

// Store persists conversation transcripts keyed by conversation id.
type Store interface {
	// Sync replaces the stored transcript. Idempotent: syncing the same
	// snapshot twice is a no-op.
	Sync(ctx context.Context, conversationID string, transcript []types.Message) error
	// Get returns the stored transcript, or an empty slice when unknown.
	Get(ctx context.Context, conversationID string) ([]types.Message, error)
	// Delete removes the stored transcript.
	Delete(ctx context.Context, conversationID string) error
	Close() error
}

// New builds the store named by the configuration.
func New(cfg config.TranscriptConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown transcript backend %q", cfg.Backend)
	}
}

// MemoryStore keeps transcripts in process memory. The default backend.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]types.Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]types.Message)}
}

func (s *MemoryStore) Sync(_ context.Context, id string, transcript []types.Message) error {
	cp := make([]types.Message, len(transcript))
	copy(cp, transcript)
	s.mu.Lock()
	s.data[id] = cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) ([]types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.data[id]
	out := make([]types.Message, len(stored))
	copy(out, stored)
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.data, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// RedisStore keeps transcripts as JSON values with a TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg config.TranscriptConfig, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{
		client: client,
		ttl:    cfg.TTL,
		logger: logger.With(zap.String("component", "transcript_store")),
	}, nil
}

func transcriptKey(id string) string { return "colloquy:transcript:" + id }

func (s *RedisStore) Sync(ctx context.Context, id string, transcript []types.Message) error {
	data, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	if err := s.client.Set(ctx, transcriptKey(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("sync transcript: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) ([]types.Message, error) {
	data, err := s.client.Get(ctx, transcriptKey(id)).Bytes()
	if err == redis.Nil {
		return []types.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	var out []types.Message
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal transcript: %w", err)
	}
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, transcriptKey(id)).Err(); err != nil {
		return fmt.Errorf("delete transcript: %w", err)
	}
	return nil
}

// Ping verifies the Redis connection. Used by the readiness probe.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error { return s.client.Close() }
