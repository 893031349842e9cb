package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relayhub/relay-gateway/internal/config"
)

// Profile holds per-user preferences consulted by the orchestrator
type Profile struct {
	UserID         string    `json:"user_id"`
	PreferredModel string    `json:"preferred_model,omitempty"`
	VoiceEnabled   bool      `json:"voice_enabled"`
	LastActiveAt   time.Time `json:"last_active_at"`
}

// Store is the profile persistence interface
type Store interface {
	Get(ctx context.Context, userID string) (*Profile, error)
	Save(ctx context.Context, p *Profile) error
	Touch(ctx context.Context, userID string) error
}

// MemoryStore keeps profiles in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]*Profile)}
}

// Get returns the profile for userID, creating a default one if absent
func (s *MemoryStore) Get(ctx context.Context, userID string) (*Profile, error) {
	s.mu.RLock()
	p, ok := s.profiles[userID]
	s.mu.RUnlock()
	if ok {
		copied := *p
		return &copied, nil
	}
	return &Profile{UserID: userID}, nil
}

// Save stores the profile
func (s *MemoryStore) Save(ctx context.Context, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *p
	s.profiles[p.UserID] = &copied
	return nil
}

// Touch updates the user's last-active marker
func (s *MemoryStore) Touch(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		p = &Profile{UserID: userID}
		s.profiles[userID] = p
	}
	p.LastActiveAt = time.Now()
	return nil
}

// RedisStore persists profiles as JSON blobs in redis
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects to redis and validates the connection
func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{rdb: rdb}, nil
}

func profileKey(userID string) string {
	return "profile:" + userID
}

// Get returns the profile for userID, creating a default one if absent
func (s *RedisStore) Get(ctx context.Context, userID string) (*Profile, error) {
	data, err := s.rdb.Get(ctx, profileKey(userID)).Bytes()
	if err == redis.Nil {
		return &Profile{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("profile get failed: %w", err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("profile decode failed: %w", err)
	}
	return &p, nil
}

// Save stores the profile
func (s *RedisStore) Save(ctx context.Context, p *Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("profile encode failed: %w", err)
	}
	if err := s.rdb.Set(ctx, profileKey(p.UserID), data, 0).Err(); err != nil {
		return fmt.Errorf("profile set failed: %w", err)
	}
	return nil
}

// Touch updates the user's last-active marker
func (s *RedisStore) Touch(ctx context.Context, userID string) error {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	p.LastActiveAt = time.Now()
	return s.Save(ctx, p)
}

// Close releases the redis connection
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
