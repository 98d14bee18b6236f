package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// KV is the small expiring key-value surface behind revocations and OAuth
// state. Redis backs it in production; MemoryKV serves single-instance runs
// and tests.
type KV interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Take returns and removes key.
	Take(ctx context.Context, key string) (string, bool, error)
	Exists(ctx context.Context, key string) (bool, error)
}

type RedisKV struct {
	client *redis.Client
	prefix string
}

func NewRedisKV(client *redis.Client, prefix string) *RedisKV {
	return &RedisKV{client: client, prefix: prefix}
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *RedisKV) Take(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.GetDel(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisKV) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type memEntry struct {
	value   string
	expires time.Time
}

type MemoryKV struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{entries: make(map[string]memEntry), now: time.Now}
}

func (m *MemoryKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
	m.entries[key] = memEntry{value: value, expires: m.now().Add(ttl)}
	return nil
}

func (m *MemoryKV) Take(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	delete(m.entries, key)
	if !m.now().Before(e.expires) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *MemoryKV) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return ok && m.now().Before(e.expires), nil
}

func (m *MemoryKV) sweepLocked() {
	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
}

// Revocations remembers signed-out token ids until the tokens expire.
type Revocations struct {
	kv  KV
	now func() time.Time
}

func NewRevocations(kv KV) *Revocations {
	return &Revocations{kv: kv, now: time.Now}
}

func (r *Revocations) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.kv.Set(ctx, "revoked:"+jti, "1", ttl)
}

func (r *Revocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return r.kv.Exists(ctx, "revoked:"+jti)
}

// StateStore binds one-time OAuth state values to the redirect target the
// sign-in started with.
type StateStore struct {
	kv  KV
	ttl time.Duration
}

func NewStateStore(kv KV, ttl time.Duration) *StateStore {
	return &StateStore{kv: kv, ttl: ttl}
}

// New stores redirectTo under a fresh random state and returns the state.
func (s *StateStore) New(ctx context.Context, redirectTo string) (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(b)
	if err := s.kv.Set(ctx, "oauth_state:"+state, redirectTo, s.ttl); err != nil {
		return "", err
	}
	return state, nil
}

// Take consumes state. A state can be used once.
func (s *StateStore) Take(ctx context.Context, state string) (string, bool, error) {
	if state == "" {
		return "", false, nil
	}
	return s.kv.Take(ctx, "oauth_state:"+state)
}
