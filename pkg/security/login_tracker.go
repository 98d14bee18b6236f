package security

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LoginTrackerConfig holds configuration for login tracking
type LoginTrackerConfig struct {
	MaxAttempts   int           // failed attempts before a block
	AttemptWindow time.Duration // window the attempts are counted in
	BlockDuration time.Duration // how long a block lasts
	UseIPTracking bool          // also block the source IP
}

// DefaultLoginTrackerConfig returns sensible defaults
func DefaultLoginTrackerConfig() LoginTrackerConfig {
	return LoginTrackerConfig{
		MaxAttempts:   5,
		AttemptWindow: 15 * time.Minute,
		BlockDuration: 15 * time.Minute,
		UseIPTracking: true,
	}
}

// CounterStore is the expiring counter and flag storage the tracker needs.
type CounterStore interface {
	// Incr increments key, starting its TTL on the first increment.
	Incr(ctx context.Context, key string, ttl time.Duration) (int, error)
	SetFlag(ctx context.Context, key string, ttl time.Duration) error
	HasFlag(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

// Redis key patterns
const (
	failLoginUserPrefix    = "fail:login:user:"
	failLoginIPPrefix      = "fail:login:ip:"
	blockedLoginUserPrefix = "blocked:login:user:"
	blockedLoginIPPrefix   = "blocked:login:ip:"
)

// LoginTracker tracks failed login attempts and enforces blocks
type LoginTracker struct {
	config LoginTrackerConfig
	store  CounterStore
	logger *SecurityLogger
}

func NewLoginTracker(config LoginTrackerConfig, store CounterStore, logger *SecurityLogger) *LoginTracker {
	if logger == nil {
		logger = DefaultLogger()
	}
	return &LoginTracker{config: config, store: store, logger: logger}
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsBlocked checks if the given email or IP is currently blocked
func (lt *LoginTracker) IsBlocked(ctx context.Context, email, ip string) (bool, error) {
	blocked, err := lt.store.HasFlag(ctx, blockedLoginUserPrefix+normalize(email))
	if err != nil {
		return false, fmt.Errorf("failed to check user block: %w", err)
	}
	if blocked {
		return true, nil
	}
	if lt.config.UseIPTracking && ip != "" {
		blocked, err = lt.store.HasFlag(ctx, blockedLoginIPPrefix+ip)
		if err != nil {
			return false, fmt.Errorf("failed to check IP block: %w", err)
		}
	}
	return blocked, nil
}

// RecordFailedAttempt counts a failure and blocks once MaxAttempts is
// reached. Returns (blocked, attempts, error).
func (lt *LoginTracker) RecordFailedAttempt(ctx context.Context, email, ip, userAgent, requestID, reason string) (bool, int, error) {
	email = normalize(email)
	count, err := lt.store.Incr(ctx, failLoginUserPrefix+email, lt.config.AttemptWindow)
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment user counter: %w", err)
	}
	if lt.config.UseIPTracking && ip != "" {
		_, _ = lt.store.Incr(ctx, failLoginIPPrefix+ip, lt.config.AttemptWindow)
	}

	lt.logger.LogLoginFailed(ctx, email, ip, userAgent, requestID, reason)

	if count < lt.config.MaxAttempts {
		return false, count, nil
	}
	if err := lt.createBlock(ctx, email, ip, requestID); err != nil {
		return true, count, fmt.Errorf("failed to create block: %w", err)
	}
	return true, count, nil
}

func (lt *LoginTracker) createBlock(ctx context.Context, email, ip, requestID string) error {
	if err := lt.store.SetFlag(ctx, blockedLoginUserPrefix+email, lt.config.BlockDuration); err != nil {
		return fmt.Errorf("failed to set user block: %w", err)
	}
	if lt.config.UseIPTracking && ip != "" {
		if err := lt.store.SetFlag(ctx, blockedLoginIPPrefix+ip, lt.config.BlockDuration); err != nil {
			// The user block already holds.
			lt.logger.zapLogger.Warn("failed to set IP block", zap.Error(err))
		}
	}
	lt.logger.LogBlockCreated(ctx, "email", email, ip, requestID, int(lt.config.BlockDuration.Minutes()))
	return nil
}

// ClearAttempts clears failed login attempts on successful login
func (lt *LoginTracker) ClearAttempts(ctx context.Context, email, ip string) error {
	keys := []string{failLoginUserPrefix + normalize(email)}
	if lt.config.UseIPTracking && ip != "" {
		keys = append(keys, failLoginIPPrefix+ip)
	}
	if err := lt.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("failed to clear attempts: %w", err)
	}
	return nil
}

// incrWithTTLScript increments KEYS[1] and sets its TTL (ARGV[1] seconds)
// on the first increment.
const incrWithTTLScript = `
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return count
`

type RedisCounterStore struct {
	client *goredis.Client
	script *goredis.Script
}

func NewRedisCounterStore(client *goredis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client, script: goredis.NewScript(incrWithTTLScript)}
}

func (s *RedisCounterStore) Incr(ctx context.Context, key string, ttl time.Duration) (int, error) {
	secs := int(ttl.Seconds())
	if secs < 1 {
		secs = 1
	}
	n, err := s.script.Run(ctx, s.client, []string{key}, secs).Int()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *RedisCounterStore) SetFlag(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Set(ctx, key, "1", ttl).Err()
}

func (s *RedisCounterStore) HasFlag(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisCounterStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

type memCounter struct {
	n       int
	expires time.Time
}

// MemoryCounterStore keeps counters in process. It is the fallback when
// Redis is not configured and does not share state between instances.
type MemoryCounterStore struct {
	mu  sync.Mutex
	m   map[string]memCounter
	now func() time.Time
	ops int
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{m: make(map[string]memCounter), now: time.Now}
}

func (s *MemoryCounterStore) live(key string) (memCounter, bool) {
	c, ok := s.m[key]
	if !ok {
		return c, false
	}
	if !s.now().Before(c.expires) {
		delete(s.m, key)
		return c, false
	}
	return c, true
}

func (s *MemoryCounterStore) sweep() {
	s.ops++
	if s.ops%256 != 0 {
		return
	}
	now := s.now()
	for k, c := range s.m {
		if !now.Before(c.expires) {
			delete(s.m, k)
		}
	}
}

func (s *MemoryCounterStore) Incr(ctx context.Context, key string, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	c, ok := s.live(key)
	if !ok {
		c = memCounter{expires: s.now().Add(ttl)}
	}
	c.n++
	s.m[key] = c
	return c.n, nil
}

func (s *MemoryCounterStore) SetFlag(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = memCounter{n: 1, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryCounterStore) HasFlag(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live(key)
	return ok, nil
}

func (s *MemoryCounterStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.m, k)
	}
	return nil
}

// NewCounterStore picks Redis when a client is available.
func NewCounterStore(client *goredis.Client) CounterStore {
	if client == nil {
		return NewMemoryCounterStore()
	}
	return NewRedisCounterStore(client)
}
