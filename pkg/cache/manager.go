package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Config holds cache tuning.
type Config struct {
	// DefaultTTL applies when a response carries no usable Expires header.
	DefaultTTL time.Duration

	// StaleFor is how long an expired entry is kept for revalidation.
	StaleFor time.Duration
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		DefaultTTL: 5 * time.Minute,
		StaleFor:   1 * time.Hour,
	}
}

// Manager handles page cache operations against Redis.
type Manager struct {
	redis  redis.Cmdable
	config Config
}

// NewManager creates a cache manager. It panics on a nil Redis client.
func NewManager(redisClient redis.Cmdable, cfg Config) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultConfig().DefaultTTL
	}
	if cfg.StaleFor < 0 {
		cfg.StaleFor = 0
	}
	return &Manager{
		redis:  redisClient,
		config: cfg,
	}
}

// DefaultTTL returns the TTL applied to responses without Expires.
func (m *Manager) DefaultTTL() time.Duration {
	return m.config.DefaultTTL
}

// Get retrieves a cache entry by key. Expired entries still within the
// stale window are returned; callers check Entry.IsExpired.
// Returns ErrCacheMiss if nothing is stored.
func (m *Manager) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		_ = m.Delete(ctx, key)
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	return &entry, nil
}

// Set stores entry until it expires plus the stale window.
// Entries that would be dropped immediately are not written.
func (m *Manager) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	expiration := entry.TTL() + m.config.StaleFor
	if expiration <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, expiration).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheStoredBytes.Add(float64(len(data)))
	return nil
}

// Refresh extends a revalidated entry to newExpires and stores it again.
func (m *Manager) Refresh(ctx context.Context, key Key, entry *Entry, newExpires time.Time) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	refreshed := *entry
	refreshed.Expires = newExpires
	if err := m.Set(ctx, key, &refreshed); err != nil {
		CacheErrors.WithLabelValues("refresh").Inc()
		return err
	}
	*entry = refreshed
	return nil
}

// Delete removes a cache entry.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
