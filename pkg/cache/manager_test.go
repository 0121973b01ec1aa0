package cache

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis starts an in-memory Redis for unit tests. The real-Redis
// variant lives in manager_integration_test.go.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return client, mr
}

func testKey() Key {
	return Key{
		Path: "/api/v1/Tweets",
		Query: url.Values{
			"startDate": {"2016-01-01T00:00:00Z"},
			"endDate":   {"2017-01-01T00:00:00Z"},
		},
	}
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil, DefaultConfig())
}

func TestNewManager_Defaults(t *testing.T) {
	client, _ := setupTestRedis(t)

	manager := NewManager(client, Config{StaleFor: -time.Second})
	if manager.DefaultTTL() != DefaultConfig().DefaultTTL {
		t.Errorf("DefaultTTL = %v, want %v", manager.DefaultTTL(), DefaultConfig().DefaultTTL)
	}
	if manager.config.StaleFor != 0 {
		t.Errorf("StaleFor = %v, want 0", manager.config.StaleFor)
	}
}

func TestManager_SetAndGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	manager := NewManager(client, Config{DefaultTTL: time.Minute, StaleFor: 10 * time.Minute})
	ctx := context.Background()
	key := testKey()

	entry := &Entry{
		Data:       []byte(`[{"id":"1","stamp":"2016-01-01T00:00:00Z","text":"a"}]`),
		ETag:       `"abc123"`,
		Expires:    time.Now().Add(5 * time.Minute),
		StatusCode: 200,
		CachedAt:   time.Now(),
	}

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Redis TTL covers freshness plus the stale window
	ttl := mr.TTL(key.String())
	if ttl < 14*time.Minute || ttl > 15*time.Minute {
		t.Errorf("redis TTL = %v, want ~15m", ttl)
	}

	retrieved, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(retrieved.Data) != string(entry.Data) {
		t.Errorf("Data mismatch: got %s, want %s", retrieved.Data, entry.Data)
	}
	if retrieved.ETag != entry.ETag {
		t.Errorf("ETag mismatch: got %s, want %s", retrieved.ETag, entry.ETag)
	}
	if retrieved.IsExpired() {
		t.Error("fresh entry reported as expired")
	}
}

func TestManager_Get_CacheMiss(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client, DefaultConfig())

	_, err := manager.Get(context.Background(), testKey())
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestManager_Get_StaleEntry(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client, Config{DefaultTTL: time.Minute, StaleFor: time.Hour})
	ctx := context.Background()
	key := testKey()

	entry := &Entry{
		Data:    []byte(`[]`),
		ETag:    `"v1"`,
		Expires: time.Now().Add(-1 * time.Minute),
	}
	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	retrieved, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !retrieved.IsExpired() {
		t.Error("stale entry should report expired")
	}
	if !retrieved.CanRevalidate() {
		t.Error("stale entry with ETag should be revalidatable")
	}
}

func TestManager_Set_ExpiredWithoutStaleWindow(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client, Config{DefaultTTL: time.Minute})
	ctx := context.Background()
	key := testKey()

	entry := &Entry{
		Data:    []byte(`[]`),
		Expires: time.Now().Add(-1 * time.Hour),
	}
	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	_, err := manager.Get(ctx, key)
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss for expired entry, got %v", err)
	}
}

func TestManager_Get_InvalidEntry(t *testing.T) {
	client, mr := setupTestRedis(t)
	manager := NewManager(client, DefaultConfig())
	key := testKey()

	if err := mr.Set(key.String(), "not json"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	_, err := manager.Get(context.Background(), key)
	if !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("Expected ErrInvalidEntry, got %v", err)
	}
	if mr.Exists(key.String()) {
		t.Error("corrupt entry should be deleted")
	}
}

func TestManager_Refresh(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client, Config{DefaultTTL: time.Minute, StaleFor: time.Hour})
	ctx := context.Background()
	key := testKey()

	entry := &Entry{
		Data:    []byte(`[]`),
		ETag:    `"v1"`,
		Expires: time.Now().Add(-time.Minute),
	}
	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	newExpires := time.Now().Add(10 * time.Minute)
	if err := manager.Refresh(ctx, key, entry, newExpires); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if !entry.Expires.Equal(newExpires) {
		t.Errorf("entry.Expires = %v, want %v", entry.Expires, newExpires)
	}

	retrieved, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after Refresh failed: %v", err)
	}
	diff := retrieved.Expires.Sub(newExpires)
	if diff < -time.Second || diff > time.Second {
		t.Errorf("Expires not updated: got %v, want %v", retrieved.Expires, newExpires)
	}
	if retrieved.IsExpired() {
		t.Error("refreshed entry should be fresh")
	}
}

func TestManager_Delete(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client, DefaultConfig())
	ctx := context.Background()
	key := testKey()

	entry := &Entry{
		Data:    []byte(`[]`),
		Expires: time.Now().Add(5 * time.Minute),
	}
	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := manager.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, err := manager.Get(ctx, key)
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after Delete, got %v", err)
	}
}

func TestManager_Set_NilEntry(t *testing.T) {
	client, _ := setupTestRedis(t)
	manager := NewManager(client, DefaultConfig())

	if err := manager.Set(context.Background(), testKey(), nil); err == nil {
		t.Error("Set with nil entry should return error")
	}
}
