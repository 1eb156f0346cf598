// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"context"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// TB is the subset of testing.TB the fixtures need.
type TB interface {
	Helper()
	Skipf(format string, args ...any)
	Fatalf(format string, args ...any)
	Logf(format string, args ...any)
	Cleanup(func())
}

// TestRedis pairs a client with the miniredis server behind it.
type TestRedis struct {
	Client *redis.Client
	// Mini is nil when TEST_REDIS_ADDR points at a real server.
	Mini *miniredis.Miniredis
}

// FastForward advances key expiry. A real server is slept on instead.
func (r *TestRedis) FastForward(d time.Duration) {
	if r.Mini != nil {
		r.Mini.FastForward(d)
		return
	}
	time.Sleep(d)
}

// SetupTestRedis starts miniredis, or connects to TEST_REDIS_ADDR when set.
// Either way the client is closed when the test ends.
func SetupTestRedis(t TB) *TestRedis {
	t.Helper()
	if addr := strings.TrimSpace(os.Getenv("TEST_REDIS_ADDR")); addr != "" {
		return connectRealRedis(t, addr)
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	r := &TestRedis{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()}), Mini: mr}
	t.Cleanup(func() {
		closeClient(t, r.Client)
		mr.Close()
	})
	return r
}

func connectRealRedis(t TB, addr string) *TestRedis {
	t.Helper()
	db := 1
	if raw := os.Getenv("TEST_REDIS_DB"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			t.Fatalf("TEST_REDIS_DB=%q is not a database index", raw)
		}
		db = n
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		closeClient(t, client)
		if truthy(os.Getenv("TEST_REQUIRE_REDIS")) {
			t.Fatalf("redis at %s: %v", addr, err)
		}
		t.Skipf("redis at %s unavailable: %v", addr, err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush redis db %d: %v", db, err)
	}
	t.Cleanup(func() { closeClient(t, client) })
	return &TestRedis{Client: client}
}

func closeClient(t TB, c *redis.Client) {
	if err := c.Close(); err != nil {
		t.Logf("close redis client: %v", err)
	}
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

// TestTime is the fixed instant session tests run at.
func TestTime() time.Time {
	return time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
}

// FixedTimeFunc returns a clock stuck at t.
func FixedTimeFunc(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// Clock is a manually advanced clock safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a Clock at t.
func NewClock(t time.Time) *Clock { return &Clock{now: t} }

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
