package cache

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestNew(t *testing.T) {
	ttl := 5 * time.Minute
	cache := New[string, int](ttl)

	if cache == nil {
		t.Fatal("New returned nil")
	}
	if cache.ttl != ttl {
		t.Errorf("TTL mismatch: got %v, want %v", cache.ttl, ttl)
	}
	if cache.data == nil {
		t.Error("data map not initialized")
	}
	if _, ok := cache.clock.(SystemClock); !ok {
		t.Errorf("default clock = %T, want SystemClock", cache.clock)
	}
}

func TestSetAndGet(t *testing.T) {
	cache := NewWithClock[string, int](time.Minute, newFakeClock())

	cache.Set("key1", 42)

	value, ok := cache.Get("key1")
	if !ok {
		t.Fatal("Get returned ok=false for existing key")
	}
	if value != 42 {
		t.Errorf("Get returned wrong value: got %d, want 42", value)
	}

	if _, ok = cache.Get("nonexistent"); ok {
		t.Error("Get returned ok=true for non-existent key")
	}
}

func TestGetExpired(t *testing.T) {
	clock := newFakeClock()
	cache := NewWithClock[string, int](time.Hour, clock)

	cache.Set("key1", 42)

	clock.Advance(59 * time.Minute)
	if _, ok := cache.Get("key1"); !ok {
		t.Fatal("entry expired early")
	}

	clock.Advance(time.Minute)
	if _, ok := cache.Get("key1"); ok {
		t.Error("Get returned ok=true at expiry")
	}
	if cache.Len() != 0 {
		t.Errorf("expired entry not removed on read, Len = %d", cache.Len())
	}
}

func TestPerEntryExpiry(t *testing.T) {
	clock := newFakeClock()
	cache := NewWithClock[string, string](10*time.Minute, clock)

	cache.Set("old", "a")
	clock.Advance(6 * time.Minute)
	cache.Set("new", "b")
	clock.Advance(5 * time.Minute)

	if _, ok := cache.Get("old"); ok {
		t.Error("old entry should have expired")
	}
	if v, ok := cache.Get("new"); !ok || v != "b" {
		t.Error("new entry should still be cached")
	}
}

func TestSetRefreshesExpiry(t *testing.T) {
	clock := newFakeClock()
	cache := NewWithClock[string, int](time.Minute, clock)

	cache.Set("k", 1)
	clock.Advance(50 * time.Second)
	cache.Set("k", 2)
	clock.Advance(50 * time.Second)

	if v, ok := cache.Get("k"); !ok || v != 2 {
		t.Errorf("Get = %d, %v; want 2, true", v, ok)
	}
}

func TestPurge(t *testing.T) {
	clock := newFakeClock()
	cache := NewWithClock[int, int](time.Minute, clock)
	cache.Set(1, 1)
	cache.Set(2, 2)
	clock.Advance(2 * time.Minute)
	cache.Set(3, 3)

	if removed := cache.Purge(); removed != 2 {
		t.Errorf("Purge removed %d, want 2", removed)
	}
	if cache.Len() != 1 {
		t.Errorf("Len after purge = %d, want 1", cache.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	cache := New[int, int](time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cache.Set(id*100+j, j)
				cache.Get(id*100 + j)
				cache.Purge()
			}
		}(i)
	}
	wg.Wait()

	if cache.Len() != 1000 {
		t.Errorf("Len = %d, want 1000", cache.Len())
	}
}

func TestZeroValue(t *testing.T) {
	cache := NewWithClock[string, *int](time.Minute, newFakeClock())

	cache.Set("nil", nil)
	v, ok := cache.Get("nil")
	if !ok {
		t.Error("nil value should be cached")
	}
	if v != nil {
		t.Errorf("Get = %v, want nil", v)
	}
}
