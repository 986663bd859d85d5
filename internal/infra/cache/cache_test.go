package cache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/lifecover-bfa-go/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("role:ana@example.com", "agent")
	val, ok := c.Get("role:ana@example.com")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "agent" {
		t.Errorf("expected 'agent', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	_, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)
	defer c.Close()

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_SetWithTTLOverridesDefault(t *testing.T) {
	c := cache.New[int](5 * time.Minute)
	defer c.Close()

	c.SetWithTTL("quote", 580, 20*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	if _, ok := c.Get("quote"); ok {
		t.Fatal("expected per-entry ttl to win over the cache default")
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	c.Delete("key1")

	_, ok := c.Get("key1")
	if ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestCache_JanitorPurgesExpired(t *testing.T) {
	c := cache.New[string](20 * time.Millisecond)
	defer c.Close()

	c.Set("a", "1")
	c.Set("b", "2")
	time.Sleep(100 * time.Millisecond)

	if n := c.Len(); n != 0 {
		t.Errorf("expected janitor to purge expired entries, %d left", n)
	}
}

func TestCache_TakeHandsOutOnce(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("quote-1", "580.00")

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		taken int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.Take("quote-1"); ok {
				mu.Lock()
				taken++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if taken != 1 {
		t.Errorf("expected exactly one taker, got %d", taken)
	}
	if _, ok := c.Get("quote-1"); ok {
		t.Error("expected taken key to be gone")
	}
}

func TestCache_TakeExpired(t *testing.T) {
	c := cache.New[string](0)
	defer c.Close()

	c.SetWithTTL("quote-1", "580.00", -time.Second)
	if _, ok := c.Take("quote-1"); ok {
		t.Error("expected expired entry not to be taken")
	}
	if c.Len() != 0 {
		t.Errorf("expected expired entry to be dropped, got %d entries", c.Len())
	}
}
