package attempt

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/thejerf/abtime"
)

const (
	stripeCount   = 64
	sweepTickerID = 1
)

// Options configures a Cache. Zero values take the package defaults.
type Options struct {
	Window     time.Duration
	MaxEntries int
	Threshold  int
	Clock      abtime.AbstractTime
}

type record struct {
	count     int
	writtenAt time.Time
}

// Cache is the in-process Limiter. Entries expire Window after their last
// write regardless of reads, and the least recently used identity is dropped
// once MaxEntries is exceeded.
//
// Read-modify-write on one identity is serialized by a striped mutex, so
// different identities rarely contend.
type Cache struct {
	window    time.Duration
	threshold int
	clock     abtime.AbstractTime

	entries *lru.Cache[string, record]
	stripes [stripeCount]sync.Mutex
}

var _ Limiter = (*Cache)(nil)

// NewCache builds a Cache from opts.
func NewCache(opts Options) (*Cache, error) {
	if opts.Window == 0 {
		opts.Window = DefaultWindow
	}
	if opts.MaxEntries == 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Threshold == 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Window < 0 || opts.MaxEntries < 0 || opts.Threshold < 0 {
		return nil, fmt.Errorf("attempt cache: window, size and threshold must be positive")
	}
	if opts.Clock == nil {
		opts.Clock = abtime.NewRealTime()
	}

	entries, err := lru.New[string, record](opts.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("attempt cache: %w", err)
	}

	return &Cache{
		window:    opts.Window,
		threshold: opts.Threshold,
		clock:     opts.Clock,
		entries:   entries,
	}, nil
}

func (c *Cache) stripe(identity string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identity))
	return &c.stripes[h.Sum32()%stripeCount]
}

func (c *Cache) expired(r record, now time.Time) bool {
	return !now.Before(r.writtenAt.Add(c.window))
}

// RecordFailure increments the identity's count, starting at 1, and restarts
// its expiry window.
func (c *Cache) RecordFailure(_ context.Context, identity string) error {
	mu := c.stripe(identity)
	mu.Lock()
	defer mu.Unlock()

	now := c.clock.Now()
	count := 0
	if r, ok := c.entries.Get(identity); ok && !c.expired(r, now) {
		count = r.count
	}
	c.entries.Add(identity, record{count: count + 1, writtenAt: now})
	return nil
}

// Evict forgets the identity immediately.
func (c *Cache) Evict(_ context.Context, identity string) error {
	mu := c.stripe(identity)
	mu.Lock()
	defer mu.Unlock()

	c.entries.Remove(identity)
	return nil
}

// Attempts returns the live count for identity. Expired entries read as zero
// and are dropped on the way.
func (c *Cache) Attempts(_ context.Context, identity string) (int, error) {
	mu := c.stripe(identity)
	mu.Lock()
	defer mu.Unlock()

	r, ok := c.entries.Get(identity)
	if !ok {
		return 0, nil
	}
	if c.expired(r, c.clock.Now()) {
		c.entries.Remove(identity)
		return 0, nil
	}
	return r.count, nil
}

// HasExceededLimit reports whether the live count has reached the threshold.
func (c *Cache) HasExceededLimit(ctx context.Context, identity string) (bool, error) {
	count, err := c.Attempts(ctx, identity)
	if err != nil {
		return false, err
	}
	return count >= c.threshold, nil
}

// Len reports the number of stored entries, including ones that have expired
// but not yet been swept.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Sweep drops every expired entry and returns how many were removed.
func (c *Cache) Sweep() int {
	now := c.clock.Now()
	removed := 0
	for _, identity := range c.entries.Keys() {
		mu := c.stripe(identity)
		mu.Lock()
		if r, ok := c.entries.Peek(identity); ok && c.expired(r, now) {
			c.entries.Remove(identity)
			removed++
		}
		mu.Unlock()
	}
	return removed
}

// Run sweeps expired entries every quarter window until ctx is done.
func (c *Cache) Run(ctx context.Context) {
	ticker := c.clock.NewTicker(c.window/4, sweepTickerID)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Channel():
			c.Sweep()
		}
	}
}
