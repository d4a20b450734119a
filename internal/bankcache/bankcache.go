// Package bankcache memoizes the ranked bank listing.
//
// The cache holds exactly one entry: the ranked list of bank names and the
// time it was fetched. An entry older than the TTL is refetched from the
// source on the next Get. Two tiers back the entry: an in-process go-cache
// (long-running servers) and an optional persisted copy (separate CLI
// invocations). A stale entry only means the selectable bank options are
// older than the warehouse; it never affects table or chart computation.
package bankcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/derickschaefer/bankview/internal/model"
)

// DefaultTTL is the expiry of a cached listing.
const DefaultTTL = 10 * time.Minute

const entryKey = "largest_banks"

// Source fetches the ranked bank listing from the warehouse.
type Source func(ctx context.Context) ([]string, error)

// Persister is the persisted tier. *store.Store satisfies it.
type Persister interface {
	GetBanks() (model.BankList, bool, error)
	PutBanks(model.BankList) error
	DeleteBanks() error
}

// Options configures a Cache.
type Options struct {
	TTL     time.Duration    // zero means DefaultTTL
	Persist Persister        // nil disables the persisted tier
	Now     func() time.Time // nil means time.Now
}

// Cache is the explicit expiring singleton cache for the bank listing.
type Cache struct {
	source  Source
	persist Persister
	mem     *cache.Cache
	ttl     time.Duration
	now     func() time.Time

	mu sync.Mutex // serialises refetches so concurrent misses query once
}

// New returns a Cache over source.
func New(source Source, opts Options) *Cache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{
		source:  source,
		persist: opts.Persist,
		mem:     cache.New(ttl, 2*ttl),
		ttl:     ttl,
		now:     now,
	}
}

// TTL returns the configured expiry.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the bank listing and whether it was served from cache.
func (c *Cache) Get(ctx context.Context) (model.BankList, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if list, ok := c.fromMemory(); ok {
		slog.Debug("bank list cache hit", "tier", "memory", "age", c.now().Sub(list.FetchedAt))
		return list, true, nil
	}
	if list, ok := c.fromPersisted(); ok {
		slog.Debug("bank list cache hit", "tier", "store", "age", c.now().Sub(list.FetchedAt))
		c.mem.Set(entryKey, list, cache.DefaultExpiration)
		return list, true, nil
	}
	list, err := c.fetch(ctx)
	return list, false, err
}

// Refresh refetches the listing regardless of its age.
func (c *Cache) Refresh(ctx context.Context) (model.BankList, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetch(ctx)
}

// Invalidate drops the entry from both tiers.
func (c *Cache) Invalidate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem.Delete(entryKey)
	if c.persist != nil {
		if err := c.persist.DeleteBanks(); err != nil {
			return fmt.Errorf("invalidating persisted bank list: %w", err)
		}
	}
	return nil
}

// Peek returns the current entry, if any, without fetching or checking age.
func (c *Cache) Peek() (model.BankList, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.mem.Get(entryKey); ok {
		return v.(model.BankList), true
	}
	if c.persist != nil {
		if list, ok, err := c.persist.GetBanks(); err == nil && ok {
			return list, true
		}
	}
	return model.BankList{}, false
}

func (c *Cache) fresh(list model.BankList) bool {
	return c.now().Sub(list.FetchedAt) < c.ttl
}

func (c *Cache) fromMemory() (model.BankList, bool) {
	v, ok := c.mem.Get(entryKey)
	if !ok {
		return model.BankList{}, false
	}
	list := v.(model.BankList)
	if !c.fresh(list) {
		c.mem.Delete(entryKey)
		return model.BankList{}, false
	}
	return list, true
}

func (c *Cache) fromPersisted() (model.BankList, bool) {
	if c.persist == nil {
		return model.BankList{}, false
	}
	list, ok, err := c.persist.GetBanks()
	if err != nil {
		slog.Warn("ignoring unreadable persisted bank list", "err", err)
		return model.BankList{}, false
	}
	if !ok || !c.fresh(list) {
		return model.BankList{}, false
	}
	return list, true
}

func (c *Cache) fetch(ctx context.Context) (model.BankList, error) {
	start := c.now()
	names, err := c.source(ctx)
	if err != nil {
		return model.BankList{}, fmt.Errorf("listing banks: %w", err)
	}
	list := model.BankList{Names: names, FetchedAt: start}
	c.mem.Set(entryKey, list, cache.DefaultExpiration)
	if c.persist != nil {
		if err := c.persist.PutBanks(list); err != nil {
			slog.Warn("could not persist bank list", "err", err)
		}
	}
	slog.Debug("bank list fetched", "banks", len(names))
	return list, nil
}
