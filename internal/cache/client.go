package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is how long a cached query result stays fresh.
const DefaultTTL = 10 * time.Minute

// Resource names the kind of data a cache entry holds.
type Resource string

const (
	ResourceExpenses  Resource = "expenses"
	ResourceBudgets   Resource = "budgets"
	ResourceSpending  Resource = "spending"
	ResourceProgress  Resource = "progress"
	ResourceDashboard Resource = "dashboard"
)

// Mutation names a write that makes cached views stale.
type Mutation string

const (
	MutationExpense      Mutation = "expense"
	MutationBudget       Mutation = "budget"
	MutationBaseCurrency Mutation = "base_currency"
)

// dependents lists the resources whose cached values depend on each mutation.
var dependents = map[Mutation][]Resource{
	MutationExpense:      {ResourceExpenses, ResourceSpending, ResourceProgress, ResourceDashboard},
	MutationBudget:       {ResourceBudgets, ResourceSpending, ResourceProgress, ResourceDashboard},
	MutationBaseCurrency: {ResourceSpending, ResourceProgress, ResourceDashboard},
}

// Key builds the "{resource}:{userId}:{query}" cache key.
func Key(resource Resource, userID, query string) string {
	return fmt.Sprintf("%s:%s:%s", resource, userID, query)
}

func userPrefix(resource Resource, userID string) string {
	return fmt.Sprintf("%s:%s:", resource, userID)
}

// keyPrefix returns the "{resource}:{userId}:" part of key.
func keyPrefix(key string) string {
	first := strings.IndexByte(key, ':')
	if first < 0 {
		return key
	}
	second := strings.IndexByte(key[first+1:], ':')
	if second < 0 {
		return key
	}
	return key[:first+second+2]
}

// ClientCache memoises per-user query results and drops them when the
// underlying data changes. It is safe for concurrent use.
//
// Every invalidation bumps a generation per resource and user. Fetch only
// stores a loaded value when the generation it started under is still
// current, so a load that raced a write never outlives the invalidation.
type ClientCache struct {
	store *LRUCache[any]
	ttl   time.Duration

	mu          sync.Mutex
	generations map[string]uint64
}

func NewClientCache(maxEntries int, ttl time.Duration) *ClientCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &ClientCache{
		store:       NewLRUCache[any](maxEntries, ttl),
		ttl:         ttl,
		generations: make(map[string]uint64),
	}
}

func (c *ClientCache) Get(key string) (any, bool) {
	return c.store.Get(key)
}

// Set stores value under key. A non-positive ttl uses the cache default.
func (c *ClientCache) Set(key string, value any, ttl time.Duration) {
	c.store.SetWithTTL(key, value, ttl)
}

func (c *ClientCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[keyPrefix(key)]++
	c.store.Delete(key)
}

// InvalidateUser drops every entry of resource that belongs to userID.
func (c *ClientCache) InvalidateUser(resource Resource, userID string) int {
	prefix := userPrefix(resource, userID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[prefix]++
	return c.store.DeletePrefix(prefix)
}

func (c *ClientCache) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[keyPrefix(key)]
}

// setIfCurrent stores value unless key was invalidated since gen was read.
func (c *ClientCache) setIfCurrent(key string, value any, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[keyPrefix(key)] != gen {
		return false
	}
	c.store.SetWithTTL(key, value, c.ttl)
	return true
}

// InvalidateAfter drops every entry of userID that m makes stale.
func (c *ClientCache) InvalidateAfter(m Mutation, userID string) int {
	removed := 0
	for _, r := range dependents[m] {
		removed += c.InvalidateUser(r, userID)
	}
	return removed
}

func (c *ClientCache) CleanExpired() int {
	return c.store.CleanExpired()
}

func (c *ClientCache) Size() int {
	return c.store.Size()
}

// Fetch returns the cached value for key, or calls load and caches its result.
// Errors are never cached, and neither is a result whose key was invalidated
// while load ran.
func Fetch[T any](ctx context.Context, c *ClientCache, key string, load func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	gen := c.generation(key)
	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.setIfCurrent(key, v, gen)
	return v, nil
}

// Optimistic holds a tentative cached value while the backing write runs.
type Optimistic[T any] struct {
	cache *ClientCache
	key   string
	prev  any
	had   bool
}

// BeginOptimistic snapshots key and replaces it with apply(current). When
// nothing usable is cached there is no list to extend, so no tentative value
// is stored and readers keep loading from the store.
func BeginOptimistic[T any](c *ClientCache, key string, apply func(current T) T) *Optimistic[T] {
	prev, had := c.Get(key)
	if current, ok := prev.(T); had && ok {
		c.Set(key, apply(current), c.ttl)
	}
	return &Optimistic[T]{cache: c, key: key, prev: prev, had: had}
}

// Commit drops the tentative value so the next read reloads confirmed data.
func (o *Optimistic[T]) Commit() {
	o.cache.Invalidate(o.key)
}

// Rollback restores the snapshot taken by BeginOptimistic, including absence.
func (o *Optimistic[T]) Rollback() {
	if !o.had {
		o.cache.Invalidate(o.key)
		return
	}
	o.cache.Set(o.key, o.prev, o.cache.ttl)
}

// Settle commits when err is nil and rolls back otherwise. It returns err.
func (o *Optimistic[T]) Settle(err error) error {
	if err != nil {
		o.Rollback()
		return err
	}
	o.Commit()
	return nil
}
