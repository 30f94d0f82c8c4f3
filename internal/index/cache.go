package index

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/tracklab/trove/internal/object"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultCapacity bounds the number of cached base sets.
	DefaultCapacity = 64
	// DefaultTTL bounds the staleness of a cached base set.
	DefaultTTL = 5 * time.Minute
)

// Options configures the cache bounds.
type Options struct {
	// Capacity is the maximum number of cached (session, otype, search)
	// entries; least recently used entries are evicted beyond it.
	// Zero means DefaultCapacity.
	Capacity int
	// TTL is the maximum age of a cached entry. Zero means DefaultTTL;
	// negative disables expiry.
	TTL time.Duration
	// Compile turns search expressions into matchers. Nil means
	// CompileSubstring.
	Compile Compiler
}

// cacheKey identifies one base result set.
type cacheKey struct {
	session string
	otype   object.OType
	search  string
}

// entry is a cached base result set with a memo of its latest sorted view.
type entry struct {
	key     cacheKey
	records []*object.Record // base set in store order
	created time.Time

	mu       sync.Mutex
	sortMemo string
	sorted   []*object.Record
}

// sortedView returns the base set ordered by (sort, dir), memoizing the most
// recently requested ordering. SortID ascending is the base order itself
// because record IDs are k-sortable and assigned at creation.
func (e *entry) sortedView(sort Sort, dir Direction) []*object.Record {
	memo := string(sort) + "/" + string(dir)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sortMemo == memo {
		return e.sorted
	}
	e.sorted = sortRecords(e.records, sort, dir)
	e.sortMemo = memo
	return e.sorted
}

// Cache memoizes base result sets per (session, otype, search).
//
// It is bounded by capacity and TTL, and concurrent misses for one key
// collapse to a single store scan. Entries hold light record clones taken at
// computation time; staleness is bounded by the TTL and, when wired, by
// change-driven invalidation (see InvalidateType).
type Cache struct {
	store    *object.Store
	compile  Compiler
	capacity int
	ttl      time.Duration

	mu      sync.Mutex
	lru     *list.List // of *entry, most recent first
	entries map[cacheKey]*list.Element

	group singleflight.Group
}

// New creates an index cache over the record store.
func New(store *object.Store, opts Options) *Cache {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Compile == nil {
		opts.Compile = CompileSubstring
	}
	return &Cache{
		store:    store,
		compile:  opts.Compile,
		capacity: opts.Capacity,
		ttl:      opts.TTL,
		lru:      list.New(),
		entries:  make(map[cacheKey]*list.Element),
	}
}

// Len returns the number of cached base sets.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// InvalidateType drops every cached entry for one record type. Wired to the
// change bridge, it keeps views from outliving the mutations they predate.
func (c *Cache) InvalidateType(otype object.OType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, el := range c.entries {
		if k.otype == otype {
			c.lru.Remove(el)
			delete(c.entries, k)
		}
	}
}

// base returns the cached base set for the key, computing it at most once
// across concurrent callers.
func (c *Cache) base(session string, otype object.OType, search string) (*entry, error) {
	k := cacheKey{session: session, otype: otype, search: search}
	if e := c.lookup(k); e != nil {
		return e, nil
	}

	flightKey := session + "\x00" + string(otype) + "\x00" + search
	v, err, _ := c.group.Do(flightKey, func() (any, error) {
		// A concurrent flight may have installed the entry already.
		if e := c.lookup(k); e != nil {
			return e, nil
		}
		e, err := c.compute(k)
		if err != nil {
			return nil, err
		}
		c.install(k, e)
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*entry), nil
}

// lookup returns a fresh cached entry, promoting it in the LRU, or nil.
func (c *Cache) lookup(k cacheKey) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[k]
	if !ok {
		return nil
	}
	e := el.Value.(*entry)
	if c.ttl > 0 && time.Since(e.created) >= c.ttl {
		c.lru.Remove(el)
		delete(c.entries, k)
		return nil
	}
	c.lru.MoveToFront(el)
	return e
}

// compute scans the store for records matching the key's search expression.
func (c *Cache) compute(k cacheKey) (*entry, error) {
	var matcher Matcher
	if k.search != "" {
		m, err := c.compile(k.search)
		if err != nil {
			return nil, fmt.Errorf("invalid search expression: %w", err)
		}
		matcher = m
	}
	var records []*object.Record
	for rec := range c.store.All(k.otype) {
		if matcher == nil || matcher.Match(rec) {
			records = append(records, rec)
		}
	}
	return &entry{key: k, records: records, created: time.Now()}, nil
}

// install inserts the entry and evicts beyond capacity.
func (c *Cache) install(k cacheKey, e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[k]; ok {
		c.lru.Remove(el)
	}
	c.entries[k] = c.lru.PushFront(e)
	for len(c.entries) > c.capacity {
		el := c.lru.Back()
		if el == nil {
			break
		}
		c.lru.Remove(el)
		delete(c.entries, el.Value.(*entry).key)
	}
}
