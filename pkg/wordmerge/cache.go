package wordmerge

import (
	"container/list"
	"sync"
	"time"
)

// CacheConfig sizes a TemplateCache.
type CacheConfig struct {
	// MaxSize bounds the number of prepared templates kept; 0 keeps none.
	MaxSize int
	// TTL drops templates this long after they were stored; 0 keeps them
	// until evicted.
	TTL time.Duration
}

// TemplateCache maps template paths to prepared templates. The least
// recently used template is evicted when the cache is full. Evicted
// templates stay usable by whoever holds them.
type TemplateCache struct {
	mu      sync.Mutex
	config  CacheConfig
	byKey   map[string]*list.Element
	recency *list.List // front is most recently used
}

type cached struct {
	key      string
	template *Template
	storedAt time.Time
}

func NewTemplateCacheWithConfig(config CacheConfig) *TemplateCache {
	return &TemplateCache{
		config:  config,
		byKey:   make(map[string]*list.Element),
		recency: list.New(),
	}
}

func (tc *TemplateCache) expired(c *cached) bool {
	return tc.config.TTL > 0 && time.Since(c.storedAt) > tc.config.TTL
}

// Get returns the template stored under key if it has not expired.
func (tc *TemplateCache) Get(key string) (*Template, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	el, ok := tc.byKey[key]
	if !ok {
		return nil, false
	}
	c := el.Value.(*cached)
	if tc.expired(c) {
		tc.drop(el)
		return nil, false
	}
	tc.recency.MoveToFront(el)
	return c.template, true
}

// Set stores template under key. Nothing is stored when caching is
// disabled.
func (tc *TemplateCache) Set(key string, template *Template) {
	if tc.config.MaxSize <= 0 {
		return
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()

	now := time.Now()
	if el, ok := tc.byKey[key]; ok {
		c := el.Value.(*cached)
		c.template, c.storedAt = template, now
		tc.recency.MoveToFront(el)
		return
	}
	for tc.recency.Len() >= tc.config.MaxSize {
		tc.drop(tc.recency.Back())
	}
	tc.byKey[key] = tc.recency.PushFront(&cached{key: key, template: template, storedAt: now})
}

func (tc *TemplateCache) Remove(key string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if el, ok := tc.byKey[key]; ok {
		tc.drop(el)
	}
}

func (tc *TemplateCache) drop(el *list.Element) {
	delete(tc.byKey, el.Value.(*cached).key)
	tc.recency.Remove(el)
}

func (tc *TemplateCache) Clear() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.byKey = make(map[string]*list.Element)
	tc.recency.Init()
}

func (tc *TemplateCache) Size() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.recency.Len()
}
