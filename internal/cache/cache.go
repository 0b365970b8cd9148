package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/amaumene/gostremiodebrid/internal/metrics"
)

// Store is a TTL key/value store. Values are JSON encoded so that the memory
// and redis implementations behave the same.
type Store interface {
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type Item struct {
	Key        string
	Value      interface{}
	Expiration time.Time
}

// LRUCache is a bounded in-memory cache with per-entry expiry.
type LRUCache struct {
	capacity   int
	items      map[string]*list.Element
	evictList  *list.List
	mu         sync.Mutex
	defaultTTL time.Duration
	now        func() time.Time
}

func New(capacity int, defaultTTL time.Duration) *LRUCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRUCache{
		capacity:   capacity,
		items:      make(map[string]*list.Element),
		evictList:  list.New(),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

func (c *LRUCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		item := elem.Value.(*Item)
		if !item.Expiration.IsZero() && c.now().After(item.Expiration) {
			c.removeElement(elem)
			return nil, false
		}
		c.evictList.MoveToFront(elem)
		return item.Value, true
	}
	return nil, false
}

// Set stores value with the default TTL.
func (c *LRUCache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores value until ttl elapses. A zero ttl never expires.
func (c *LRUCache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiration time.Time
	if ttl > 0 {
		expiration = c.now().Add(ttl)
	}

	if elem, ok := c.items[key]; ok {
		item := elem.Value.(*Item)
		item.Value = value
		item.Expiration = expiration
		c.evictList.MoveToFront(elem)
		return
	}

	elem := c.evictList.PushFront(&Item{Key: key, Value: value, Expiration: expiration})
	c.items[key] = elem

	if c.evictList.Len() > c.capacity {
		c.removeOldest()
	}
}

func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.evictList.Init()
}

func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

func (c *LRUCache) removeOldest() {
	if elem := c.evictList.Back(); elem != nil {
		c.removeElement(elem)
	}
}

func (c *LRUCache) removeElement(elem *list.Element) {
	c.evictList.Remove(elem)
	item := elem.Value.(*Item)
	delete(c.items, item.Key)
}

// CleanExpired drops expired entries and returns how many were removed.
func (c *LRUCache) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var toRemove []*list.Element
	for elem := c.evictList.Back(); elem != nil; elem = elem.Prev() {
		item := elem.Value.(*Item)
		if !item.Expiration.IsZero() && now.After(item.Expiration) {
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		c.removeElement(elem)
	}
	return len(toRemove)
}

// Memory adapts LRUCache to Store. Values are stored as JSON bytes.
type Memory struct {
	lru *LRUCache
}

func NewMemory(capacity int) *Memory {
	return &Memory{lru: New(capacity, 0)}
}

func (m *Memory) Get(_ context.Context, key string, dst interface{}) (bool, error) {
	v, ok := m.lru.Get(key)
	if !ok {
		metrics.CacheMissesTotal.WithLabelValues("memory").Inc()
		return false, nil
	}
	metrics.CacheHitsTotal.WithLabelValues("memory").Inc()
	return true, json.Unmarshal(v.([]byte), dst)
}

func (m *Memory) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.lru.SetWithTTL(key, data, ttl)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.lru.Delete(key)
	return nil
}

// CleanExpired is run by the housekeeping scheduler.
func (m *Memory) CleanExpired() int {
	return m.lru.CleanExpired()
}
