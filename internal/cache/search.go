// Package cache provides a small LRU for glob and grep results, invalidated
// by the filesystem watcher.
package cache

import (
	"container/list"
	"fmt"
	"sync"

	"genport/internal/vfs"
)

// DefaultCapacity bounds the number of cached result sets.
const DefaultCapacity = 128

// GlobKey identifies a cached glob run.
func GlobKey(pattern, cwd string) string {
	return fmt.Sprintf("glob\x00%s\x00%s", pattern, cwd)
}

// GrepKey identifies a cached grep run.
func GrepKey(pattern, path string, recursive bool) string {
	return fmt.Sprintf("grep\x00%s\x00%s\x00%t", pattern, path, recursive)
}

type entry struct {
	key     string
	globs   []string
	matches []vfs.Match
}

// SearchCache is an LRU over search results. Safe for concurrent use.
type SearchCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[string]*list.Element
}

// New creates a cache. capacity <= 0 uses DefaultCapacity.
func New(capacity int) *SearchCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &SearchCache{
		capacity: capacity,
		order:    list.New(),
		items:    map[string]*list.Element{},
	}
}

// GetGlob returns a cached glob result.
func (c *SearchCache) GetGlob(key string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).globs, true
}

// PutGlob stores a glob result.
func (c *SearchCache) PutGlob(key string, result []string) {
	c.put(&entry{key: key, globs: result})
}

// GetGrep returns a cached grep result.
func (c *SearchCache) GetGrep(key string) ([]vfs.Match, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).matches, true
}

// PutGrep stores a grep result.
func (c *SearchCache) PutGrep(key string, result []vfs.Match) {
	c.put(&entry{key: key, matches: result})
}

func (c *SearchCache) put(e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[e.key]; ok {
		el.Value = e
		c.order.MoveToFront(el)
		return
	}
	c.items[e.key] = c.order.PushFront(e)
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry).key)
	}
}

// Clear drops everything. Called when the watched tree changes; search
// results cannot be invalidated more precisely without re-running them.
func (c *SearchCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = map[string]*list.Element{}
}

// Len reports the number of cached result sets.
func (c *SearchCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
