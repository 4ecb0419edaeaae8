package core

import (
	"fmt"
	"sync"
)

// CacheEntry records a successful task execution.
//
// Failed executions are never cached: a failing raster operation is assumed to
// be deterministic, so the next run must surface the same error again.
type CacheEntry struct {
	// Hash is the TaskHash that identifies this entry.
	Hash TaskHash `json:"hash"`

	// TaskName is informational; it does not participate in lookups.
	TaskName string `json:"task_name"`

	// Targets are the outputs written by the task and their content digests.
	Targets []TargetDigest `json:"targets"`
}

// TargetDigest is the recorded content digest of one task output.
type TargetDigest struct {
	Path   string `json:"path"`
	Digest string `json:"digest"`
}

// Cache provides storage and retrieval of task execution records.
//
// Implementations must be safe for concurrent use: the parallel executor
// probes and records from several goroutines.
type Cache interface {
	// Has checks if an entry exists for the given hash.
	Has(hash TaskHash) (bool, error)

	// Get retrieves an entry by hash. Returns nil if it does not exist.
	Get(hash TaskHash) (*CacheEntry, error)

	// Put stores an entry, replacing any existing entry with the same hash.
	Put(entry *CacheEntry) error
}

// MemoryCache implements Cache using in-memory storage.
// Useful for testing and short-lived processes.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[TaskHash]*CacheEntry
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[TaskHash]*CacheEntry)}
}

// Has checks if a cache entry exists.
func (c *MemoryCache) Has(hash TaskHash) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[hash]
	return ok, nil
}

// Get retrieves a copy of a cache entry.
func (c *MemoryCache) Get(hash TaskHash) (*CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[hash]
	if !ok {
		return nil, nil
	}
	return entry.clone(), nil
}

// Put stores a copy of entry.
func (c *MemoryCache) Put(entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry is nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Hash] = entry.clone()
	return nil
}

// Len returns the number of stored entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (e *CacheEntry) clone() *CacheEntry {
	out := &CacheEntry{Hash: e.Hash, TaskName: e.TaskName}
	out.Targets = make([]TargetDigest, len(e.Targets))
	copy(out.Targets, e.Targets)
	return out
}
