package dn2id

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/schans/dirindex/idl"
	"github.com/schans/dirindex/kv"
)

// cacheEntry is one cached (key → IDL) result. A nil ids with
// err == kv.ErrNotFound is the negative sentinel that short-circuits
// repeated misses.
type cacheEntry struct {
	ids  idl.IDL // live cells only
	err  error
	size int
}

// sentinelSize charges negative entries against the byte budget.
const sentinelSize = 8

// idlCache is a bounded cache of (db, key) → IDL, shared by readers
// and invalidated by writers before their store write, so a racing
// reader either misses and reads through or sees stale-but-committed
// state, never a ghost of an aborted write.
type idlCache struct {
	mu       sync.Mutex
	entries  *lru.Cache[string, *cacheEntry]
	maxBytes int
	bytes    int
}

func newIDLCache(size, maxBytes int) (*idlCache, error) {
	c := &idlCache{maxBytes: maxBytes}
	entries, err := lru.NewWithEvict[string, *cacheEntry](size,
		func(_ string, e *cacheEntry) { c.bytes -= e.size })
	if err != nil {
		return nil, err
	}
	c.entries = entries
	return c, nil
}

func (c *idlCache) get(key []byte) (*cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Get(string(key))
}

// put stores a copy of ids, or the negative sentinel when err is
// kv.ErrNotFound. Other errors are not cached.
func (c *idlCache) put(key []byte, ids idl.IDL, err error) {
	e := &cacheEntry{err: err, size: sentinelSize}
	switch {
	case err == nil:
		e.ids = append(idl.IDL(nil), ids[:idl.Cells(ids)]...)
		e.size = idl.SizeOf(ids)
	case err != kv.ErrNotFound:
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(string(key)) // release the replaced entry's bytes
	c.entries.Add(string(key), e)
	c.bytes += e.size
	if c.maxBytes > 0 {
		for c.bytes > c.maxBytes && c.entries.Len() > 1 {
			c.entries.RemoveOldest()
		}
	}
}

func (c *idlCache) del(key []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(string(key))
}
