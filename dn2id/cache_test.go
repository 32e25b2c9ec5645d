package dn2id

import (
	"testing"

	"github.com/schans/dirindex/idl"
	"github.com/schans/dirindex/kv"
	"github.com/schans/dirindex/types"
)

func smallIDL(ids ...types.ID) idl.IDL {
	l := idl.New()
	idl.Zero(l)
	for _, id := range ids {
		idl.Insert(l, id)
	}
	return l
}

func TestCacheHitAndInvalidate(t *testing.T) {
	c, err := newIDLCache(4, 0)
	if err != nil {
		t.Fatal(err)
	}
	key := []byte("one")
	c.put(key, smallIDL(1, 2, 3), nil)

	e, ok := c.get(key)
	if !ok || e.err != nil {
		t.Fatalf("expected a positive hit, got %v, %v", e, ok)
	}
	if got := idl.Count(e.ids); got != 3 {
		t.Errorf("cached set has %d ids, want 3", got)
	}

	c.del(key)
	if _, ok := c.get(key); ok {
		t.Error("entry survived invalidation")
	}
}

func TestCacheNegativeSentinel(t *testing.T) {
	c, err := newIDLCache(4, 0)
	if err != nil {
		t.Fatal(err)
	}
	key := []byte("missing")
	c.put(key, nil, kv.ErrNotFound)

	e, ok := c.get(key)
	if !ok {
		t.Fatal("negative result not cached")
	}
	if e.err != kv.ErrNotFound {
		t.Errorf("sentinel carries %v", e.err)
	}

	// other errors must not be cached
	c.put([]byte("broken"), nil, ErrOther)
	if _, ok := c.get([]byte("broken")); ok {
		t.Error("transient error cached")
	}
}

func TestCacheCountBound(t *testing.T) {
	c, err := newIDLCache(2, 0)
	if err != nil {
		t.Fatal(err)
	}
	c.put([]byte("a"), smallIDL(1), nil)
	c.put([]byte("b"), smallIDL(2), nil)
	c.put([]byte("c"), smallIDL(3), nil)
	if _, ok := c.get([]byte("a")); ok {
		t.Error("oldest entry not evicted at the count bound")
	}
	if _, ok := c.get([]byte("c")); !ok {
		t.Error("newest entry missing")
	}
}

func TestCacheByteBound(t *testing.T) {
	// two large sets fit the count bound but not the byte budget
	c, err := newIDLCache(16, 100)
	if err != nil {
		t.Fatal(err)
	}
	big := smallIDL()
	for i := types.ID(1); i <= 10; i++ {
		idl.Insert(big, i) // 11 cells = 88 bytes
	}
	c.put([]byte("a"), big, nil)
	c.put([]byte("b"), big, nil)
	if _, ok := c.get([]byte("a")); ok {
		t.Error("byte budget not enforced")
	}
	if c.bytes > 100 {
		t.Errorf("cache holds %d bytes over the %d budget", c.bytes, 100)
	}
}

// TestCacheInvalidatedBeforeWrite pins the invalidation order: the
// writer drops the entry before its store write, so a racing reader
// either misses and reads through or sees stale-but-committed state.
func TestCacheInvalidatedBeforeWrite(t *testing.T) {
	store := kv.New()
	b, err := Open(store, types.Config{
		Suffixes:     []string{"dc=example,dc=com"},
		Layout:       types.LayoutFlat,
		IDLCacheSize: 8,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	key := flatKey(PrefixOne, "dc=example,dc=com")
	scratch := idl.New()
	err = store.Update(func(txn *kv.Txn) error {
		return b.idlInsertKey(txn, key, 7, scratch)
	})
	if err != nil {
		t.Fatal(err)
	}

	// warm the cache
	ids := idl.New()
	if err := store.View(func(txn *kv.Txn) error { return b.idlFetch(txn, key, ids) }); err != nil {
		t.Fatal(err)
	}
	if _, ok := b.cache.get(key); !ok {
		t.Fatal("fetch did not populate the cache")
	}

	// a write to the key drops the entry even if the txn later aborts
	txn := store.Begin(true)
	if err := b.idlInsertKey(txn, key, 9, scratch); err != nil {
		t.Fatal(err)
	}
	if _, ok := b.cache.get(key); ok {
		t.Error("cache entry survived a pending write")
	}
	txn.Abort()

	// the aborted write never becomes visible
	if err := store.View(func(txn *kv.Txn) error { return b.idlFetch(txn, key, ids) }); err != nil {
		t.Fatal(err)
	}
	var cur types.ID
	if first := idl.First(ids, &cur); first != 7 || idl.Next(ids, &cur) != types.NOID {
		t.Errorf("reader sees ghost state: %v", ids[:idl.Cells(ids)])
	}
}
