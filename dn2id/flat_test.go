package dn2id_test

import (
	"errors"
	"testing"

	"github.com/schans/dirindex/dn2id"
	"github.com/schans/dirindex/idl"
	"github.com/schans/dirindex/kv"
	"github.com/schans/dirindex/testutil"
	"github.com/schans/dirindex/types"
)

func TestFlatLookupRoundTrip(t *testing.T) {
	_, b, u := testutil.LoadUniverse(t, types.LayoutFlat)
	for _, e := range u.InOrder {
		testutil.AssertLookup(t, b, e.NName, nil, e.ID)
	}
}

func TestFlatLookupMiss(t *testing.T) {
	_, b, _ := testutil.LoadUniverse(t, types.LayoutFlat)
	ei := &types.EntryInfo{}
	err := b.Lookup(nil, "uid=ghost,ou=people,"+testutil.Suffix, ei)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFlatScopeSets(t *testing.T) {
	_, b, u := testutil.LoadUniverse(t, types.LayoutFlat)

	testutil.AssertScope(t, b, u.SuffixEntry, dn2id.PrefixOne, 2, 5)
	testutil.AssertScope(t, b, u.People, dn2id.PrefixOne, 3, 4)
	testutil.AssertScope(t, b, u.People, dn2id.PrefixSub, 2, 3, 4)
	testutil.AssertScope(t, b, u.Alice, dn2id.PrefixSub, 3)

	// the sole suffix answers subtree scope with the all-ids range,
	// without touching disk
	ids := idl.New()
	if err := b.ScopeIDL(nil, u.SuffixEntry, dn2id.PrefixSub, ids, nil); err != nil {
		t.Fatalf("suffix subtree scope: %v", err)
	}
	if !idl.IsRange(ids) {
		t.Fatal("expected the all-ids range for the suffix subtree")
	}
	testutil.AssertIDL(t, ids, 1, 2, 3, 4, 5, 6)
}

func TestFlatOneScopesDisjoint(t *testing.T) {
	_, b, u := testutil.LoadUniverse(t, types.LayoutFlat)

	one := func(e *types.Entry) map[types.ID]bool {
		ids := idl.New()
		err := b.ScopeIDL(nil, e, dn2id.PrefixOne, ids, nil)
		if err != nil && !errors.Is(err, kv.ErrNotFound) {
			t.Fatalf("scope: %v", err)
		}
		set := make(map[types.ID]bool)
		for _, id := range testutil.IDs(ids) {
			set[id] = true
		}
		return set
	}
	suffix, people := one(u.SuffixEntry), one(u.People)
	for id := range suffix {
		if people[id] {
			t.Errorf("id %d appears under two different parents", id)
		}
	}
}

func TestFlatSubtreeIsUnionOfChildren(t *testing.T) {
	_, b, u := testutil.LoadUniverse(t, types.LayoutFlat)

	sub := idl.New()
	if err := b.ScopeIDL(nil, u.People, dn2id.PrefixSub, sub, nil); err != nil {
		t.Fatalf("scope: %v", err)
	}

	want := idl.New()
	idl.Zero(want)
	idl.Insert(want, u.People.ID)
	for _, child := range []*types.Entry{u.Alice, u.Bob} {
		cs := idl.New()
		err := b.ScopeIDL(nil, child, dn2id.PrefixSub, cs, nil)
		if err != nil && !errors.Is(err, kv.ErrNotFound) {
			t.Fatalf("scope: %v", err)
		}
		idl.Union(want, cs)
	}
	testutil.AssertIDL(t, sub, testutil.IDs(want)...)
}

func TestFlatHasChildren(t *testing.T) {
	_, b, u := testutil.LoadUniverse(t, types.LayoutFlat)
	testutil.AssertHasChildren(t, b, u.SuffixEntry, true)
	testutil.AssertHasChildren(t, b, u.People, true)
	testutil.AssertHasChildren(t, b, u.Alice, false)
}

func TestFlatDuplicateAddIsFatal(t *testing.T) {
	store, b, u := testutil.LoadUniverse(t, types.LayoutFlat)
	txn := store.Begin(true)
	defer txn.Abort()
	dup := testutil.NewEntry(42, u.SuffixEntry.NName, nil)
	err := b.Add(txn, u.Root, dup)
	if !errors.Is(err, kv.ErrKeyExist) {
		t.Errorf("expected ErrKeyExist, got %v", err)
	}
}

func TestFlatDelete(t *testing.T) {
	store, b, u := testutil.LoadUniverse(t, types.LayoutFlat)

	err := store.Update(func(txn *kv.Txn) error {
		return b.Delete(txn, u.People.Info, u.Alice)
	})
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	testutil.AssertScope(t, b, u.People, dn2id.PrefixOne, 4)
	testutil.AssertScope(t, b, u.People, dn2id.PrefixSub, 2, 4)
	ei := &types.EntryInfo{}
	if err := b.Lookup(nil, u.Alice.NName, ei); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("deleted entry still resolves: %v", err)
	}
}

func TestFlatDeleteLastChildLeavesEmptySet(t *testing.T) {
	store, b, u := testutil.LoadUniverse(t, types.LayoutFlat)

	err := store.Update(func(txn *kv.Txn) error {
		if err := b.Delete(txn, u.People.Info, u.Alice); err != nil {
			return err
		}
		return b.Delete(txn, u.People.Info, u.Bob)
	})
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	testutil.AssertHasChildren(t, b, u.People, false)
	testutil.AssertScope(t, b, u.People, dn2id.PrefixOne)
}

func TestFlatDeleteMissingEntry(t *testing.T) {
	store, b, u := testutil.LoadUniverse(t, types.LayoutFlat)

	ghost := testutil.NewEntry(99, "uid=ghost,ou=people,"+testutil.Suffix, u.People)
	txn := store.Begin(true)
	err := b.Delete(txn, u.People.Info, ghost)
	txn.Abort()
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// no side effects
	testutil.AssertScope(t, b, u.People, dn2id.PrefixOne, 3, 4)
}

func TestFlatAddDeleteRestoresState(t *testing.T) {
	store, b, u := testutil.LoadUniverse(t, types.LayoutFlat)

	extra := testutil.NewEntry(7, "uid=carol,ou=people,"+testutil.Suffix, u.People)
	err := store.Update(func(txn *kv.Txn) error { return b.Add(txn, u.People.Info, extra) })
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	testutil.AssertScope(t, b, u.People, dn2id.PrefixOne, 3, 4, 7)

	err = store.Update(func(txn *kv.Txn) error { return b.Delete(txn, u.People.Info, extra) })
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	testutil.AssertScope(t, b, u.People, dn2id.PrefixOne, 3, 4)
	testutil.AssertScope(t, b, u.People, dn2id.PrefixSub, 2, 3, 4)
	ei := &types.EntryInfo{}
	if err := b.Lookup(nil, extra.NName, ei); !errors.Is(err, kv.ErrNotFound) {
		t.Errorf("removed entry still resolves: %v", err)
	}
}

func TestFlatMultipleSuffixesMaterialisesSuffixSubtree(t *testing.T) {
	cfg := testutil.Config(types.LayoutFlat)
	cfg.MultipleSuffixes = true
	_, b, u := testutil.LoadUniverseWith(t, cfg)

	// with multiple suffixes the all-ids shortcut is off and the
	// suffix's subtree set is stored like any other
	ids := idl.New()
	if err := b.ScopeIDL(nil, u.SuffixEntry, dn2id.PrefixSub, ids, nil); err != nil {
		t.Fatalf("scope: %v", err)
	}
	if idl.IsRange(ids) {
		t.Fatal("all-ids shortcut must be disabled in multiple-suffix mode")
	}
	testutil.AssertIDL(t, ids, 1, 2, 3, 4, 5, 6)
}

func TestFlatWriteRequiresTxn(t *testing.T) {
	_, b, u := testutil.LoadUniverse(t, types.LayoutFlat)
	e := testutil.NewEntry(9, "uid=x,ou=people,"+testutil.Suffix, u.People)
	if err := b.Add(nil, u.People.Info, e); !errors.Is(err, dn2id.ErrNoTxn) {
		t.Errorf("expected ErrNoTxn, got %v", err)
	}
}
