package testutil

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/schans/dirindex/dn2id"
	"github.com/schans/dirindex/idl"
	"github.com/schans/dirindex/kv"
	"github.com/schans/dirindex/types"
)

// IDs enumerates an IDL into a plain slice.
func IDs(l idl.IDL) []types.ID {
	var out []types.ID
	var cur types.ID
	for id := idl.First(l, &cur); id != types.NOID; id = idl.Next(l, &cur) {
		out = append(out, id)
	}
	return out
}

// AssertIDL checks that l enumerates exactly want.
func AssertIDL(t *testing.T, l idl.IDL, want ...types.ID) {
	t.Helper()
	if diff := cmp.Diff(want, IDs(l)); diff != "" {
		t.Errorf("unexpected id set (-want +got):\n%s", diff)
	}
}

// AssertScope resolves the scope id set for e and checks it against
// want. A kv.ErrNotFound from an empty scope counts as the empty set.
func AssertScope(t *testing.T, b *dn2id.Backend, e *types.Entry, scope dn2id.Prefix, want ...types.ID) {
	t.Helper()
	ids := idl.New()
	err := b.ScopeIDL(nil, e, scope, ids, nil)
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("scope walk for %s failed: %v", e.NName, err)
	}
	AssertIDL(t, ids, want...)
}

// AssertLookup resolves dn and checks the id it maps to. The parent
// handle is needed by the hierarchical layout.
func AssertLookup(t *testing.T, b *dn2id.Backend, dn string, parent *types.EntryInfo, want types.ID) {
	t.Helper()
	ei := &types.EntryInfo{Parent: parent}
	if err := b.Lookup(nil, dn, ei); err != nil {
		t.Fatalf("lookup of %s failed: %v", dn, err)
	}
	if ei.ID != want {
		t.Errorf("lookup of %s returned id %d, want %d", dn, ei.ID, want)
	}
}

// AssertHasChildren checks the children probe for e.
func AssertHasChildren(t *testing.T, b *dn2id.Backend, e *types.Entry, want bool) {
	t.Helper()
	got, err := b.HasChildren(nil, e)
	if err != nil {
		t.Fatalf("children probe for %s failed: %v", e.NName, err)
	}
	if got != want {
		t.Errorf("children probe for %s = %v, want %v", e.NName, got, want)
	}
}
