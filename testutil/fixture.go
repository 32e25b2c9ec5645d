// Package testutil builds the shared directory-tree fixture and the
// assertion helpers the index tests use.
package testutil

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/schans/dirindex/dn2id"
	"github.com/schans/dirindex/kv"
	"github.com/schans/dirindex/types"
)

// Suffix is the naming context of the test universe.
const Suffix = "dc=example,dc=com"

// UniverseData gives typed access to the fixture tree:
//
//	dc=example,dc=com            id 1
//	├── ou=people                id 2
//	│   ├── uid=alice            id 3
//	│   └── uid=bob              id 4
//	└── ou=groups                id 5
//	    └── cn=admins            id 6
type UniverseData struct {
	Root   *types.EntryInfo // synthetic parent above the suffix
	SuffixEntry,
	People,
	Alice,
	Bob,
	Groups,
	Admins *types.Entry

	// InOrder lists the entries in the order they were added.
	InOrder []*types.Entry
}

// NewEntry builds an entry plus its EntryInfo under parent. The DN is
// treated as already normalized; the display name gets its first
// letter capitalised so display and normalized forms differ.
func NewEntry(id types.ID, ndn string, parent *types.Entry) *types.Entry {
	var pinfo *types.EntryInfo
	if parent != nil {
		pinfo = parent.Info
	}
	nrdn := ndn
	if i := strings.Index(ndn, ","); i >= 0 && parent != nil && parent.Info.ID != types.RootID {
		nrdn = ndn[:i]
	}
	e := &types.Entry{
		ID:    id,
		UUID:  uuid.New(),
		Name:  strings.ToUpper(ndn[:1]) + ndn[1:],
		NName: ndn,
		Info: &types.EntryInfo{
			ID:     id,
			Parent: pinfo,
			RDN:    strings.ToUpper(nrdn[:1]) + nrdn[1:],
			NRDN:   nrdn,
		},
	}
	return e
}

// NewUniverse builds the fixture tree without touching any store.
func NewUniverse() *UniverseData {
	root := &types.EntryInfo{ID: types.RootID}
	rootEntry := &types.Entry{Info: root}

	u := &UniverseData{Root: root}
	u.SuffixEntry = NewEntry(1, Suffix, rootEntry)
	u.People = NewEntry(2, "ou=people,"+Suffix, u.SuffixEntry)
	u.Alice = NewEntry(3, "uid=alice,ou=people,"+Suffix, u.People)
	u.Bob = NewEntry(4, "uid=bob,ou=people,"+Suffix, u.People)
	u.Groups = NewEntry(5, "ou=groups,"+Suffix, u.SuffixEntry)
	u.Admins = NewEntry(6, "cn=admins,ou=groups,"+Suffix, u.Groups)
	u.InOrder = []*types.Entry{
		u.SuffixEntry, u.People, u.Alice, u.Bob, u.Groups, u.Admins,
	}
	return u
}

// Config returns the backend configuration the fixture loads with.
func Config(layout types.Layout) types.Config {
	return types.Config{
		Suffixes:     []string{Suffix},
		Layout:       layout,
		IDLCacheSize: 64,
	}
}

// LoadUniverse opens a fresh backend of the given layout and populates
// it with the fixture tree.
func LoadUniverse(t *testing.T, layout types.Layout) (*kv.Store, *dn2id.Backend, *UniverseData) {
	t.Helper()
	return LoadUniverseWith(t, Config(layout))
}

// LoadUniverseWith is LoadUniverse with a caller-supplied
// configuration, for exercising non-default modes.
func LoadUniverseWith(t *testing.T, cfg types.Config) (*kv.Store, *dn2id.Backend, *UniverseData) {
	t.Helper()
	store := kv.New()
	backend, err := dn2id.Open(store, cfg, nil)
	if err != nil {
		t.Fatalf("failed to open backend: %v", err)
	}
	u := NewUniverse()
	txn := store.Begin(true)
	for _, e := range u.InOrder {
		if err := backend.Add(txn, e.Info.Parent, e); err != nil {
			txn.Abort()
			t.Fatalf("failed to add %s: %v", e.NName, err)
		}
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("failed to commit fixture: %v", err)
	}
	return store, backend, u
}
