package dn2id

import (
	"fmt"
	"io"
	"sort"

	"github.com/schans/dirindex/idl"
	"github.com/schans/dirindex/kv"
	"github.com/schans/dirindex/types"
)

// Offline inspection of a DN-to-ID database, for the dump and verify
// tools. Everything here works on a read snapshot and never mutates.

// VerifyStats summarises a verification pass.
type VerifyStats struct {
	Entries  int
	Records  int
	Problems []string
}

// OK reports whether the pass found no problems.
func (s VerifyStats) OK() bool { return len(s.Problems) == 0 }

func (s *VerifyStats) problemf(format string, args ...any) {
	s.Problems = append(s.Problems, fmt.Sprintf(format, args...))
}

// Dump writes every record of the index to w in a readable form, in
// key order.
func (b *Backend) Dump(w io.Writer) error {
	return b.store.View(func(txn *kv.Txn) error {
		var ferr error
		err := txn.Ascend(b.db, func(key, val []byte) bool {
			switch b.cfg.Layout {
			case types.LayoutFlat:
				ferr = dumpFlatRecord(w, key, val)
			case types.LayoutHier:
				ferr = dumpHierRecord(w, key, val)
			}
			return ferr == nil
		})
		if err != nil {
			return err
		}
		return ferr
	})
}

func dumpFlatRecord(w io.Writer, key, val []byte) error {
	if len(key) < 2 {
		_, err := fmt.Fprintf(w, "?? malformed key %x\n", key)
		return err
	}
	dn := string(key[1 : len(key)-1])
	switch Prefix(key[0]) {
	case PrefixBase:
		id, ok := decID(val)
		if !ok {
			_, err := fmt.Fprintf(w, "base %q  ?? malformed id %x\n", dn, val)
			return err
		}
		_, err := fmt.Fprintf(w, "base %q  id=%d\n", dn, id)
		return err
	case PrefixOne, PrefixSub:
		kind := "one "
		if Prefix(key[0]) == PrefixSub {
			kind = "sub "
		}
		l := idl.New()
		if err := idl.Unmarshal(l, val); err != nil {
			_, werr := fmt.Fprintf(w, "%s %q  ?? %v\n", kind, dn, err)
			return werr
		}
		if idl.IsRange(l) {
			_, err := fmt.Fprintf(w, "%s %q  ids=[%d..%d]\n", kind, dn, l[1], l[2])
			return err
		}
		_, err := fmt.Fprintf(w, "%s %q  ids=%v\n", kind, dn, l[1:idl.Cells(l)])
		return err
	default:
		_, err := fmt.Fprintf(w, "?? unknown prefix %#x key %q\n", key[0], dn)
		return err
	}
}

func dumpHierRecord(w io.Writer, key, val []byte) error {
	id, ok := decID(key)
	if !ok {
		_, err := fmt.Fprintf(w, "?? malformed key %x\n", key)
		return err
	}
	node, err := unmarshalDiskNode(val)
	if err != nil {
		_, werr := fmt.Fprintf(w, "node %d  ?? %v\n", id, err)
		return werr
	}
	if node.nrdnlen < 0 {
		_, err := fmt.Fprintf(w, "node %d  self rdn=%q parent=%d\n", id, node.nrdn, node.entryID)
		return err
	}
	_, err = fmt.Fprintf(w, "node %d  child rdn=%q id=%d\n", id, node.nrdn, node.entryID)
	return err
}

// Verify re-derives the structural invariants of the index from the
// stored records and reports every violation found.
func (b *Backend) Verify() (VerifyStats, error) {
	var stats VerifyStats
	err := b.store.View(func(txn *kv.Txn) error {
		switch b.cfg.Layout {
		case types.LayoutFlat:
			return b.verifyFlat(txn, &stats)
		case types.LayoutHier:
			return b.verifyHier(txn, &stats)
		}
		return nil
	})
	return stats, err
}

func (b *Backend) verifyFlat(txn *kv.Txn, stats *VerifyStats) error {
	base := make(map[string]types.ID)
	one := make(map[string]idl.IDL)
	sub := make(map[string]idl.IDL)

	err := txn.Ascend(b.db, func(key, val []byte) bool {
		stats.Records++
		if len(key) < 2 || key[len(key)-1] != 0 {
			stats.problemf("malformed key %x", key)
			return true
		}
		dn := string(key[1 : len(key)-1])
		switch Prefix(key[0]) {
		case PrefixBase:
			id, ok := decID(val)
			if !ok {
				stats.problemf("base record for %q holds no id", dn)
				return true
			}
			base[dn] = id
		case PrefixOne, PrefixSub:
			l := idl.New()
			if err := idl.Unmarshal(l, val); err != nil {
				stats.problemf("undecodable id set under %q: %v", dn, err)
				return true
			}
			if Prefix(key[0]) == PrefixOne {
				one[dn] = l
			} else {
				sub[dn] = l
			}
		default:
			stats.problemf("unknown prefix %#x on key %q", key[0], dn)
		}
		return true
	})
	if err != nil {
		return err
	}

	contains := func(m map[string]idl.IDL, dn string, id types.ID) bool {
		l, ok := m[dn]
		return ok && idl.Contains(l, id)
	}

	dns := make([]string, 0, len(base))
	for dn := range base {
		dns = append(dns, dn)
	}
	sort.Strings(dns)
	for _, dn := range dns {
		id := base[dn]
		stats.Entries++
		multi := b.cfg.MultipleSuffixes
		if !multi && b.IsSuffix(dn) {
			continue
		}
		if !contains(sub, dn, id) {
			stats.problemf("entry %d missing from its own subtree set %q", id, dn)
		}
		if b.IsSuffix(dn) {
			continue
		}
		parent := DNParent(dn)
		if !contains(one, parent, id) {
			stats.problemf("entry %d missing from the children set of %q", id, parent)
		}
		for ptr := parent; ; ptr = DNParent(ptr) {
			if multi {
				if !contains(sub, ptr, id) {
					stats.problemf("entry %d missing from the subtree set of %q", id, ptr)
				}
				if b.IsSuffix(ptr) || ptr == "" {
					break
				}
			} else {
				if b.IsSuffix(ptr) || ptr == "" {
					break
				}
				if !contains(sub, ptr, id) {
					stats.problemf("entry %d missing from the subtree set of %q", id, ptr)
				}
			}
		}
	}
	return nil
}

func (b *Backend) verifyHier(txn *kv.Txn, stats *VerifyStats) error {
	selfParent := make(map[types.ID]types.ID)
	children := make(map[types.ID][]types.ID)

	err := txn.Ascend(b.db, func(key, val []byte) bool {
		stats.Records++
		under, ok := decID(key)
		if !ok {
			stats.problemf("malformed key %x", key)
			return true
		}
		node, err := unmarshalDiskNode(val)
		if err != nil {
			stats.problemf("undecodable node record under %d: %v", under, err)
			return true
		}
		if node.nrdnlen < 0 {
			if _, dup := selfParent[under]; dup {
				stats.problemf("entry %d has more than one self record", under)
			}
			selfParent[under] = node.entryID
		} else {
			children[under] = append(children[under], node.entryID)
		}
		return true
	})
	if err != nil {
		return err
	}

	stats.Entries = len(selfParent)
	for id, parent := range selfParent {
		if parent == id {
			stats.problemf("entry %d is its own parent", id)
			continue
		}
		found := false
		for _, c := range children[parent] {
			if c == id {
				found = true
				break
			}
		}
		if !found {
			stats.problemf("entry %d is missing from the children of %d", id, parent)
		}
	}
	for parent, kids := range children {
		if parent != types.RootID {
			if _, ok := selfParent[parent]; !ok {
				stats.problemf("entry %d has children but no self record", parent)
			}
		}
		for _, c := range kids {
			if p, ok := selfParent[c]; !ok {
				stats.problemf("child %d of %d has no self record", c, parent)
			} else if p != parent {
				stats.problemf("child %d is filed under %d but points at %d", c, parent, p)
			}
		}
	}
	return nil
}
