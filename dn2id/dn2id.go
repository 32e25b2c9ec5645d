// Package dn2id implements the DN-to-ID index of a directory backend:
// the on-disk structure mapping each entry's normalized DN to its
// numeric id, and answering the three hierarchical questions every
// search depends on — the id of a DN, whether a DN has children, and
// the id set of every descendant under a DN.
//
// Two organisations are provided behind one contract. The flat layout
// keys records by a prefix byte plus the normalized DN; the
// hierarchical layout keys node records by parent id, with the
// duplicates under each key sorted by normalized RDN and the node's
// own record forced first by storing its length negated.
package dn2id

import (
	"encoding/binary"
	"errors"

	"github.com/schans/dirindex/idl"
	"github.com/schans/dirindex/kv"
	"github.com/schans/dirindex/types"
)

// Prefix tags the three flat-layout key spaces and doubles as the
// scope selector for ScopeIDL.
type Prefix byte

const (
	// PrefixBase keys the exact-DN lookup records.
	PrefixBase Prefix = 0x00
	// PrefixOne keys the id set of a DN's immediate children.
	PrefixOne Prefix = 0x01
	// PrefixSub keys the id set of a DN's subtree, inclusive of self.
	PrefixSub Prefix = 0x02
)

// ErrOther reports structural corruption on disk: an index invariant
// does not hold and the database needs a reindex.
var ErrOther = errors.New("dn2id: index structure corrupt")

// ErrNoTxn is returned when a mutating operation is called without a
// transaction. The index never opens its own.
var ErrNoTxn = errors.New("dn2id: write requires a caller-supplied transaction")

// Index is the layout-independent contract both organisations
// implement. Mutations run inside the caller's transaction; reads
// accept a nil txn, meaning a read-committed snapshot. On kv.ErrDeadlock
// the caller aborts the transaction and retries the whole operation;
// every step is a no-overwrite or no-dup-data put or an idempotent
// id-set update, so a retry is safe.
type Index interface {
	// Add writes the index records for e under parent.
	Add(txn *kv.Txn, parent *types.EntryInfo, e *types.Entry) error

	// Delete removes the index records for e, mirroring Add.
	Delete(txn *kv.Txn, parent *types.EntryInfo, e *types.Entry) error

	// Lookup resolves dn and fills ei. The flat layout resolves the
	// full DN; the hierarchical layout resolves the leading RDN under
	// ei.Parent, which the caller must have set.
	Lookup(txn *kv.Txn, dn string, ei *types.EntryInfo) error

	// HasChildren reports whether e has at least one child.
	HasChildren(txn *kv.Txn, e *types.Entry) (bool, error)

	// ScopeIDL fills ids with the id set of the requested scope for e:
	// PrefixOne for immediate children, PrefixSub for the subtree
	// including e itself. stack is caller-owned scratch, exclusive to
	// one invocation; pass nil to let the index allocate.
	ScopeIDL(txn *kv.Txn, e *types.Entry, scope Prefix, ids, stack idl.IDL) error
}

// dbName is the sub-database holding the DN-to-ID records.
const dbName = "dn2id"

// encID encodes an id as its fixed-width big-endian key/value form.
func encID(id types.ID) []byte {
	var out [8]byte
	binary.BigEndian.PutUint64(out[:], uint64(id))
	return out[:]
}

func decID(data []byte) (types.ID, bool) {
	if len(data) != 8 {
		return 0, false
	}
	return types.ID(binary.BigEndian.Uint64(data)), true
}
