package dn2id

import (
	"fmt"
	"sync/atomic"

	"github.com/schans/dirindex/idl"
	"github.com/schans/dirindex/internal/logger"
	"github.com/schans/dirindex/kv"
	"github.com/schans/dirindex/types"
)

// Backend is an opened DN-to-ID index over one kv store. It delegates
// to the layout selected at open time and carries the pieces both
// layouts share: the suffix list, the IDL cache and the high-water id
// used for the all-ids range.
type Backend struct {
	cfg   types.Config
	store *kv.Store
	db    *kv.DB
	cache *idlCache
	log   logger.Logger
	idx   Index

	// lastID is the highest id ever written, the upper bound of the
	// all-ids range.
	lastID atomic.Uint64
}

// Open opens (or creates) the DN-to-ID index inside store. The layout
// and the suffix multiplicity are whole-database attributes; reopening
// with different values requires a reindex.
func Open(store *kv.Store, cfg types.Config, log logger.Logger) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	b := &Backend{
		cfg:   cfg,
		store: store,
		log:   log.Named("dn2id"),
	}
	switch cfg.Layout {
	case types.LayoutFlat:
		b.db = store.DB(dbName)
		b.idx = &flatIndex{b: b}
	case types.LayoutHier:
		b.db = store.DB(dbName, kv.WithDupSort(dupCompare))
		b.idx = &hierIndex{b: b}
	default:
		return nil, fmt.Errorf("dn2id: unknown layout %q", cfg.Layout)
	}
	if cfg.IDLCacheSize > 0 {
		c, err := newIDLCache(cfg.IDLCacheSize, cfg.IDLCacheMaxBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to build IDL cache: %w", err)
		}
		b.cache = c
	}
	if err := b.recoverLastID(); err != nil {
		return nil, err
	}
	return b, nil
}

// Prepare opens the index sub-database with the layout's options
// without opening a Backend, so an offline snapshot can be loaded into
// the store before Open scans it.
func Prepare(store *kv.Store, cfg types.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	switch cfg.Layout {
	case types.LayoutHier:
		store.DB(dbName, kv.WithDupSort(dupCompare))
	default:
		store.DB(dbName)
	}
	return nil
}

// Config returns the configuration the backend was opened with.
func (b *Backend) Config() types.Config { return b.cfg }

// LastID returns the highest id the index has seen.
func (b *Backend) LastID() types.ID {
	return types.ID(b.lastID.Load())
}

// noteID raises the high-water id mark.
func (b *Backend) noteID(id types.ID) {
	for {
		cur := b.lastID.Load()
		if uint64(id) <= cur || b.lastID.CompareAndSwap(cur, uint64(id)) {
			return
		}
	}
}

// recoverLastID rebuilds the high-water mark from the stored records,
// so reopening a populated store keeps the all-ids range honest.
func (b *Backend) recoverLastID() error {
	return b.store.View(func(t *kv.Txn) error {
		return t.Ascend(b.db, func(key, val []byte) bool {
			switch b.cfg.Layout {
			case types.LayoutFlat:
				if len(key) > 0 && Prefix(key[0]) == PrefixBase {
					if id, ok := decID(val); ok {
						b.noteID(id)
					}
				}
			case types.LayoutHier:
				if id, ok := decID(key); ok && id != types.RootID {
					b.noteID(id)
				}
			}
			return true
		})
	})
}

// IsSuffix reports whether dn is one of the backend's naming contexts.
func (b *Backend) IsSuffix(dn string) bool {
	for _, s := range b.cfg.Suffixes {
		if dn == s {
			return true
		}
	}
	return false
}

// RDNLen returns the byte length of the leading RDN of dn, or 0 when
// dn is one of the backend's suffixes, signalling that the full DN is
// the node's name.
func (b *Backend) RDNLen(dn string) int {
	if b.IsSuffix(dn) {
		return 0
	}
	if i := splitDN(dn); i >= 0 {
		return i
	}
	return len(dn)
}

// txnOrSnapshot returns txn, or a fresh read snapshot the caller must
// release when txn is nil.
func (b *Backend) txnOrSnapshot(txn *kv.Txn) (*kv.Txn, bool) {
	if txn != nil {
		return txn, false
	}
	return b.store.Begin(false), true
}

// Add writes the index records for e under parent inside txn.
func (b *Backend) Add(txn *kv.Txn, parent *types.EntryInfo, e *types.Entry) error {
	if txn == nil {
		return ErrNoTxn
	}
	if err := b.idx.Add(txn, parent, e); err != nil {
		return err
	}
	b.noteID(e.ID)
	return nil
}

// Delete removes the index records for e, mirroring Add.
func (b *Backend) Delete(txn *kv.Txn, parent *types.EntryInfo, e *types.Entry) error {
	if txn == nil {
		return ErrNoTxn
	}
	return b.idx.Delete(txn, parent, e)
}

// Lookup resolves dn and fills ei. See Index.Lookup for the per-layout
// contract. A nil txn reads the committed snapshot.
func (b *Backend) Lookup(txn *kv.Txn, dn string, ei *types.EntryInfo) error {
	t, owned := b.txnOrSnapshot(txn)
	if owned {
		defer t.Abort()
	}
	return b.idx.Lookup(t, dn, ei)
}

// HasChildren reports whether e has at least one child.
func (b *Backend) HasChildren(txn *kv.Txn, e *types.Entry) (bool, error) {
	t, owned := b.txnOrSnapshot(txn)
	if owned {
		defer t.Abort()
	}
	return b.idx.HasChildren(t, e)
}

// ScopeIDL fills ids with the id set of the requested scope for e.
func (b *Backend) ScopeIDL(txn *kv.Txn, e *types.Entry, scope Prefix, ids, stack idl.IDL) error {
	t, owned := b.txnOrSnapshot(txn)
	if owned {
		defer t.Abort()
	}
	return b.idx.ScopeIDL(t, e, scope, ids, stack)
}

// Parent resolves the parent id of ei from its self-record and fills
// ei's RDN fields. Only the hierarchical layout stores parent
// pointers.
func (b *Backend) Parent(txn *kv.Txn, ei *types.EntryInfo) (types.ID, error) {
	h, ok := b.idx.(*hierIndex)
	if !ok {
		return types.NOID, fmt.Errorf("dn2id: parent lookup requires the %s layout", types.LayoutHier)
	}
	t, owned := b.txnOrSnapshot(txn)
	if owned {
		defer t.Abort()
	}
	return h.parent(t, ei)
}
