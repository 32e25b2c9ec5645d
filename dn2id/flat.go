package dn2id

import (
	"fmt"

	"github.com/schans/dirindex/idl"
	"github.com/schans/dirindex/internal/logger"
	"github.com/schans/dirindex/kv"
	"github.com/schans/dirindex/types"
)

// flatKey builds the on-disk key: prefix byte, normalized DN, NUL.
func flatKey(p Prefix, dn string) []byte {
	key := make([]byte, 0, len(dn)+2)
	key = append(key, byte(p))
	key = append(key, dn...)
	return append(key, 0)
}

// flatIndex keys every record by prefix plus normalized DN: BASE holds
// the entry id, ONE the children id set of the DN, SUB the subtree id
// set of every ancestor.
type flatIndex struct {
	b *Backend
}

func (f *flatIndex) Add(txn *kv.Txn, parent *types.EntryInfo, e *types.Entry) error {
	b := f.b
	b.log.Debug("add", logger.F("dn", e.NName), logger.F("id", e.ID))
	if e.ID == types.NOID {
		return fmt.Errorf("dn2id: refusing to add %q without an id", e.NName)
	}

	if err := txn.Put(b.db, flatKey(PrefixBase, e.NName), encID(e.ID), kv.NoOverwrite); err != nil {
		b.log.Error("exact-DN record write failed",
			logger.F("dn", e.NName), logger.F("err", err.Error()))
		return err
	}

	ptr := e.NName
	scratch := idl.New()
	multi := b.cfg.MultipleSuffixes

	if multi || !b.IsSuffix(ptr) {
		// seed the entry's own subtree set with its id
		sub := flatKey(PrefixSub, ptr)
		if b.cache != nil {
			b.cache.del(sub)
		}
		idl.Zero(scratch)
		idl.Insert(scratch, e.ID)
		if err := txn.Put(b.db, sub, idl.Marshal(scratch), kv.NoOverwrite); err != nil {
			b.log.Error("subtree record write failed",
				logger.F("dn", ptr), logger.F("err", err.Error()))
			return err
		}

		if !b.IsSuffix(ptr) {
			pdn := DNParent(ptr)
			if err := b.idlInsertKey(txn, flatKey(PrefixOne, pdn), e.ID, scratch); err != nil {
				b.log.Error("children set insert failed",
					logger.F("dn", pdn), logger.F("err", err.Error()))
				return err
			}
			ptr = pdn

			// ascend, adding the id to every ancestor's subtree set;
			// the suffix itself is included only in multiple-suffix
			// mode, where the all-ids shortcut is unavailable
			for {
				if multi {
					if err := b.idlInsertKey(txn, flatKey(PrefixSub, ptr), e.ID, scratch); err != nil {
						b.log.Error("subtree set insert failed",
							logger.F("dn", ptr), logger.F("err", err.Error()))
						return err
					}
					if b.IsSuffix(ptr) || ptr == "" {
						break
					}
				} else {
					if b.IsSuffix(ptr) || ptr == "" {
						break
					}
					if err := b.idlInsertKey(txn, flatKey(PrefixSub, ptr), e.ID, scratch); err != nil {
						b.log.Error("subtree set insert failed",
							logger.F("dn", ptr), logger.F("err", err.Error()))
						return err
					}
				}
				ptr = DNParent(ptr)
			}
		}
	}
	return nil
}

func (f *flatIndex) Delete(txn *kv.Txn, parent *types.EntryInfo, e *types.Entry) error {
	b := f.b
	b.log.Debug("delete", logger.F("dn", e.NName), logger.F("id", e.ID))

	if err := txn.Del(b.db, flatKey(PrefixBase, e.NName)); err != nil {
		b.log.Debug("exact-DN record delete failed",
			logger.F("dn", e.NName), logger.F("err", err.Error()))
		return err
	}

	ptr := e.NName
	scratch := idl.New()
	multi := b.cfg.MultipleSuffixes

	if multi || !b.IsSuffix(ptr) {
		sub := flatKey(PrefixSub, ptr)
		if b.cache != nil {
			b.cache.del(sub)
		}
		if err := txn.Del(b.db, sub); err != nil {
			b.log.Error("subtree record delete failed",
				logger.F("dn", ptr), logger.F("err", err.Error()))
			return err
		}

		if !b.IsSuffix(ptr) {
			pdn := DNParent(ptr)
			if err := b.idlDeleteKey(txn, flatKey(PrefixOne, pdn), e.ID, scratch); err != nil {
				b.log.Error("children set delete failed",
					logger.F("dn", pdn), logger.F("err", err.Error()))
				return err
			}
			ptr = pdn

			for {
				if multi {
					if err := b.idlDeleteKey(txn, flatKey(PrefixSub, ptr), e.ID, scratch); err != nil {
						b.log.Error("subtree set delete failed",
							logger.F("dn", ptr), logger.F("err", err.Error()))
						return err
					}
					if b.IsSuffix(ptr) || ptr == "" {
						break
					}
				} else {
					if b.IsSuffix(ptr) || ptr == "" {
						break
					}
					if err := b.idlDeleteKey(txn, flatKey(PrefixSub, ptr), e.ID, scratch); err != nil {
						b.log.Error("subtree set delete failed",
							logger.F("dn", ptr), logger.F("err", err.Error()))
						return err
					}
				}
				ptr = DNParent(ptr)
			}
		}
	}
	return nil
}

func (f *flatIndex) Lookup(txn *kv.Txn, dn string, ei *types.EntryInfo) error {
	b := f.b
	data, err := txn.Get(b.db, flatKey(PrefixBase, dn))
	if err != nil {
		b.log.Debug("lookup miss", logger.F("dn", dn), logger.F("err", err.Error()))
		return err
	}
	id, ok := decID(data)
	if !ok {
		b.log.Error("malformed exact-DN record", logger.F("dn", dn))
		return ErrOther
	}
	ei.ID = id
	b.log.Debug("lookup", logger.F("dn", dn), logger.F("id", id))
	return nil
}

func (f *flatIndex) HasChildren(txn *kv.Txn, e *types.Entry) (bool, error) {
	b := f.b
	ids := idl.New()
	err := b.idlFetch(txn, flatKey(PrefixOne, e.NName), ids)
	if err == kv.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !idl.IsZero(ids), nil
}

func (f *flatIndex) ScopeIDL(txn *kv.Txn, e *types.Entry, scope Prefix, ids, stack idl.IDL) error {
	b := f.b
	if scope == PrefixSub && !b.cfg.MultipleSuffixes && b.IsSuffix(e.NName) {
		idl.All(ids, b.LastID())
		return nil
	}
	err := b.idlFetch(txn, flatKey(scope, e.NName), ids)
	if err != nil {
		b.log.Debug("scope fetch failed",
			logger.F("dn", e.NName), logger.F("err", err.Error()))
		return err
	}
	b.log.Debug("scope",
		logger.F("dn", e.NName),
		logger.F("first", idl.FirstID(ids)), logger.F("last", idl.LastID(ids)))
	return nil
}
