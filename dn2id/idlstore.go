package dn2id

import (
	"github.com/schans/dirindex/idl"
	"github.com/schans/dirindex/internal/logger"
	"github.com/schans/dirindex/kv"
	"github.com/schans/dirindex/types"
)

// The flat layout stores each ONE/SUB id set as a single encoded IDL
// value under its key, so a range promotion is one replacement write
// and an emptied set stays behind as an explicit empty IDL rather than
// a missing key.

// idlFetch reads the IDL under key into ids. A missing key yields the
// empty IDL and kv.ErrNotFound; an undecodable value is structural
// corruption.
func (b *Backend) idlFetch(txn *kv.Txn, key []byte, ids idl.IDL) error {
	if b.cache != nil {
		if e, ok := b.cache.get(key); ok {
			if e.err != nil {
				idl.Zero(ids)
				return e.err
			}
			idl.Cpy(ids, e.ids)
			return nil
		}
	}
	data, err := txn.Get(b.db, key)
	if err == kv.ErrNotFound {
		idl.Zero(ids)
		if b.cache != nil {
			b.cache.put(key, nil, err)
		}
		return err
	}
	if err != nil {
		return err
	}
	if err := idl.Unmarshal(ids, data); err != nil {
		b.log.Error("undecodable IDL record",
			logger.F("key", string(key)), logger.F("err", err.Error()))
		return ErrOther
	}
	if b.cache != nil {
		b.cache.put(key, ids, nil)
	}
	return nil
}

// idlInsertKey adds id to the IDL under key, creating it as needed.
// The addition is idempotent and keeps the set ordered; growth past
// the list bound promotes the stored value to its covering range.
func (b *Backend) idlInsertKey(txn *kv.Txn, key []byte, id types.ID, scratch idl.IDL) error {
	if b.cache != nil {
		b.cache.del(key)
	}
	data, err := txn.Get(b.db, key)
	switch err {
	case nil:
		if err := idl.Unmarshal(scratch, data); err != nil {
			b.log.Error("undecodable IDL record",
				logger.F("key", string(key)), logger.F("err", err.Error()))
			return ErrOther
		}
	case kv.ErrNotFound:
		idl.Zero(scratch)
	default:
		return err
	}
	idl.Insert(scratch, id)
	return txn.Put(b.db, key, idl.Marshal(scratch), 0)
}

// idlDeleteKey removes id from the IDL under key. Removing an absent
// id, or from an absent key, succeeds without side effects. Deleting an
// id strictly inside a range rematerialises nothing; the range is kept
// as the covering over-approximation the caller already accepted when
// the set was promoted.
func (b *Backend) idlDeleteKey(txn *kv.Txn, key []byte, id types.ID, scratch idl.IDL) error {
	if b.cache != nil {
		b.cache.del(key)
	}
	data, err := txn.Get(b.db, key)
	if err == kv.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if err := idl.Unmarshal(scratch, data); err != nil {
		b.log.Error("undecodable IDL record",
			logger.F("key", string(key)), logger.F("err", err.Error()))
		return ErrOther
	}
	if err := idl.Delete(scratch, id); err == idl.ErrNotImplemented {
		// interior of a range; leave the over-approximation in place
		return nil
	} else if err != nil {
		return err
	}
	return txn.Put(b.db, key, idl.Marshal(scratch), 0)
}
