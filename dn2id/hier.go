package dn2id

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/schans/dirindex/idl"
	"github.com/schans/dirindex/internal/logger"
	"github.com/schans/dirindex/kv"
	"github.com/schans/dirindex/types"
)

// The hierarchical layout stores two records per entry: a child record
// under the parent's id carrying the entry's RDN and id, and a
// self-record under the entry's own id carrying the parent's id. The
// self-record stores its normalized RDN length negated, so under the
// duplicate comparator it sorts strictly before every child record and
// bottom-up traversal costs one cursor set.

// diskNode is the decoded form of one duplicate value.
type diskNode struct {
	entryID types.ID
	nrdnlen int16
	nrdn    string
	rdn     string
}

// diskNodeHeader is the fixed part of the encoding: entry id plus the
// signed RDN length.
const diskNodeHeader = 10

func (n *diskNode) marshal() []byte {
	out := make([]byte, 0, diskNodeHeader+len(n.nrdn)+len(n.rdn)+2)
	out = append(out, encID(n.entryID)...)
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(n.nrdnlen))
	out = append(out, l[:]...)
	out = append(out, n.nrdn...)
	out = append(out, 0)
	out = append(out, n.rdn...)
	return append(out, 0)
}

func unmarshalDiskNode(data []byte) (diskNode, error) {
	var n diskNode
	if len(data) < diskNodeHeader+2 {
		return n, fmt.Errorf("dn2id: node record truncated at %d bytes", len(data))
	}
	id, _ := decID(data[:8])
	n.entryID = id
	n.nrdnlen = int16(binary.BigEndian.Uint16(data[8:diskNodeHeader]))

	rest := data[diskNodeHeader:]
	i := bytes.IndexByte(rest, 0)
	if i < 0 {
		return n, fmt.Errorf("dn2id: node record missing RDN terminator")
	}
	n.nrdn = string(rest[:i])
	rest = rest[i+1:]
	j := bytes.IndexByte(rest, 0)
	if j < 0 {
		return n, fmt.Errorf("dn2id: node record missing display terminator")
	}
	n.rdn = string(rest[:j])

	nlen := int(n.nrdnlen)
	if nlen < 0 {
		nlen = -nlen
	}
	if nlen != len(n.nrdn) {
		return n, fmt.Errorf("dn2id: node record length %d does not match RDN %q", n.nrdnlen, n.nrdn)
	}
	return n, nil
}

// dupCompare orders the duplicates under one key: signed RDN length
// first, then the RDN bytes. Negative lengths mark self-records, which
// therefore sort before every child.
func dupCompare(a, b []byte) int {
	la := int16(binary.BigEndian.Uint16(a[8:diskNodeHeader]))
	lb := int16(binary.BigEndian.Uint16(b[8:diskNodeHeader]))
	if la != lb {
		if la < lb {
			return -1
		}
		return 1
	}
	an := a[diskNodeHeader:]
	if i := bytes.IndexByte(an, 0); i >= 0 {
		an = an[:i]
	}
	bn := b[diskNodeHeader:]
	if i := bytes.IndexByte(bn, 0); i >= 0 {
		bn = bn[:i]
	}
	return bytes.Compare(an, bn)
}

// hierIndex keys node records by parent id.
type hierIndex struct {
	b *Backend
}

// rdnLens returns the normalized and display RDN lengths for an entry;
// a naming-context root keeps its full DN as its name.
func (h *hierIndex) rdnLens(e *types.Entry) (nrlen, rlen int) {
	nrlen = h.b.RDNLen(e.NName)
	if nrlen == 0 {
		return len(e.NName), len(e.Name)
	}
	if i := splitDN(e.Name); i >= 0 {
		return nrlen, i
	}
	return nrlen, len(e.Name)
}

func (h *hierIndex) Add(txn *kv.Txn, parent *types.EntryInfo, e *types.Entry) error {
	b := h.b
	b.log.Debug("add", logger.F("dn", e.NName), logger.F("id", e.ID))
	if e.ID == types.NOID {
		return fmt.Errorf("dn2id: refusing to add %q without an id", e.NName)
	}
	nrlen, rlen := h.rdnLens(e)
	node := diskNode{
		entryID: e.ID,
		nrdnlen: int16(nrlen),
		nrdn:    e.NName[:nrlen],
		rdn:     e.Name[:rlen],
	}

	key := encID(parent.ID)
	if b.cache != nil {
		b.cache.del(key)
	}
	if err := txn.Put(b.db, key, node.marshal(), kv.NoDupData); err != nil {
		b.log.Error("child record write failed",
			logger.F("dn", e.NName), logger.F("err", err.Error()))
		return err
	}

	// the same record, negated and inverted, becomes the self-record
	node.entryID = parent.ID
	node.nrdnlen = -int16(nrlen)
	if err := txn.Put(b.db, encID(e.ID), node.marshal(), kv.NoDupData); err != nil {
		b.log.Error("self record write failed",
			logger.F("dn", e.NName), logger.F("err", err.Error()))
		return err
	}
	return nil
}

// nrdnOf returns the entry's normalized RDN, preferring the resolved
// EntryInfo over re-splitting the DN.
func (h *hierIndex) nrdnOf(e *types.Entry) string {
	if e.Info != nil && e.Info.NRDN != "" {
		return e.Info.NRDN
	}
	nrlen := h.b.RDNLen(e.NName)
	if nrlen == 0 {
		return e.NName
	}
	return e.NName[:nrlen]
}

func (h *hierIndex) Delete(txn *kv.Txn, parent *types.EntryInfo, e *types.Entry) error {
	b := h.b
	b.log.Debug("delete", logger.F("dn", e.NName), logger.F("id", e.ID))

	key := encID(parent.ID)
	if b.cache != nil {
		b.cache.del(key)
	}
	nrdn := h.nrdnOf(e)
	probe := diskNode{entryID: e.ID, nrdnlen: int16(len(nrdn)), nrdn: nrdn}

	cur := txn.Cursor(b.db)
	defer cur.Close()

	// drop our record from the parent's duplicate list
	if _, err := cur.GetBoth(key, probe.marshal()); err != nil {
		return err
	}
	if err := cur.Del(); err != nil {
		return err
	}

	// drop the self-record; child records stay behind on purpose, a
	// rename replays Add which rewrites the parent pointer
	if _, err := cur.Set(encID(e.ID)); err != nil {
		return err
	}
	return cur.Del()
}

func (h *hierIndex) Lookup(txn *kv.Txn, dn string, ei *types.EntryInfo) error {
	b := h.b
	if ei.Parent == nil {
		return fmt.Errorf("dn2id: lookup of %q needs the parent handle", dn)
	}
	nrlen := b.RDNLen(dn)
	if nrlen == 0 {
		nrlen = len(dn)
	}
	probe := diskNode{nrdnlen: int16(nrlen), nrdn: dn[:nrlen]}

	cur := txn.Cursor(b.db)
	defer cur.Close()
	stored, err := cur.GetBoth(encID(ei.Parent.ID), probe.marshal())
	if err != nil {
		b.log.Debug("lookup miss", logger.F("dn", dn), logger.F("err", err.Error()))
		return err
	}
	node, err := unmarshalDiskNode(stored)
	if err != nil {
		b.log.Error("malformed node record",
			logger.F("dn", dn), logger.F("err", err.Error()))
		return ErrOther
	}
	ei.ID = node.entryID
	ei.RDN = node.rdn
	ei.NRDN = node.nrdn
	b.log.Debug("lookup", logger.F("dn", dn), logger.F("id", node.entryID))
	return nil
}

// parent reads the self-record of ei and returns the parent id,
// filling ei's RDN fields on the way. A self-record with a
// non-negative length means the index is corrupt.
func (h *hierIndex) parent(txn *kv.Txn, ei *types.EntryInfo) (types.ID, error) {
	b := h.b
	cur := txn.Cursor(b.db)
	defer cur.Close()
	stored, err := cur.Set(encID(ei.ID))
	if err != nil {
		return types.NOID, err
	}
	node, err := unmarshalDiskNode(stored)
	if err != nil {
		b.log.Error("malformed self record",
			logger.F("id", ei.ID), logger.F("err", err.Error()))
		return types.NOID, ErrOther
	}
	if node.nrdnlen >= 0 {
		b.log.Error("entry is missing its self record", logger.F("id", ei.ID))
		return types.NOID, ErrOther
	}
	ei.NRDN = node.nrdn
	ei.RDN = node.rdn
	return node.entryID, nil
}

func (h *hierIndex) HasChildren(txn *kv.Txn, e *types.Entry) (bool, error) {
	b := h.b
	key := encID(e.ID)
	if b.cache != nil {
		if ce, ok := b.cache.get(key); ok {
			if ce.err != nil {
				return false, nil
			}
			return !idl.IsZero(ce.ids), nil
		}
	}
	cur := txn.Cursor(b.db)
	defer cur.Close()
	if _, err := cur.Set(key); err != nil {
		if err == kv.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	// the first duplicate is the self-record; a second proves a child
	_, err := cur.NextDup()
	if err == kv.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// scopeCookie carries the state of one subtree walk.
type scopeCookie struct {
	txn    *kv.Txn
	prefix Prefix
	id     types.ID
	ids    idl.IDL
	tmp    idl.IDL
}

// scopeBatch bounds one bulk duplicate read during the walk.
const scopeBatch = 64

func (h *hierIndex) ScopeIDL(txn *kv.Txn, e *types.Entry, scope Prefix, ids, stack idl.IDL) error {
	b := h.b
	ei := e.Info
	if ei == nil {
		return fmt.Errorf("dn2id: scope walk for %q needs the entry handle", e.NName)
	}
	if scope == PrefixSub && !b.cfg.MultipleSuffixes && ei.Parent != nil && ei.Parent.ID == types.RootID {
		idl.All(ids, b.LastID())
		return nil
	}
	cx := &scopeCookie{txn: txn, prefix: scope, id: ei.ID, ids: ids, tmp: stack}
	if cx.tmp == nil {
		cx.tmp = idl.New()
	}
	idl.Zero(ids)
	if scope == PrefixSub {
		idl.Insert(ids, ei.ID)
	}
	return h.scopeVisit(cx)
}

// scopeVisit loads the children of cx.id into cx.tmp, caches the
// result, and for subtree scope unions it into cx.ids and descends.
func (h *hierIndex) scopeVisit(cx *scopeCookie) error {
	b := h.b
	key := encID(cx.id)

	hit := false
	if b.cache != nil {
		if ce, ok := b.cache.get(key); ok {
			if ce.err != nil {
				return ce.err
			}
			idl.Cpy(cx.tmp, ce.ids)
			hit = true
		}
	}
	if !hit {
		idl.Zero(cx.tmp)
		cur := cx.txn.Cursor(b.db)
		_, rc := cur.Set(key) // position on the self-record and skip it
		if rc == nil {
			for {
				batch, err := cur.NextDupBatch(scopeBatch)
				if err == kv.ErrNotFound {
					rc = err
					break
				}
				if err != nil {
					cur.Close()
					return err
				}
				for _, data := range batch {
					node, nerr := unmarshalDiskNode(data)
					if nerr != nil {
						cur.Close()
						b.log.Error("malformed node record during scope walk",
							logger.F("id", cx.id), logger.F("err", nerr.Error()))
						return ErrOther
					}
					idl.Insert(cx.tmp, node.entryID)
				}
			}
		} else if rc != kv.ErrNotFound {
			cur.Close()
			return rc
		}
		cur.Close()
		if !idl.IsZero(cx.tmp) {
			rc = nil
		}
		if b.cache != nil {
			b.cache.put(key, cx.tmp, rc)
		}
		if rc != nil {
			return rc
		}
	}

	if cx.prefix == PrefixOne {
		idl.Cpy(cx.ids, cx.tmp)
		return nil
	}

	save := append(idl.IDL(nil), cx.tmp[:idl.Cells(cx.tmp)]...)
	idl.Union(cx.ids, cx.tmp)
	var cursor types.ID
	for id := idl.First(save, &cursor); id != types.NOID; id = idl.Next(save, &cursor) {
		cx.id = id
		// a failed child visit leaves that branch out of the set but
		// does not abort the walk
		_ = h.scopeVisit(cx)
	}
	return nil
}
