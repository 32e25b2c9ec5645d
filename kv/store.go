package kv

import (
	"bytes"
	"sync"

	"github.com/google/btree"
)

// degree is the branching factor of the backing B-trees.
const degree = 16

// item is one stored record. In a plain database val is the single
// value under key; in a dup-sorted database each (key, val) pair is its
// own item, ordered by the database's duplicate comparator.
type item struct {
	key []byte
	val []byte
}

// DB is one named sub-database of a Store.
type DB struct {
	store  *Store
	name   string
	dup    bool
	dupCmp DupCompare
	tree   *btree.BTreeG[item] // committed root; guarded by store.mu
}

// DBOption configures a sub-database at open time.
type DBOption func(*DB)

// WithDupSort enables sorted duplicate values, ordered by cmp
// (bytes.Compare when cmp is nil).
func WithDupSort(cmp DupCompare) DBOption {
	return func(d *DB) {
		d.dup = true
		d.dupCmp = cmp
	}
}

// less orders items by key, then, for dup-sorted databases, by the
// duplicate comparator. An empty value sorts before every duplicate so
// it can serve as a key-only cursor pivot.
func (d *DB) less(a, b item) bool {
	if c := bytes.Compare(a.key, b.key); c != 0 {
		return c < 0
	}
	if !d.dup {
		return false
	}
	if len(a.val) == 0 || len(b.val) == 0 {
		return len(a.val) < len(b.val)
	}
	return d.cmpDup(a.val, b.val) < 0
}

func (d *DB) cmpDup(a, b []byte) int {
	if d.dupCmp != nil {
		return d.dupCmp(a, b)
	}
	return bytes.Compare(a, b)
}

// Store is a collection of named sub-databases sharing one transaction
// domain.
type Store struct {
	mu     sync.RWMutex // guards dbs and every DB's committed root
	writer sync.Mutex   // serialises write transactions
	dbs    map[string]*DB
}

// New creates an empty store.
func New() *Store {
	return &Store{dbs: make(map[string]*DB)}
}

// DB opens the named sub-database, creating it on first use. Options
// are applied only on creation; reopening an existing database returns
// it unchanged.
func (s *Store) DB(name string, opts ...DBOption) *DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.dbs[name]; ok {
		return d
	}
	d := &DB{store: s, name: name}
	for _, opt := range opts {
		opt(d)
	}
	d.tree = btree.NewG[item](degree, d.less)
	s.dbs[name] = d
	return d
}

// Txn is a transaction over a Store. Read transactions see the
// committed state as of Begin; write transactions additionally see
// their own writes and publish them atomically at Commit.
type Txn struct {
	store *Store
	write bool
	done  bool
	trees map[string]*btree.BTreeG[item] // snapshot, cloned on first write
	dirty map[string]bool
}

// Begin starts a transaction. Write transactions are serialised: Begin
// blocks while another write transaction is open.
func (s *Store) Begin(write bool) *Txn {
	if write {
		s.writer.Lock()
	}
	t := &Txn{
		store: s,
		write: write,
		trees: make(map[string]*btree.BTreeG[item]),
		dirty: make(map[string]bool),
	}
	s.mu.RLock()
	for name, d := range s.dbs {
		t.trees[name] = d.tree
	}
	s.mu.RUnlock()
	return t
}

// tree returns the transaction's view of db, capturing the committed
// root for databases opened after Begin.
func (t *Txn) tree(d *DB) *btree.BTreeG[item] {
	if tr, ok := t.trees[d.name]; ok {
		return tr
	}
	t.store.mu.RLock()
	tr := d.tree
	t.store.mu.RUnlock()
	t.trees[d.name] = tr
	return tr
}

// writable clones db's tree into the transaction on first mutation.
func (t *Txn) writable(d *DB) *btree.BTreeG[item] {
	tr := t.tree(d)
	if !t.dirty[d.name] {
		tr = tr.Clone()
		t.trees[d.name] = tr
		t.dirty[d.name] = true
	}
	return tr
}

// Commit publishes the transaction's writes. Committing a read
// transaction just releases it.
func (t *Txn) Commit() error {
	if t.done {
		return ErrTxnDone
	}
	t.done = true
	if !t.write {
		return nil
	}
	t.store.mu.Lock()
	for name, dirty := range t.dirty {
		if dirty {
			t.store.dbs[name].tree = t.trees[name]
		}
	}
	t.store.mu.Unlock()
	t.store.writer.Unlock()
	return nil
}

// Abort discards the transaction's writes.
func (t *Txn) Abort() {
	if t.done {
		return
	}
	t.done = true
	if t.write {
		t.store.writer.Unlock()
	}
}

// View runs fn inside a read transaction.
func (s *Store) View(fn func(*Txn) error) error {
	t := s.Begin(false)
	defer t.Abort()
	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

// Update runs fn inside a write transaction, committing on success and
// aborting on error.
func (s *Store) Update(fn func(*Txn) error) error {
	t := s.Begin(true)
	if err := fn(t); err != nil {
		t.Abort()
		return err
	}
	return t.Commit()
}

// Get returns the value under key; for a dup-sorted database, the
// first duplicate in comparator order.
func (t *Txn) Get(d *DB, key []byte) ([]byte, error) {
	if t.done {
		return nil, ErrTxnDone
	}
	tr := t.tree(d)
	if !d.dup {
		if it, ok := tr.Get(item{key: key}); ok {
			return it.val, nil
		}
		return nil, ErrNotFound
	}
	var found []byte
	tr.AscendGreaterOrEqual(item{key: key}, func(it item) bool {
		if bytes.Equal(it.key, key) {
			found = it.val
		}
		return false
	})
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// Put writes val under key, honoring the flags. A plain put replaces
// the value in a plain database and inserts a duplicate in a
// dup-sorted one.
func (t *Txn) Put(d *DB, key, val []byte, flags PutFlag) error {
	if t.done {
		return ErrTxnDone
	}
	if !t.write {
		return ErrReadOnly
	}
	if flags&NoOverwrite != 0 {
		if _, err := t.Get(d, key); err == nil {
			return ErrKeyExist
		}
	}
	if d.dup && flags&NoDupData != 0 {
		if _, err := t.getBoth(d, key, val); err == nil {
			return ErrKeyExist
		}
	}
	k := append([]byte(nil), key...)
	v := append([]byte(nil), val...)
	t.writable(d).ReplaceOrInsert(item{key: k, val: v})
	return nil
}

// Del removes key and, in a dup-sorted database, every duplicate under
// it.
func (t *Txn) Del(d *DB, key []byte) error {
	if t.done {
		return ErrTxnDone
	}
	if !t.write {
		return ErrReadOnly
	}
	if !d.dup {
		if _, ok := t.writable(d).Delete(item{key: key}); !ok {
			return ErrNotFound
		}
		return nil
	}
	var dups []item
	t.tree(d).AscendGreaterOrEqual(item{key: key}, func(it item) bool {
		if !bytes.Equal(it.key, key) {
			return false
		}
		dups = append(dups, it)
		return true
	})
	if len(dups) == 0 {
		return ErrNotFound
	}
	tr := t.writable(d)
	for _, it := range dups {
		tr.Delete(it)
	}
	return nil
}

// Ascend iterates every record of d in order, stopping early when fn
// returns false.
func (t *Txn) Ascend(d *DB, fn func(key, val []byte) bool) error {
	if t.done {
		return ErrTxnDone
	}
	t.tree(d).Ascend(func(it item) bool {
		return fn(it.key, it.val)
	})
	return nil
}

// getBoth finds the duplicate under key equal to val under the
// database's comparator, returning the stored value.
func (t *Txn) getBoth(d *DB, key, val []byte) ([]byte, error) {
	var found []byte
	t.tree(d).AscendGreaterOrEqual(item{key: key, val: val}, func(it item) bool {
		if bytes.Equal(it.key, key) && d.cmpDup(it.val, val) == 0 {
			found = it.val
		}
		return false
	})
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}
