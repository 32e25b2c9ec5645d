package kv

import "bytes"

// Cursor walks the records of one database inside a transaction. The
// cursor keeps its position as a pivot, so deleting the current record
// does not disturb subsequent NextDup calls.
type Cursor struct {
	txn   *Txn
	db    *DB
	cur   item
	valid bool
}

// Cursor opens a cursor on d.
func (t *Txn) Cursor(d *DB) *Cursor {
	return &Cursor{txn: t, db: d}
}

// Set positions the cursor at the first record under key and returns
// its value. In a dup-sorted database that is the first duplicate in
// comparator order.
func (c *Cursor) Set(key []byte) ([]byte, error) {
	if c.txn.done {
		return nil, ErrTxnDone
	}
	var found *item
	c.txn.tree(c.db).AscendGreaterOrEqual(item{key: key}, func(it item) bool {
		if bytes.Equal(it.key, key) {
			found = &it
		}
		return false
	})
	if found == nil {
		c.valid = false
		return nil, ErrNotFound
	}
	c.cur = *found
	c.valid = true
	return found.val, nil
}

// GetBoth positions the cursor at the duplicate under key that compares
// equal to val under the database's comparator, and returns the stored
// value.
func (c *Cursor) GetBoth(key, val []byte) ([]byte, error) {
	if c.txn.done {
		return nil, ErrTxnDone
	}
	stored, err := c.txn.getBoth(c.db, key, val)
	if err != nil {
		c.valid = false
		return nil, err
	}
	c.cur = item{key: append([]byte(nil), key...), val: stored}
	c.valid = true
	return stored, nil
}

// NextDup advances to the next duplicate under the current key and
// returns its value, or ErrNotFound when the duplicates are exhausted.
func (c *Cursor) NextDup() ([]byte, error) {
	if c.txn.done {
		return nil, ErrTxnDone
	}
	if !c.valid {
		return nil, ErrNotFound
	}
	var found *item
	c.txn.tree(c.db).AscendGreaterOrEqual(c.cur, func(it item) bool {
		if !bytes.Equal(it.key, c.cur.key) {
			return false
		}
		if c.db.less(c.cur, it) {
			found = &it
			return false
		}
		return true // at or before the pivot, keep going
	})
	if found == nil {
		return nil, ErrNotFound
	}
	c.cur = *found
	return found.val, nil
}

// NextDupBatch reads up to max following duplicates in one call,
// returning ErrNotFound when there are none left.
func (c *Cursor) NextDupBatch(max int) ([][]byte, error) {
	var out [][]byte
	for len(out) < max {
		val, err := c.NextDup()
		if err == ErrNotFound {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// Del removes the record the cursor is positioned on. The cursor keeps
// its pivot, so NextDup continues from the deleted position.
func (c *Cursor) Del() error {
	if c.txn.done {
		return ErrTxnDone
	}
	if !c.txn.write {
		return ErrReadOnly
	}
	if !c.valid {
		return ErrNotFound
	}
	if _, ok := c.txn.writable(c.db).Delete(c.cur); !ok {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of duplicates under the current key.
func (c *Cursor) Count() (int, error) {
	if c.txn.done {
		return 0, ErrTxnDone
	}
	if !c.valid {
		return 0, ErrNotFound
	}
	n := 0
	c.txn.tree(c.db).AscendGreaterOrEqual(item{key: c.cur.key}, func(it item) bool {
		if !bytes.Equal(it.key, c.cur.key) {
			return false
		}
		n++
		return true
	})
	return n, nil
}

// Close releases the cursor.
func (c *Cursor) Close() {
	c.valid = false
}
