// Package kv is an ordered key/value store with sorted duplicate
// values, snapshot-isolated transactions and cursors. It provides the
// contract the DN-to-ID backends consume: transactional puts with
// no-overwrite and no-dup-data modes, cursor positioning by key and by
// (key, value), duplicate iteration with batched reads, and a
// user-supplied duplicate comparator per database.
//
// The store is backed by copy-on-write B-trees. A write transaction
// clones the trees it touches and publishes them atomically at commit;
// readers always see a committed snapshot. Writers are serialised, so
// the conflict error a lock-based store would raise cannot occur here,
// but ErrDeadlock remains part of the contract for callers written
// against it: on ErrDeadlock, abort the transaction and retry the whole
// operation.
package kv

import "errors"

var (
	// ErrNotFound is returned when a key, or a duplicate under a key,
	// does not exist. Never fatal; callers treat it as a plain miss.
	ErrNotFound = errors.New("kv: not found")

	// ErrKeyExist is returned by Put with NoOverwrite when the key is
	// already present, or with NoDupData when an equal duplicate is.
	ErrKeyExist = errors.New("kv: key exists")

	// ErrDeadlock means the transaction lost a conflict and must be
	// aborted and retried by the caller.
	ErrDeadlock = errors.New("kv: deadlock")

	// ErrReadOnly is returned when a mutating operation is attempted
	// on a read transaction.
	ErrReadOnly = errors.New("kv: read-only transaction")

	// ErrTxnDone is returned when a transaction is used after Commit
	// or Abort.
	ErrTxnDone = errors.New("kv: transaction already finished")
)

// PutFlag alters Put semantics.
type PutFlag int

const (
	// NoOverwrite fails the put with ErrKeyExist if any value exists
	// under the key.
	NoOverwrite PutFlag = 1 << iota

	// NoDupData fails the put with ErrKeyExist if a duplicate equal
	// under the database's comparator exists under the key.
	NoDupData
)

// DupCompare orders the duplicate values stored under one key.
// It must define a total order; values comparing equal are the same
// duplicate.
type DupCompare func(a, b []byte) int
