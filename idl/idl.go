// Package idl implements the ID-List: a compact, sorted, deduplicated
// set of entry ids with a bounded-size range fallback.
//
// An IDL is a caller-supplied buffer of at least Max+1 cells. Cell 0 is
// the live count n, cells 1..n hold ids in strictly ascending order. A
// set that outgrows Max is promoted to the range form: cell 0 is NOID,
// cell 1 the inclusive lower bound, cell 2 the inclusive upper bound.
// Promotion is one-way; a range never demotes back to a list.
package idl

import (
	"errors"
	"sort"

	"github.com/schans/dirindex/types"
)

// Max is the largest number of ids a list-form IDL can hold before it
// is promoted to the range form.
const Max = 1 << 16

// ErrNotImplemented is returned when an id strictly inside a range-form
// IDL is deleted. Callers that can see both forms must narrow at a
// boundary or rematerialise the list instead.
var ErrNotImplemented = errors.New("idl: cannot delete interior id from a range")

// IDL is an ID-List buffer. See the package comment for the layout.
type IDL []types.ID

// New allocates an IDL buffer large enough for any list-form set.
func New() IDL {
	return make(IDL, Max+1)
}

// Zero empties l.
func Zero(l IDL) {
	l[0] = 0
}

// IsZero reports whether l denotes the empty set.
func IsZero(l IDL) bool {
	return l[0] == 0
}

// IsRange reports whether l is in the range form.
func IsRange(l IDL) bool {
	return l[0] == types.NOID
}

// Count returns the number of ids l denotes.
func Count(l IDL) types.ID {
	if IsRange(l) {
		return l[2] - l[1] + 1
	}
	return l[0]
}

// Cells returns the number of live cells in l, including the header.
func Cells(l IDL) int {
	if IsRange(l) {
		return 3
	}
	return int(l[0]) + 1
}

// SizeOf returns the encoded byte size of l.
func SizeOf(l IDL) int {
	return 8 * Cells(l)
}

// FirstID returns the smallest id in l, or NOID if l is empty.
func FirstID(l IDL) types.ID {
	if IsZero(l) {
		return types.NOID
	}
	return l[1]
}

// LastID returns the largest id in l, or NOID if l is empty.
func LastID(l IDL) types.ID {
	if IsZero(l) {
		return types.NOID
	}
	if IsRange(l) {
		return l[2]
	}
	return l[l[0]]
}

// Cpy copies the live cells of src into dst.
func Cpy(dst, src IDL) {
	copy(dst[:Cells(src)], src[:Cells(src)])
}

// All sets l to the range covering every assigned id, 1 through last.
// A database that has never assigned an id yields the empty set.
func All(l IDL, last types.ID) {
	if last == 0 {
		Zero(l)
		return
	}
	l[0] = types.NOID
	l[1] = 1
	l[2] = last
}

// Range collapses l to the range covering its current bounds.
func Range(l IDL) {
	lo, hi := FirstID(l), LastID(l)
	l[0] = types.NOID
	l[1] = lo
	l[2] = hi
}

// First starts an enumeration of l. The cursor is opaque to the caller
// and only meaningful for the IDL it was produced from. Both forms
// enumerate in ascending id order.
func First(l IDL, cursor *types.ID) types.ID {
	if IsZero(l) {
		return types.NOID
	}
	if IsRange(l) {
		*cursor = l[1]
		return l[1]
	}
	*cursor = 1
	return l[1]
}

// Next continues an enumeration started by First, returning NOID when
// the set is exhausted.
func Next(l IDL, cursor *types.ID) types.ID {
	if IsZero(l) {
		return types.NOID
	}
	if IsRange(l) {
		if *cursor >= l[2] {
			return types.NOID
		}
		*cursor++
		return *cursor
	}
	*cursor++
	if *cursor > l[0] {
		return types.NOID
	}
	return l[*cursor]
}

// Contains reports whether l denotes id.
func Contains(l IDL, id types.ID) bool {
	if IsZero(l) {
		return false
	}
	if IsRange(l) {
		return l[1] <= id && id <= l[2]
	}
	i := search(l, id)
	return i <= int(l[0]) && l[i] == id
}

// search returns the smallest index i in 1..n+1 with l[i] >= id.
func search(l IDL, id types.ID) int {
	n := int(l[0])
	return 1 + sort.Search(n, func(i int) bool { return l[i+1] >= id })
}

// Insert adds id to l, keeping the list sorted and duplicate-free.
// Inserting an id already present is a no-op. A list that would exceed
// Max is promoted to the covering range.
func Insert(l IDL, id types.ID) {
	if IsRange(l) {
		if id < l[1] {
			l[1] = id
		}
		if id > l[2] {
			l[2] = id
		}
		return
	}
	i := insertAt(l, id)
	if i < 0 {
		return // already present
	}
	if l[0] == Max {
		lo, hi := l[1], l[l[0]]
		if id < lo {
			lo = id
		}
		if id > hi {
			hi = id
		}
		l[0], l[1], l[2] = types.NOID, lo, hi
		return
	}
	n := int(l[0])
	copy(l[i+1:n+2], l[i:n+1])
	l[i] = id
	l[0]++
}

// insertAt locates the insertion index for id, or -1 if id is present.
func insertAt(l IDL, id types.ID) int {
	i := search(l, id)
	if i <= int(l[0]) && l[i] == id {
		return -1
	}
	return i
}

// Delete removes id from l. Removing an absent id is a no-op. From the
// range form, a boundary id narrows the range; an interior id returns
// ErrNotImplemented.
func Delete(l IDL, id types.ID) error {
	if IsZero(l) {
		return nil
	}
	if IsRange(l) {
		switch {
		case id < l[1] || id > l[2]:
		case id == l[1] && id == l[2]:
			Zero(l)
		case id == l[1]:
			l[1]++
		case id == l[2]:
			l[2]--
		default:
			return ErrNotImplemented
		}
		return nil
	}
	i := search(l, id)
	if i > int(l[0]) || l[i] != id {
		return nil
	}
	n := int(l[0])
	copy(l[i:n], l[i+1:n+1])
	l[0]--
	return nil
}

// Union merges src into dst in place. If either operand is a range, or
// the two lists together hold more than Max ids (an id present in both
// counts twice), the result is the covering range.
func Union(dst, src IDL) {
	if IsZero(src) {
		return
	}
	if IsZero(dst) {
		Cpy(dst, src)
		return
	}
	if IsRange(dst) || IsRange(src) || dst[0]+src[0] > Max {
		lo, hi := FirstID(dst), LastID(dst)
		if f := FirstID(src); f < lo {
			lo = f
		}
		if la := LastID(src); la > hi {
			hi = la
		}
		dst[0], dst[1], dst[2] = types.NOID, lo, hi
		return
	}
	a := append(IDL(nil), dst[1:int(dst[0])+1]...)
	i, j, out := 0, 1, 1
	for i < len(a) && j <= int(src[0]) {
		switch {
		case a[i] == src[j]:
			dst[out] = a[i]
			i++
			j++
		case a[i] < src[j]:
			dst[out] = a[i]
			i++
		default:
			dst[out] = src[j]
			j++
		}
		out++
	}
	for ; i < len(a); i++ {
		dst[out] = a[i]
		out++
	}
	for ; j <= int(src[0]); j++ {
		dst[out] = src[j]
		out++
	}
	dst[0] = types.ID(out - 1)
}
