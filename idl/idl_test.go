package idl

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/schans/dirindex/types"
)

// enumerate collects every id l denotes via First/Next.
func enumerate(l IDL) []types.ID {
	var out []types.ID
	var cur types.ID
	for id := First(l, &cur); id != types.NOID; id = Next(l, &cur) {
		out = append(out, id)
	}
	return out
}

func fromIDs(t *testing.T, ids ...types.ID) IDL {
	t.Helper()
	l := New()
	Zero(l)
	for _, id := range ids {
		Insert(l, id)
	}
	return l
}

func TestInsertKeepsOrderAndDedupes(t *testing.T) {
	l := fromIDs(t, 30, 10, 20, 10, 30, 5)
	want := []types.ID{5, 10, 20, 30}
	if diff := cmp.Diff(want, enumerate(l)); diff != "" {
		t.Errorf("enumeration mismatch (-want +got):\n%s", diff)
	}
	if Count(l) != 4 {
		t.Errorf("expected count 4, got %d", Count(l))
	}
}

func TestInsertIdempotent(t *testing.T) {
	a := fromIDs(t, 1, 2, 3)
	Insert(a, 2)
	Insert(a, 2)
	b := fromIDs(t, 1, 2, 3)
	if diff := cmp.Diff(enumerate(b), enumerate(a)); diff != "" {
		t.Errorf("double insert changed the set (-want +got):\n%s", diff)
	}
}

func TestDeleteList(t *testing.T) {
	l := fromIDs(t, 1, 2, 3)
	if err := Delete(l, 2); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if diff := cmp.Diff([]types.ID{1, 3}, enumerate(l)); diff != "" {
		t.Errorf("unexpected set after delete (-want +got):\n%s", diff)
	}
	// absent id is a no-op
	if err := Delete(l, 42); err != nil {
		t.Fatalf("deleting absent id: %v", err)
	}
	if Count(l) != 2 {
		t.Errorf("count changed by absent delete: %d", Count(l))
	}
}

func TestDeleteRangeBoundaries(t *testing.T) {
	l := New()
	l[0], l[1], l[2] = types.NOID, 10, 20

	if err := Delete(l, 10); err != nil {
		t.Fatalf("boundary delete: %v", err)
	}
	if l[1] != 11 {
		t.Errorf("lower bound not narrowed: %d", l[1])
	}
	if err := Delete(l, 20); err != nil {
		t.Fatalf("boundary delete: %v", err)
	}
	if l[2] != 19 {
		t.Errorf("upper bound not narrowed: %d", l[2])
	}
	if err := Delete(l, 15); err != ErrNotImplemented {
		t.Errorf("interior delete: expected ErrNotImplemented, got %v", err)
	}
	// outside the range is a no-op
	if err := Delete(l, 5); err != nil {
		t.Fatalf("out-of-range delete: %v", err)
	}
}

func TestDeleteCollapsesSingletonRange(t *testing.T) {
	l := New()
	l[0], l[1], l[2] = types.NOID, 7, 7
	if err := Delete(l, 7); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if !IsZero(l) {
		t.Error("singleton range should collapse to the empty set")
	}
}

func TestPromotionOnOverflow(t *testing.T) {
	l := New()
	Zero(l)
	for i := 1; i <= Max+1; i++ {
		Insert(l, types.ID(i*2))
	}
	if !IsRange(l) {
		t.Fatal("expected promotion to range form")
	}
	if FirstID(l) != 2 || LastID(l) != types.ID((Max+1)*2) {
		t.Errorf("range bounds [%d,%d] do not bound the input tightly",
			FirstID(l), LastID(l))
	}
}

func TestRangeInsertWidens(t *testing.T) {
	l := New()
	l[0], l[1], l[2] = types.NOID, 10, 20
	Insert(l, 5)
	Insert(l, 25)
	Insert(l, 15) // interior, no effect
	if l[1] != 5 || l[2] != 25 {
		t.Errorf("expected range [5,25], got [%d,%d]", l[1], l[2])
	}
}

func TestUnionEqualsSetUnion(t *testing.T) {
	a := fromIDs(t, 1, 3, 5, 7)
	b := fromIDs(t, 2, 3, 6)
	Union(a, b)
	want := []types.ID{1, 2, 3, 5, 6, 7}
	if diff := cmp.Diff(want, enumerate(a)); diff != "" {
		t.Errorf("union mismatch (-want +got):\n%s", diff)
	}
}

func TestUnionCommutative(t *testing.T) {
	x := fromIDs(t, 1, 4, 9)
	y := fromIDs(t, 2, 4, 8)

	ab := fromIDs(t, 1, 4, 9)
	Union(ab, y)
	ba := fromIDs(t, 2, 4, 8)
	Union(ba, x)

	if diff := cmp.Diff(enumerate(ab), enumerate(ba)); diff != "" {
		t.Errorf("union not commutative (-a∪b +b∪a):\n%s", diff)
	}
}

func TestUnionWithRange(t *testing.T) {
	a := fromIDs(t, 5, 100)
	r := New()
	r[0], r[1], r[2] = types.NOID, 10, 20
	Union(a, r)
	if !IsRange(a) {
		t.Fatal("union with a range must yield a range")
	}
	if a[1] != 5 || a[2] != 100 {
		t.Errorf("expected covering range [5,100], got [%d,%d]", a[1], a[2])
	}
}

func TestUnionEmptyOperands(t *testing.T) {
	a := fromIDs(t, 1, 2)
	e := New()
	Zero(e)
	Union(a, e)
	if Count(a) != 2 {
		t.Error("union with empty changed the set")
	}
	Union(e, a)
	if diff := cmp.Diff(enumerate(a), enumerate(e)); diff != "" {
		t.Errorf("union into empty (-want +got):\n%s", diff)
	}
}

func TestFirstNextOverRange(t *testing.T) {
	l := New()
	l[0], l[1], l[2] = types.NOID, 3, 6
	want := []types.ID{3, 4, 5, 6}
	if diff := cmp.Diff(want, enumerate(l)); diff != "" {
		t.Errorf("range enumeration mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptyEnumeration(t *testing.T) {
	l := New()
	Zero(l)
	var cur types.ID
	if id := First(l, &cur); id != types.NOID {
		t.Errorf("First on empty IDL returned %d", id)
	}
}

func TestAll(t *testing.T) {
	l := New()
	All(l, 42)
	if !IsRange(l) || l[1] != 1 || l[2] != 42 {
		t.Errorf("All(42) produced %v", l[:3])
	}
	All(l, 0)
	if !IsZero(l) {
		t.Error("All(0) should be the empty set")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		l    IDL
	}{
		{"list", fromIDs(t, 1, 5, 9)},
		{"empty", fromIDs(t)},
	}
	r := New()
	r[0], r[1], r[2] = types.NOID, 2, 1000
	cases = append(cases, struct {
		name string
		l    IDL
	}{"range", r})

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := New()
			if err := Unmarshal(out, Marshal(tc.l)); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if diff := cmp.Diff(enumerate(tc.l), enumerate(out)); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnmarshalRejectsCorruptHeaders(t *testing.T) {
	l := New()
	cases := [][]byte{
		nil,
		{1, 2, 3},                // not a multiple of 8
		Marshal(fromIDs(t, 1))[:8], // truncated list
	}
	// count header larger than payload
	bad := Marshal(fromIDs(t, 1, 2, 3))
	bad[7] = 9
	cases = append(cases, bad)

	for i, data := range cases {
		if err := Unmarshal(l, data); err == nil {
			t.Errorf("case %d: corrupt encoding accepted", i)
		}
	}
}
