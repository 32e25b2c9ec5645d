package idl

import (
	"encoding/binary"
	"errors"

	"github.com/schans/dirindex/types"
)

// ErrBadEncoding is returned when an on-disk IDL value cannot be a
// valid list or range.
var ErrBadEncoding = errors.New("idl: invalid on-disk encoding")

// Marshal encodes the live cells of l as big-endian 64-bit values.
func Marshal(l IDL) []byte {
	cells := Cells(l)
	out := make([]byte, 8*cells)
	for i := 0; i < cells; i++ {
		binary.BigEndian.PutUint64(out[8*i:], uint64(l[i]))
	}
	return out
}

// Unmarshal decodes data into l. The count header is validated against
// Max and the payload length; a mismatch means the record is corrupt.
func Unmarshal(l IDL, data []byte) error {
	if len(data) == 0 || len(data)%8 != 0 {
		return ErrBadEncoding
	}
	cells := len(data) / 8
	if cells > Max+1 {
		return ErrBadEncoding
	}
	head := types.ID(binary.BigEndian.Uint64(data))
	switch {
	case head == types.NOID:
		if cells != 3 {
			return ErrBadEncoding
		}
	case head > Max || int(head) != cells-1:
		return ErrBadEncoding
	}
	for i := 0; i < cells; i++ {
		l[i] = types.ID(binary.BigEndian.Uint64(data[8*i:]))
	}
	return nil
}
