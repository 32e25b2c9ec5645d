// Package types holds the core identifiers and records shared by the
// dirindex backends.
package types

import "github.com/google/uuid"

// ID is the numeric identifier assigned to a directory entry.
// Stored fixed-width on disk; the zero value is reserved for the
// synthetic root above all naming contexts.
type ID uint64

// NOID marks "no such id". It doubles as the range marker in the
// first cell of a range-form IDL.
const NOID = ^ID(0)

// RootID is the id of the synthetic parent of every naming-context root.
const RootID ID = 0

// Entry is the slice of the entry record the DN-to-ID index consumes:
// the assigned id, the display and normalized DNs, and the stable
// operational UUID assigned when the entry is first written.
type Entry struct {
	ID    ID
	UUID  uuid.UUID
	Name  string // display DN
	NName string // normalized DN
	Info  *EntryInfo
}

// EntryInfo is the in-memory handle the index populates for an entry.
// The index writes ID, RDN and NRDN when it resolves a DN; everything
// else belongs to the caller. Parent pointers form a tree rooted at an
// EntryInfo with ID == RootID.
type EntryInfo struct {
	ID     ID
	Parent *EntryInfo
	RDN    string // display RDN
	NRDN   string // normalized RDN

	// ModRDNs counts renames of this entry or any ancestor. FixDN
	// compares it against the chain maximum to detect a stale DN.
	ModRDNs int
}
