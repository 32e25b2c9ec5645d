package dn2id

import (
	"strings"

	"github.com/schans/dirindex/types"
)

// FixMode selects how FixDN treats an entry whose cached DN may have
// been invalidated by a subtree rename.
type FixMode int

const (
	// FixRebuild rebuilds the DN unconditionally.
	FixRebuild FixMode = iota
	// FixCheck only reports staleness, so the caller can take the
	// entry lock before repairing.
	FixCheck
	// FixRepair rebuilds the DN when it is stale.
	FixRepair
)

// FixDN maintains e.Name and e.NName against the EntryInfo parent
// chain. Renaming an entry bumps its own rename counter; an entry whose
// counter is below the maximum along its ancestor chain has a stale
// DN. FixCheck returns true when the caller must lock the entry and
// call again with FixRepair. After a false return the entry's DNs
// reflect the current ancestor chain.
func FixDN(e *types.Entry, mode FixMode) bool {
	if e.Info == nil {
		return false
	}
	max := 0
	for ei := e.Info; ei != nil && ei.ID != types.RootID; ei = ei.Parent {
		if ei.ModRDNs > max {
			max = ei.ModRDNs
		}
	}
	if mode != FixRebuild {
		if e.Info.ModRDNs >= max {
			return false
		}
		if mode == FixCheck {
			return true
		}
	}

	var name, nname strings.Builder
	for ei := e.Info; ei != nil && ei.ID != types.RootID; ei = ei.Parent {
		if name.Len() > 0 {
			name.WriteByte(',')
			nname.WriteByte(',')
		}
		name.WriteString(ei.RDN)
		nname.WriteString(ei.NRDN)
	}
	e.Name = name.String()
	e.NName = nname.String()
	e.Info.ModRDNs = max
	return false
}
