package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/schans/dirindex/dn2id"
	"github.com/schans/dirindex/internal/logger"
	"github.com/schans/dirindex/kv"
	"github.com/schans/dirindex/types"
)

func newLoadCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "load <dn-file>",
		Short: "Build a fresh index from a file of normalized DNs and write the image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, backend, log, cfg, err := openBackend(v, false)
			if err != nil {
				return err
			}
			n, err := loadDNs(store, backend, args[0])
			if err != nil {
				return err
			}
			if err := store.SaveSnapshot(cfg.Snapshot); err != nil {
				return err
			}
			log.Info("index built",
				logger.F("entries", n), logger.F("snapshot", cfg.Snapshot))
			return nil
		},
	}
}

// depth orders DNs so parents are added before their children.
func depth(dn string) int {
	n := 0
	for i := 0; i < len(dn); i++ {
		switch dn[i] {
		case '\\':
			i++
		case ',':
			n++
		}
	}
	return n
}

func loadDNs(store *kv.Store, backend *dn2id.Backend, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open DN file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var dns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		dns = append(dns, line)
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to read DN file: %w", err)
	}
	sort.SliceStable(dns, func(i, j int) bool { return depth(dns[i]) < depth(dns[j]) })

	infos := map[string]*types.EntryInfo{"": {ID: types.RootID}}
	next := types.ID(1)

	err = store.Update(func(txn *kv.Txn) error {
		for _, dn := range dns {
			parentDN := ""
			if !backend.IsSuffix(dn) {
				parentDN = dn2id.DNParent(dn)
			}
			pinfo, ok := infos[parentDN]
			if !ok {
				return fmt.Errorf("no parent for %q: %q was never added", dn, parentDN)
			}
			nrlen := backend.RDNLen(dn)
			if nrlen == 0 {
				nrlen = len(dn)
			}
			e := &types.Entry{
				ID:    next,
				UUID:  uuid.New(),
				Name:  dn,
				NName: dn,
				Info: &types.EntryInfo{
					ID:     next,
					Parent: pinfo,
					RDN:    dn[:nrlen],
					NRDN:   dn[:nrlen],
				},
			}
			if err := backend.Add(txn, pinfo, e); err != nil {
				return fmt.Errorf("failed to add %q: %w", dn, err)
			}
			infos[dn] = e.Info
			next++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(dns), nil
}
