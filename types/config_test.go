package types

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateDefaultsLayout(t *testing.T) {
	cfg := Config{Suffixes: []string{"dc=example,dc=com"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if cfg.Layout != LayoutFlat {
		t.Errorf("layout defaulted to %q", cfg.Layout)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []Config{
		{},
		{Suffixes: []string{"dc=x"}, Layout: "btree"},
		{Suffixes: []string{"dc=x"}, IDLCacheSize: -1},
	}
	for i, cfg := range cases {
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d accepted: %+v", i, cfg)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backend.yaml")
	raw := `
suffixes:
  - dc=example,dc=com
layout: hier
multipleSuffixes: true
idlCacheSize: 128
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Layout != LayoutHier || !cfg.MultipleSuffixes || cfg.IDLCacheSize != 128 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if len(cfg.Suffixes) != 1 || cfg.Suffixes[0] != "dc=example,dc=com" {
		t.Errorf("suffixes = %v", cfg.Suffixes)
	}
}
