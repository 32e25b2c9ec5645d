package types

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Layout selects which on-disk organisation a backend uses for its
// DN-to-ID database.
type Layout string

const (
	// LayoutFlat keys every record by prefix byte plus normalized DN.
	LayoutFlat Layout = "flat"
	// LayoutHier keys every record by parent entry id, with the node
	// records stored as sorted duplicates.
	LayoutHier Layout = "hier"
)

// Config describes one backend database.
type Config struct {
	// Suffixes are the normalized DNs of the naming contexts this
	// backend serves. At least one is required.
	Suffixes []string `yaml:"suffixes"`

	// Layout selects the DN-to-ID organisation. Changing it requires
	// a reindex.
	Layout Layout `yaml:"layout"`

	// MultipleSuffixes extends the ancestor walk to include the suffix
	// itself, so the suffix's subtree set is stored, and disables the
	// all-ids shortcut. It is a whole-database attribute; changing it
	// requires a reindex.
	MultipleSuffixes bool `yaml:"multipleSuffixes"`

	// IDLCacheSize bounds the IDL cache by entry count. Zero disables
	// the cache.
	IDLCacheSize int `yaml:"idlCacheSize"`

	// IDLCacheMaxBytes optionally bounds the cache by the summed byte
	// size of the cached IDLs. Zero means no byte bound.
	IDLCacheMaxBytes int `yaml:"idlCacheMaxBytes"`
}

// Validate checks the configuration for values the backend cannot open with.
func (c *Config) Validate() error {
	if len(c.Suffixes) == 0 {
		return fmt.Errorf("config: at least one suffix is required")
	}
	switch c.Layout {
	case LayoutFlat, LayoutHier:
	case "":
		c.Layout = LayoutFlat
	default:
		return fmt.Errorf("config: unknown layout %q", c.Layout)
	}
	if c.IDLCacheSize < 0 {
		return fmt.Errorf("config: idlCacheSize must not be negative")
	}
	if c.IDLCacheMaxBytes < 0 {
		return fmt.Errorf("config: idlCacheMaxBytes must not be negative")
	}
	return nil
}

// LoadConfig reads a YAML backend configuration from path.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
