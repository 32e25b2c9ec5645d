package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/schans/dirindex/dn2id"
	"github.com/schans/dirindex/internal/logger"
	"github.com/schans/dirindex/internal/logger/zaplog"
	"github.com/schans/dirindex/kv"
	"github.com/schans/dirindex/types"
)

// appConfig is the on-disk tool configuration.
type appConfig struct {
	Backend  types.Config  `yaml:"backend"`
	Logger   logger.Config `yaml:"logger"`
	Snapshot string        `yaml:"snapshot"`
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("DIRINDEX")
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "dirindex",
		Short:         "Inspect and rebuild a DN-to-ID index image",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	flags := root.PersistentFlags()
	flags.String("config", "dirindex.yaml", "configuration file")
	flags.String("snapshot", "", "database image path (overrides the config)")
	flags.String("log-level", "", "log level (overrides the config)")
	for _, name := range []string{"config", "snapshot", "log-level"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(newLoadCmd(v), newDumpCmd(v), newVerifyCmd(v))
	return root
}

// loadConfig reads the YAML configuration and applies flag/env
// overrides.
func loadConfig(v *viper.Viper) (*appConfig, error) {
	cfg := &appConfig{
		Snapshot: "dirindex.json",
		Logger:   logger.Config{Level: "info", Encoding: "console"},
	}
	path := v.GetString("config")
	raw, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if s := v.GetString("snapshot"); s != "" {
		cfg.Snapshot = s
	}
	if l := v.GetString("log-level"); l != "" {
		cfg.Logger.Level = l
	}
	if err := cfg.Backend.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openBackend builds the store, optionally replays the snapshot, and
// opens the index on top.
func openBackend(v *viper.Viper, loadImage bool) (*kv.Store, *dn2id.Backend, logger.Logger, *appConfig, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	log, err := zaplog.New(cfg.Logger)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}

	store := kv.New()
	if err := dn2id.Prepare(store, cfg.Backend); err != nil {
		return nil, nil, nil, nil, err
	}
	if loadImage {
		if err := store.LoadSnapshot(cfg.Snapshot); err != nil {
			return nil, nil, nil, nil, err
		}
	}
	backend, err := dn2id.Open(store, cfg.Backend, log)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return store, backend, log, cfg, nil
}
