// Package config loads the storage core's tunables from a YAML file,
// generalizing the teacher's NovaSqlConfig to the buffer pool / page
// table / lock manager / B+tree knobs this module actually exposes.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds every tunable the storage core reads at startup. Zero
// values are replaced by Defaults() before use.
type Config struct {
	Storage struct {
		DataDir  string `mapstructure:"data_dir"`
		PageSize int    `mapstructure:"page_size"`
	} `mapstructure:"storage"`

	BufferPool struct {
		PoolSize      int    `mapstructure:"pool_size"`
		BucketSize    int    `mapstructure:"bucket_size"`
		ReplacerKind  string `mapstructure:"replacer"` // "lru" or "clock"
	} `mapstructure:"buffer_pool"`

	Txn struct {
		Strict2PL bool `mapstructure:"strict_2pl"`
	} `mapstructure:"txn"`

	WAL struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"wal"`
}

// Defaults returns the configuration novadb boots with when no file is
// supplied, mirroring spec.md's stated constants (4096-byte pages,
// bucket capacity 16).
func Defaults() *Config {
	cfg := &Config{}
	cfg.Storage.DataDir = "."
	cfg.Storage.PageSize = 4096
	cfg.BufferPool.PoolSize = 64
	cfg.BufferPool.BucketSize = 16
	cfg.BufferPool.ReplacerKind = "lru"
	cfg.Txn.Strict2PL = false
	cfg.WAL.Enabled = false
	cfg.WAL.Path = "novadb.wal"
	return cfg
}

// Load reads a YAML config file at path, overlaying it on Defaults().
func Load(path string) (*Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return cfg, nil
}
