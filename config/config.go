package config

import (
	"os"
	"path/filepath"
	"strings"

	"code.cloudfoundry.org/bytefmt"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/AmrMurad1/tiny-store/shared/log"
	"github.com/AmrMurad1/tiny-store/store"
)

// DefaultFileName is used for the database when no path is configured.
const DefaultFileName = "tiny-store.db"

type Config struct {
	Path                 string
	LogLevel             log.Level
	VerifyCompaction     bool
	BackupDir            string
	AutoCompactDeadBytes uint64
}

func Default() *Config {
	return &Config{
		Path:     filepath.Join(os.TempDir(), DefaultFileName),
		LogLevel: log.INFO,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %q", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse config %q", path)
	}
	return cfg, nil
}

func Parse(data []byte) (*Config, error) {
	var aux struct {
		Path                 string `yaml:"db_path"`
		LogLevel             string `yaml:"log_level"`
		VerifyCompaction     bool   `yaml:"verify_compaction"`
		BackupDir            string `yaml:"backup_dir"`
		AutoCompactDeadBytes string `yaml:"auto_compact_dead_bytes"`
	}

	if err := yaml.UnmarshalStrict(data, &aux); err != nil {
		return nil, err
	}

	cfg := Default()
	if aux.Path != "" {
		cfg.Path = aux.Path
	}

	level, err := log.ParseLevel(aux.LogLevel)
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	cfg.VerifyCompaction = aux.VerifyCompaction
	cfg.BackupDir = aux.BackupDir

	if s := strings.TrimSpace(aux.AutoCompactDeadBytes); s != "" && s != "0" {
		n, err := bytefmt.ToBytes(s)
		if err != nil {
			return nil, errors.Wrapf(err, "auto_compact_dead_bytes %q", s)
		}
		cfg.AutoCompactDeadBytes = n
	}

	return cfg, nil
}

func (c *Config) StoreOptions() store.Options {
	return store.Options{
		VerifyCompaction:     c.VerifyCompaction,
		BackupDir:            c.BackupDir,
		AutoCompactDeadBytes: c.AutoCompactDeadBytes,
	}
}
