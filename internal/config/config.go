// Package config loads floppyfs configuration: embedded defaults, then an
// optional YAML or JSON file, then FLOPPYFS_* environment variables.
// Command-line flags are applied on top by the caller.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

//go:embed config.default.yaml
var defaultConfig []byte

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FLOPPYFS_"

// Config holds the process configuration.
type Config struct {
	// Serial
	Port        string        `koanf:"port"`
	Baud        int           `koanf:"baud"`
	ReadTimeout time.Duration `koanf:"read_timeout"`

	// Mount
	MountPoint   string `koanf:"mountpoint"`
	VolumePrefix string `koanf:"volume_prefix"`
	ReadOnly     bool   `koanf:"read_only"`
	WriteBack    bool   `koanf:"write_back"`

	ProbeTimeout time.Duration `koanf:"probe_timeout"`

	// Logging
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
	// LogOutput is stdout, stderr or a file path; empty keeps zap's default.
	LogOutput string `koanf:"log_output"`

	// Metrics listener; empty disables it.
	MetricsAddr string `koanf:"metrics_addr"`
}

// Load builds a Config. path may be empty; otherwise its extension selects
// the parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultConfig), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyEnv()
	return &cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	}
	return nil, fmt.Errorf("unsupported config format: %q", path)
}

func (c *Config) applyEnv() {
	c.Port = envOr("PORT", c.Port)
	c.Baud = envInt("BAUD", c.Baud)
	c.ReadTimeout = envDuration("READ_TIMEOUT", c.ReadTimeout)
	c.MountPoint = envOr("MOUNTPOINT", c.MountPoint)
	c.VolumePrefix = envOr("VOLUME_PREFIX", c.VolumePrefix)
	c.ReadOnly = envBool("READ_ONLY", c.ReadOnly)
	c.WriteBack = envBool("WRITE_BACK", c.WriteBack)
	c.ProbeTimeout = envDuration("PROBE_TIMEOUT", c.ProbeTimeout)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("LOG_FORMAT", c.LogFormat)
	c.LogOutput = envOr("LOG_OUTPUT", c.LogOutput)
	c.MetricsAddr = envOr("METRICS_ADDR", c.MetricsAddr)
}

// Validate reports the first missing or out-of-range setting.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("serial port is required")
	}
	if c.MountPoint == "" {
		return fmt.Errorf("mountpoint is required")
	}
	if c.Baud <= 0 {
		return fmt.Errorf("baud must be positive, got %d", c.Baud)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be positive, got %s", c.ReadTimeout)
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be positive, got %s", c.ProbeTimeout)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
