package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/bochendong/dragon-continue/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
	source     dotdir.Source
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, source, err := cfger.ddm.Locate(override)
	if err != nil {
		return nil, err
	}
	cfger.source = source

	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Set targetPath whenever the directory exists so SaveConfig can
	// create the file.
	cfger.targetPath = path

	return cfger, nil
}

// orderedKeys lists configuration keys in TOML section order.
var orderedKeys = []string{
	"storage.backend",
	"storage.sqlite_path",
	"storage.postgres_dsn",
	"oracle.provider",
	"oracle.model",
	"oracle.base_url",
	"oracle.api_key",
	"oracle.timeout",
	"compaction.merge_factor",
	"compaction.detail_window",
	"compaction.concurrency",
	"compaction.window_cache_size",
	"api.listen",
	"events.brokers",
	"events.topic",
}

// ValidConfigKeys returns the list of all supported configuration key names
// in a stable order matching the TOML section layout.
func ValidConfigKeys() []string {
	result := make([]string, 0, len(configKeys))
	seen := make(map[string]bool, len(configKeys))
	for _, k := range orderedKeys {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
			seen[k] = true
		}
	}

	// Append any keys in the map that we missed in the ordered list.
	for k := range configKeys {
		if !seen[k] {
			result = append(result, k)
		}
	}

	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// Source reports how the config directory was chosen.
func (c *Configer) Source() dotdir.Source {
	return c.source
}

// Dir returns the directory holding config.toml.
func (c *Configer) Dir() string {
	if c.targetPath == "" {
		return ""
	}
	return filepath.Dir(c.targetPath)
}

// LoadConfig loads the configuration from config.toml in the target .dragon/
// directory. A missing file yields NewDefaultConfig(); fields explicitly set
// in the file override the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from NewDefaultConfig().
func applyDefaults(cfg *Config) {
	defaults := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = defaults.Storage.Backend
	}

	if cfg.Oracle.Provider == "" {
		cfg.Oracle.Provider = defaults.Oracle.Provider
	}
	if cfg.Oracle.Timeout == "" {
		cfg.Oracle.Timeout = defaults.Oracle.Timeout
	}

	if cfg.Compaction.MergeFactor == 0 {
		cfg.Compaction.MergeFactor = defaults.Compaction.MergeFactor
	}
	if cfg.Compaction.DetailWindow == nil {
		cfg.Compaction.DetailWindow = defaults.Compaction.DetailWindow
	}
	if cfg.Compaction.Concurrency == 0 {
		cfg.Compaction.Concurrency = defaults.Compaction.Concurrency
	}
	if cfg.Compaction.WindowCacheSize == 0 {
		cfg.Compaction.WindowCacheSize = defaults.Compaction.WindowCacheSize
	}

	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}

	if cfg.Events.Topic == "" {
		cfg.Events.Topic = defaults.Events.Topic
	}
}

// SaveConfig persists the configuration to config.toml in the target .dragon/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// PresetConfig returns a default Config pointed at the named oracle provider.
// Supported presets: "openai", "anthropic", "ollama", "none".
func PresetConfig(name string) (*Config, error) {
	cfg := NewDefaultConfig()

	switch strings.ToLower(name) {
	case "openai":
		cfg.Oracle.Provider = "openai"
		cfg.Oracle.Model = "gpt-4o-mini"
		cfg.Oracle.BaseURL = "https://api.openai.com"

	case "anthropic":
		cfg.Oracle.Provider = "anthropic"
		cfg.Oracle.Model = "claude-haiku-4-5-20251001"

	case "ollama":
		cfg.Oracle.Provider = "ollama"
		cfg.Oracle.Model = "llama3.2"
		cfg.Oracle.BaseURL = "http://localhost:11434"

	case "none":
		cfg.Oracle.Provider = "none"

	default:
		return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(ValidPresetNames(), ", "))
	}

	return cfg, nil
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return []string{"openai", "anthropic", "ollama", "none"}
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
