package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brettbedarf/webvfs/internal/util"
	"gopkg.in/yaml.v3"
)

// Bytes per MB
const MB = 1024 * 1024

// Store backends accepted by [Config.StoreBackend]
const (
	StoreMemory  = "memory"
	StoreLevelDB = "leveldb"
	StoreDisk    = "disk"
)

// Log verbosity levels as accepted from the CLI and config files.
// 1 is the quietest, 5 the noisiest.
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultLogLvl = util.InfoLevel

	DefaultStoreBackend = StoreMemory

	// DefaultStateKey is the store key holding the filesystem snapshot
	DefaultStateKey = "fs_state_v1"

	// DefaultDiskCacheSize is the in-memory cache in front of the disk store
	DefaultDiskCacheSize = 8 * MB

	DefaultSeed = true

	// DefaultRequestTimeout bounds every RPC round trip
	DefaultRequestTimeout = 10 * time.Second

	DefaultPrompt = "webvfs"

	DefaultFsName = "webvfs"
	DefaultName   = "webvfs"

	// DefaultMaxWrite is the maximum write size per FUSE request
	DefaultMaxWrite = 1 * MB

	// DefaultAttrTimeout is the attribute cache timeout in seconds
	DefaultAttrTimeout = 1.0

	// DefaultEntryTimeout is the directory entry cache timeout in seconds
	DefaultEntryTimeout = 1.0
)

// Config contains runtime configuration values for the virtual filesystem.
type Config struct {
	MountOptions

	LogLvl util.LogLevel // Internal log level (Default info)

	StoreBackend  string // One of memory, leveldb or disk (Default memory)
	StorePath     string // Directory for the leveldb and disk backends
	StateKey      string // Store key of the snapshot (Default fs_state_v1)
	DiskCacheSize uint64 // Read cache of the disk backend in bytes (Default 8MB)
	Seed          bool   // Create the baseline layout on first boot (Default true)

	RequestTimeout time.Duration // RPC call timeout (Default 10s)
	Prompt         string        // Shell prompt prefix (Default webvfs)

	// NOTE: Low-level FUSE config

	MaxWrite     int     // Maximum write size per FUSE request (Default 1MB)
	AttrTimeout  float64 // Attribute cache timeout in seconds (Default 1.0)
	EntryTimeout float64 // Directory entry cache timeout in seconds (Default 1.0)
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	LogLvl *int `yaml:"verbose,omitempty" json:"verbose,omitempty"` // verbosity 1-5

	StoreBackend  *string `yaml:"store_backend,omitempty" json:"store_backend,omitempty"`
	StorePath     *string `yaml:"store_path,omitempty" json:"store_path,omitempty"`
	StateKey      *string `yaml:"state_key,omitempty" json:"state_key,omitempty"`
	DiskCacheSize *uint64 `yaml:"disk_cache_size,omitempty" json:"disk_cache_size,omitempty"`
	Seed          *bool   `yaml:"seed,omitempty" json:"seed,omitempty"`

	RequestTimeout *float64 `yaml:"request_timeout,omitempty" json:"request_timeout,omitempty"` // seconds
	Prompt         *string  `yaml:"prompt,omitempty" json:"prompt,omitempty"`

	Debug  *bool   `yaml:"debug,omitempty" json:"debug,omitempty"`
	FsName *string `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name   *string `yaml:"name,omitempty" json:"name,omitempty"`

	MaxWrite     *int     `yaml:"max_write,omitempty" json:"max_write,omitempty"`
	AttrTimeout  *float64 `yaml:"attr_timeout,omitempty" json:"attr_timeout,omitempty"`
	EntryTimeout *float64 `yaml:"entry_timeout,omitempty" json:"entry_timeout,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName: DefaultFsName,
			Name:   DefaultName,
		},
		LogLvl:         DefaultLogLvl,
		StoreBackend:   DefaultStoreBackend,
		StateKey:       DefaultStateKey,
		DiskCacheSize:  DefaultDiskCacheSize,
		Seed:           DefaultSeed,
		RequestTimeout: DefaultRequestTimeout,
		Prompt:         DefaultPrompt,
		MaxWrite:       DefaultMaxWrite,
		AttrTimeout:    DefaultAttrTimeout,
		EntryTimeout:   DefaultEntryTimeout,
	}
}

// NewConfig creates a Config from defaults with override applied on top.
// A nil override yields the defaults.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// VerboseToLogLevel maps a CLI verbosity (clamped to 1-5) to a log level
func VerboseToLogLevel(verbose int) util.LogLevel {
	verbose = max(ErrorVerbose, min(verbose, TraceVerbose))
	lvls := [5]util.LogLevel{util.ErrorLevel, util.WarnLevel, util.InfoLevel, util.DebugLevel, util.TraceLevel}
	return lvls[verbose-1]
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.LogLvl != nil {
		c.LogLvl = VerboseToLogLevel(*override.LogLvl)
	}
	if override.StoreBackend != nil {
		c.StoreBackend = *override.StoreBackend
	}
	if override.StorePath != nil {
		c.StorePath = *override.StorePath
	}
	if override.StateKey != nil {
		c.StateKey = *override.StateKey
	}
	if override.DiskCacheSize != nil {
		c.DiskCacheSize = *override.DiskCacheSize
	}
	if override.Seed != nil {
		c.Seed = *override.Seed
	}
	if override.RequestTimeout != nil {
		c.RequestTimeout = time.Duration(*override.RequestTimeout * float64(time.Second))
	}
	if override.Prompt != nil {
		c.Prompt = *override.Prompt
	}
	if override.Debug != nil {
		c.Debug = *override.Debug
	}
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.Name != nil {
		c.Name = *override.Name
	}
	if override.MaxWrite != nil {
		c.MaxWrite = *override.MaxWrite
	}
	if override.AttrTimeout != nil {
		c.AttrTimeout = *override.AttrTimeout
	}
	if override.EntryTimeout != nil {
		c.EntryTimeout = *override.EntryTimeout
	}
}

// Validate reports settings that cannot be used to open a store or serve requests
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StoreLevelDB, StoreDisk:
		if c.StorePath == "" {
			return fmt.Errorf("store backend %q requires a store path", c.StoreBackend)
		}
	default:
		return fmt.Errorf("unknown store backend: %q", c.StoreBackend)
	}
	if c.StateKey == "" {
		return fmt.Errorf("state key must not be empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	return nil
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
// This is a convenience function that combines NewDefaultConfig, LoadConfigOverrideFile, and Merge.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	cfg.Merge(override)
	return cfg, nil
}
