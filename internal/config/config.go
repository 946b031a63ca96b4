package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete engine configuration.
// Layering order (lowest to highest precedence): built-in defaults,
// the user config file, the workspace config file, then environment
// variables.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Paths     PathsConfig     `yaml:"paths" json:"paths"`
	Chunking  ChunkingConfig  `yaml:"chunking" json:"chunking"`
	Index     IndexConfig     `yaml:"index" json:"index"`
	Download  DownloadConfig  `yaml:"download" json:"download"`
	Retention RetentionConfig `yaml:"retention" json:"retention"`
}

// PathsConfig configures where the engine stores its data.
type PathsConfig struct {
	// Home is the engine's root directory (TALARIA_HOME). All other
	// paths default relative to it unless set explicitly.
	Home string `yaml:"home" json:"home"`
	// DataDir holds the chunk store and index layer databases.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// DatabasesDir holds per-source/dataset manifest and version trees.
	DatabasesDir string `yaml:"databases_dir" json:"databases_dir"`
}

// ChunkingConfig configures the taxonomy-aware chunker defaults.
type ChunkingConfig struct {
	// TargetChunkBytes is the default target chunk size for
	// unclassified/taxon-0 sequences.
	TargetChunkBytes int64 `yaml:"target_chunk_bytes" json:"target_chunk_bytes"`
	// MaxChunkBytes is the hard ceiling on a single chunk's size.
	MaxChunkBytes int64 `yaml:"max_chunk_bytes" json:"max_chunk_bytes"`
	// MinSequencesPerChunk is the minimum sequence count before a
	// trailing chunk is merged into its predecessor.
	MinSequencesPerChunk int `yaml:"min_sequences_per_chunk" json:"min_sequences_per_chunk"`
	// TaxonomicCoherence is the minimum fraction of a chunk's
	// sequences that must share the dominant taxon before the chunk
	// is considered coherent.
	TaxonomicCoherence float64 `yaml:"taxonomic_coherence" json:"taxonomic_coherence"`
}

// IndexConfig configures the embedded KV index layer and its bloom filter.
type IndexConfig struct {
	// BloomFPR is the target false-positive rate for the existence
	// bloom filter.
	BloomFPR float64 `yaml:"bloom_fpr" json:"bloom_fpr"`
	// BloomExpectedItems sizes the bloom filter's bit array up front.
	BloomExpectedItems uint64 `yaml:"bloom_expected_items" json:"bloom_expected_items"`
	// CacheSize is the number of manifest/taxonomy-snapshot entries
	// kept in the in-memory LRU cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// DownloadConfig configures the resilient download pipeline.
type DownloadConfig struct {
	// Threads sizes the worker pool used for chunking/hashing.
	// Zero means use runtime.NumCPU().
	Threads int `yaml:"threads" json:"threads"`
	// PreserveOnFailure keeps the workspace directory around after a
	// completed download instead of removing it. A failed download's
	// workspace is always left in place for a later resume.
	PreserveOnFailure bool `yaml:"preserve_on_failure" json:"preserve_on_failure"`
	// StaleLockGrace is loaded and saved with the config file; the
	// download workspace lock does not read it and uses its own fixed
	// five-minute grace period before stealing a stale lock.
	StaleLockGrace time.Duration `yaml:"stale_lock_grace" json:"stale_lock_grace"`
	// ChunkServer is the base URL used to fetch chunks by hash.
	ChunkServer string `yaml:"chunk_server" json:"chunk_server"`
}

// RetentionConfig configures version cleanup policy.
type RetentionConfig struct {
	// KeepVersions is the number of most-recent versions kept per
	// source/dataset before older ones become eligible for cleanup.
	KeepVersions int `yaml:"keep_versions" json:"keep_versions"`
	// KeepDuration additionally retains any version newer than this,
	// regardless of KeepVersions.
	KeepDuration time.Duration `yaml:"keep_duration" json:"keep_duration"`
}

// NewConfig returns a Config populated with built-in defaults.
func NewConfig() *Config {
	home := defaultHome()
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Home:         home,
			DataDir:      filepath.Join(home, "data"),
			DatabasesDir: filepath.Join(home, "databases"),
		},
		Chunking: ChunkingConfig{
			TargetChunkBytes:     10 * 1024 * 1024,
			MaxChunkBytes:        50 * 1024 * 1024,
			MinSequencesPerChunk: 10,
			TaxonomicCoherence:   0.8,
		},
		Index: IndexConfig{
			BloomFPR:           0.01,
			BloomExpectedItems: 1_000_000,
			CacheSize:          512,
		},
		Download: DownloadConfig{
			Threads:           runtime.NumCPU(),
			PreserveOnFailure: false,
			StaleLockGrace:    5 * time.Minute,
		},
		Retention: RetentionConfig{
			KeepVersions: 5,
			KeepDuration: 30 * 24 * time.Hour,
		},
	}
}

func defaultHome() string {
	if home := os.Getenv("TALARIA_HOME"); home != "" {
		return home
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".talaria")
	}
	return filepath.Join(os.TempDir(), ".talaria")
}

// GetUserConfigPath returns the path to the global user config file,
// honoring XDG_CONFIG_HOME when set.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "talaria", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "talaria", "config.yaml")
	}
	return filepath.Join(home, ".config", "talaria", "config.yaml")
}

// UserConfigExists reports whether a global user config file is present.
func UserConfigExists() bool {
	_, err := os.Stat(GetUserConfigPath())
	return err == nil
}

func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config %s: %w", path, err)
	}
	return &cfg, nil
}

// Load builds the effective configuration for a workspace directory,
// layering user config, workspace config, and environment overrides on
// top of the built-in defaults.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from talaria.yaml or
// talaria.yml in dir.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, "talaria.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}
	ymlPath := filepath.Join(dir, "talaria.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays non-zero fields from other onto c.
func (c *Config) mergeWith(other *Config) {
	if other.Paths.Home != "" {
		c.Paths.Home = other.Paths.Home
	}
	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
	}
	if other.Paths.DatabasesDir != "" {
		c.Paths.DatabasesDir = other.Paths.DatabasesDir
	}

	if other.Chunking.TargetChunkBytes != 0 {
		c.Chunking.TargetChunkBytes = other.Chunking.TargetChunkBytes
	}
	if other.Chunking.MaxChunkBytes != 0 {
		c.Chunking.MaxChunkBytes = other.Chunking.MaxChunkBytes
	}
	if other.Chunking.MinSequencesPerChunk != 0 {
		c.Chunking.MinSequencesPerChunk = other.Chunking.MinSequencesPerChunk
	}
	if other.Chunking.TaxonomicCoherence != 0 {
		c.Chunking.TaxonomicCoherence = other.Chunking.TaxonomicCoherence
	}

	if other.Index.BloomFPR != 0 {
		c.Index.BloomFPR = other.Index.BloomFPR
	}
	if other.Index.BloomExpectedItems != 0 {
		c.Index.BloomExpectedItems = other.Index.BloomExpectedItems
	}
	if other.Index.CacheSize != 0 {
		c.Index.CacheSize = other.Index.CacheSize
	}

	if other.Download.Threads != 0 {
		c.Download.Threads = other.Download.Threads
	}
	if other.Download.PreserveOnFailure {
		c.Download.PreserveOnFailure = true
	}
	if other.Download.StaleLockGrace != 0 {
		c.Download.StaleLockGrace = other.Download.StaleLockGrace
	}
	if other.Download.ChunkServer != "" {
		c.Download.ChunkServer = other.Download.ChunkServer
	}

	if other.Retention.KeepVersions != 0 {
		c.Retention.KeepVersions = other.Retention.KeepVersions
	}
	if other.Retention.KeepDuration != 0 {
		c.Retention.KeepDuration = other.Retention.KeepDuration
	}
}

// applyEnvOverrides applies TALARIA_* environment variables, which take
// precedence over any config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TALARIA_HOME"); v != "" {
		c.Paths.Home = v
	}
	if v := os.Getenv("TALARIA_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("TALARIA_DATABASES_DIR"); v != "" {
		c.Paths.DatabasesDir = v
	}
	if v := os.Getenv("TALARIA_CHUNK_SERVER"); v != "" {
		c.Download.ChunkServer = v
	}
	if v := os.Getenv("TALARIA_PRESERVE_ON_FAILURE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Download.PreserveOnFailure = b
		}
	}
	if v := os.Getenv("TALARIA_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Download.Threads = n
		}
	}
}

// Validate checks the configuration for internally inconsistent values.
func (c *Config) Validate() error {
	if c.Chunking.TargetChunkBytes <= 0 {
		return fmt.Errorf("chunking.target_chunk_bytes must be positive")
	}
	if c.Chunking.MaxChunkBytes < c.Chunking.TargetChunkBytes {
		return fmt.Errorf("chunking.max_chunk_bytes must be >= target_chunk_bytes")
	}
	if c.Chunking.TaxonomicCoherence < 0 || c.Chunking.TaxonomicCoherence > 1 {
		return fmt.Errorf("chunking.taxonomic_coherence must be in [0,1]")
	}
	if c.Index.BloomFPR <= 0 || c.Index.BloomFPR >= 1 {
		return fmt.Errorf("index.bloom_fpr must be in (0,1)")
	}
	if c.Download.Threads <= 0 {
		return fmt.Errorf("download.threads must be positive")
	}
	if c.Retention.KeepVersions < 1 {
		return fmt.Errorf("retention.keep_versions must be at least 1")
	}
	return nil
}

// WriteYAML serialises the configuration to path as YAML.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadUserConfig loads only the global user config, without workspace
// layering. Used by commands that operate outside of any workspace.
func LoadUserConfig() (*Config, error) {
	cfg := NewConfig()
	userCfg, err := loadUserConfig()
	if err != nil {
		return nil, err
	}
	if userCfg != nil {
		cfg.mergeWith(userCfg)
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}
