package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileName is the workspace configuration file.
const FileName = "spendsort.yaml"

// Config represents the top-level spendsort.yaml configuration.
type Config struct {
	Categories []string      `yaml:"categories"`
	Model      ModelConfig   `yaml:"model"`
	Storage    StorageConfig `yaml:"storage"`
	Import     ImportConfig  `yaml:"import"`
	Log        LogConfig     `yaml:"log"`
}

// ModelConfig controls training and the confidence gate.
type ModelConfig struct {
	Dir                 string  `yaml:"dir"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	MinSamples          int     `yaml:"min_samples"`
	TestSize            float64 `yaml:"test_size"`
	Seed                int64   `yaml:"seed"`
	Trees               int     `yaml:"trees"`
	MaxFeatures         int     `yaml:"max_features"` // vocabulary cap
	MinSamplesSplit     int     `yaml:"min_samples_split"`
	Stratify            bool    `yaml:"stratify"`
}

// StorageConfig selects the transaction store.
type StorageConfig struct {
	Driver string `yaml:"driver"` // "bolt" or "postgres"
	Path   string `yaml:"path,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`
}

// ImportConfig describes the bank CSVs dropped into import/.
type ImportConfig struct {
	Format      string            `yaml:"format"`            // parser name, e.g. "mapped" or "chase"
	Columns     map[string]string `yaml:"columns,omitempty"` // field -> CSV header, for "mapped"
	DateFormats []string          `yaml:"date_formats,omitempty"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultCategories is the category list a new workspace starts with. The
// last entry is the catch-all for low-confidence predictions.
var DefaultCategories = []string{
	"Income",
	"Reimbursements",
	"Housing & Utilities",
	"Groceries",
	"Dining",
	"Entertainment",
	"Transportation",
	"Nightlife",
	"Clothing",
	"Home Improvement",
	"Cash Withdrawals",
	"Flights",
	"Accommodation",
	"Health & Fitness",
	"Miscellaneous",
}

// Load reads a spendsort.yaml file from disk. Fields missing from the file
// keep their defaults, and SPENDSORT_* environment variables win over both.
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Update applies edit to the file at path and writes it back. Environment
// overrides are not persisted.
func Update(path string, edit func(*Config)) error {
	cfg, err := read(path)
	if err != nil {
		return err
	}
	edit(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	return Save(path, cfg)
}

func read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	cfg.Categories = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = append([]string(nil), DefaultCategories...)
	}
	return cfg, nil
}

// SaveColumns writes an import column mapping (field -> CSV header) so it
// can be reused for another workspace or bank.
func SaveColumns(path string, columns map[string]string) error {
	data, err := yaml.Marshal(columns)
	if err != nil {
		return fmt.Errorf("marshaling column mapping: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing column mapping: %w", err)
	}
	return nil
}

// LoadColumns reads a mapping written by SaveColumns. A flat JSON object
// parses as well.
func LoadColumns(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading column mapping: %w", err)
	}
	var columns map[string]string
	if err := yaml.Unmarshal(data, &columns); err != nil {
		return nil, fmt.Errorf("parsing column mapping: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("column mapping %s is empty", path)
	}
	return columns, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new workspace.
func Default() *Config {
	return &Config{
		Categories: append([]string(nil), DefaultCategories...),
		Model: ModelConfig{
			Dir:                 "model",
			ConfidenceThreshold: 0.7,
			MinSamples:          10,
			TestSize:            0.2,
			Seed:                42,
			Trees:               100,
			MaxFeatures:         5000,
			MinSamplesSplit:     2,
		},
		Storage: StorageConfig{
			Driver: "bolt",
			Path:   "data/spendsort.db",
		},
		Import: ImportConfig{
			Format:      "mapped",
			DateFormats: []string{"2006-01-02", "01/02/2006", "02/01/2006", "2006/01/02"},
		},
		Log: LogConfig{Level: "info"},
	}
}

// Validate checks values that would make the pipeline meaningless.
func (c *Config) Validate() error {
	if c.Model.ConfidenceThreshold < 0 || c.Model.ConfidenceThreshold > 1 {
		return fmt.Errorf("model.confidence_threshold must be between 0 and 1, got %v", c.Model.ConfidenceThreshold)
	}
	if c.Model.TestSize <= 0 || c.Model.TestSize >= 1 {
		return fmt.Errorf("model.test_size must be between 0 and 1, got %v", c.Model.TestSize)
	}
	if c.Model.MinSamples < 2 {
		return fmt.Errorf("model.min_samples must be at least 2, got %d", c.Model.MinSamples)
	}
	switch c.Storage.Driver {
	case "bolt", "postgres":
	default:
		return fmt.Errorf("storage.driver must be bolt or postgres, got %q", c.Storage.Driver)
	}
	return nil
}

func (c *Config) applyEnv() {
	if dsn := os.Getenv("SPENDSORT_STORAGE_DSN"); dsn != "" {
		c.Storage.DSN = dsn
		c.Storage.Driver = "postgres"
	}
	if level := os.Getenv("SPENDSORT_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}
