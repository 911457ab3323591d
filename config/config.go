package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration.
type Config struct {
	Storage struct {
		Backend string `yaml:"backend" env:"LIBRARY_STORAGE_BACKEND"`
		DataDir string `yaml:"data_dir" env:"LIBRARY_DATA_DIR"`
		// Strict makes unreadable collections fail loudly instead of loading as empty.
		Strict bool `yaml:"strict" env:"LIBRARY_STORAGE_STRICT"`
	} `yaml:"storage"`

	Lending struct {
		MaxActiveLoans int `yaml:"max_active_loans" env:"LIBRARY_MAX_ACTIVE_LOANS"`
		OverdueDays    int `yaml:"overdue_days" env:"LIBRARY_OVERDUE_DAYS"`
	} `yaml:"lending"`

	Logging struct {
		Level  string `yaml:"level" env:"LIBRARY_LOG_LEVEL"`
		Format string `yaml:"format" env:"LIBRARY_LOG_FORMAT"`
		File   string `yaml:"file" env:"LIBRARY_LOG_FILE"`
	} `yaml:"logging"`
}

// Load reads configPath if it exists, then applies environment overrides.
func Load(configPath string) (*Config, error) {
	config := &Config{}
	setDefaults(config)

	if _, err := os.Stat(configPath); err == nil {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := processStructFields(config); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func setDefaults(config *Config) {
	config.Storage.Backend = "json"
	config.Storage.DataDir = "database"

	config.Lending.MaxActiveLoans = 3
	config.Lending.OverdueDays = 7

	config.Logging.Level = "info"
	config.Logging.Format = "json"
}

func validateConfig(config *Config) error {
	switch config.Storage.Backend {
	case "json", "sqlite", "bolt":
	default:
		return fmt.Errorf("unknown storage backend %q", config.Storage.Backend)
	}

	if config.Storage.DataDir == "" {
		return fmt.Errorf("storage data_dir is required")
	}

	if config.Lending.MaxActiveLoans < 1 {
		return fmt.Errorf("lending max_active_loans must be at least 1")
	}

	if config.Lending.OverdueDays < 0 {
		return fmt.Errorf("lending overdue_days cannot be negative")
	}

	switch config.Logging.Format {
	case "json", "pretty":
	default:
		return fmt.Errorf("unknown log format %q", config.Logging.Format)
	}

	return nil
}

// LogFile returns the log destination, defaulting to library.log in the data directory.
func (c *Config) LogFile() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	return filepath.Join(c.Storage.DataDir, "library.log")
}
