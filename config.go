package ctepipe

import (
	"fmt"
	"os"
	"regexp"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config represents the ctepipe configuration
type Config struct {
	Dialect   string              `yaml:"dialect"`
	QueryDir  string              `yaml:"query_dir"`
	Databases map[string]Database `yaml:"databases"`
	Query     QueryConfig         `yaml:"query"`
}

// Database represents database connection configuration
type Database struct {
	Driver     string `yaml:"driver"`
	Connection string `yaml:"connection"`
}

// QueryConfig represents query execution settings
type QueryConfig struct {
	DefaultFormat      string `yaml:"default_format"`
	DefaultEnvironment string `yaml:"default_environment"`
	Timeout            int    `yaml:"timeout"` // seconds, 0 disables the timeout
	Limit              int    `yaml:"limit"`
}

var (
	bracedEnvVar = regexp.MustCompile(`\$\{([^}]+)\}`)
	plainEnvVar  = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// LoadConfig loads configuration from the specified file
func LoadConfig(configPath string) (*Config, error) {
	// Load .env files first
	err := loadEnvFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to load environment files: %w", err)
	}

	_, err = os.Stat(configPath)
	if os.IsNotExist(err) {
		config := getDefaultConfig()
		expandConfigEnvVars(config)

		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML with strict mode to detect unknown fields
	var config Config

	err = yaml.UnmarshalWithOptions(data, &config, yaml.Strict())
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	applyDefaults(&config)
	expandConfigEnvVars(&config)

	return &config, nil
}

// validateConfig validates the configuration for common errors and inconsistencies
func validateConfig(config *Config) error {
	if config.Dialect != "" && !Dialect(config.Dialect).IsValid() {
		return fmt.Errorf("%w: invalid dialect '%s': must be one of postgres, mysql, sqlite, mariadb", ErrConfigValidation, config.Dialect)
	}

	for name, db := range config.Databases {
		if db.Driver == "" {
			return fmt.Errorf("%w: database '%s': driver is required", ErrConfigValidation, name)
		}

		if db.Connection == "" {
			return fmt.Errorf("%w: database '%s': connection is required", ErrConfigValidation, name)
		}
	}

	if config.Query.Timeout < 0 {
		return fmt.Errorf("%w: query.timeout must be non-negative, got %d", ErrConfigValidation, config.Query.Timeout)
	}

	if config.Query.Limit < 0 {
		return fmt.Errorf("%w: query.limit must be non-negative, got %d", ErrConfigValidation, config.Query.Limit)
	}

	if config.Query.DefaultFormat != "" {
		validFormats := map[string]bool{
			"table":    true,
			"json":     true,
			"csv":      true,
			"yaml":     true,
			"markdown": true,
		}
		if !validFormats[config.Query.DefaultFormat] {
			return fmt.Errorf("%w: query.default_format '%s' is invalid: must be one of table, json, csv, yaml, markdown", ErrConfigValidation, config.Query.DefaultFormat)
		}
	}

	return nil
}

// getDefaultConfig returns the default configuration
func getDefaultConfig() *Config {
	return &Config{
		Dialect:   string(DialectPostgres),
		QueryDir:  "./queries",
		Databases: make(map[string]Database),
		Query: QueryConfig{
			DefaultFormat:      "table",
			DefaultEnvironment: "development",
			Timeout:            30,
		},
	}
}

// applyDefaults fills the fields left empty in the configuration file
func applyDefaults(config *Config) {
	defaults := getDefaultConfig()

	if config.Dialect == "" {
		config.Dialect = defaults.Dialect
	}

	if config.QueryDir == "" {
		config.QueryDir = defaults.QueryDir
	}

	if config.Databases == nil {
		config.Databases = defaults.Databases
	}

	if config.Query.DefaultFormat == "" {
		config.Query.DefaultFormat = defaults.Query.DefaultFormat
	}

	if config.Query.DefaultEnvironment == "" {
		config.Query.DefaultEnvironment = defaults.Query.DefaultEnvironment
	}

	if config.Query.Timeout == 0 {
		config.Query.Timeout = defaults.Query.Timeout
	}
}

// loadEnvFiles loads .env files if they exist
func loadEnvFiles() error {
	if fileExists(".env") {
		err := godotenv.Load(".env")
		if err != nil {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
func expandEnvVars(s string) string {
	s = bracedEnvVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})

	return plainEnvVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[1:])
	})
}

// expandConfigEnvVars expands environment variables in config
func expandConfigEnvVars(config *Config) {
	for name, db := range config.Databases {
		db.Driver = expandEnvVars(db.Driver)
		db.Connection = expandEnvVars(db.Connection)
		config.Databases[name] = db
	}

	config.QueryDir = expandEnvVars(config.QueryDir)
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// Database returns the connection settings for an environment.
func (c *Config) Database(environment string) (Database, bool) {
	db, ok := c.Databases[environment]
	return db, ok
}
