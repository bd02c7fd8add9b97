package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rohankatakam/codelineage/internal/errors"
)

// Config holds all configuration settings
type Config struct {
	// Lineage analysis settings
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`

	// Multi-repository runs
	Batch BatchConfig `yaml:"batch" mapstructure:"batch"`

	// Result persistence
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Result cache
	Cache CacheConfig `yaml:"cache" mapstructure:"cache"`

	// Neo4j export
	Graph GraphConfig `yaml:"graph" mapstructure:"graph"`

	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

type AnalysisConfig struct {
	Strict             bool     `yaml:"strict" mapstructure:"strict"`         // Duplicate claims abort the analysis
	BondKinds          []string `yaml:"bond_kinds" mapstructure:"bond_kinds"` // Empty = every refactoring kind
	SearchMergeParents bool     `yaml:"search_merge_parents" mapstructure:"search_merge_parents"`
}

type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

type StorageConfig struct {
	Type        string `yaml:"type" mapstructure:"type"` // "postgres", "sqlite", "none"
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
	LocalPath   string `yaml:"local_path" mapstructure:"local_path"`
}

type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Directory string        `yaml:"directory" mapstructure:"directory"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

type GraphConfig struct {
	URI      string `yaml:"neo4j_uri" mapstructure:"neo4j_uri"` // Empty disables export
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
}

type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file" mapstructure:"file"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Batch: BatchConfig{
			Concurrency: 4,
		},
		Storage: StorageConfig{
			Type:      "sqlite",
			LocalPath: filepath.Join(homeDir, ".lineage", "lineage.db"),
		},
		Cache: CacheConfig{
			Enabled:   true,
			Directory: filepath.Join(homeDir, ".lineage", "cache"),
			TTL:       24 * time.Hour,
		},
		Graph: GraphConfig{
			User:     "neo4j",
			Database: "neo4j",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	// Load .env files first (in order of precedence)
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	setDefaults(v, cfg)

	// LINEAGE_ANALYSIS_STRICT, LINEAGE_CACHE_TTL, ...
	v.SetEnvPrefix("LINEAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".lineage")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".lineage"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityCritical, "failed to read config")
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.ConfigErrorf("failed to unmarshal config: %v", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("analysis.strict", cfg.Analysis.Strict)
	v.SetDefault("analysis.bond_kinds", cfg.Analysis.BondKinds)
	v.SetDefault("analysis.search_merge_parents", cfg.Analysis.SearchMergeParents)
	v.SetDefault("batch.concurrency", cfg.Batch.Concurrency)
	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.postgres_dsn", cfg.Storage.PostgresDSN)
	v.SetDefault("storage.local_path", cfg.Storage.LocalPath)
	v.SetDefault("cache.enabled", cfg.Cache.Enabled)
	v.SetDefault("cache.directory", cfg.Cache.Directory)
	v.SetDefault("cache.ttl", cfg.Cache.TTL)
	v.SetDefault("graph.neo4j_uri", cfg.Graph.URI)
	v.SetDefault("graph.user", cfg.Graph.User)
	v.SetDefault("graph.password", cfg.Graph.Password)
	v.SetDefault("graph.database", cfg.Graph.Database)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.json", cfg.Logging.JSON)
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	envFiles := []string{
		".env.local", // Local overrides (highest precedence)
		".env",
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			// godotenv never overwrites variables that are already set
			_ = godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".lineage", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		_ = godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies the conventional unprefixed variables shared with
// other tooling (database and graph connection settings)
func applyEnvOverrides(cfg *Config) {
	// Storage configuration
	if storageType := os.Getenv("STORAGE_TYPE"); storageType != "" {
		cfg.Storage.Type = storageType
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
	if path := os.Getenv("LOCAL_DB_PATH"); path != "" {
		cfg.Storage.LocalPath = expandPath(path)
	}
	cfg.Storage.LocalPath = expandPath(cfg.Storage.LocalPath)

	// Cache configuration
	if dir := os.Getenv("CACHE_DIRECTORY"); dir != "" {
		cfg.Cache.Directory = dir
	}
	cfg.Cache.Directory = expandPath(cfg.Cache.Directory)

	// Graph configuration
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.Graph.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		cfg.Graph.User = user
	}
	if password := os.Getenv("NEO4J_PASSWORD"); password != "" {
		cfg.Graph.Password = password
	}
	if db := os.Getenv("NEO4J_DATABASE"); db != "" {
		cfg.Graph.Database = db
	}

	// Analysis configuration
	if kinds := os.Getenv("LINEAGE_BOND_KINDS"); kinds != "" {
		cfg.Analysis.BondKinds = splitList(kinds)
	}
	if workers := os.Getenv("LINEAGE_CONCURRENCY"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil {
			cfg.Batch.Concurrency = n
		}
	}

	// Logging configuration
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if file := os.Getenv("LOG_FILE"); file != "" {
		cfg.Logging.File = expandPath(file)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("analysis", c.Analysis)
	v.Set("batch", c.Batch)
	v.Set("storage", c.Storage)
	v.Set("cache", c.Cache)
	v.Set("graph", c.Graph)
	v.Set("logging", c.Logging)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
