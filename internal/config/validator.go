package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rohankatakam/codelineage/internal/errors"
	"github.com/rohankatakam/codelineage/internal/logging"
)

// ValidationContext specifies what configuration is required
type ValidationContext string

const (
	// ValidationContextAnalyze - analyze needs storage only when persisting
	ValidationContextAnalyze ValidationContext = "analyze"
	// ValidationContextBatch - batch also checks the concurrency limit
	ValidationContextBatch ValidationContext = "batch"
	// ValidationContextExport - graph export requires Neo4j
	ValidationContextExport ValidationContext = "export"
	// ValidationContextAll - validate all configuration
	ValidationContextAll ValidationContext = "all"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}

	if len(vr.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn))
		}
	}

	return sb.String()
}

// Err returns the result as a validation error, or nil when valid
func (vr *ValidationResult) Err() error {
	if !vr.HasErrors() {
		return nil
	}
	return errors.ValidationError(strings.TrimSpace(vr.Error()))
}

// Validate validates configuration for the given context
func (c *Config) Validate(ctx ValidationContext) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch ctx {
	case ValidationContextAnalyze:
		c.validateStorage(result)
		c.validateCache(result)
		c.validateLogging(result)
	case ValidationContextBatch:
		c.validateStorage(result)
		c.validateCache(result)
		c.validateBatch(result)
		c.validateLogging(result)
	case ValidationContextExport:
		c.validateGraph(result, true)
	case ValidationContextAll:
		c.validateStorage(result)
		c.validateCache(result)
		c.validateBatch(result)
		c.validateGraph(result, false)
		c.validateLogging(result)
	default:
		result.AddError("unknown validation context %q", ctx)
	}

	if len(c.Analysis.BondKinds) > 0 {
		for _, k := range c.Analysis.BondKinds {
			if strings.TrimSpace(k) == "" {
				result.AddError("analysis.bond_kinds contains an empty kind")
			}
		}
	}

	return result
}

func (c *Config) validateStorage(result *ValidationResult) {
	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.LocalPath == "" {
			result.AddError("storage.local_path is required for sqlite storage")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			result.AddError("storage.postgres_dsn (or POSTGRES_DSN) is required for postgres storage")
			return
		}
		if !strings.HasPrefix(c.Storage.PostgresDSN, "postgres://") &&
			!strings.HasPrefix(c.Storage.PostgresDSN, "postgresql://") &&
			!strings.Contains(c.Storage.PostgresDSN, "host=") {
			result.AddWarning("storage.postgres_dsn does not look like a PostgreSQL DSN")
		}
	case "none", "":
		result.AddWarning("storage disabled; results are not persisted")
	default:
		result.AddError("storage.type must be sqlite, postgres or none (got %q)", c.Storage.Type)
	}
}

func (c *Config) validateCache(result *ValidationResult) {
	if !c.Cache.Enabled {
		return
	}
	if c.Cache.Directory == "" {
		result.AddError("cache.directory is required when the cache is enabled")
	}
	if c.Cache.TTL < 0 {
		result.AddError("cache.ttl must not be negative")
	}
}

func (c *Config) validateBatch(result *ValidationResult) {
	if c.Batch.Concurrency < 1 {
		result.AddError("batch.concurrency must be at least 1 (got %d)", c.Batch.Concurrency)
	} else if c.Batch.Concurrency > 64 {
		result.AddWarning("batch.concurrency %d is unusually high", c.Batch.Concurrency)
	}
}

func (c *Config) validateGraph(result *ValidationResult, required bool) {
	if c.Graph.URI == "" {
		if required {
			result.AddError("graph.neo4j_uri (or NEO4J_URI) is required for graph export")
		}
		return
	}

	u, err := url.Parse(c.Graph.URI)
	if err != nil {
		result.AddError("graph.neo4j_uri is invalid: %v", err)
		return
	}
	switch u.Scheme {
	case "bolt", "bolt+s", "bolt+ssc", "neo4j", "neo4j+s", "neo4j+ssc":
	default:
		result.AddError("graph.neo4j_uri must use a bolt or neo4j scheme (got %q)", u.Scheme)
	}
	if c.Graph.Password == "" {
		result.AddWarning("graph.password is empty")
	}
}

func (c *Config) validateLogging(result *ValidationResult) {
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		result.AddError("logging.level: %v", err)
	}
}
