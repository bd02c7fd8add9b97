package graph

import (
	"time"
)

// TransactionConfig bounds one kind of graph operation. ExecuteQuery has no
// per-query timeout, so callers apply Timeout through the context.
type TransactionConfig struct {
	Timeout time.Duration
}

// DefaultTransactionConfigs returns the configs per operation type
func DefaultTransactionConfigs() map[string]TransactionConfig {
	return map[string]TransactionConfig{
		"schema":        {Timeout: 2 * time.Minute},  // constraint creation
		"export":        {Timeout: 5 * time.Minute},  // batched node and edge writes
		"history_query": {Timeout: 30 * time.Second}, // lineage walks
		"health_check":  {Timeout: 5 * time.Second},
	}
}

// GetConfigForOperation retrieves the config for operation, falling back to
// a one minute timeout
func GetConfigForOperation(operation string) TransactionConfig {
	if config, ok := DefaultTransactionConfigs()[operation]; ok {
		return config
	}
	return TransactionConfig{Timeout: 60 * time.Second}
}
