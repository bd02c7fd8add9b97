package storage

import (
	"context"
	"errors"

	"github.com/rohankatakam/codelineage/internal/analysis"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
	ErrDisabled = errors.New("storage disabled")
)

// Store defines the storage interface
type Store interface {
	// Run operations
	SaveRun(ctx context.Context, result *analysis.Result) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, repository string, limit int) ([]*Run, error)

	// Lineage queries
	GetLineage(ctx context.Context, runID, location string) ([]*NodeRecord, error)
	GetTrees(ctx context.Context, runID, kind string) ([]*TreeRecord, error)
	GetEdits(ctx context.Context, runID, location string) ([]*EditRecord, error)
	GetBonds(ctx context.Context, runID string) ([]*BondRecord, error)
	GetUnresolved(ctx context.Context, runID string) ([]*UnresolvedRecord, error)

	// Close connection
	Close() error
}
