// Package refactoring stitches file lineages together using the output of a
// refactoring detector.
package refactoring

import (
	"context"

	"github.com/rohankatakam/codelineage/internal/models"
)

// Oracle reports refactorings detected at a revision. Implementations wrap
// an external detector; only the record shape is consumed here.
type Oracle interface {
	Refactorings(ctx context.Context, rev models.Revision) ([]models.Refactoring, error)
}

// EmbeddedOracle serves the records carried by the revision stream itself
type EmbeddedOracle struct{}

func (EmbeddedOracle) Refactorings(_ context.Context, rev models.Revision) ([]models.Refactoring, error) {
	return rev.Refactorings, nil
}

// StaticOracle serves records keyed by revision identifier, for detector
// output supplied separately from the history
type StaticOracle map[string][]models.Refactoring

func (o StaticOracle) Refactorings(_ context.Context, rev models.Revision) ([]models.Refactoring, error) {
	return o[rev.ID], nil
}

// NopOracle reports nothing
type NopOracle struct{}

func (NopOracle) Refactorings(context.Context, models.Revision) ([]models.Refactoring, error) {
	return nil, nil
}
