package graph

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/codelineage/internal/analysis"
	"github.com/rohankatakam/codelineage/internal/lineage"
	"github.com/rohankatakam/codelineage/internal/revision"
)

// BatchConfig sets how many rows go into one UNWIND statement
type BatchConfig struct {
	NodeBatchSize int
	EdgeBatchSize int
}

// DefaultBatchConfig suits histories of a few thousand versions
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		NodeBatchSize: 1000,
		EdgeBatchSize: 5000,
	}
}

// Rows is a result flattened into UNWIND parameters
type Rows struct {
	Versions []map[string]any
	Parents  []map[string]any
	Bonds    []map[string]any
}

// ExportStats counts what one export wrote
type ExportStats struct {
	Versions int64 `json:"versions"`
	Parents  int64 `json:"parents"`
	Bonds    int64 `json:"bonds"`
}

// Exporter writes lineage forests as :EntityVersion nodes joined by
// [:PARENT {slot}] and [:BOND] relationships
type Exporter struct {
	client *Client
	config BatchConfig
	logger *logrus.Logger
}

// NewExporter creates an exporter on an open client
func NewExporter(client *Client, config BatchConfig) *Exporter {
	if config.NodeBatchSize <= 0 || config.EdgeBatchSize <= 0 {
		config = DefaultBatchConfig()
	}
	return &Exporter{client: client, config: config, logger: client.logger}
}

// BuildRows flattens every stored version of res. Versions outside any tree
// carry no tree_id.
func BuildRows(res *analysis.Result) Rows {
	var rows Rows
	idx := res.Store.Index()
	for _, kind := range lineage.Kinds {
		f := res.Forest(kind)
		for _, n := range res.Store.Nodes(kind) {
			loc := n.Loc.String()
			props := map[string]any{
				"run_id":     res.RunID,
				"repository": res.Repository,
				"location":   loc,
				"kind":       kind.String(),
				"revision":   int64(n.Loc.Revision),
				"change":     string(n.Change),
				"key":        n.Key,
				"path":       n.Path,
				"tree_id":    nil,
			}
			if rn := idx.ByPosition(n.Loc.Revision); rn != nil {
				props["revision_id"] = rn.ID()
			}
			if t, ok := f.TreeOf(n.Loc); ok {
				props["tree_id"] = int64(t.ID)
			}
			rows.Versions = append(rows.Versions, props)

			for _, slot := range []revision.Slot{revision.First, revision.Second} {
				p, ok := n.Parent(slot)
				if !ok {
					continue
				}
				edge := map[string]any{
					"run_id": res.RunID,
					"child":  loc,
					"parent": p.String(),
					"slot":   int64(slot),
				}
				if s := n.Script(slot); s != nil {
					edge["summary"] = string(s.Summary())
				}
				rows.Parents = append(rows.Parents, edge)
			}
		}
	}

	for _, b := range res.Forest(lineage.KindFile).Bonds() {
		rows.Bonds = append(rows.Bonds, map[string]any{
			"run_id":   res.RunID,
			"source":   b.Source.String(),
			"target":   b.Target.String(),
			"kind":     b.Kind,
			"revision": int64(b.Revision),
			"outcome":  string(b.Outcome),
		})
	}
	return rows
}

// EnsureSchema creates the uniqueness constraint MERGE relies on
func (e *Exporter) EnsureSchema(ctx context.Context) error {
	ctx, cancel := withOperationTimeout(ctx, "schema")
	defer cancel()
	_, err := e.client.write(ctx, `
		CREATE CONSTRAINT entity_version_key IF NOT EXISTS
		FOR (v:EntityVersion) REQUIRE (v.run_id, v.location) IS UNIQUE
	`, nil)
	if err != nil {
		return fmt.Errorf("failed to create constraint: %w", err)
	}
	return nil
}

// Export writes res idempotently. Relationships are written after every node
// exists so no edge is silently dropped.
func (e *Exporter) Export(ctx context.Context, res *analysis.Result) (*ExportStats, error) {
	if err := e.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := withOperationTimeout(ctx, "export")
	defer cancel()

	rows := BuildRows(res)
	stats := &ExportStats{}
	var err error

	stats.Versions, err = e.batched(ctx, rows.Versions, e.config.NodeBatchSize, `
		UNWIND $rows AS row
		MERGE (v:EntityVersion {run_id: row.run_id, location: row.location})
		SET v += row
		RETURN count(v) AS written
	`)
	if err != nil {
		return nil, fmt.Errorf("batch version creation failed: %w", err)
	}

	stats.Parents, err = e.batched(ctx, rows.Parents, e.config.EdgeBatchSize, `
		UNWIND $rows AS row
		MATCH (c:EntityVersion {run_id: row.run_id, location: row.child})
		MATCH (p:EntityVersion {run_id: row.run_id, location: row.parent})
		MERGE (c)-[r:PARENT {slot: row.slot}]->(p)
		SET r.summary = row.summary
		RETURN count(r) AS written
	`)
	if err != nil {
		return nil, fmt.Errorf("batch parent creation failed: %w", err)
	}

	stats.Bonds, err = e.batched(ctx, rows.Bonds, e.config.EdgeBatchSize, `
		UNWIND $rows AS row
		MATCH (s:EntityVersion {run_id: row.run_id, location: row.source})
		MATCH (t:EntityVersion {run_id: row.run_id, location: row.target})
		MERGE (s)-[r:BOND {kind: row.kind}]->(t)
		SET r.revision = row.revision, r.outcome = row.outcome
		RETURN count(r) AS written
	`)
	if err != nil {
		return nil, fmt.Errorf("batch bond creation failed: %w", err)
	}

	if stats.Parents < int64(len(rows.Parents)) || stats.Bonds < int64(len(rows.Bonds)) {
		e.logger.WithFields(logrus.Fields{
			"parents": fmt.Sprintf("%d/%d", stats.Parents, len(rows.Parents)),
			"bonds":   fmt.Sprintf("%d/%d", stats.Bonds, len(rows.Bonds)),
		}).Warn("Some relationships were not written")
	}
	e.logger.WithFields(logrus.Fields{
		"run_id":   res.RunID,
		"versions": stats.Versions,
		"parents":  stats.Parents,
		"bonds":    stats.Bonds,
	}).Info("Exported lineage graph")
	return stats, nil
}

func (e *Exporter) batched(ctx context.Context, rows []map[string]any, size int, query string) (int64, error) {
	var total int64
	for _, batch := range chunks(rows, size) {
		n, err := e.client.write(ctx, query, map[string]any{"rows": batch})
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func chunks(rows []map[string]any, size int) [][]map[string]any {
	if size <= 0 {
		size = len(rows)
	}
	var out [][]map[string]any
	for i := 0; i < len(rows); i += size {
		end := i + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[i:end])
	}
	return out
}
