package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rohankatakam/codelineage/internal/analysis"
	"github.com/rohankatakam/codelineage/internal/errors"
	"github.com/sirupsen/logrus"
)

// SQLStore persists analysis runs through any sqlx driver. Queries are
// written with ? placeholders and rebound for the driver.
type SQLStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		repository TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		duration_ms BIGINT NOT NULL,
		revisions INTEGER NOT NULL,
		bonds INTEGER NOT NULL,
		unresolved INTEGER NOT NULL,
		diagnostics INTEGER NOT NULL,
		summary TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS nodes (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		location TEXT NOT NULL,
		kind TEXT NOT NULL,
		revision INTEGER NOT NULL,
		revision_id TEXT NOT NULL,
		change_kind TEXT NOT NULL,
		entity_key TEXT NOT NULL,
		path TEXT NOT NULL,
		tree_id INTEGER,
		tree_pos INTEGER,
		parent TEXT,
		side_parent TEXT,
		edit_summary TEXT NOT NULL,
		PRIMARY KEY (run_id, location)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_nodes_tree ON nodes(run_id, kind, tree_id, tree_pos)`,
	`CREATE TABLE IF NOT EXISTS trees (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		tree_id INTEGER NOT NULL,
		head TEXT NOT NULL,
		tail TEXT NOT NULL,
		size INTEGER NOT NULL,
		bonded BOOLEAN NOT NULL,
		PRIMARY KEY (run_id, kind, tree_id)
	)`,
	`CREATE TABLE IF NOT EXISTS bonds (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		kind TEXT NOT NULL,
		revision INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		description TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS edits (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		location TEXT NOT NULL,
		slot INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		entity TEXT NOT NULL,
		entity_key TEXT NOT NULL,
		child TEXT,
		parent TEXT,
		PRIMARY KEY (run_id, location, slot, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS unresolved (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		revision INTEGER NOT NULL,
		revision_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		before_path TEXT NOT NULL,
		after_path TEXT NOT NULL,
		reason TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
}

func newSQLStore(db *sqlx.DB, logger *logrus.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = logrus.New()
	}
	s := &SQLStore{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// SaveRun writes a whole result in one transaction. Saving a run id again
// replaces the earlier rows.
func (s *SQLStore) SaveRun(ctx context.Context, res *analysis.Result) error {
	if res == nil || res.Store == nil {
		return fmt.Errorf("save run: empty result")
	}
	snap, err := newSnapshot(res)
	if err != nil {
		return fmt.Errorf("snapshot run: %w", err)
	}

	start := time.Now()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseErrorf(err, "begin transaction")
	}
	defer tx.Rollback()

	for _, table := range []string{"unresolved", "edits", "bonds", "trees", "nodes"} {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM `+table+` WHERE run_id = ?`), snap.run.ID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM runs WHERE id = ?`), snap.run.ID); err != nil {
		return fmt.Errorf("clear run: %w", err)
	}

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO runs (id, repository, started_at, duration_ms, revisions, bonds, unresolved, diagnostics, summary)
		VALUES (:id, :repository, :started_at, :duration_ms, :revisions, :bonds, :unresolved, :diagnostics, :summary)
	`, snap.run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	for _, n := range snap.nodes {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO nodes (run_id, location, kind, revision, revision_id, change_kind, entity_key, path,
				tree_id, tree_pos, parent, side_parent, edit_summary)
			VALUES (:run_id, :location, :kind, :revision, :revision_id, :change_kind, :entity_key, :path,
				:tree_id, :tree_pos, :parent, :side_parent, :edit_summary)
		`, n); err != nil {
			return fmt.Errorf("save node %s: %w", n.Location, err)
		}
	}

	for _, t := range snap.trees {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO trees (run_id, kind, tree_id, head, tail, size, bonded)
			VALUES (:run_id, :kind, :tree_id, :head, :tail, :size, :bonded)
		`, t); err != nil {
			return fmt.Errorf("save tree: %w", err)
		}
	}

	for _, b := range snap.bonds {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO bonds (run_id, seq, source, target, kind, revision, outcome, description)
			VALUES (:run_id, :seq, :source, :target, :kind, :revision, :outcome, :description)
		`, b); err != nil {
			return fmt.Errorf("save bond: %w", err)
		}
	}

	for _, e := range snap.edits {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO edits (run_id, location, slot, seq, kind, entity, entity_key, child, parent)
			VALUES (:run_id, :location, :slot, :seq, :kind, :entity, :entity_key, :child, :parent)
		`, e); err != nil {
			return fmt.Errorf("save edit: %w", err)
		}
	}

	for _, u := range snap.unresolved {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO unresolved (run_id, seq, revision, revision_id, kind, before_path, after_path, reason)
			VALUES (:run_id, :seq, :revision, :revision_id, :kind, :before_path, :after_path, :reason)
		`, u); err != nil {
			return fmt.Errorf("save unresolved record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseErrorf(err, "commit run %s", snap.run.ID)
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":   snap.run.ID,
		"nodes":    len(snap.nodes),
		"trees":    len(snap.trees),
		"edits":    len(snap.edits),
		"duration": time.Since(start),
	}).Debug("run saved")
	return nil
}

// GetRun returns one run or ErrNotFound
func (s *SQLStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, s.db.Rebind(`SELECT * FROM runs WHERE id = ?`), runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the newest runs first. An empty repository lists every run.
func (s *SQLStore) ListRuns(ctx context.Context, repository string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	runs := []*Run{}
	var err error
	if repository == "" {
		err = s.db.SelectContext(ctx, &runs,
			s.db.Rebind(`SELECT * FROM runs ORDER BY started_at DESC, id LIMIT ?`), limit)
	} else {
		err = s.db.SelectContext(ctx, &runs,
			s.db.Rebind(`SELECT * FROM runs WHERE repository = ? ORDER BY started_at DESC, id LIMIT ?`), repository, limit)
	}
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// GetLineage returns every version in the tree holding location, newest first.
// A location outside any tree yields just its own row.
func (s *SQLStore) GetLineage(ctx context.Context, runID, location string) ([]*NodeRecord, error) {
	var node NodeRecord
	err := s.db.GetContext(ctx, &node,
		s.db.Rebind(`SELECT * FROM nodes WHERE run_id = ? AND location = ?`), runID, location)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !node.TreeID.Valid {
		return []*NodeRecord{&node}, nil
	}

	nodes := []*NodeRecord{}
	err = s.db.SelectContext(ctx, &nodes, s.db.Rebind(`
		SELECT * FROM nodes
		WHERE run_id = ? AND kind = ? AND tree_id = ?
		ORDER BY tree_pos
	`), runID, node.Kind, node.TreeID.Int64)
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// GetTrees returns the trees of one kind ordered by id. An empty kind returns all.
func (s *SQLStore) GetTrees(ctx context.Context, runID, kind string) ([]*TreeRecord, error) {
	trees := []*TreeRecord{}
	var err error
	if kind == "" {
		err = s.db.SelectContext(ctx, &trees,
			s.db.Rebind(`SELECT * FROM trees WHERE run_id = ? ORDER BY kind, tree_id`), runID)
	} else {
		err = s.db.SelectContext(ctx, &trees,
			s.db.Rebind(`SELECT * FROM trees WHERE run_id = ? AND kind = ? ORDER BY tree_id`), runID, kind)
	}
	if err != nil {
		return nil, err
	}
	return trees, nil
}

// GetEdits returns the edit scripts of one node, first slot first
func (s *SQLStore) GetEdits(ctx context.Context, runID, location string) ([]*EditRecord, error) {
	edits := []*EditRecord{}
	err := s.db.SelectContext(ctx, &edits, s.db.Rebind(`
		SELECT * FROM edits WHERE run_id = ? AND location = ? ORDER BY slot, seq
	`), runID, location)
	if err != nil {
		return nil, err
	}
	return edits, nil
}

// GetBonds returns applied bonds in resolution order
func (s *SQLStore) GetBonds(ctx context.Context, runID string) ([]*BondRecord, error) {
	bonds := []*BondRecord{}
	err := s.db.SelectContext(ctx, &bonds,
		s.db.Rebind(`SELECT * FROM bonds WHERE run_id = ? ORDER BY seq`), runID)
	if err != nil {
		return nil, err
	}
	return bonds, nil
}

func (s *SQLStore) GetUnresolved(ctx context.Context, runID string) ([]*UnresolvedRecord, error) {
	records := []*UnresolvedRecord{}
	err := s.db.SelectContext(ctx, &records,
		s.db.Rebind(`SELECT * FROM unresolved WHERE run_id = ? ORDER BY seq`), runID)
	if err != nil {
		return nil, err
	}
	return records, nil
}
