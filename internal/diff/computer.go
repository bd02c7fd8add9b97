// Package diff computes structural edit scripts along established lineage
// links. It never links versions itself.
package diff

import (
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/codelineage/internal/lineage"
	"github.com/rohankatakam/codelineage/internal/models"
	"github.com/rohankatakam/codelineage/internal/revision"
)

// Stats counts edits attached by one run
type Stats struct {
	Scripts   int `json:"scripts"`
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Modified  int `json:"modified"`
	Unchanged int `json:"unchanged"`
}

// Computer attaches edit scripts to every version in a store
type Computer struct {
	store  *lineage.Store
	logger logrus.FieldLogger
}

// NewComputer creates a diff computer for store
func NewComputer(store *lineage.Store) *Computer {
	return &Computer{
		store:  store,
		logger: store.Logger().WithField("component", "diff"),
	}
}

// AttachAll computes and attaches the first-slot script of every version,
// and the second-slot script of versions with a side link
func (c *Computer) AttachAll() Stats {
	var stats Stats
	for _, kind := range lineage.Kinds {
		for _, n := range c.store.Nodes(kind) {
			c.attach(n, revision.First, &stats)
			if n.HasParent(revision.Second) {
				c.attach(n, revision.Second, &stats)
			}
		}
	}

	c.logger.WithFields(logrus.Fields{
		"scripts":  stats.Scripts,
		"added":    stats.Added,
		"removed":  stats.Removed,
		"modified": stats.Modified,
	}).Debug("edit scripts attached")
	return stats
}

func (c *Computer) attach(n *lineage.Node, slot revision.Slot, stats *Stats) {
	script := c.Compute(n, slot)
	n.AttachScript(slot, script)
	stats.Scripts++
	stats.Added += script.Count(lineage.EditAdded)
	stats.Removed += script.Count(lineage.EditRemoved)
	stats.Modified += script.Count(lineage.EditModified)
	stats.Unchanged += script.Count(lineage.EditUnchanged)
}

// Compute returns the edit script of n against its parent in slot. Nested
// versions are paired through their own lineage links, never by name.
func (c *Computer) Compute(n *lineage.Node, slot revision.Slot) *lineage.EditScript {
	script := &lineage.EditScript{Slot: int(slot)}
	kids := c.nested(n)

	ploc, ok := n.Parent(slot)
	if !ok {
		if n.Change == models.ChangeAdded {
			for _, k := range kids {
				script.Edits = append(script.Edits, lineage.Edit{
					Kind: lineage.EditAdded, Entity: k.Loc.Kind, Key: k.Key,
					Child: k.Loc, HasChild: true,
				})
			}
		}
		return script
	}
	script.Parent, script.HasParent = ploc, true

	parent, ok := c.store.Node(ploc)
	if !ok {
		return script
	}

	matched := make(map[lineage.Location]bool)
	for _, k := range kids {
		e := lineage.Edit{Entity: k.Loc.Kind, Key: k.Key, Child: k.Loc, HasChild: true}
		if pk, ok := c.linkedInto(k, slot, parent); ok && !matched[pk.Loc] {
			matched[pk.Loc] = true
			e.Parent, e.HasParent = pk.Loc, true
			if pk.Fingerprint == k.Fingerprint {
				e.Kind = lineage.EditUnchanged
			} else {
				e.Kind = lineage.EditModified
			}
		} else {
			e.Kind = lineage.EditAdded
		}
		script.Edits = append(script.Edits, e)
	}

	for _, pk := range c.nested(parent) {
		if matched[pk.Loc] {
			continue
		}
		script.Edits = append(script.Edits, lineage.Edit{
			Kind: lineage.EditRemoved, Entity: pk.Loc.Kind, Key: pk.Key,
			Parent: pk.Loc, HasParent: true,
		})
	}
	return script
}

// linkedInto returns k's predecessor in slot when it lives inside parent
func (c *Computer) linkedInto(k *lineage.Node, slot revision.Slot, parent *lineage.Node) (*lineage.Node, bool) {
	ploc, ok := k.Parent(slot)
	if !ok {
		return nil, false
	}
	owner, ok := ploc.Container()
	if !ok || owner != parent.Loc {
		return nil, false
	}
	return c.store.Node(ploc)
}

func (c *Computer) nested(n *lineage.Node) []*lineage.Node {
	out := make([]*lineage.Node, 0, len(n.Children))
	for _, loc := range n.Children {
		if k, ok := c.store.Node(loc); ok {
			out = append(out, k)
		}
	}
	return out
}
