package lineage

// EditKind classifies one nested entity in an edit script
type EditKind string

const (
	EditAdded     EditKind = "ADDED"
	EditRemoved   EditKind = "REMOVED"
	EditModified  EditKind = "MODIFIED"
	EditUnchanged EditKind = "UNCHANGED"
)

// Edit is one nested-entity change between two linked versions. Child is
// unset for REMOVED edits and Parent is unset for ADDED edits.
type Edit struct {
	Kind      EditKind `json:"kind"`
	Entity    Kind     `json:"entity"`
	Key       string   `json:"key"`
	Child     Location `json:"child"`
	HasChild  bool     `json:"has_child"`
	Parent    Location `json:"parent"`
	HasParent bool     `json:"has_parent"`
}

// EditScript is the structural diff of one node against one of its parents
type EditScript struct {
	Slot      int      `json:"slot"`
	Parent    Location `json:"parent"`
	HasParent bool     `json:"has_parent"`
	Edits     []Edit   `json:"edits"`
}

// Count returns the number of edits of the given kind
func (s *EditScript) Count(kind EditKind) int {
	if s == nil {
		return 0
	}
	n := 0
	for _, e := range s.Edits {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Summary is UNCHANGED when nothing was added, removed or modified, and
// otherwise MODIFIED. A script made only of additions summarises as ADDED.
func (s *EditScript) Summary() EditKind {
	added, removed, modified := s.Count(EditAdded), s.Count(EditRemoved), s.Count(EditModified)
	switch {
	case added == 0 && removed == 0 && modified == 0:
		return EditUnchanged
	case removed == 0 && modified == 0 && s.Count(EditUnchanged) == 0:
		return EditAdded
	}
	return EditModified
}
