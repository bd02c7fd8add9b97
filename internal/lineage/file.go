package lineage

import (
	"github.com/rohankatakam/codelineage/internal/models"
	"github.com/rohankatakam/codelineage/internal/revision"
)

// FileSpec links file versions by path
type FileSpec struct {
	store *Store
}

// NewFileSpec returns the file-level specialization
func NewFileSpec(store *Store) *FileSpec {
	return &FileSpec{store: store}
}

func (s *FileSpec) Kind() Kind { return KindFile }

// Seeds lists file versions revision by revision, newest revision first and
// in record order within a revision
func (s *FileSpec) Seeds() []*Node {
	var out []*Node
	for _, rn := range s.store.Index().Newest() {
		rev := rn.Revision()
		for i := range rev.Files {
			if n, ok := s.store.Node(FileLoc(rev.Position, i)); ok {
				out = append(out, n)
			}
		}
	}
	return out
}

// Predecessor finds the version of n's lookup path in the nearest revision on
// the first-parent chain starting at n's parent in the given slot. A DELETED
// record on the way means the path did not exist.
func (s *FileSpec) Predecessor(n *Node, slot revision.Slot) *Node {
	idx := s.store.Index()
	start := idx.Parent(idx.ByPosition(n.Loc.Revision), slot)
	if start == nil {
		return nil
	}
	return s.LastTouch(start, n.File.LookupPath())
}

// LastTouch returns the version of path recorded at from or at its nearest
// first-parent ancestor that recorded it, or nil when the path was never
// recorded or its latest record is a deletion.
func (s *FileSpec) LastTouch(from *revision.Node, path string) *Node {
	var found *Node
	s.store.Index().WalkFirstParents(from, func(rn *revision.Node) bool {
		n, ok := s.store.FileAt(rn.Position(), path)
		if !ok {
			return true
		}
		if n.Change != models.ChangeDeleted {
			found = n
		}
		return false
	})
	return found
}
