package lineage

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/codelineage/internal/errors"
	"github.com/rohankatakam/codelineage/internal/logging"
	"github.com/rohankatakam/codelineage/internal/models"
	"github.com/rohankatakam/codelineage/internal/revision"
)

// Options configures lineage construction
type Options struct {
	// Strict turns DuplicateClaim into a fatal error
	Strict bool
	Logger logrus.FieldLogger
}

// Store is the per-repository arena of entity versions. Every version is
// addressed by its Location; links between versions are locations resolved
// through the store.
type Store struct {
	idx    *revision.Index
	nodes  map[Location]*Node
	byKind map[Kind][]*Node
	paths  map[int]map[string]*Node
	opts   Options
	log    logrus.FieldLogger

	diagnostics []*errors.Error
}

// NewStore materializes a node for every file record and every nested
// declaration, method and field of the indexed revisions.
func NewStore(idx *revision.Index, opts Options) (*Store, error) {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}

	s := &Store{
		idx:    idx,
		nodes:  make(map[Location]*Node),
		byKind: make(map[Kind][]*Node),
		paths:  make(map[int]map[string]*Node, idx.Len()),
		opts:   opts,
		log:    log,
	}

	for _, rn := range idx.Oldest() {
		rev := rn.Revision()
		s.paths[rev.Position] = make(map[string]*Node, len(rev.Files))
		for i := range rev.Files {
			if err := s.addFile(rev, i); err != nil {
				return nil, err
			}
		}
	}

	return s, nil
}

func (s *Store) addFile(rev *models.Revision, i int) error {
	fc := &rev.Files[i]
	loc := FileLoc(rev.Position, i)

	if prev, dup := s.paths[rev.Position][fc.Path]; dup {
		err := errors.DuplicateClaimf(s.opts.Strict, "path %s listed twice in revision %s", fc.Path, rev.ID).
			WithContext("location", loc.String()).
			WithContext("first", prev.Loc.String())
		if s.opts.Strict {
			return err
		}
		s.log.WithFields(logrus.Fields{"location": loc.String(), "path": fc.Path}).
			Warn("duplicate file record ignored")
		s.diagnostics = append(s.diagnostics, err)
		return nil
	}

	n := &Node{
		Loc:    loc,
		Change: fc.Kind,
		Key:    fc.Path,
		Path:   fc.Path,
		File:   fc,
	}
	s.insert(n)
	s.paths[rev.Position][fc.Path] = n

	if fc.Tree == nil {
		n.Fingerprint = fingerprint("file", fc.Path)
		return nil
	}

	var declPrints []string
	for _, d := range flatten(fc.Tree.Declarations) {
		dn := s.addDecl(n, d)
		declPrints = append(declPrints, dn.Fingerprint)
	}
	n.Fingerprint = fingerprint(append([]string{"file", fc.Path}, declPrints...)...)
	return nil
}

func (s *Store) addDecl(file *Node, d *models.Declaration) *Node {
	loc := DeclLoc(file.Loc, len(file.Children))
	dn := &Node{
		Loc:  loc,
		Key:  d.QualifiedName,
		Path: file.Path,
		Decl: d,
	}
	s.insert(dn)
	file.Children = append(file.Children, loc)

	var memberPrints []string
	for i := range d.Methods {
		m := &d.Methods[i]
		mn := &Node{
			Loc:    MethodLoc(loc, i),
			Key:    m.Key(),
			Path:   file.Path,
			Method: m,
			Fingerprint: fingerprint("method", m.Key(), m.ReturnType,
				modifierSet(m.Modifiers), m.Body),
		}
		s.insert(mn)
		dn.Children = append(dn.Children, mn.Loc)
		memberPrints = append(memberPrints, mn.Fingerprint)
	}
	for i := range d.Fields {
		f := &d.Fields[i]
		fn := &Node{
			Loc:   FieldLoc(loc, i),
			Key:   f.Name,
			Path:  file.Path,
			Field: f,
			Fingerprint: fingerprint("field", f.Name, f.Type,
				modifierSet(f.Modifiers), f.Initializer),
		}
		s.insert(fn)
		dn.Children = append(dn.Children, fn.Loc)
		memberPrints = append(memberPrints, fn.Fingerprint)
	}

	dn.Fingerprint = fingerprint(append([]string{"decl", d.QualifiedName, d.Kind, modifierSet(d.Modifiers)}, memberPrints...)...)
	return dn
}

func (s *Store) insert(n *Node) {
	s.nodes[n.Loc] = n
	s.byKind[n.Loc.Kind] = append(s.byKind[n.Loc.Kind], n)
}

// Index returns the revision index the store was built from
func (s *Store) Index() *revision.Index { return s.idx }

// Logger returns the store's logger
func (s *Store) Logger() logrus.FieldLogger { return s.log }

// Strict reports whether duplicate claims are fatal
func (s *Store) Strict() bool { return s.opts.Strict }

// Node returns the version at loc
func (s *Store) Node(loc Location) (*Node, bool) {
	n, ok := s.nodes[loc]
	return n, ok
}

// MustNode returns the version at loc or nil
func (s *Store) MustNode(loc Location) *Node {
	return s.nodes[loc]
}

// Nodes returns all versions of a kind in ascending location order
func (s *Store) Nodes(kind Kind) []*Node {
	nodes := s.byKind[kind]
	out := make([]*Node, len(nodes))
	copy(out, nodes)
	sort.Slice(out, func(i, j int) bool { return out[i].Loc.Less(out[j].Loc) })
	return out
}

// Len returns the number of versions of a kind
func (s *Store) Len(kind Kind) int { return len(s.byKind[kind]) }

// FileAt returns the file version recorded for path in revision rev
func (s *Store) FileAt(rev int, path string) (*Node, bool) {
	n, ok := s.paths[rev][path]
	return n, ok
}

// Diagnostics returns recoverable problems found while materializing
func (s *Store) Diagnostics() []*errors.Error { return s.diagnostics }

// flatten lists declarations depth first, parents before nested ones
func flatten(decls []models.Declaration) []*models.Declaration {
	var out []*models.Declaration
	var walk func([]models.Declaration)
	walk = func(ds []models.Declaration) {
		for i := range ds {
			out = append(out, &ds[i])
			walk(ds[i].NestedDeclarations)
		}
	}
	walk(decls)
	return out
}

func modifierSet(mods []string) string {
	sorted := append([]string(nil), mods...)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}

func fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:%s|", len(p), p)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
