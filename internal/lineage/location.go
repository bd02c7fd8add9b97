package lineage

import (
	"fmt"
)

// Kind is the kind of tracked entity
type Kind int

const (
	KindFile Kind = iota
	KindDeclaration
	KindMethod
	KindField
)

// Kinds lists every entity kind in nesting order
var Kinds = []Kind{KindFile, KindDeclaration, KindMethod, KindField}

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDeclaration:
		return "declaration"
	case KindMethod:
		return "method"
	case KindField:
		return "field"
	}
	return "unknown"
}

// ParseKind is the inverse of Kind.String
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown entity kind %q", s)
}

// MarshalText encodes the kind by name
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// none marks an unused nested index
const none = -1

// Location is the identity of one entity version: the revision position, the
// index of the file record inside the revision, and for nested entities the
// declaration index within the file and the member index within the
// declaration. Two versions with equal locations are the same version.
type Location struct {
	Revision int
	Index    int
	Decl     int
	Member   int
	Kind     Kind
}

// FileLoc returns the location of the i-th file record of revision rev
func FileLoc(rev, i int) Location {
	return Location{Revision: rev, Index: i, Decl: none, Member: none, Kind: KindFile}
}

// DeclLoc returns the location of the d-th (depth-first) declaration of a file version
func DeclLoc(file Location, d int) Location {
	return Location{Revision: file.Revision, Index: file.Index, Decl: d, Member: none, Kind: KindDeclaration}
}

// MethodLoc returns the location of the m-th method of a declaration version
func MethodLoc(decl Location, m int) Location {
	return Location{Revision: decl.Revision, Index: decl.Index, Decl: decl.Decl, Member: m, Kind: KindMethod}
}

// FieldLoc returns the location of the f-th field of a declaration version
func FieldLoc(decl Location, f int) Location {
	return Location{Revision: decl.Revision, Index: decl.Index, Decl: decl.Decl, Member: f, Kind: KindField}
}

// Container returns the location of the owning entity version. Files have
// no container.
func (l Location) Container() (Location, bool) {
	switch l.Kind {
	case KindDeclaration:
		return FileLoc(l.Revision, l.Index), true
	case KindMethod, KindField:
		return Location{Revision: l.Revision, Index: l.Index, Decl: l.Decl, Member: none, Kind: KindDeclaration}, true
	}
	return Location{}, false
}

// Less orders by revision, index, declaration, member, then kind
func (l Location) Less(o Location) bool {
	if l.Revision != o.Revision {
		return l.Revision < o.Revision
	}
	if l.Index != o.Index {
		return l.Index < o.Index
	}
	if l.Decl != o.Decl {
		return l.Decl < o.Decl
	}
	if l.Member != o.Member {
		return l.Member < o.Member
	}
	return l.Kind < o.Kind
}

func (l Location) String() string {
	switch l.Kind {
	case KindDeclaration:
		return fmt.Sprintf("%d:%d/d%d", l.Revision, l.Index, l.Decl)
	case KindMethod:
		return fmt.Sprintf("%d:%d/d%d/m%d", l.Revision, l.Index, l.Decl, l.Member)
	case KindField:
		return fmt.Sprintf("%d:%d/d%d/f%d", l.Revision, l.Index, l.Decl, l.Member)
	}
	return fmt.Sprintf("%d:%d", l.Revision, l.Index)
}

// ParseLocation parses the form produced by Location.String
func ParseLocation(s string) (Location, error) {
	var rev, idx, decl, member int
	if n, _ := fmt.Sscanf(s, "%d:%d/d%d/m%d", &rev, &idx, &decl, &member); n == 4 {
		return MethodLoc(DeclLoc(FileLoc(rev, idx), decl), member), nil
	}
	if n, _ := fmt.Sscanf(s, "%d:%d/d%d/f%d", &rev, &idx, &decl, &member); n == 4 {
		return FieldLoc(DeclLoc(FileLoc(rev, idx), decl), member), nil
	}
	if n, _ := fmt.Sscanf(s, "%d:%d/d%d", &rev, &idx, &decl); n == 3 {
		return DeclLoc(FileLoc(rev, idx), decl), nil
	}
	if n, _ := fmt.Sscanf(s, "%d:%d", &rev, &idx); n == 2 {
		return FileLoc(rev, idx), nil
	}
	return Location{}, fmt.Errorf("invalid location %q", s)
}
