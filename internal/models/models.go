package models

import (
	"fmt"
	"strings"
	"time"
)

// ChangeKind is the kind of change recorded for an entity version
type ChangeKind string

const (
	ChangeAdded     ChangeKind = "ADDED"
	ChangeModified  ChangeKind = "MODIFIED"
	ChangeDeleted   ChangeKind = "DELETED"
	ChangeRenamed   ChangeKind = "RENAMED"
	ChangeCopied    ChangeKind = "COPIED"
	ChangeUnchanged ChangeKind = "UNCHANGED"
)

// ParseChangeKind accepts the upper-case names plus the single-letter git
// name-status codes (A, M, D, R, C)
func ParseChangeKind(s string) (ChangeKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ADDED", "ADD", "A":
		return ChangeAdded, nil
	case "MODIFIED", "MODIFY", "M":
		return ChangeModified, nil
	case "DELETED", "DELETE", "D":
		return ChangeDeleted, nil
	case "RENAMED", "RENAME", "R":
		return ChangeRenamed, nil
	case "COPIED", "COPY", "C":
		return ChangeCopied, nil
	case "UNCHANGED":
		return ChangeUnchanged, nil
	}
	return "", fmt.Errorf("unknown change kind %q", s)
}

// HasContent reports whether a record of this kind leaves the path present
// after the revision
func (k ChangeKind) HasContent() bool {
	return k != ChangeDeleted
}

// Repository is one analysed repository and its materialized history
type Repository struct {
	Name      string     `json:"name" yaml:"name" db:"name"`
	URL       string     `json:"url,omitempty" yaml:"url,omitempty" db:"url"`
	Revisions []Revision `json:"revisions" yaml:"revisions"`
}

// Revision represents one commit
type Revision struct {
	Position     int           `json:"position" yaml:"position"`
	ID           string        `json:"id" yaml:"id"`
	Author       string        `json:"author" yaml:"author"`
	Timestamp    time.Time     `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Message      string        `json:"message,omitempty" yaml:"message,omitempty"`
	Parents      []int         `json:"parents,omitempty" yaml:"parents,omitempty"`
	Files        []FileChange  `json:"files,omitempty" yaml:"files,omitempty"`
	Refactorings []Refactoring `json:"refactorings,omitempty" yaml:"refactorings,omitempty"`
}

// IsMerge returns true when the revision has a second parent
func (r *Revision) IsMerge() bool {
	return len(r.Parents) > 1
}

// FileChange is one changed-file record inside a revision
type FileChange struct {
	Kind         ChangeKind  `json:"kind" yaml:"kind"`
	Path         string      `json:"path" yaml:"path"`
	PreviousPath string      `json:"previous_path,omitempty" yaml:"previous_path,omitempty"`
	Tree         *SyntaxTree `json:"tree,omitempty" yaml:"tree,omitempty"`
}

// LookupPath is the path a predecessor of this record is expected to have.
// RENAMED and COPIED records point at their source path.
func (f *FileChange) LookupPath() string {
	if (f.Kind == ChangeRenamed || f.Kind == ChangeCopied) && f.PreviousPath != "" {
		return f.PreviousPath
	}
	return f.Path
}

// SyntaxTree is the parsed structure of one file version
type SyntaxTree struct {
	Declarations []Declaration `json:"declarations,omitempty" yaml:"declarations,omitempty"`
}

// Declaration is a type-level declaration (class, interface, enum, struct)
type Declaration struct {
	QualifiedName      string        `json:"qualified_name" yaml:"qualified_name"`
	Kind               string        `json:"kind,omitempty" yaml:"kind,omitempty"`
	Modifiers          []string      `json:"modifiers,omitempty" yaml:"modifiers,omitempty"`
	NestedDeclarations []Declaration `json:"nested_declarations,omitempty" yaml:"nested_declarations,omitempty"`
	Methods            []Method      `json:"methods,omitempty" yaml:"methods,omitempty"`
	Fields             []Field       `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Method is a method or function owned by a declaration
type Method struct {
	Name       string   `json:"name" yaml:"name"`
	Signature  string   `json:"signature,omitempty" yaml:"signature,omitempty"`
	ReturnType string   `json:"return_type,omitempty" yaml:"return_type,omitempty"`
	Modifiers  []string `json:"modifiers,omitempty" yaml:"modifiers,omitempty"`
	Body       string   `json:"body,omitempty" yaml:"body,omitempty"`
}

// Key returns the signature, falling back to the bare name
func (m *Method) Key() string {
	if m.Signature != "" {
		return m.Signature
	}
	return m.Name + "()"
}

// Field is a field owned by a declaration
type Field struct {
	Name        string   `json:"name" yaml:"name"`
	Type        string   `json:"type,omitempty" yaml:"type,omitempty"`
	Modifiers   []string `json:"modifiers,omitempty" yaml:"modifiers,omitempty"`
	Initializer string   `json:"initializer,omitempty" yaml:"initializer,omitempty"`
}

// Refactoring is one record produced by a refactoring oracle. Only the first
// before and after location is consumed.
type Refactoring struct {
	Kind            string   `json:"kind" yaml:"kind"`
	BeforeLocations []string `json:"before_locations" yaml:"before_locations"`
	AfterLocations  []string `json:"after_locations" yaml:"after_locations"`
	Description     string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// BeforePath returns the first before location or ""
func (r *Refactoring) BeforePath() string {
	if len(r.BeforeLocations) == 0 {
		return ""
	}
	return r.BeforeLocations[0]
}

// AfterPath returns the first after location or ""
func (r *Refactoring) AfterPath() string {
	if len(r.AfterLocations) == 0 {
		return ""
	}
	return r.AfterLocations[0]
}
