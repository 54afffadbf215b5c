package store

import (
	"time"

	"github.com/jward/jacls/internal/jac"
)

// SymbolKind is the kind of a declared symbol. Values match jac.DeclKind.
type SymbolKind string

const (
	KindWalker   SymbolKind = "walker"
	KindNode     SymbolKind = "node"
	KindEdge     SymbolKind = "edge"
	KindGraph    SymbolKind = "graph"
	KindAbility  SymbolKind = "ability"
	KindObject   SymbolKind = "object"
	KindVariable SymbolKind = "variable"
)

// IsArchitype reports whether k introduces an architype scope.
func (k SymbolKind) IsArchitype() bool {
	return jac.DeclKind(k).IsArchitype()
}

type File struct {
	ID          int64
	Path        string
	Hash        string
	Version     int
	SymbolsHash string
	LastIndexed time.Time
}

// Symbol is one declaration of a file. Path is the declaring file, filled
// in from the files table on every read.
type Symbol struct {
	ID            int64
	FileID        int64
	Path          string
	Ordinal       int
	Name          string
	Kind          SymbolKind
	ContainerName string
	Doc           string
	Detail        string
	StartLine     int
	StartCol      int
	EndLine       int
	EndCol        int
	NameLine      int
	NameCol       int
	NameEndCol    int
	HasBody       bool
}

// Range returns the full declaration range.
func (s *Symbol) Range() jac.Range {
	return jac.Range{
		Start: jac.Position{Line: s.StartLine, Col: s.StartCol},
		End:   jac.Position{Line: s.EndLine, Col: s.EndCol},
	}
}

// NameRange returns the span of the declared name.
func (s *Symbol) NameRange() jac.Range {
	return jac.Range{
		Start: jac.Position{Line: s.NameLine, Col: s.NameCol},
		End:   jac.Position{Line: s.NameLine, Col: s.NameEndCol},
	}
}

// Import is one dependency edge as persisted. Source is the module path as
// written; Target the resolved file identity.
type Import struct {
	ID       int64
	FileID   int64
	Ordinal  int
	Source   string
	Target   string
	Language string
	IsJac    bool
	Line     int
}
