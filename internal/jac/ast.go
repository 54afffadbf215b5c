package jac

// DeclKind names the kind of a symbol-bearing declaration.
type DeclKind string

const (
	DeclWalker   DeclKind = "walker"
	DeclNode     DeclKind = "node"
	DeclEdge     DeclKind = "edge"
	DeclGraph    DeclKind = "graph"
	DeclObject   DeclKind = "object"
	DeclAbility  DeclKind = "ability"
	DeclVariable DeclKind = "variable"
)

// IsArchitype reports whether k introduces an architype scope.
func (k DeclKind) IsArchitype() bool {
	switch k {
	case DeclWalker, DeclNode, DeclEdge, DeclGraph, DeclObject:
		return true
	}
	return false
}

// architypeKeywords maps declaration keywords to their kinds. Both "object"
// and the short "obj" spelling are accepted.
var architypeKeywords = map[string]DeclKind{
	"walker": DeclWalker,
	"node":   DeclNode,
	"edge":   DeclEdge,
	"graph":  DeclGraph,
	"object": DeclObject,
	"obj":    DeclObject,
}

// Decl is one declaration found by the parser.
//
// Range runs from the first token of the declaration (a modifier or the
// keyword) to the end of its block. When no block end is known, HasBody is
// false and Range ends at the end of the name on the declaration's line.
type Decl struct {
	Kind      DeclKind
	Name      string
	Doc       string
	Detail    string
	Bases     []string
	Range     Range
	NameRange Range
	HasBody   bool
	Members   []*Decl
}

// Import is one import or include statement. A statement naming several
// modules without "from" yields one Import per module.
type Import struct {
	Lang      string
	Path      string
	Items     []string
	Alias     string
	Include   bool
	Range     Range
	PathRange Range
}

// Line returns the zero-based line the import was declared on.
func (i *Import) Line() int {
	return i.Range.Start.Line
}

// Module is the parsed form of one source file. Tokens include comments.
type Module struct {
	Decls   []*Decl
	Imports []*Import
	Tokens  []Token
	Alerts  []Alert
}

// HasErrors reports whether parsing produced any error alerts.
func (m *Module) HasErrors() bool {
	for _, a := range m.Alerts {
		if a.Severity == SeverityError {
			return true
		}
	}
	return false
}
