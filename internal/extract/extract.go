// Package extract turns pass runtime output into index records. Analyze is
// the entry point: one run of the architype and import passes yields the
// flat symbol table of a file and its dependency edges.
package extract

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/jward/jacls/internal/graph"
	"github.com/jward/jacls/internal/jac"
	"github.com/jward/jacls/internal/runtime"
	"github.com/jward/jacls/internal/store"
)

// Symbols flattens decls into store symbols. Members carry the name of
// their architype as ContainerName; top-level declarations have none.
func Symbols(path string, decls []*jac.Decl) []*store.Symbol {
	var out []*store.Symbol
	for _, d := range decls {
		out = append(out, symbolOf(path, d, ""))
		for _, m := range d.Members {
			out = append(out, symbolOf(path, m, d.Name))
		}
	}
	for i, s := range out {
		s.Ordinal = i
	}
	return out
}

func symbolOf(path string, d *jac.Decl, container string) *store.Symbol {
	return &store.Symbol{
		Path:          path,
		Name:          d.Name,
		Kind:          store.SymbolKind(d.Kind),
		ContainerName: container,
		Doc:           d.Doc,
		Detail:        d.Detail,
		StartLine:     d.Range.Start.Line,
		StartCol:      d.Range.Start.Col,
		EndLine:       d.Range.End.Line,
		EndCol:        d.Range.End.Col,
		NameLine:      d.NameRange.Start.Line,
		NameCol:       d.NameRange.Start.Col,
		NameEndCol:    d.NameRange.End.Col,
		HasBody:       d.HasBody,
	}
}

// Edges converts parsed imports of the file at path into graph edges, one
// per imported module in declaration order, duplicates included. Targets
// are resolved against the importing file's directory without touching the
// disk, so a target may not exist.
func Edges(path string, imports []*jac.Import) []graph.Edge {
	var out []graph.Edge
	for _, imp := range imports {
		out = append(out, graph.Edge{
			From:   path,
			To:     ResolveModule(filepath.Dir(path), imp.Path, imp.Lang),
			Module: imp.Path,
			IsJac:  imp.Lang == "jac",
			Line:   imp.Line(),
			Span:   imp.PathRange,
		})
	}
	return out
}

// ResolveModule maps a dotted module path to a file under dir. One leading
// dot means dir itself and every further dot climbs one level, so "..a.b"
// from /w/x resolves to /w/a/b. The extension follows lang: ".py" for
// Python, ".jac" otherwise.
func ResolveModule(dir, module, lang string) string {
	base := dir
	rest := strings.TrimLeft(module, ".")
	if dots := len(module) - len(rest); dots > 1 {
		for range dots - 1 {
			base = filepath.Dir(base)
		}
	}
	ext := ".jac"
	if lang == "py" {
		ext = ".py"
	}
	if rest == "" {
		return filepath.Join(base, "__init__"+ext)
	}
	parts := strings.Split(rest, ".")
	return filepath.Join(base, filepath.Join(parts...)+ext)
}

// Analysis is the per-file output installed into the index.
type Analysis struct {
	Symbols []*store.Symbol
	Edges   []graph.Edge
	Alerts  []jac.Alert
}

// Analyze runs the architype and import passes in one pipeline. Symbols
// come in declaration order, each top-level declaration followed by its
// members, and are empty when the file has any error. Edges are always
// kept so the dependency graph survives a broken file. Analyze never
// fails; runtime errors are reported as alerts.
func Analyze(ctx context.Context, rt *runtime.Runtime, path, text string) Analysis {
	res, err := rt.Run(ctx, path, text, runtime.PassArchitype, runtime.PassImport)
	if err != nil {
		return Analysis{Alerts: []jac.Alert{runtimeAlert(err)}}
	}
	a := Analysis{
		Edges:  Edges(path, res.Output.Imports),
		Alerts: joinAlerts(res),
	}
	if !res.HasErrors() {
		a.Symbols = Symbols(path, res.Output.Decls)
	}
	return a
}

func joinAlerts(res runtime.Result) []jac.Alert {
	out := make([]jac.Alert, 0, len(res.Errors)+len(res.Warnings))
	out = append(out, res.Errors...)
	return append(out, res.Warnings...)
}

func runtimeAlert(err error) jac.Alert {
	return jac.Alert{Severity: jac.SeverityError, Message: err.Error()}
}
