package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/jward/jacls/internal/jac"
)

// Pass names accepted by Run.
const (
	PassArchitype = "architype"
	PassImport    = "import"
	PassLint      = "lint"
)

// Output holds the typed results of the passes that ran. Module is always
// set; Decls is filled by the architype pass and Imports by the import pass.
// Everything reachable from Output is shared with the parse cache and must
// not be mutated.
type Output struct {
	Module  *jac.Module
	Decls   []*jac.Decl
	Imports []*jac.Import
}

// Result is what one Run returns: the pass output and the alerts of every
// pass, split by severity, in the order they were produced.
type Result struct {
	Output   Output
	Errors   []jac.Alert
	Warnings []jac.Alert
}

// HasErrors reports whether any pass produced an error alert.
func (res *Result) HasErrors() bool {
	return len(res.Errors) > 0
}

func (res *Result) add(alerts ...jac.Alert) {
	for _, a := range alerts {
		if a.Severity == jac.SeverityError {
			res.Errors = append(res.Errors, a)
		} else {
			res.Warnings = append(res.Warnings, a)
		}
	}
}

// Run parses text and runs the named passes over it in order. Parse alerts
// always come first. Identical text yields an identical Result. The only
// errors returned are for unknown passes or failing lint scripts; problems
// in the source are reported as alerts.
func (r *Runtime) Run(ctx context.Context, path, text string, passes ...string) (Result, error) {
	m := r.cache.parse(text)
	res := Result{Output: Output{Module: m}}
	res.add(m.Alerts...)

	for _, pass := range passes {
		switch pass {
		case PassArchitype:
			res.Output.Decls = m.Decls
			res.add(duplicateDecls(m.Decls)...)
		case PassImport:
			res.Output.Imports = m.Imports
			res.add(duplicateImports(m.Imports)...)
		case PassLint:
			alerts, err := r.lint(ctx, path, m.Decls)
			if err != nil {
				return res, err
			}
			res.add(alerts...)
		default:
			return res, fmt.Errorf("runtime: unknown pass %q", pass)
		}
	}
	return res, nil
}

// Lint runs only the lint scripts over the declarations of text. A file
// that does not parse is not linted.
func (r *Runtime) Lint(ctx context.Context, path, text string) ([]jac.Alert, error) {
	m := r.cache.parse(text)
	if m.HasErrors() {
		return nil, nil
	}
	return r.lint(ctx, path, m.Decls)
}

// duplicateDecls warns about a name declared twice in the same scope.
func duplicateDecls(decls []*jac.Decl) []jac.Alert {
	var alerts []jac.Alert
	seen := make(map[string]*jac.Decl)
	for _, d := range decls {
		if first, ok := seen[d.Name]; ok && first.Kind == d.Kind {
			alerts = append(alerts, jac.Warningf(d.NameRange,
				"duplicate %s '%s' (first declared on line %d)", d.Kind, d.Name, first.NameRange.Start.Line+1))
		} else if !ok {
			seen[d.Name] = d
		}
		if d.Kind.IsArchitype() {
			alerts = append(alerts, duplicateDecls(d.Members)...)
		}
	}
	return alerts
}

func duplicateImports(imports []*jac.Import) []jac.Alert {
	var alerts []jac.Alert
	seen := make(map[string]bool)
	for _, imp := range imports {
		key := imp.Lang + ":" + imp.Path
		if seen[key] && len(imp.Items) == 0 {
			alerts = append(alerts, jac.Warningf(imp.PathRange, "module '%s' is imported more than once", imp.Path))
		}
		seen[key] = true
	}
	return alerts
}

const defaultCacheSize = 512

// parseCache memoizes parsed modules by content hash. When full it is
// emptied rather than evicting one entry at a time.
type parseCache struct {
	mu      sync.Mutex
	limit   int
	modules map[uint64]*jac.Module
}

func newParseCache(limit int) *parseCache {
	if limit <= 0 {
		limit = defaultCacheSize
	}
	return &parseCache{limit: limit, modules: make(map[uint64]*jac.Module)}
}

func (c *parseCache) parse(text string) *jac.Module {
	key := xxh3.HashString(text)
	c.mu.Lock()
	m, ok := c.modules[key]
	c.mu.Unlock()
	if ok {
		return m
	}

	m = jac.Parse(text)

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.modules) >= c.limit {
		clear(c.modules)
	}
	c.modules[key] = m
	return m
}

func (c *parseCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.modules)
}
