package jacls

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jward/jacls/internal/jac"
	"github.com/jward/jacls/internal/pyimport"
	"github.com/jward/jacls/internal/store"
)

// CompletionKind classifies a completion item.
type CompletionKind int

const (
	CompletionText CompletionKind = iota
	CompletionKeyword
	CompletionSnippet
	CompletionModule
	CompletionFile
	CompletionClass
	CompletionInterface
	CompletionFunction
	CompletionMethod
	CompletionVariable
	CompletionField
)

// Completion is one completion candidate. Snippet items use ${n:name}
// placeholders in InsertText.
type Completion struct {
	Label      string
	Kind       CompletionKind
	Detail     string
	Doc        string
	InsertText string
	Snippet    bool
}

type keyword struct {
	word    string
	doc     string
	atStart bool
	inside  bool
}

var keywords = []keyword{
	{word: "node", doc: "node", atStart: true},
	{word: "walker", doc: "walker", atStart: true},
	{word: "edge", doc: "edge", atStart: true},
	{word: "graph", doc: "graph", atStart: true},
	{word: "obj", doc: "object", atStart: true},
	{word: "import:jac", doc: "Import a Jac module", atStart: true},
	{word: "include:jac", doc: "Include a Jac module", atStart: true},
	{word: "import:py", doc: "Import Python libraries", atStart: true},
	{word: "import:py from", doc: "Import Python libraries", atStart: true},
	{word: "can", doc: "can", atStart: true, inside: true},
	{word: "has", doc: "has", inside: true},
	{word: "test", doc: "test", atStart: true},
	{word: "with entry", doc: "with entry", atStart: true},
	{word: "glob", doc: "global variable", atStart: true, inside: true},
	{word: "self", doc: "self", inside: true},
	{word: "here", doc: "here", inside: true},
	{word: "root", doc: "root", inside: true},
	{word: "visit", doc: "visit", inside: true},
	{word: "disengage", doc: "disengage", inside: true},
	{word: "report", doc: "report", inside: true},
	{word: "spawn", doc: "spawn", inside: true},
	{word: "with", doc: "with", inside: true},
}

type snippet struct {
	label   string
	detail  string
	doc     string
	insert  string
	atStart bool
}

var snippets = []snippet{
	{
		label:   "walker",
		detail:  "walker {name} {...}",
		doc:     "Declares a walker.",
		insert:  "walker ${1:Name} {\n    ${2:# members}\n}",
		atStart: true,
	},
	{
		label:   "node",
		detail:  "node {name} {...}",
		doc:     "Declares a node.",
		insert:  "node ${1:Name} {\n    has ${2:var_name}: ${3:var_type};\n}",
		atStart: true,
	},
	{
		label:   "ability",
		detail:  "can {ability_name}( {var_name}: {var_type} ) -> {return_type}",
		doc:     "Declares an ability.",
		insert:  "can ${1:ability_name}(${2:var_name}: ${3:var_type}) -> ${4:return_type} {\n    ${5:# body}\n}",
		atStart: true,
	},
	{
		label:  "for loop",
		detail: "for loop",
		doc:    "for loop in jac",
		insert: "for ${1:item} in ${2:iterable} {\n    ${3:# body of the loop}\n}",
	},
	{
		label:  "if statement",
		detail: "if statement",
		doc:    "if statement in jac",
		insert: "if ${1:condition} {\n    ${2:# body of the if statement}\n}",
	},
	{
		label:  "Has Variable",
		detail: "has {var_name}: {var_type};",
		doc:    "Adds a variable to the architype.",
		insert: "has ${1:var_name}: ${2:var_type};",
	},
	{
		label:  "Entry",
		detail: "with entry {...}",
		doc:    "Defines what happens when the walker enters a node.",
		insert: "with entry {\n    ${1:# body of the entry}\n}",
	},
	{
		label:  "Exit",
		detail: "with exit {...}",
		doc:    "Defines what happens when the walker exits a node.",
		insert: "with exit {\n    ${1:# body of the exit}\n}",
	},
}

var (
	spawnPattern    = regexp.MustCompile(`:(walker|node|edge|graph|obj|object):(\w*)$`)
	memberPattern   = regexp.MustCompile(`(\w+)\.(\w*)$`)
	jacImportPrefix = regexp.MustCompile(`^\s*(import|include):jac\s+[\w.]*$`)
	pyModulePrefix  = regexp.MustCompile(`^\s*import:py(\s+from)?\s+\w*$`)
	pyMemberPattern = regexp.MustCompile(`^\s*import:py\s+from\s+([\w.]+)\s*,(?:[\s\w]*,)*\s*\w*$`)
)

// Complete returns completion candidates at pos, chosen by what precedes
// the cursor on its line.
func (e *Engine) Complete(ctx context.Context, path string, pos Position) ([]Completion, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	path, err := canonical(path)
	if err != nil {
		return nil, err
	}
	doc, ok := e.docs.Get(path)
	if !ok {
		return nil, nil
	}
	before := jac.LinePrefix(doc.Text, pos)
	merged, err := e.index.SymbolsOf(ctx, path)
	if err != nil {
		return nil, err
	}

	switch {
	case pyMemberPattern.MatchString(before):
		module := pyMemberPattern.FindStringSubmatch(before)[1]
		return e.pythonMembers(ctx, filepath.Dir(path), module), nil
	case pyModulePrefix.MatchString(before):
		return pythonModules(filepath.Dir(path)), nil
	case jacImportPrefix.MatchString(before):
		return jacModules(path, e.index.Files()), nil
	}

	if m := spawnPattern.FindStringSubmatch(before); m != nil {
		kind := m[1]
		if kind == "obj" {
			kind = string(store.KindObject)
		}
		var items []Completion
		for _, s := range merged {
			if string(s.Kind) == kind && s.ContainerName == "" {
				items = append(items, symbolCompletion(s))
			}
		}
		return items, nil
	}

	if m := memberPattern.FindStringSubmatch(before); m != nil {
		return e.members(ctx, path, pos, m[1], merged)
	}

	var items []Completion
	trimmed := strings.TrimSpace(before)
	switch {
	case before == "":
		items = append(items, keywordItems(func(k keyword) bool { return k.atStart })...)
		for _, s := range snippets {
			if s.atStart {
				items = append(items, snippetItem(s))
			}
		}
		return items, nil
	case trimmed == "":
		items = append(items, keywordItems(func(k keyword) bool { return k.inside })...)
		for _, s := range snippets {
			if !s.atStart {
				items = append(items, snippetItem(s))
			}
		}
	}
	for _, s := range merged {
		items = append(items, symbolCompletion(s))
	}
	if trimmed != "" {
		items = append(items, keywordItems(func(k keyword) bool { return k.inside })...)
	}
	return items, nil
}

// members completes "name." with the members of the architype called name,
// or of the enclosing architype for self.
func (e *Engine) members(ctx context.Context, path string, pos Position, name string, merged []*Symbol) ([]Completion, error) {
	if name == "self" {
		enclosing, ok, err := e.index.DefinitionOf(ctx, path, pos)
		if err != nil || !ok {
			return nil, err
		}
		name = enclosing.ContainerName
		if enclosing.Kind.IsArchitype() {
			name = enclosing.Name
		}
	}
	var items []Completion
	for _, s := range merged {
		if name != "" && s.ContainerName == name {
			items = append(items, symbolCompletion(s))
		}
	}
	return items, nil
}

func (e *Engine) pythonMembers(ctx context.Context, dir, module string) []Completion {
	src := pyimport.ModulePath(dir, module)
	if src == "" {
		return nil
	}
	members, err := pyimport.OutlineFile(ctx, src)
	if err != nil {
		e.logger.Warn("complete.python", "module", module, "err", err)
		return nil
	}
	items := make([]Completion, 0, len(members))
	for _, m := range members {
		kind := CompletionFunction
		if m.Kind == pyimport.KindClass {
			kind = CompletionClass
		}
		items = append(items, Completion{
			Label:      m.Name,
			Kind:       kind,
			Detail:     m.Name + m.Signature,
			Doc:        m.Doc,
			InsertText: m.Name,
		})
	}
	return items
}

func pythonModules(dir string) []Completion {
	var items []Completion
	for _, m := range pyimport.LocalModules(dir) {
		items = append(items, Completion{Label: m, Kind: CompletionModule, Detail: "local module", InsertText: m})
	}
	for _, m := range pyimport.StdlibModules {
		items = append(items, Completion{Label: m, Kind: CompletionModule, InsertText: m})
	}
	return items
}

// jacModules offers every other indexed file as a module path relative to
// the importing file: "a.b" below its directory, and one extra leading dot
// per level above it.
func jacModules(path string, files []string) []Completion {
	dir := filepath.Dir(path)
	var items []Completion
	for _, f := range files {
		if f == path {
			continue
		}
		rel, err := filepath.Rel(dir, strings.TrimSuffix(f, filepath.Ext(f)))
		if err != nil {
			continue
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		ups := 0
		for ups < len(parts) && parts[ups] == ".." {
			ups++
		}
		module := strings.Join(parts[ups:], ".")
		if ups > 0 {
			module = strings.Repeat(".", ups+1) + module
		}
		items = append(items, Completion{Label: module, Kind: CompletionFile, Detail: f, InsertText: module})
	}
	return items
}

func keywordItems(keep func(keyword) bool) []Completion {
	var items []Completion
	for _, k := range keywords {
		if keep(k) {
			items = append(items, Completion{Label: k.word, Kind: CompletionKeyword, Doc: k.doc, InsertText: k.word})
		}
	}
	return items
}

func snippetItem(s snippet) Completion {
	return Completion{
		Label:      s.label,
		Kind:       CompletionSnippet,
		Detail:     s.detail,
		Doc:        s.doc,
		InsertText: s.insert,
		Snippet:    true,
	}
}

func symbolCompletion(s *Symbol) Completion {
	return Completion{
		Label:      s.Name,
		Kind:       completionKind(s),
		Detail:     symbolDetail(s),
		Doc:        s.Doc,
		InsertText: s.Name,
	}
}

func completionKind(s *Symbol) CompletionKind {
	switch s.Kind {
	case store.KindWalker, store.KindNode, store.KindObject, store.KindGraph:
		return CompletionClass
	case store.KindEdge:
		return CompletionInterface
	case store.KindAbility:
		if s.ContainerName != "" {
			return CompletionMethod
		}
		return CompletionFunction
	case store.KindVariable:
		if s.ContainerName != "" {
			return CompletionField
		}
		return CompletionVariable
	}
	return CompletionText
}

func symbolDetail(s *Symbol) string {
	if s.Detail == "" {
		return string(s.Kind)
	}
	return fmt.Sprintf("%s %s", s.Kind, s.Detail)
}
