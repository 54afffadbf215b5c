// Package pyimport outlines local Python modules so that
// "import:py from mod," can complete the module's functions and classes.
package pyimport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Kind classifies an outline member.
type Kind string

const (
	KindFunction Kind = "function"
	KindClass    Kind = "class"
)

// Member is one top-level definition of a Python module.
type Member struct {
	Name string
	Kind Kind
	Doc  string
	// Signature is the parameter list for functions and the base list for
	// classes, whitespace collapsed.
	Signature string
	Line      int
}

// Outline parses Python source and returns its top-level functions and
// classes in source order. Decorated definitions are included; private
// names (leading underscore) are not.
func Outline(ctx context.Context, src []byte) ([]Member, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("pyimport: parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	var members []Member
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		if node.Type() == "decorated_definition" {
			node = node.ChildByFieldName("definition")
			if node == nil {
				continue
			}
		}
		var kind Kind
		switch node.Type() {
		case "function_definition":
			kind = KindFunction
		case "class_definition":
			kind = KindClass
		default:
			continue
		}
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := nameNode.Content(src)
		if strings.HasPrefix(name, "_") {
			continue
		}
		m := Member{
			Name: name,
			Kind: kind,
			Doc:  docstring(node, src),
			Line: int(node.StartPoint().Row),
		}
		if kind == KindFunction {
			if params := node.ChildByFieldName("parameters"); params != nil {
				m.Signature = collapse(params.Content(src))
			}
		} else if supers := node.ChildByFieldName("superclasses"); supers != nil {
			m.Signature = collapse(supers.Content(src))
		}
		members = append(members, m)
	}
	return members, nil
}

// OutlineFile reads and outlines a module on disk.
func OutlineFile(ctx context.Context, path string) ([]Member, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pyimport: %w", err)
	}
	return Outline(ctx, src)
}

// docstring returns the leading string literal of a definition body.
func docstring(def *sitter.Node, src []byte) string {
	body := def.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	lit := first.NamedChild(0)
	if lit.Type() != "string" {
		return ""
	}
	return strings.TrimSpace(unquote(lit.Content(src)))
}

func unquote(s string) string {
	s = strings.TrimLeft(s, "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// LocalModules lists the importable Python module names next to a Jac file:
// every .py file and every directory holding an __init__.py.
func LocalModules(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var mods []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		if e.IsDir() {
			if _, err := os.Stat(filepath.Join(dir, name, "__init__.py")); err == nil {
				mods = append(mods, name)
			}
			continue
		}
		if filepath.Ext(name) == ".py" {
			mods = append(mods, strings.TrimSuffix(name, ".py"))
		}
	}
	sort.Strings(mods)
	return mods
}

// ModulePath resolves a module name to its source file relative to dir, or
// "" when there is no local module of that name.
func ModulePath(dir, module string) string {
	rel := filepath.Join(strings.Split(module, ".")...)
	for _, candidate := range []string{
		filepath.Join(dir, rel+".py"),
		filepath.Join(dir, rel, "__init__.py"),
	} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// StdlibModules is the list offered after "import:py ".
var StdlibModules = []string{
	"abc", "argparse", "array", "asyncio", "base64", "bisect", "calendar",
	"collections", "contextlib", "copy", "csv", "dataclasses", "datetime",
	"decimal", "enum", "fractions", "functools", "glob", "hashlib", "heapq",
	"hmac", "html", "http", "inspect", "io", "itertools", "json", "logging",
	"math", "operator", "os", "pathlib", "pickle", "platform", "pprint",
	"queue", "random", "re", "secrets", "shutil", "socket", "sqlite3",
	"statistics", "string", "struct", "subprocess", "sys", "tempfile",
	"textwrap", "threading", "time", "timeit", "typing", "unittest", "urllib",
	"uuid", "warnings", "weakref", "xml", "zipfile",
}
