package lsp

import (
	"fmt"
	"net/url"
	"path/filepath"

	"fortio.org/safecast"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/jacls"
	"github.com/jward/jacls/internal/diagnostic"
	"github.com/jward/jacls/internal/jac"
	"github.com/jward/jacls/internal/store"
)

// PathFromURI converts a file URI to a local path.
func PathFromURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("lsp: parse uri %q: %w", uri, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("lsp: unsupported uri scheme %q", u.Scheme)
	}
	return filepath.FromSlash(u.Path), nil
}

// URIFromPath converts a local path to a file URI.
func URIFromPath(path string) protocol.DocumentUri {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

// ApplyChanges applies content changes in order. Ranged changes are
// incremental edits with UTF-16 columns; a change without a range replaces
// the whole text.
func ApplyChanges(text string, changes []any) (string, error) {
	for _, c := range changes {
		switch change := c.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			text = change.Text
		case protocol.TextDocumentContentChangeEvent:
			if change.Range == nil {
				text = change.Text
				continue
			}
			start := jac.Offset(text, diagnostic.FromPosition(change.Range.Start))
			end := jac.Offset(text, diagnostic.FromPosition(change.Range.End))
			if end < start {
				return "", fmt.Errorf("lsp: change range ends before it starts: %v", *change.Range)
			}
			text = text[:start] + change.Text + text[end:]
		default:
			return "", fmt.Errorf("lsp: unexpected content change %T", c)
		}
	}
	return text, nil
}

// SymbolKind maps a Jac declaration kind to its protocol kind.
func SymbolKind(s *jacls.Symbol) protocol.SymbolKind {
	switch s.Kind {
	case store.KindWalker, store.KindNode:
		return protocol.SymbolKindClass
	case store.KindEdge:
		return protocol.SymbolKindInterface
	case store.KindGraph:
		return protocol.SymbolKindNamespace
	case store.KindAbility:
		if s.ContainerName == "" {
			return protocol.SymbolKindFunction
		}
		return protocol.SymbolKindMethod
	case store.KindObject:
		return protocol.SymbolKindObject
	}
	return protocol.SymbolKindVariable
}

// DocumentSymbols builds the outline of path from its merged view. Only
// symbols declared in path appear; members nest under the architype that
// declares them.
func DocumentSymbols(path string, syms []*jacls.Symbol) []protocol.DocumentSymbol {
	out := []protocol.DocumentSymbol{}
	containers := make(map[string]int)
	for _, s := range syms {
		if s.Path != path {
			continue
		}
		ds := documentSymbol(s)
		if s.ContainerName != "" {
			if i, ok := containers[s.ContainerName]; ok {
				out[i].Children = append(out[i].Children, ds)
				continue
			}
		}
		out = append(out, ds)
		if s.ContainerName == "" && s.Kind.IsArchitype() {
			containers[s.Name] = len(out) - 1
		}
	}
	return out
}

func documentSymbol(s *jacls.Symbol) protocol.DocumentSymbol {
	ds := protocol.DocumentSymbol{
		Name:           s.Name,
		Kind:           SymbolKind(s),
		Range:          diagnostic.Range(s.Range()),
		SelectionRange: diagnostic.Range(s.NameRange()),
	}
	if s.Detail != "" {
		detail := s.Detail
		ds.Detail = &detail
	}
	return ds
}

// SymbolInformation renders a workspace symbol with its location.
func SymbolInformation(s *jacls.Symbol) protocol.SymbolInformation {
	info := protocol.SymbolInformation{
		Name:     s.Name,
		Kind:     SymbolKind(s),
		Location: Location(s),
	}
	if s.ContainerName != "" {
		container := s.ContainerName
		info.ContainerName = &container
	}
	return info
}

// Location points at the name of s.
func Location(s *jacls.Symbol) protocol.Location {
	return protocol.Location{URI: URIFromPath(s.Path), Range: diagnostic.Range(s.NameRange())}
}

var completionKinds = map[jacls.CompletionKind]protocol.CompletionItemKind{
	jacls.CompletionText:      protocol.CompletionItemKindText,
	jacls.CompletionKeyword:   protocol.CompletionItemKindKeyword,
	jacls.CompletionSnippet:   protocol.CompletionItemKindSnippet,
	jacls.CompletionModule:    protocol.CompletionItemKindModule,
	jacls.CompletionFile:      protocol.CompletionItemKindFile,
	jacls.CompletionClass:     protocol.CompletionItemKindClass,
	jacls.CompletionInterface: protocol.CompletionItemKindInterface,
	jacls.CompletionFunction:  protocol.CompletionItemKindFunction,
	jacls.CompletionMethod:    protocol.CompletionItemKindMethod,
	jacls.CompletionVariable:  protocol.CompletionItemKindVariable,
	jacls.CompletionField:     protocol.CompletionItemKindField,
}

// CompletionItems converts engine completions to protocol items.
func CompletionItems(items []jacls.Completion) []protocol.CompletionItem {
	out := make([]protocol.CompletionItem, 0, len(items))
	for _, c := range items {
		kind := completionKinds[c.Kind]
		insert := c.InsertText
		item := protocol.CompletionItem{
			Label:      c.Label,
			Kind:       &kind,
			InsertText: &insert,
		}
		if c.Detail != "" {
			detail := c.Detail
			item.Detail = &detail
		}
		if c.Doc != "" {
			item.Documentation = protocol.MarkupContent{Kind: protocol.MarkupKindMarkdown, Value: c.Doc}
		}
		if c.Snippet {
			format := protocol.InsertTextFormatSnippet
			item.InsertTextFormat = &format
		}
		out = append(out, item)
	}
	return out
}

// EncodeTokens delta-encodes sorted tokens as five integers each: line
// delta, start delta (relative to the previous token on the same line),
// length, type and modifier bits.
func EncodeTokens(tokens []jacls.SemanticToken) ([]protocol.UInteger, error) {
	data := make([]protocol.UInteger, 0, len(tokens)*5)
	var prevLine, prevCol int
	for _, tok := range tokens {
		deltaLine := tok.Line - prevLine
		deltaCol := tok.Col
		if deltaLine == 0 {
			deltaCol = tok.Col - prevCol
		}
		for _, v := range []int{deltaLine, deltaCol, tok.Length, int(tok.Type)} {
			u, err := safecast.Conv[uint32](v)
			if err != nil {
				return nil, fmt.Errorf("lsp: token at %d:%d: %w", tok.Line, tok.Col, err)
			}
			data = append(data, u)
		}
		data = append(data, tok.Modifiers)
		prevLine, prevCol = tok.Line, tok.Col
	}
	return data, nil
}
