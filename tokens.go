package jacls

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jward/jacls/internal/jac"
	"github.com/jward/jacls/internal/store"
)

// TokenType indexes TokenTypes, the semantic token legend.
type TokenType int

const (
	TokenNamespace TokenType = iota
	TokenClass
	TokenInterface
	TokenMethod
	TokenFunction
	TokenProperty
	TokenVariable
	TokenKeyword
	TokenString
	TokenNumber
	TokenComment
)

// TokenTypes is the legend advertised to clients, in TokenType order.
var TokenTypes = []string{
	"namespace", "class", "interface", "method", "function", "property",
	"variable", "keyword", "string", "number", "comment",
}

// Token modifier bits; TokenModifiers is the matching legend.
const (
	ModDeclaration uint32 = 1 << iota
	ModDocumentation
)

var TokenModifiers = []string{"declaration", "documentation"}

// SemanticToken is one highlighted span. Tokens never cross a line.
type SemanticToken struct {
	Line      int
	Col       int
	Length    int
	Type      TokenType
	Modifiers uint32
}

// SemanticTokens classifies the tokens of path's current text, sorted by
// position. Declaration names take the type of their symbol; other
// identifiers naming a symbol in the merged view take that symbol's type.
func (e *Engine) SemanticTokens(ctx context.Context, path string) ([]SemanticToken, error) {
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
	res, err := e.runtime.Run(ctx, path, doc.Text)
	if err != nil {
		return nil, fmt.Errorf("jacls: tokens %s: %w", path, err)
	}
	merged, err := e.index.SymbolsOf(ctx, path)
	if err != nil {
		return nil, err
	}

	decls := make(map[jac.Position]TokenType)
	named := make(map[string]TokenType)
	for _, s := range merged {
		tt := symbolTokenType(s)
		if s.Path == path {
			decls[s.NameRange().Start] = tt
		}
		if s.ContainerName == "" {
			if _, seen := named[s.Name]; !seen {
				named[s.Name] = tt
			}
		}
	}

	var out []SemanticToken
	for _, tok := range res.Output.Module.Tokens {
		var tt TokenType
		var mods uint32
		switch tok.Kind {
		case jac.TokenKeyword:
			tt = TokenKeyword
		case jac.TokenString:
			tt = TokenString
			if isDocString(tok, doc.Text) {
				mods = ModDocumentation
			}
		case jac.TokenNumber:
			tt = TokenNumber
		case jac.TokenComment:
			tt = TokenComment
		case jac.TokenIdent:
			if t, ok := decls[tok.Range.Start]; ok {
				tt, mods = t, ModDeclaration
			} else if t, ok := named[tok.Text]; ok {
				tt = t
			} else {
				continue
			}
		default:
			continue
		}
		out = append(out, splitLines(doc.Text, tok.Range, tt, mods)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Col < out[j].Col
	})
	return out, nil
}

// isDocString reports whether a string token stands alone on its line,
// which is how doc strings are written.
func isDocString(tok jac.Token, text string) bool {
	if strings.TrimSpace(jac.LinePrefix(text, tok.Range.Start)) != "" {
		return false
	}
	last := jac.Line(text, tok.Range.End.Line)
	after := last[len(jac.LinePrefix(text, tok.Range.End)):]
	return strings.TrimSpace(after) == ""
}

// splitLines cuts a multi-line span into one token per line.
func splitLines(text string, r jac.Range, tt TokenType, mods uint32) []SemanticToken {
	if r.Start.Line == r.End.Line {
		return []SemanticToken{{Line: r.Start.Line, Col: r.Start.Col, Length: r.End.Col - r.Start.Col, Type: tt, Modifiers: mods}}
	}
	var out []SemanticToken
	for line := r.Start.Line; line <= r.End.Line; line++ {
		start, end := 0, jac.Width(jac.Line(text, line))
		if line == r.Start.Line {
			start = r.Start.Col
		}
		if line == r.End.Line {
			end = r.End.Col
		}
		if end > start {
			out = append(out, SemanticToken{Line: line, Col: start, Length: end - start, Type: tt, Modifiers: mods})
		}
	}
	return out
}

func symbolTokenType(s *Symbol) TokenType {
	switch s.Kind {
	case store.KindWalker, store.KindNode, store.KindObject:
		return TokenClass
	case store.KindEdge:
		return TokenInterface
	case store.KindGraph:
		return TokenNamespace
	case store.KindAbility:
		if s.ContainerName != "" {
			return TokenMethod
		}
		return TokenFunction
	case store.KindVariable:
		if s.ContainerName != "" {
			return TokenProperty
		}
		return TokenVariable
	}
	return TokenVariable
}
