package jac

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenIdent
	TokenKeyword
	TokenString
	TokenNumber
	TokenPunct
	TokenComment
)

func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "eof"
	case TokenIdent:
		return "ident"
	case TokenKeyword:
		return "keyword"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenPunct:
		return "punct"
	case TokenComment:
		return "comment"
	}
	return "unknown"
}

// Token is one lexeme with its source span. Offset and EndOffset are byte
// offsets into the source text.
type Token struct {
	Kind      TokenKind
	Text      string
	Range     Range
	Offset    int
	EndOffset int
}

// Is reports whether t is a keyword or punctuation with the given text.
func (t Token) Is(text string) bool {
	return (t.Kind == TokenKeyword || t.Kind == TokenPunct) && t.Text == text
}

// Keywords lists the reserved words the lexer tags as TokenKeyword.
var Keywords = []string{
	"walker", "node", "edge", "graph", "object", "obj",
	"can", "has", "with", "entry", "exit",
	"import", "include", "from", "as",
	"global", "glob", "static", "priv", "pub", "protect",
	"if", "elif", "else", "for", "while", "in", "to", "by",
	"return", "break", "continue", "try", "except", "finally", "raise",
	"spawn", "visit", "disengage", "report", "ignore", "take",
	"here", "root", "self", "and", "or", "not", "is",
	"None", "True", "False", "async", "await", "lambda", "del",
	"assert", "test",
}

var keywordSet = func() map[string]bool {
	m := make(map[string]bool, len(Keywords))
	for _, k := range Keywords {
		m[k] = true
	}
	return m
}()

// IsKeyword reports whether word is reserved.
func IsKeyword(word string) bool {
	return keywordSet[word]
}

var stringPrefixes = map[string]bool{
	"f": true, "r": true, "b": true, "rb": true, "br": true, "fr": true, "rf": true,
}

type lexer struct {
	src    string
	off    int
	pos    Position
	tokens []Token
	alerts []Alert
}

// Lex splits src into tokens, comments included. Lexical problems such as
// unterminated strings are returned as alerts; Lex never fails.
func Lex(src string) ([]Token, []Alert) {
	lx := &lexer{src: src}
	lx.run()
	return lx.tokens, lx.alerts
}

func (lx *lexer) peekRune(skip int) rune {
	off := lx.off
	for ; skip > 0 && off < len(lx.src); skip-- {
		_, size := utf8.DecodeRuneInString(lx.src[off:])
		off += size
	}
	if off >= len(lx.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(lx.src[off:])
	return r
}

func (lx *lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(lx.src[lx.off:])
	lx.off += size
	if r == '\n' {
		lx.pos.Line++
		lx.pos.Col = 0
	} else {
		lx.pos.Col += runeUnits(r)
	}
	return r
}

func (lx *lexer) emit(kind TokenKind, start Position, startOff int) {
	lx.tokens = append(lx.tokens, Token{
		Kind:      kind,
		Text:      lx.src[startOff:lx.off],
		Range:     Range{Start: start, End: lx.pos},
		Offset:    startOff,
		EndOffset: lx.off,
	})
}

func (lx *lexer) run() {
	for lx.off < len(lx.src) {
		r := lx.peekRune(0)
		start, startOff := lx.pos, lx.off
		switch {
		case unicode.IsSpace(r):
			lx.advance()
		case r == '#':
			lx.comment(start, startOff)
		case r == '"' || r == '\'':
			lx.str(start, startOff)
		case r >= '0' && r <= '9':
			for lx.off < len(lx.src) && (isIdentRune(lx.peekRune(0)) || lx.peekRune(0) == '.') {
				lx.advance()
			}
			lx.emit(TokenNumber, start, startOff)
		case isIdentStart(r):
			for lx.off < len(lx.src) && isIdentRune(lx.peekRune(0)) {
				lx.advance()
			}
			word := lx.src[startOff:lx.off]
			if q := lx.peekRune(0); (q == '"' || q == '\'') && stringPrefixes[strings.ToLower(word)] {
				lx.str(start, startOff)
				continue
			}
			if IsKeyword(word) {
				lx.emit(TokenKeyword, start, startOff)
			} else {
				lx.emit(TokenIdent, start, startOff)
			}
		default:
			lx.advance()
			if r == '-' && lx.peekRune(0) == '>' {
				lx.advance()
			}
			lx.emit(TokenPunct, start, startOff)
		}
	}
	lx.tokens = append(lx.tokens, Token{
		Kind:      TokenEOF,
		Range:     Range{Start: lx.pos, End: lx.pos},
		Offset:    lx.off,
		EndOffset: lx.off,
	})
}

func (lx *lexer) comment(start Position, startOff int) {
	lx.advance()
	if lx.peekRune(0) == '*' {
		lx.advance()
		for lx.off < len(lx.src) {
			if lx.peekRune(0) == '*' && lx.peekRune(1) == '#' {
				lx.advance()
				lx.advance()
				lx.emit(TokenComment, start, startOff)
				return
			}
			lx.advance()
		}
		lx.emit(TokenComment, start, startOff)
		lx.alerts = append(lx.alerts, errorAt(Range{Start: start, End: lx.pos}, "unterminated block comment"))
		return
	}
	for lx.off < len(lx.src) && lx.peekRune(0) != '\n' {
		lx.advance()
	}
	lx.emit(TokenComment, start, startOff)
}

// str lexes a quoted string starting at the opening quote. Triple-quoted
// strings may span lines; single-quoted ones end at the newline.
func (lx *lexer) str(start Position, startOff int) {
	quote := lx.peekRune(0)
	triple := lx.peekRune(1) == quote && lx.peekRune(2) == quote
	if triple {
		lx.advance()
		lx.advance()
	}
	lx.advance()
	for lx.off < len(lx.src) {
		r := lx.peekRune(0)
		switch {
		case r == '\\':
			lx.advance()
			if lx.off < len(lx.src) {
				lx.advance()
			}
		case r == '\n' && !triple:
			lx.emit(TokenString, start, startOff)
			lx.alerts = append(lx.alerts, errorAt(Range{Start: start, End: lx.pos}, "unterminated string literal"))
			return
		case r == quote && (!triple || (lx.peekRune(1) == quote && lx.peekRune(2) == quote)):
			if triple {
				lx.advance()
				lx.advance()
			}
			lx.advance()
			lx.emit(TokenString, start, startOff)
			return
		default:
			lx.advance()
		}
	}
	lx.emit(TokenString, start, startOff)
	lx.alerts = append(lx.alerts, errorAt(Range{Start: start, End: lx.pos}, "unterminated string literal"))
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Unquote strips string prefixes and quotes from a string token's text and
// trims surrounding whitespace. Escapes are left as written.
func Unquote(s string) string {
	s = strings.TrimLeft(s, "fFrRbB")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) {
			s = strings.TrimPrefix(s, q)
			s = strings.TrimSuffix(s, q)
			break
		}
	}
	return strings.TrimSpace(s)
}
