package jac

import "strings"

type parser struct {
	src    string
	toks   []Token
	i      int
	inBody bool
	alerts []Alert
}

// Parse parses src into a Module. It recovers from malformed input and
// reports every problem as an alert.
func Parse(src string) *Module {
	all, lexAlerts := Lex(src)
	p := &parser{src: src}
	for _, t := range all {
		if t.Kind != TokenComment {
			p.toks = append(p.toks, t)
		}
	}
	m := &Module{Tokens: all}
	p.module(m)
	m.Alerts = append(lexAlerts, p.alerts...)
	return m
}

func (p *parser) peek() Token {
	return p.toks[p.i]
}

func (p *parser) peekAt(n int) Token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *parser) next() Token {
	t := p.toks[p.i]
	if t.Kind != TokenEOF {
		p.i++
	}
	return t
}

func (p *parser) atEOF() bool {
	return p.peek().Kind == TokenEOF
}

func (p *parser) errorf(r Range, format string, args ...any) {
	p.alerts = append(p.alerts, errorAt(r, format, args...))
}

func (p *parser) module(m *Module) {
	doc := ""
	for !p.atEOF() {
		t := p.peek()
		if t.Kind == TokenString && p.declStartsAt(1) {
			doc = Unquote(t.Text)
			p.next()
			continue
		}
		if p.looseString(t) {
			p.next()
			continue
		}
		switch {
		case p.declStartsAt(0):
			m.Decls = append(m.Decls, p.decl(doc)...)
		case t.Is("import") || t.Is("include"):
			m.Imports = append(m.Imports, p.importStmt()...)
		default:
			p.skipStatement()
		}
		doc = ""
	}
}

// declStartsAt reports whether a top-level declaration begins n tokens ahead.
func (p *parser) declStartsAt(n int) bool {
	for p.peekAt(n).Is("static") || p.peekAt(n).Is("async") {
		n++
	}
	t := p.peekAt(n)
	if t.Kind != TokenKeyword {
		return false
	}
	_, arch := architypeKeywords[t.Text]
	return arch || t.Text == "can" || t.Text == "glob" || t.Text == "global"
}

// memberStartsAt reports whether an architype member begins n tokens ahead.
func (p *parser) memberStartsAt(n int) bool {
	for p.peekAt(n).Is("static") || p.peekAt(n).Is("async") {
		n++
	}
	t := p.peekAt(n)
	return t.Is("can") || t.Is("has")
}

// looseString reports whether t is a string standing alone on its lines,
// such as a module docstring that documents no declaration.
func (p *parser) looseString(t Token) bool {
	return t.Kind == TokenString && p.peekAt(1).Range.Start.Line > t.Range.End.Line
}

// startsLaterDecl reports whether the next token opens a declaration on a
// line after anchor, which means the statement at anchor is missing its end.
func (p *parser) startsLaterDecl(anchor Token) bool {
	if p.peek().Range.Start.Line <= anchor.Range.Start.Line {
		return false
	}
	return p.declStartsAt(0) || p.memberStartsAt(0)
}

func (p *parser) skipModifiers() {
	for p.peek().Is("static") || p.peek().Is("async") {
		p.next()
	}
}

// accessTag consumes an access tag such as ":priv" after a keyword.
func (p *parser) accessTag() {
	if !p.peek().Is(":") {
		return
	}
	if t := p.peekAt(1); t.Is("priv") || t.Is("pub") || t.Is("protect") {
		p.next()
		p.next()
	}
}

func (p *parser) decl(doc string) []*Decl {
	first := p.peek()
	p.skipModifiers()
	kw := p.peek()
	switch {
	case kw.Is("can"):
		if d := p.ability(first, doc); d != nil {
			return []*Decl{d}
		}
	case kw.Is("glob") || kw.Is("global"):
		return p.variables(doc)
	default:
		if d := p.architype(first, doc); d != nil {
			return []*Decl{d}
		}
	}
	return nil
}

func (p *parser) architype(first Token, doc string) *Decl {
	kw := p.next()
	p.accessTag()
	name := p.peek()
	if name.Kind != TokenIdent {
		p.errorf(kw.Range, "expected a name after '%s'", kw.Text)
		p.skipStatement()
		return nil
	}
	p.next()
	d := &Decl{
		Kind:      architypeKeywords[kw.Text],
		Name:      name.Text,
		Doc:       doc,
		NameRange: name.Range,
		Range:     Range{Start: first.Range.Start, End: name.Range.End},
	}

	if p.peek().Is(":") {
		p.next()
		for p.peek().Kind == TokenIdent || p.peek().Is(",") || p.peek().Is(".") {
			if t := p.next(); t.Kind == TokenIdent {
				d.Bases = append(d.Bases, t.Text)
			}
		}
		if p.peek().Is(":") {
			p.next()
		} else {
			p.errorf(p.peek().Range, "expected ':' to close the base list of '%s'", d.Name)
		}
		d.Detail = strings.Join(d.Bases, ", ")
	}

	switch t := p.peek(); {
	case t.Is("{"):
		open := p.next()
		p.members(d)
		if p.peek().Is("}") {
			d.Range.End = p.next().Range.End
			d.HasBody = true
		} else {
			p.errorf(open.Range, "unterminated block: missing '}'")
		}
	case t.Is(";"):
		p.next()
	default:
		p.errorf(t.Range, "expected '{' or ';' after %s '%s'", kw.Text, d.Name)
	}
	return d
}

func (p *parser) members(d *Decl) {
	outer := p.inBody
	p.inBody = true
	defer func() { p.inBody = outer }()

	doc := ""
	for !p.atEOF() && !p.peek().Is("}") {
		t := p.peek()
		if t.Kind == TokenString && p.memberStartsAt(1) {
			doc = Unquote(t.Text)
			p.next()
			continue
		}
		if p.looseString(t) {
			p.next()
			continue
		}
		if p.memberStartsAt(0) {
			first := p.peek()
			p.skipModifiers()
			if p.peek().Is("can") {
				if m := p.ability(first, doc); m != nil {
					d.Members = append(d.Members, m)
				}
			} else {
				d.Members = append(d.Members, p.variables(doc)...)
			}
		} else {
			p.skipStatement()
		}
		doc = ""
	}
}

func (p *parser) ability(first Token, doc string) *Decl {
	kw := p.next()
	p.accessTag()
	name := p.peek()
	if name.Kind != TokenIdent {
		p.errorf(kw.Range, "expected a name after 'can'")
		p.skipStatement()
		return nil
	}
	p.next()
	d := &Decl{
		Kind:      DeclAbility,
		Name:      name.Text,
		Doc:       doc,
		NameRange: name.Range,
		Range:     Range{Start: first.Range.Start, End: name.Range.End},
	}

	sigStart := p.peek().Offset
	depth := 0
	for !p.atEOF() {
		t := p.peek()
		if depth == 0 && (t.Is("{") || t.Is(";") || t.Is("}") || p.startsLaterDecl(name)) {
			break
		}
		if t.Is("(") || t.Is("[") {
			depth++
		} else if (t.Is(")") || t.Is("]")) && depth > 0 {
			depth--
		}
		p.next()
	}
	d.Detail = compact(p.src[sigStart:p.peek().Offset])

	switch t := p.peek(); {
	case t.Is("{"):
		open := p.next()
		if closer, ok := p.skipBlock(open); ok {
			d.Range.End = closer.Range.End
			d.HasBody = true
		}
	case t.Is(";"):
		p.next()
	default:
		p.errorf(name.Range, "expected '{' or ';' after ability '%s'", d.Name)
	}
	return d
}

// variables parses "has", "glob" and "global" statements. Each declared
// name becomes its own Decl whose range covers just the name.
func (p *parser) variables(doc string) []*Decl {
	kw := p.next()
	p.accessTag()
	var out []*Decl
	for {
		name := p.peek()
		if name.Kind != TokenIdent {
			p.errorf(kw.Range, "expected a variable name after '%s'", kw.Text)
			p.skipStatement()
			return out
		}
		p.next()
		d := &Decl{
			Kind:      DeclVariable,
			Name:      name.Text,
			Doc:       doc,
			NameRange: name.Range,
			Range:     name.Range,
		}

		typeStart, typeEnd := -1, -1
		if p.peek().Is(":") {
			p.next()
			typeStart = p.peek().Offset
		}
		depth := 0
		for !p.atEOF() {
			t := p.peek()
			if depth == 0 && (t.Is(",") || t.Is(";") || t.Is("}") || p.startsLaterDecl(name)) {
				break
			}
			if depth == 0 && t.Is("=") && typeEnd < 0 {
				typeEnd = t.Offset
			}
			if t.Is("(") || t.Is("[") || t.Is("{") {
				depth++
			} else if (t.Is(")") || t.Is("]") || t.Is("}")) && depth > 0 {
				depth--
			}
			p.next()
		}
		if typeStart >= 0 {
			if typeEnd < 0 {
				typeEnd = p.peek().Offset
			}
			if typeEnd > typeStart {
				d.Detail = compact(p.src[typeStart:typeEnd])
			}
		}
		out = append(out, d)

		if p.peek().Is(",") {
			p.next()
			continue
		}
		if p.peek().Is(";") {
			p.next()
		} else {
			p.errorf(d.NameRange, "expected ';' after '%s' declaration", kw.Text)
		}
		return out
	}
}

func (p *parser) importStmt() []*Import {
	kw := p.next()
	if !p.peek().Is(":") {
		p.errorf(kw.Range, "expected ':' and a language after '%s'", kw.Text)
		p.skipStatement()
		return nil
	}
	p.next()
	lang := p.peek()
	if lang.Kind != TokenIdent {
		p.errorf(kw.Range, "expected a language after '%s:'", kw.Text)
		p.skipStatement()
		return nil
	}
	p.next()
	from := false
	if p.peek().Is("from") {
		p.next()
		from = true
	}

	var out []*Import
	for {
		path, r, ok := p.dottedPath()
		if !ok {
			p.errorf(p.peek().Range, "expected a module path in %s statement", kw.Text)
			p.skipStatement()
			return out
		}
		imp := &Import{
			Lang:      lang.Text,
			Path:      path,
			Include:   kw.Text == "include",
			PathRange: r,
			Range:     Range{Start: kw.Range.Start, End: r.End},
		}
		if p.peek().Is("as") {
			p.next()
			if a := p.peek(); a.Kind == TokenIdent {
				imp.Alias = a.Text
				p.next()
			}
		}
		if from {
			imp.Items = p.importItems()
		}
		out = append(out, imp)
		if !from && p.peek().Is(",") {
			p.next()
			continue
		}
		break
	}

	if end := p.peek(); end.Is(";") {
		p.next()
		for _, imp := range out {
			imp.Range.End = end.Range.End
		}
	} else {
		p.errorf(out[len(out)-1].Range, "expected ';' after %s statement", kw.Text)
	}
	return out
}

// importItems parses the names after "from <module>", either as a comma
// list or a braced list. Aliases are skipped.
func (p *parser) importItems() []string {
	var items []string
	if p.peek().Is("{") {
		p.next()
		for !p.atEOF() && !p.peek().Is("}") && !p.peek().Is(";") {
			t := p.next()
			switch {
			case t.Is("as"):
				if p.peek().Kind == TokenIdent {
					p.next()
				}
			case t.Kind == TokenIdent:
				items = append(items, t.Text)
			}
		}
		if p.peek().Is("}") {
			p.next()
		}
		return items
	}
	for p.peek().Is(",") {
		p.next()
		t := p.peek()
		if t.Kind != TokenIdent {
			break
		}
		p.next()
		items = append(items, t.Text)
		if p.peek().Is("as") {
			p.next()
			if p.peek().Kind == TokenIdent {
				p.next()
			}
		}
	}
	return items
}

// dottedPath parses an optionally dot-prefixed module path like "..a.b".
func (p *parser) dottedPath() (string, Range, bool) {
	start := p.peek()
	var b strings.Builder
	for p.peek().Is(".") {
		b.WriteByte('.')
		p.next()
	}
	end := start
	segments := 0
	trailingDot := false
	for {
		t := p.peek()
		if t.Kind != TokenIdent && t.Kind != TokenKeyword {
			break
		}
		p.next()
		b.WriteString(t.Text)
		end = t
		segments++
		trailingDot = false
		if !p.peek().Is(".") {
			break
		}
		p.next()
		b.WriteByte('.')
		trailingDot = true
	}
	if segments == 0 || trailingDot {
		return "", Range{}, false
	}
	return b.String(), Range{Start: start.Range.Start, End: end.Range.End}, true
}

// skipBlock consumes tokens through the brace that closes open.
func (p *parser) skipBlock(open Token) (Token, bool) {
	stack := []Token{open}
	for !p.atEOF() {
		t := p.next()
		switch {
		case t.Is("{") || t.Is("(") || t.Is("["):
			stack = append(stack, t)
		case t.Is("}") || t.Is(")") || t.Is("]"):
			if top := stack[len(stack)-1]; !matches(top.Text, t.Text) {
				p.errorf(t.Range, "mismatched '%s'", t.Text)
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return t, true
			}
		}
	}
	p.errorf(open.Range, "unterminated block: missing '}'")
	return Token{}, false
}

// skipStatement consumes one statement the parser does not model: up to a
// semicolon at depth zero or through a balanced block. Inside an architype
// body a closing brace at depth zero is left for the caller.
func (p *parser) skipStatement() {
	var stack []Token
	for !p.atEOF() {
		t := p.peek()
		switch {
		case t.Is("{") || t.Is("(") || t.Is("["):
			stack = append(stack, t)
		case t.Is("}") || t.Is(")") || t.Is("]"):
			if len(stack) == 0 {
				if t.Is("}") && p.inBody {
					return
				}
				p.errorf(t.Range, "unexpected '%s'", t.Text)
				p.next()
				return
			}
			if !matches(stack[len(stack)-1].Text, t.Text) {
				p.errorf(t.Range, "mismatched '%s'", t.Text)
			}
			stack = stack[:len(stack)-1]
			p.next()
			if len(stack) == 0 && t.Is("}") {
				return
			}
			continue
		case t.Is(";") && len(stack) == 0:
			p.next()
			return
		}
		p.next()
	}
	if len(stack) > 0 {
		p.errorf(stack[0].Range, "unterminated block: missing '%s'", closerFor(stack[0].Text))
	}
}

func matches(open, close string) bool {
	return closerFor(open) == close
}

func closerFor(open string) string {
	switch open {
	case "{":
		return "}"
	case "(":
		return ")"
	case "[":
		return "]"
	}
	return ""
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
