package jac

import (
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Position is a zero-based line and column. Columns count UTF-16 code units
// so positions copy directly into protocol positions.
type Position struct {
	Line int
	Col  int
}

// Before reports whether p sorts strictly before q.
func (p Position) Before(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Col < q.Col
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Range is a half-open source span: Start is inclusive, End exclusive.
type Range struct {
	Start Position
	End   Position
}

// Contains reports whether pos falls inside r. A zero-width range contains
// only its start position.
func (r Range) Contains(pos Position) bool {
	if pos.Before(r.Start) {
		return false
	}
	if r.Start == r.End {
		return pos == r.Start
	}
	return pos.Before(r.End)
}

// Encloses reports whether r fully covers inner.
func (r Range) Encloses(inner Range) bool {
	return !inner.Start.Before(r.Start) && !r.End.Before(inner.End)
}

// Severity classifies an Alert.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Alert is a diagnostic produced while parsing or running a pass.
type Alert struct {
	Severity Severity
	Message  string
	Range    Range
}

func (a Alert) String() string {
	return fmt.Sprintf("%s: %s: %s", a.Range.Start, a.Severity, a.Message)
}

func errorAt(r Range, format string, args ...any) Alert {
	return Alert{Severity: SeverityError, Message: fmt.Sprintf(format, args...), Range: r}
}

func warningAt(r Range, format string, args ...any) Alert {
	return Alert{Severity: SeverityWarning, Message: fmt.Sprintf(format, args...), Range: r}
}

// Warningf builds a warning alert. Passes outside this package use it to
// report their own findings.
func Warningf(r Range, format string, args ...any) Alert {
	return warningAt(r, format, args...)
}

// Line returns the text of the given zero-based line without its newline.
func Line(text string, line int) string {
	for i := 0; i < line; i++ {
		nl := strings.IndexByte(text, '\n')
		if nl < 0 {
			return ""
		}
		text = text[nl+1:]
	}
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[:nl]
	}
	return strings.TrimSuffix(text, "\r")
}

// LinePrefix returns the part of pos's line that precedes pos.
func LinePrefix(text string, pos Position) string {
	line := Line(text, pos.Line)
	return line[:byteOffset(line, pos.Col)]
}

// WordAt returns the identifier under pos and its range on that line.
func WordAt(text string, pos Position) (string, Range, bool) {
	line := Line(text, pos.Line)
	off := byteOffset(line, pos.Col)
	start, end := off, off
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(line[:start])
		if !isIdentRune(r) {
			break
		}
		start -= size
	}
	for end < len(line) {
		r, size := utf8.DecodeRuneInString(line[end:])
		if !isIdentRune(r) {
			break
		}
		end += size
	}
	if start == end {
		return "", Range{}, false
	}
	r := Range{
		Start: Position{Line: pos.Line, Col: utf16Len(line[:start])},
		End:   Position{Line: pos.Line, Col: utf16Len(line[:end])},
	}
	return line[start:end], r, true
}

// Offset converts pos into a byte offset into text. Columns past the end of
// a line clamp to the line end; lines past the end of text clamp to
// len(text).
func Offset(text string, pos Position) int {
	off := 0
	for i := 0; i < pos.Line; i++ {
		nl := strings.IndexByte(text[off:], '\n')
		if nl < 0 {
			return len(text)
		}
		off += nl + 1
	}
	line := text[off:]
	if nl := strings.IndexByte(line, '\n'); nl >= 0 {
		line = line[:nl]
	}
	return off + byteOffset(strings.TrimSuffix(line, "\r"), pos.Col)
}

// byteOffset converts a UTF-16 column into a byte offset within line,
// clamping to the line length.
func byteOffset(line string, col int) int {
	units := 0
	for i, r := range line {
		if units >= col {
			return i
		}
		units += runeUnits(r)
	}
	return len(line)
}

// Width returns the length of s in UTF-16 code units.
func Width(s string) int {
	return utf16Len(s)
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += runeUnits(r)
	}
	return n
}

func runeUnits(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}
