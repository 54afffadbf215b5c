// Package diagnostic translates pass alerts into protocol diagnostics.
package diagnostic

import (
	"fmt"

	"fortio.org/safecast"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/jacls/internal/jac"
)

// Source names this server in every diagnostic it publishes.
const Source = "jac"

// Translate maps alerts to diagnostics in order. Errors become
// DiagnosticSeverityError and warnings DiagnosticSeverityWarning; when
// showWarnings is false warnings are dropped, never demoted. Ranges are
// copied field by field since both sides are zero-based with UTF-16
// columns. The result is never nil.
func Translate(alerts []jac.Alert, showWarnings bool) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(alerts))
	for _, a := range alerts {
		severity := protocol.DiagnosticSeverityError
		if a.Severity == jac.SeverityWarning {
			if !showWarnings {
				continue
			}
			severity = protocol.DiagnosticSeverityWarning
		}
		source := Source
		out = append(out, protocol.Diagnostic{
			Range:    Range(a.Range),
			Severity: &severity,
			Source:   &source,
			Message:  a.Message,
		})
	}
	return out
}

// Range converts a source range to a protocol range. Negative fields clamp
// to zero.
func Range(r jac.Range) protocol.Range {
	return protocol.Range{
		Start: Position(r.Start),
		End:   Position(r.End),
	}
}

// Position converts a source position to a protocol position.
func Position(p jac.Position) protocol.Position {
	return protocol.Position{Line: clamp(p.Line), Character: clamp(p.Col)}
}

// FromPosition converts a protocol position back into a source position.
func FromPosition(p protocol.Position) jac.Position {
	return jac.Position{Line: int(p.Line), Col: int(p.Character)}
}

func clamp(v int) protocol.UInteger {
	u, err := safecast.Conv[uint32](v)
	if err != nil {
		return 0
	}
	return u
}

// Summary renders a one-line count such as "2 errors, 1 warning".
func Summary(diags []protocol.Diagnostic) string {
	var errs, warns int
	for _, d := range diags {
		if d.Severity != nil && *d.Severity == protocol.DiagnosticSeverityWarning {
			warns++
		} else {
			errs++
		}
	}
	return fmt.Sprintf("%d %s, %d %s", errs, plural(errs, "error"), warns, plural(warns, "warning"))
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
