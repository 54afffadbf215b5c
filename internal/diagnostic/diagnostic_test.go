package diagnostic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/jacls/internal/jac"
)

func alerts() []jac.Alert {
	return []jac.Alert{
		{Severity: jac.SeverityWarning, Message: "duplicate node 'N'", Range: jac.Range{
			Start: jac.Position{Line: 3, Col: 5}, End: jac.Position{Line: 3, Col: 6},
		}},
		{Severity: jac.SeverityError, Message: "unterminated block: missing '}'", Range: jac.Range{
			Start: jac.Position{Line: 7, Col: 0}, End: jac.Position{Line: 12, Col: 1},
		}},
	}
}

func TestTranslate_WithWarnings(t *testing.T) {
	t.Parallel()
	diags := Translate(alerts(), true)
	require.Len(t, diags, 2)

	assert.Equal(t, protocol.DiagnosticSeverityWarning, *diags[0].Severity)
	assert.Equal(t, protocol.DiagnosticSeverityError, *diags[1].Severity)
	assert.Equal(t, "jac", *diags[1].Source)
	assert.Equal(t, "unterminated block: missing '}'", diags[1].Message)
	assert.Equal(t, protocol.Range{
		Start: protocol.Position{Line: 7, Character: 0},
		End:   protocol.Position{Line: 12, Character: 1},
	}, diags[1].Range)
}

func TestTranslate_DropsWarnings(t *testing.T) {
	t.Parallel()
	diags := Translate(alerts(), false)
	require.Len(t, diags, 1)
	assert.Equal(t, protocol.DiagnosticSeverityError, *diags[0].Severity)
}

func TestTranslate_EmptyIsNotNil(t *testing.T) {
	t.Parallel()
	diags := Translate(nil, true)
	assert.NotNil(t, diags)
	assert.Empty(t, diags)
}

func TestPositionRoundTrip(t *testing.T) {
	t.Parallel()
	p := jac.Position{Line: 11, Col: 4}
	assert.Equal(t, p, FromPosition(Position(p)))
	assert.Equal(t, protocol.Position{}, Position(jac.Position{Line: -1, Col: -3}))
}

func TestSummary(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "1 error, 1 warning", Summary(Translate(alerts(), true)))
	assert.Equal(t, "0 errors, 0 warnings", Summary(nil))
}
