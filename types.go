package jacls

import (
	"github.com/jward/jacls/internal/jac"
	"github.com/jward/jacls/internal/store"
)

// Public type aliases for internal types used in the Engine API. External
// consumers use these names; no conversion is needed.

type Symbol = store.Symbol
type SymbolKind = store.SymbolKind
type Position = jac.Position
type Range = jac.Range
type Alert = jac.Alert
