package index

// State is the per-file indexing state.
type State int

const (
	// Unindexed files are tracked but have never been extracted.
	Unindexed State = iota
	// Indexed files have symbols and edges computed from their current text.
	Indexed
	// Stale files need re-extraction (own text changed) or a re-merge (a
	// dependency's exported symbols changed) before their next read.
	Stale
)

func (s State) String() string {
	switch s {
	case Unindexed:
		return "unindexed"
	case Indexed:
		return "indexed"
	case Stale:
		return "stale"
	}
	return "unknown"
}
