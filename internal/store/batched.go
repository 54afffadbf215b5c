package store

import "sync"

// Batch buffers one file's extraction output in memory so that parallel
// extraction workers never touch SQLite. CommitBatch writes it in a single
// transaction.
//
// Thread safety: the mutex protects the slice appends, so one batch may be
// filled from several goroutines.
type Batch struct {
	File File

	mu      sync.Mutex
	Symbols []Symbol
	Imports []Import
}

// NewBatch creates an empty batch for the given file record.
func NewBatch(f File) *Batch {
	return &Batch{File: f}
}

// AddSymbol appends a symbol, assigning its ordinal and declaring path.
func (b *Batch) AddSymbol(sym Symbol) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sym.Ordinal = len(b.Symbols)
	sym.Path = b.File.Path
	b.Symbols = append(b.Symbols, sym)
}

// AddImport appends an import, assigning its ordinal.
func (b *Batch) AddImport(imp Import) {
	b.mu.Lock()
	defer b.mu.Unlock()
	imp.Ordinal = len(b.Imports)
	b.Imports = append(b.Imports, imp)
}

// SymbolPtrs returns pointers into the buffered symbols, in order.
func (b *Batch) SymbolPtrs() []*Symbol {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Symbol, len(b.Symbols))
	for i := range b.Symbols {
		out[i] = &b.Symbols[i]
	}
	return out
}
