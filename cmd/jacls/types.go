package main

// CLIResult is the top-level JSON envelope for all query commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLISymbol is a JSON-friendly symbol representation. Lines and columns are
// 0-based; columns count UTF-16 code units.
type CLISymbol struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Container string `json:"container,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Doc       string `json:"doc,omitempty"`
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CLIHover is the rendered hover text plus the symbol it describes.
type CLIHover struct {
	Text   string    `json:"text"`
	Symbol CLISymbol `json:"symbol"`
}

// CLIDiagnostic is one published diagnostic.
type CLIDiagnostic struct {
	File     string `json:"file"`
	Severity string `json:"severity"`
	Line     int    `json:"line"`
	Col      int    `json:"col"`
	EndLine  int    `json:"end_line"`
	EndCol   int    `json:"end_col"`
	Message  string `json:"message"`
}

// CLIImport is one import statement as stored for the session.
type CLIImport struct {
	Module   string `json:"module"`
	Target   string `json:"target"`
	Language string `json:"language"`
	Line     int    `json:"line"`
}

// CLIDeps lists a file's imports and the files that see its symbols. The
// hashes are the stored content and symbol-set hashes.
type CLIDeps struct {
	File                 string      `json:"file"`
	Hash                 string      `json:"hash,omitempty"`
	SymbolsHash          string      `json:"symbols_hash,omitempty"`
	Imports              []CLIImport `json:"imports"`
	Dependencies         []string    `json:"dependencies"`
	Dependents           []string    `json:"dependents"`
	TransitiveDependents []string    `json:"transitive_dependents"`
}

// CLIIndexedFile is one file of a finished scan.
type CLIIndexedFile struct {
	Path  string `json:"path"`
	State string `json:"state"`
	Hash  string `json:"hash"`
}

// CLIIndexSummary describes a finished workspace scan.
type CLIIndexSummary struct {
	Root     string           `json:"root"`
	Files    int              `json:"files"`
	Symbols  int              `json:"symbols"`
	Imports  int              `json:"imports"`
	Problems int              `json:"problems"`
	Duration string           `json:"duration"`
	Entries  []CLIIndexedFile `json:"entries"`
}
