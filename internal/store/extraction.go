package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// --- File operations ---

func (s *Store) FileByPath(path string) (*File, error) {
	f := &File{}
	err := s.db.QueryRow(
		"SELECT id, path, hash, version, symbols_hash, last_indexed FROM files WHERE path = ?", path,
	).Scan(&f.ID, &f.Path, &f.Hash, &f.Version, &f.SymbolsHash, &f.LastIndexed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// Files returns every file record ordered by path.
func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query(
		"SELECT id, path, hash, version, symbols_hash, last_indexed FROM files ORDER BY path",
	)
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.Path, &f.Hash, &f.Version, &f.SymbolsHash, &f.LastIndexed); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// --- Symbol operations ---

// SymbolCols is the column list for symbol queries joined with files as f.
const SymbolCols = `s.id, s.file_id, f.path, s.ordinal, s.name, s.kind, s.container, s.doc, s.detail,
	s.start_line, s.start_col, s.end_line, s.end_col, s.name_line, s.name_col, s.name_end_col, s.has_body`

const symbolFrom = " FROM symbols s JOIN files f ON f.id = s.file_id"

func scanSymbol(scanner interface{ Scan(...any) error }) (*Symbol, error) {
	sym := &Symbol{}
	var container, doc, detail sql.NullString
	err := scanner.Scan(
		&sym.ID, &sym.FileID, &sym.Path, &sym.Ordinal, &sym.Name, &sym.Kind,
		&container, &doc, &detail,
		&sym.StartLine, &sym.StartCol, &sym.EndLine, &sym.EndCol,
		&sym.NameLine, &sym.NameCol, &sym.NameEndCol, &sym.HasBody,
	)
	if err != nil {
		return nil, err
	}
	sym.ContainerName = container.String
	sym.Doc = doc.String
	sym.Detail = detail.String
	return sym, nil
}

func (s *Store) querySymbols(where string, args ...any) ([]*Symbol, error) {
	rows, err := s.db.Query("SELECT "+SymbolCols+symbolFrom+" "+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var symbols []*Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// SymbolsByFile returns a file's symbols in declaration order.
func (s *Store) SymbolsByFile(path string) ([]*Symbol, error) {
	syms, err := s.querySymbols("WHERE f.path = ? ORDER BY s.ordinal", path)
	if err != nil {
		return nil, fmt.Errorf("symbols by file: %w", err)
	}
	return syms, nil
}

// SymbolsByName returns every symbol with exactly the given name.
func (s *Store) SymbolsByName(name string) ([]*Symbol, error) {
	syms, err := s.querySymbols("WHERE s.name = ? ORDER BY f.path, s.ordinal", name)
	if err != nil {
		return nil, fmt.Errorf("symbols by name: %w", err)
	}
	return syms, nil
}

// SymbolsByKind returns every symbol of one kind across the workspace.
func (s *Store) SymbolsByKind(kind SymbolKind) ([]*Symbol, error) {
	syms, err := s.querySymbols("WHERE s.kind = ? ORDER BY f.path, s.ordinal", string(kind))
	if err != nil {
		return nil, fmt.Errorf("symbols by kind: %w", err)
	}
	return syms, nil
}

// SymbolsByContainer returns the members declared inside the named
// architype, in any file.
func (s *Store) SymbolsByContainer(container string) ([]*Symbol, error) {
	syms, err := s.querySymbols("WHERE s.container = ? ORDER BY f.path, s.ordinal", container)
	if err != nil {
		return nil, fmt.Errorf("symbols by container: %w", err)
	}
	return syms, nil
}

// AllSymbols returns every symbol ordered by file path, then declaration.
func (s *Store) AllSymbols() ([]*Symbol, error) {
	syms, err := s.querySymbols("ORDER BY f.path, s.ordinal")
	if err != nil {
		return nil, fmt.Errorf("all symbols: %w", err)
	}
	return syms, nil
}

// SearchSymbols returns symbols whose name contains query, ignoring case.
// An empty query matches everything.
func (s *Store) SearchSymbols(query string) ([]*Symbol, error) {
	if query == "" {
		return s.AllSymbols()
	}
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	syms, err := s.querySymbols(`WHERE lower(s.name) LIKE ? ESCAPE '\' ORDER BY f.path, s.ordinal`, pattern)
	if err != nil {
		return nil, fmt.Errorf("search symbols: %w", err)
	}
	return syms, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// --- Import operations ---

// ImportsByFile returns a file's imports in declaration order.
func (s *Store) ImportsByFile(path string) ([]*Import, error) {
	rows, err := s.db.Query(
		`SELECT i.id, i.file_id, i.ordinal, i.source, i.target, i.language, i.is_jac, i.line
		 FROM imports i JOIN files f ON f.id = i.file_id
		 WHERE f.path = ? ORDER BY i.ordinal`, path,
	)
	if err != nil {
		return nil, fmt.Errorf("imports by file: %w", err)
	}
	defer rows.Close()
	var imports []*Import
	for rows.Next() {
		imp := &Import{}
		if err := rows.Scan(&imp.ID, &imp.FileID, &imp.Ordinal, &imp.Source, &imp.Target,
			&imp.Language, &imp.IsJac, &imp.Line); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}

// RetargetImports points every import of any file at oldTarget to
// newTarget instead.
func (s *Store) RetargetImports(oldTarget, newTarget string) error {
	if _, err := s.db.Exec("UPDATE imports SET target = ? WHERE target = ?", newTarget, oldTarget); err != nil {
		return fmt.Errorf("retarget imports: %w", err)
	}
	return nil
}
