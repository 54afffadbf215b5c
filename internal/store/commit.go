package store

import (
	"database/sql"
	"fmt"
)

// CommitBatch replaces everything stored for the batch's file with the
// buffered data, within a single transaction. The file row is upserted, its
// previous symbols and imports deleted, then the new rows inserted in
// ordinal order. Returns the file's ID.
func (s *Store) CommitBatch(b *Batch) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fileID, err := upsertFileTx(tx, &b.File)
	if err != nil {
		return 0, fmt.Errorf("commit batch: file %q: %w", b.File.Path, err)
	}
	if err := deleteFileDataTx(tx, fileID); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Symbols {
		sym := &b.Symbols[i]
		sym.FileID = fileID
		id, err := insertSymbolTx(tx, sym)
		if err != nil {
			return 0, fmt.Errorf("commit batch: symbol %q: %w", sym.Name, err)
		}
		sym.ID = id
	}
	for i := range b.Imports {
		imp := &b.Imports[i]
		imp.FileID = fileID
		id, err := insertImportTx(tx, imp)
		if err != nil {
			return 0, fmt.Errorf("commit batch: import %q: %w", imp.Source, err)
		}
		imp.ID = id
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	b.File.ID = fileID
	return fileID, nil
}

// --- Transaction-scoped helpers ---

func upsertFileTx(tx *sql.Tx, f *File) (int64, error) {
	_, err := tx.Exec(
		`INSERT INTO files (path, hash, version, symbols_hash, last_indexed)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   hash = excluded.hash,
		   version = excluded.version,
		   symbols_hash = excluded.symbols_hash,
		   last_indexed = excluded.last_indexed`,
		f.Path, f.Hash, f.Version, f.SymbolsHash, f.LastIndexed,
	)
	if err != nil {
		return 0, err
	}
	// LastInsertId is unreliable for the update arm of an upsert.
	var id int64
	if err := tx.QueryRow("SELECT id FROM files WHERE path = ?", f.Path).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func insertSymbolTx(tx *sql.Tx, sym *Symbol) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO symbols (file_id, ordinal, name, kind, container, doc, detail,
			start_line, start_col, end_line, end_col, name_line, name_col, name_end_col, has_body)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.FileID, sym.Ordinal, sym.Name, string(sym.Kind), sym.ContainerName, sym.Doc, sym.Detail,
		sym.StartLine, sym.StartCol, sym.EndLine, sym.EndCol,
		sym.NameLine, sym.NameCol, sym.NameEndCol, sym.HasBody,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertImportTx(tx *sql.Tx, imp *Import) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO imports (file_id, ordinal, source, target, language, is_jac, line)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		imp.FileID, imp.Ordinal, imp.Source, imp.Target, imp.Language, imp.IsJac, imp.Line,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
