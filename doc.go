// Package jacls is the workspace index and incremental revalidation engine
// of a Jac language server.
//
// # Pipeline
//
// Every file goes through the same pipeline:
//
//  1. Extract: parse the text and run the architype and import passes,
//     producing the file's symbol table, its dependency edges and its
//     alerts.
//
//  2. Install: persist symbols and imports to the session store (SQLite)
//     and replace the file's outgoing edges in the dependency graph.
//
//  3. Merge: build the file's merged view, its own symbols followed by the
//     own symbols of every Jac module it imports.
//
// A file is re-extracted only when its content hash moves. When its
// exported symbol set moves too, every file that depends on it, directly
// or transitively, is marked stale and re-merged on its next read.
//
// # Usage
//
//	e, err := jacls.New("", "", jacls.WithScriptsFS(scripts.FS), jacls.WithRoot(root))
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	err = e.FillWorkspace(ctx)
//	_, err = e.OnOpen(ctx, path, text, 1)
//	sym, ok, err := e.GetDefinition(ctx, path, jacls.Position{Line: 12, Col: 4})
//
// # Concurrency
//
// An Engine handles one event or query at a time; every exported method
// takes the engine lock. Only the workspace fill fans out, reading and
// extracting files in parallel before installing them serially.
package jacls
