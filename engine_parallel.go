package jacls

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jward/jacls/internal/discover"
	"github.com/jward/jacls/internal/docs"
	"github.com/jward/jacls/internal/extract"
	"github.com/jward/jacls/internal/index"
	"github.com/jward/jacls/internal/jac"
)

// fillItem carries one discovered file through the scan.
type fillItem struct {
	path     string
	text     string
	analysis extract.Analysis
}

// FillWorkspace indexes every Jac file under the workspace root using a
// four-phase pipeline:
//
//	Phase A (parallel): discover files and read them from disk.
//	Phase B (parallel): extract symbols and edges, each file independently.
//	Phase C (serial):   install symbols, imports and edges.
//	Phase D (serial):   merge every file in dependency-first order.
//
// Install and merge start only after every extraction has returned, so no
// merge observes a half-built graph. FillWorkspace runs once per session;
// later calls return immediately. A root that does not exist yet is not
// counted as filled, so the scan runs again on the next call. A file that
// cannot be read is logged and indexed as empty.
func (e *Engine) FillWorkspace(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fillWorkspace(ctx)
}

func (e *Engine) fillWorkspace(ctx context.Context) error {
	if e.filled {
		return nil
	}
	if e.root == "" {
		e.filled = true
		return nil
	}
	start := time.Now()

	// ---- Phase A: discovery and parallel reads ----
	paths, err := discover.Files(e.root, e.excludes)
	if errors.Is(err, fs.ErrNotExist) {
		// Retried on the next call.
		e.logger.Warn("workspace.missing", "root", e.root)
		return nil
	}
	if err != nil {
		return fmt.Errorf("jacls: discover %s: %w", e.root, err)
	}
	var items []*fillItem
	for _, p := range paths {
		p, err := canonical(p)
		if err != nil {
			return err
		}
		if e.index.State(p) != index.Unindexed {
			continue
		}
		items = append(items, &fillItem{path: p})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, item := range items {
		if doc, ok := e.docs.Get(item.path); ok {
			item.text = doc.Text
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(item.path)
			if err != nil {
				e.logger.Warn("workspace.read", "path", item.path, "err", err)
				return nil
			}
			item.text = string(data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("jacls: read workspace: %w", err)
	}

	// ---- Phase B: parallel extraction ----
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, item := range items {
		g.Go(func() error {
			item.analysis = e.analyze(gctx, item.path, item.text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("jacls: extract workspace: %w", err)
	}

	// ---- Phase C: serial install ----
	var failed int
	for _, item := range items {
		var doc docs.Document
		if d, ok := e.docs.Get(item.path); ok {
			doc = d
		} else {
			doc = *e.docs.Put(item.path, item.text, 0)
		}
		if _, err := e.index.Install(doc, item.analysis); err != nil {
			return err
		}
		if len(item.analysis.Symbols) == 0 && hasError(item.analysis.Alerts) {
			failed++
		}
	}

	e.filled = true

	// ---- Phase D: dependency-first merge ----
	order, cyclic := e.index.Graph().Order(e.index.Files())
	for _, p := range order {
		e.index.Merge(p)
	}

	e.logger.Info("workspace.fill",
		"root", e.root,
		"files", len(items),
		"failed", failed,
		"cyclic", len(cyclic),
		"workers", e.workers,
		"duration", time.Since(start),
	)
	return nil
}

func hasError(alerts []Alert) bool {
	for _, a := range alerts {
		if a.Severity == jac.SeverityError {
			return true
		}
	}
	return false
}
