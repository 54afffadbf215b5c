// Package docs is the document store: the single owner of the raw text and
// version of every open or indexed file.
package docs

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/zeebo/xxh3"
)

// Document is the authoritative text of one file. Hash is the hex xxh3 of
// Text; anything derived from the text is keyed by it.
type Document struct {
	Path    string
	Text    string
	Version int32
	Open    bool
	Hash    string
}

type Store struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

func NewStore() *Store {
	return &Store{docs: make(map[string]*Document)}
}

// HashText returns the content hash used for Document.Hash.
func HashText(text string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(text))
}

// Put inserts or replaces the document at path. The Open flag of an
// existing record is kept.
func (s *Store) Put(path, text string, version int32) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := &Document{Path: path, Text: text, Version: version, Hash: HashText(text)}
	if old, ok := s.docs[path]; ok {
		doc.Open = old.Open
	}
	s.docs[path] = doc
	return doc
}

// Get returns a copy of the document at path.
func (s *Store) Get(path string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[path]
	if !ok {
		return Document{}, false
	}
	return *doc, true
}

func (s *Store) Remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, path)
}

// SetOpen flags a tracked document as open in an editor. Unknown paths are
// ignored.
func (s *Store) SetOpen(path string, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.docs[path]; ok {
		doc.Open = open
	}
}

// Paths returns every tracked path, sorted.
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.docs))
	for p := range s.docs {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Canonical returns the file identity for path: absolute, cleaned, and with
// symlinks evaluated. A path that does not exist yet keeps its missing tail
// under the resolved deepest existing ancestor, so it names the same file
// once created.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)
	dir, rest := abs, ""
	for {
		if _, err := os.Lstat(dir); err == nil {
			real, err := filepath.EvalSymlinks(dir)
			if err != nil {
				return abs, nil
			}
			if rest == "" {
				return real, nil
			}
			return filepath.Join(real, rest), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}
