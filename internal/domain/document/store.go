package document

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/exp/slog"

	syncdoc "github.com/voidfemme/nbt-mapart-helper/internal/domain/sync"
)

// Store reads and writes one tracked document as a whole JSON file.
// An absent file is an empty default document, not an error; a corrupt
// file degrades to the default with a logged warning.
type Store struct {
	path     string
	defaults func() syncdoc.Document
	log      *slog.Logger
}

// NewProgressStore tracks the progress document.
func NewProgressStore(path string, log *slog.Logger) *Store {
	return &Store{
		path: path,
		defaults: func() syncdoc.Document {
			return syncdoc.Document{
				"completed_rows":   map[string]any{},
				"completed_chunks": []any{},
				"last_modified":    map[string]any{},
			}
		},
		log: log.With(slog.String("document", filepath.Base(path))),
	}
}

// NewSessionStore tracks the session document.
func NewSessionStore(path string, log *slog.Logger) *Store {
	return &Store{
		path: path,
		defaults: func() syncdoc.Document {
			return syncdoc.Document{
				"chunk_locks":  map[string]any{},
				"active_users": map[string]any{},
			}
		},
		log: log.With(slog.String("document", filepath.Base(path))),
	}
}

// Path returns the document's location on disk.
func (s *Store) Path() string { return s.path }

// Load returns the current document content.
func (s *Store) Load() syncdoc.Document {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("failed to read document, using default",
				slog.String("error", err.Error()))
		}
		return s.defaults()
	}

	var doc syncdoc.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.log.Warn("document corrupted, using default",
			slog.String("error", err.Error()))
		return s.defaults()
	}
	return doc
}

// Save replaces the whole document on disk.
func (s *Store) Save(doc syncdoc.Document) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create document dir: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}
