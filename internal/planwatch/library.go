// Package planwatch keeps an in-memory library of plan documents loaded from a
// directory, reloads it as files change, and mirrors valid plans into a plan store.
package planwatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/raidplan/internal/persist"
	"github.com/cory-johannsen/raidplan/internal/storage"
)

type entry struct {
	doc *persist.Document
	seq uint64
}

// Library holds the plan documents of one directory, keyed by file path.
// It is safe for concurrent use; the evaluator reads while the watcher writes.
type Library struct {
	codec  *persist.Codec
	store  storage.Store
	lint   bool
	logger *zap.Logger

	mu     sync.RWMutex
	byPath map[string]entry
	seq    uint64
}

// Option configures a Library.
type Option func(*Library)

// WithStore mirrors every loaded plan into s and deletes removed ones.
func WithStore(s storage.Store) Option { return func(l *Library) { l.store = s } }

// WithLint rejects files that fail the plan document schema.
func WithLint(enabled bool) Option { return func(l *Library) { l.lint = enabled } }

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option { return func(l *Library) { l.logger = logger } }

// NewLibrary returns an empty Library decoding with codec.
//
// Precondition: codec must not be nil.
func NewLibrary(codec *persist.Codec, opts ...Option) *Library {
	if codec == nil {
		panic("planwatch.NewLibrary: codec must not be nil")
	}
	l := &Library{codec: codec, logger: zap.NewNop(), byPath: make(map[string]entry)}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Lookup returns the most recently loaded document for encounter.
func (l *Library) Lookup(encounter string) (*persist.Document, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var best entry
	for _, e := range l.byPath {
		if e.doc.Encounter == encounter && e.seq > best.seq {
			best = e
		}
	}
	return best.doc, best.doc != nil
}

// Documents returns every loaded document ordered by file path.
func (l *Library) Documents() []*persist.Document {
	l.mu.RLock()
	defer l.mu.RUnlock()
	paths := make([]string, 0, len(l.byPath))
	for p := range l.byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	docs := make([]*persist.Document, len(paths))
	for i, p := range paths {
		docs[i] = l.byPath[p].doc
	}
	return docs
}

// Len returns the number of loaded documents.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byPath)
}

// LoadFile reads, optionally lints, and decodes the plan at path, replacing any
// document previously loaded from it. Field errors do not prevent loading.
//
// Postcondition: on error the previous document for path, if any, is kept.
func (l *Library) LoadFile(ctx context.Context, path string) ([]*persist.FieldError, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("planwatch.LoadFile: %w", err)
	}
	if l.lint {
		if err := persist.Lint(data); err != nil {
			return nil, fmt.Errorf("planwatch.LoadFile %s: %w", path, err)
		}
	}
	doc, fieldErrs, err := l.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("planwatch.LoadFile %s: %w", path, err)
	}

	l.mu.Lock()
	prev, had := l.byPath[path]
	l.seq++
	l.byPath[path] = entry{doc: doc, seq: l.seq}
	l.mu.Unlock()

	if l.store != nil {
		if had && prev.doc.ID != doc.ID {
			l.dropStored(ctx, prev.doc.ID)
		}
		if err := l.sync(ctx, doc); err != nil {
			return fieldErrs, err
		}
	}
	l.logger.Info("plan loaded",
		zap.String("path", path),
		zap.String("plan", doc.Name),
		zap.String("encounter", doc.Encounter),
		zap.Int("field_errors", len(fieldErrs)),
	)
	return fieldErrs, nil
}

// LoadDir loads every *.json file in dir. A file that fails to load is logged and
// skipped.
//
// Postcondition: Returns the number of files loaded, or an error if dir cannot be read.
func (l *Library) LoadDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("planwatch.LoadDir: %w", err)
	}
	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !isPlanFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if _, err := l.LoadFile(ctx, path); err != nil {
			l.logger.Warn("plan rejected", zap.String("path", path), zap.Error(err))
			continue
		}
		loaded++
	}
	return loaded, nil
}

// Remove forgets the document loaded from path and deletes it from the store.
func (l *Library) Remove(ctx context.Context, path string) {
	l.mu.Lock()
	prev, had := l.byPath[path]
	delete(l.byPath, path)
	l.mu.Unlock()
	if !had {
		return
	}
	if l.store != nil {
		l.dropStored(ctx, prev.doc.ID)
	}
	l.logger.Info("plan removed", zap.String("path", path), zap.String("plan", prev.doc.Name))
}

func (l *Library) sync(ctx context.Context, doc *persist.Document) error {
	data, err := l.codec.Encode(doc)
	if err != nil {
		return fmt.Errorf("planwatch: encoding %q: %w", doc.Name, err)
	}
	_, err = l.store.Save(ctx, storage.Plan{
		ID:        doc.ID,
		Name:      doc.Name,
		Encounter: doc.Encounter,
		Document:  data,
	})
	if err != nil {
		return fmt.Errorf("planwatch: storing %q: %w", doc.Name, err)
	}
	return nil
}

func (l *Library) dropStored(ctx context.Context, id uuid.UUID) {
	if err := l.store.Delete(ctx, id); err != nil && !errors.Is(err, storage.ErrPlanNotFound) {
		l.logger.Warn("stored plan not deleted", zap.String("id", id.String()), zap.Error(err))
	}
}

func isPlanFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
