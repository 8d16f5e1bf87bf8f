// Package localfile implements the single-file session backend used by
// long-lived servers.
//
// The whole store is one JSON document {"sessions": {id: session}}. Every
// operation loads it, mutates the in-memory mapping and rewrites it through a
// temporary file and rename, so readers never observe a half-written file.
// Operations are serialized by an in-process mutex; sharing one file between
// processes is not supported.
package localfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/Quisharoo/manager-feedback-questions-sub000/session"
)

// DefaultPath is used when no path is configured.
const DefaultPath = "data/sessions.json"

type document struct {
	Sessions map[string]json.RawMessage `json:"sessions"`
}

// Backend is a file-backed [session.Backend].
type Backend struct {
	path string
	mu   sync.Mutex
}

var _ session.Backend = (*Backend)(nil)

// New returns a Backend rooted at path. The file and its directory are created
// on first write.
func New(path string) *Backend {
	if path == "" {
		path = DefaultPath
	}
	return &Backend{path: path}
}

// Path returns the backing file path.
func (b *Backend) Path() string {
	return b.path
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", session.ErrStorageUnavailable, err)
}

func (b *Backend) load() (*document, error) {
	doc := &document{Sessions: map[string]json.RawMessage{}}
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, nil
		}
		return nil, unavailable(err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", session.ErrCorrupt, b.path, err)
	}
	if doc.Sessions == nil {
		doc.Sessions = map[string]json.RawMessage{}
	}
	return doc, nil
}

func (b *Backend) store(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return unavailable(err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return unavailable(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return unavailable(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return unavailable(err)
	}
	if err := tmp.Close(); err != nil {
		return unavailable(err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		return unavailable(err)
	}
	return nil
}

// decodeEntry decodes one mapping value. Older files keyed records by id
// without repeating it inside the record.
func decodeEntry(id string, raw json.RawMessage) (*session.Session, error) {
	var s session.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: session %s: %v", session.ErrCorrupt, id, err)
	}
	if s.ID == "" {
		s.ID = id
	}
	if err := session.Migrate(&s); err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	return &s, nil
}

// Fetch loads the document and returns one record.
func (b *Backend) Fetch(_ context.Context, id string) (*session.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.load()
	if err != nil {
		return nil, err
	}
	raw, ok := doc.Sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return decodeEntry(id, raw)
}

// Insert adds a record that must not already exist.
func (b *Backend) Insert(_ context.Context, s *session.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Sessions[s.ID]; ok {
		return session.ErrExists
	}
	return b.put(doc, s)
}

// Write overwrites the record unconditionally.
func (b *Backend) Write(_ context.Context, s *session.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.load()
	if err != nil {
		return err
	}
	return b.put(doc, s)
}

// CompareAndSwap writes s only if the stored version equals expected. The
// check and the rewrite happen under the same lock.
func (b *Backend) CompareAndSwap(_ context.Context, s *session.Session, expected int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.load()
	if err != nil {
		return err
	}
	raw, ok := doc.Sessions[s.ID]
	if !ok {
		return session.ErrNotFound
	}
	current, err := decodeEntry(s.ID, raw)
	if err != nil {
		return err
	}
	if current.Version != expected {
		return session.ErrVersionConflict
	}
	return b.put(doc, s)
}

func (b *Backend) put(doc *document, s *session.Session) error {
	data, err := session.Encode(s)
	if err != nil {
		return err
	}
	doc.Sessions[s.ID] = data
	return b.store(doc)
}

// Delete removes a record. Missing ids are ignored and do not rewrite the file.
func (b *Backend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Sessions[id]; !ok {
		return nil
	}
	delete(doc.Sessions, id)
	return b.store(doc)
}

// List returns every record in the document.
func (b *Backend) List(_ context.Context) ([]*session.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.load()
	if err != nil {
		return nil, err
	}
	out := make([]*session.Session, 0, len(doc.Sessions))
	for id, raw := range doc.Sessions {
		s, err := decodeEntry(id, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Ping verifies the file can be read and parsed.
func (b *Backend) Ping(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := b.load()
	return err
}
