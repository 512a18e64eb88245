package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dgallion1/sentree/internal/syntree"
)

var (
	ErrReadFailed  = errors.New("cache read failed")
	ErrWriteFailed = errors.New("cache write failed")
)

// Flavor distinguishes whole-sentence entries from single-node expansions.
type Flavor int

const (
	Sentence Flavor = iota
	Component
)

func (f Flavor) String() string {
	if f == Component {
		return "component"
	}
	return "sentence"
}

const (
	sentenceFile  = "sentence.json"
	metadataFile  = "metadata.json"
	componentsDir = "components"
)

// Key returns the content address of text: hex SHA-256 of its UTF-8 bytes.
// The grammatical role of the text plays no part in the key.
func Key(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// Metadata is written alongside every sentence entry.
type Metadata struct {
	Sentence   string          `json:"sentence"`
	AnalyzedAt time.Time       `json:"analyzed_at"`
	Components []ComponentMeta `json:"components"`
}

// ComponentMeta describes one top-level constituent of a cached sentence.
type ComponentMeta struct {
	Text       string    `json:"text"`
	Type       string    `json:"type"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// FileStore keeps entries on disk as
//
//	<dir>/<key>/sentence.json
//	<dir>/<key>/metadata.json
//	<dir>/<key>/components/<key>.json
//
// Entries are written once and never modified.
type FileStore struct {
	mu  sync.RWMutex
	dir string
	now func() time.Time
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

func (s *FileStore) entryPath(key string, flavor Flavor) string {
	if flavor == Component {
		return filepath.Join(s.dir, key, componentsDir, key+".json")
	}
	return filepath.Join(s.dir, key, sentenceFile)
}

// Get returns the cached nodes for key. A missing entry is (nil, false, nil).
func (s *FileStore) Get(key string, flavor Flavor) ([]syntree.Node, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.entryPath(key, flavor))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s %s: %v", ErrReadFailed, flavor, key, err)
	}
	var nodes []syntree.Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, false, fmt.Errorf("%w: %s %s: %v", ErrReadFailed, flavor, key, err)
	}
	return nodes, true, nil
}

// Put stores nodes under key. text is the analyzed text and is recorded in
// the metadata of sentence entries. An existing entry is left untouched.
func (s *FileStore) Put(key string, flavor Flavor, text string, nodes []syntree.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.entryPath(key, flavor)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := writeJSON(path, nodes); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrWriteFailed, flavor, key, err)
	}
	if flavor != Sentence {
		return nil
	}

	now := s.now().UTC()
	meta := Metadata{
		Sentence:   text,
		AnalyzedAt: now,
		Components: make([]ComponentMeta, 0, len(nodes)),
	}
	for _, n := range nodes {
		meta.Components = append(meta.Components, ComponentMeta{
			Text:       n.Text,
			Type:       n.ConstituentType,
			AnalyzedAt: now,
		})
	}
	if err := writeJSON(filepath.Join(s.dir, key, metadataFile), meta); err != nil {
		return fmt.Errorf("%w: metadata %s: %v", ErrWriteFailed, key, err)
	}
	return nil
}

// Clear removes every entry of both flavors.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("%w: list %s: %v", ErrWriteFailed, s.dir, err)
	}
	var errs []error
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: clear: %v", ErrWriteFailed, errors.Join(errs...))
	}
	return nil
}

// List returns the metadata of every sentence entry, newest first.
// Unreadable records are skipped.
func (s *FileStore) List() ([]Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", ErrReadFailed, s.dir, err)
	}
	out := make([]Metadata, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name(), metadataFile))
		if err != nil {
			continue
		}
		var meta Metadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AnalyzedAt.After(out[j].AnalyzedAt) })
	return out, nil
}

// writeJSON writes v to path through a temporary file so readers never see
// a partial entry.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Nop is a cache that stores nothing.
type Nop struct{}

func (Nop) Get(string, Flavor) ([]syntree.Node, bool, error) { return nil, false, nil }
func (Nop) Put(string, Flavor, string, []syntree.Node) error { return nil }
func (Nop) Clear() error { return nil }
func (Nop) List() ([]Metadata, error) { return []Metadata{}, nil }
