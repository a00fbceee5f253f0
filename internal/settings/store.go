package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// ChangeFunc receives the previous and the new record.
type ChangeFunc func(old, updated Record)

// Source is where the engine reads settings from.
type Source interface {
	// Load returns the current record. A store that holds nothing yet
	// returns the empty record.
	Load(ctx context.Context) (Record, error)

	// Subscribe registers fn for later changes. The returned function
	// cancels the subscription.
	Subscribe(fn ChangeFunc) (cancel func())
}

type subscribers struct {
	mu   sync.Mutex
	next int
	fns  map[int]ChangeFunc
}

func (s *subscribers) add(fn ChangeFunc) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fns == nil {
		s.fns = make(map[int]ChangeFunc)
	}

	id := s.next
	s.next++
	s.fns[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.fns, id)
	}
}

func (s *subscribers) notify(old, updated Record) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.fns))
	for id := range s.fns {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	slices.Sort(ids)

	for _, id := range ids {
		s.mu.Lock()
		fn, ok := s.fns[id]
		s.mu.Unlock()

		if ok {
			fn(old, updated)
		}
	}
}

// FileStore keeps the record in a YAML or JSON file.
type FileStore struct {
	path string
	subs subscribers

	mu   sync.Mutex
	last Record
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// Load reads the file. A missing file yields the empty record.
func (s *FileStore) Load(_ context.Context) (Record, error) {
	rec, err := s.read()
	if err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	s.last = rec
	s.mu.Unlock()

	return rec, nil
}

// Subscribe registers fn for changes made through Save or picked up by
// Reload.
func (s *FileStore) Subscribe(fn ChangeFunc) func() {
	return s.subs.add(fn)
}

// Save normalises, validates and writes rec, then notifies subscribers.
func (s *FileStore) Save(_ context.Context, rec Record) error {
	rec = rec.Normalize()
	if err := rec.Validate(); err != nil {
		return err
	}

	data, err := Marshal(rec)
	if err != nil {
		return err
	}

	if err := writeFile(s.path, data); err != nil {
		return err
	}

	s.swap(rec)

	return nil
}

// Reload re-reads the file and notifies subscribers when the record changed.
// A file that no longer parses counts as the empty record, so filtering is
// disabled rather than left on stale rules; the parse error is returned.
func (s *FileStore) Reload(_ context.Context) error {
	rec, err := s.read()
	if err != nil {
		s.swap(Record{})
		return err
	}

	s.swap(rec)

	return nil
}

func (s *FileStore) swap(rec Record) {
	s.mu.Lock()
	old := s.last
	s.last = rec
	s.mu.Unlock()

	if !old.Equal(rec) {
		s.subs.notify(old, rec)
	}
}

func (s *FileStore) read() (Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, nil
	}

	if err != nil {
		return Record{}, fmt.Errorf("reading settings: %w", err)
	}

	rec, err := Parse(data)
	if err != nil {
		return Record{}, fmt.Errorf("settings %s: %w", s.path, err)
	}

	return rec, nil
}

// writeFile replaces path atomically so watchers never see a partial file.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*")
	if err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return fmt.Errorf("writing settings: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing settings: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing settings: %w", err)
	}

	return nil
}

// Memory is an in-process Source.
type Memory struct {
	subs subscribers

	mu  sync.Mutex
	rec Record
	err error
}

// NewMemory returns a store holding rec.
func NewMemory(rec Record) *Memory {
	return &Memory{rec: rec}
}

// Load returns the held record, or the error set with FailLoads.
func (m *Memory) Load(_ context.Context) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return Record{}, m.err
	}

	return m.rec, nil
}

// Subscribe registers fn for Set calls.
func (m *Memory) Subscribe(fn ChangeFunc) func() {
	return m.subs.add(fn)
}

// Set replaces the record and notifies subscribers when it changed.
func (m *Memory) Set(rec Record) {
	m.mu.Lock()
	old := m.rec
	m.rec = rec
	m.mu.Unlock()

	if !old.Equal(rec) {
		m.subs.notify(old, rec)
	}
}

// FailLoads makes Load return err until it is called again with nil.
func (m *Memory) FailLoads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.err = err
}
