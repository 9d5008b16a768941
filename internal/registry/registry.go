// Package registry records which catalog entries are installed locally.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/potooio/curator/internal/types"
)

// Registry is the installed-entries lookup used by the index builder and
// updated by the installer.
type Registry interface {
	GetInstalledEntry(entryID int64) (*types.InstalledEntry, bool)
	Record(entry types.InstalledEntry) error
}

// Memory is a concurrent-safe in-memory Registry.
type Memory struct {
	mu      sync.RWMutex
	entries map[int64]types.InstalledEntry
}

// NewMemory returns a Memory registry seeded with entries.
func NewMemory(entries ...types.InstalledEntry) *Memory {
	m := &Memory{entries: make(map[int64]types.InstalledEntry, len(entries))}
	for _, e := range entries {
		m.entries[e.EntryID] = e
	}
	return m
}

// GetInstalledEntry implements Registry. The returned value is a copy.
func (m *Memory) GetInstalledEntry(entryID int64) (*types.InstalledEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[entryID]
	if !ok {
		return nil, false
	}
	return &e, true
}

// Record implements Registry. A newer record replaces an older one.
func (m *Memory) Record(entry types.InstalledEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.EntryID] = entry
	return nil
}

// All returns every record sorted by entry id.
func (m *Memory) All() []types.InstalledEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.InstalledEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryID < out[j].EntryID })
	return out
}

// File is a Registry backed by a JSON file. Reads are served from memory;
// every Record rewrites the file atomically.
type File struct {
	*Memory
	path    string
	logger  *zap.Logger
	writeMu sync.Mutex
}

type fileDocument struct {
	Entries []types.InstalledEntry `json:"entries"`
}

// OpenFile loads the registry at path. A missing file is an empty registry.
func OpenFile(path string, logger *zap.Logger) (*File, error) {
	f := &File{
		Memory: NewMemory(),
		path:   path,
		logger: logger.Named("registry"),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	for _, e := range doc.Entries {
		f.entries[e.EntryID] = e
	}
	f.logger.Info("Loaded installed entries", zap.String("path", path), zap.Int("count", len(doc.Entries)))
	return f, nil
}

// Record implements Registry and persists the registry.
func (f *File) Record(entry types.InstalledEntry) error {
	if err := f.Memory.Record(entry); err != nil {
		return err
	}
	return f.flush()
}

func (f *File) flush() error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	data, err := json.MarshalIndent(fileDocument{Entries: f.All()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".registry-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write registry: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename registry: %w", err)
	}
	return nil
}
