package tracks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/banshee-data/tidy.report/internal/fsutil"
)

// Store persists tracker state as a whole snapshot. Save must be atomic:
// a Load after a successful Save returns exactly the saved state.
type Store interface {
	// Load returns the persisted state, or an empty snapshot if none exists.
	Load(ctx context.Context) (*Snapshot, error)

	// Save replaces the persisted state.
	Save(ctx context.Context, snap *Snapshot) error
}

// MemoryStore keeps state in process memory. Useful for tests and for
// callers that do not need tracks to survive a restart.
type MemoryStore struct {
	mu    sync.Mutex
	snap  *Snapshot
	saves int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snap: NewSnapshot()}
}

// Load returns a copy of the stored snapshot.
func (m *MemoryStore) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.Clone(), nil
}

// Save stores a copy of snap.
func (m *MemoryStore) Save(ctx context.Context, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap.Clone()
	m.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// FileStore keeps state in a single JSON document, rewritten atomically on
// every Save.
type FileStore struct {
	fs   fsutil.FileSystem
	path string
}

// NewFileStore creates a FileStore at path. A nil fsys uses the OS.
func NewFileStore(fsys fsutil.FileSystem, path string) *FileStore {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &FileStore{fs: fsys, path: path}
}

// Load reads and decodes the state file. A missing file yields an empty
// snapshot.
func (f *FileStore) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := f.fs.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read track state %s: %w", f.path, err)
	}

	snap := NewSnapshot()
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("parse track state %s: %w", f.path, err)
	}
	if snap.Tracks == nil {
		snap.Tracks = make(map[int64]*Track)
	}
	for id, tr := range snap.Tracks {
		if tr == nil || len(tr.History) == 0 {
			return nil, fmt.Errorf("parse track state %s: track %d has no history", f.path, id)
		}
		tr.ID = id
	}
	return snap, nil
}

// Save encodes snap and atomically replaces the state file.
func (f *FileStore) Save(ctx context.Context, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode track state: %w", err)
	}
	return fsutil.WriteFileAtomic(f.fs, f.path, data, 0o644)
}
