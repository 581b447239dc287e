package store

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"semem/internal/xerrors"
	"semem/ragno"
)

// FileStore is the file-backed snapshot variant : an
// InMemoryStore that persists to a JSON snapshot on every successful
// write. It trades write latency for simplicity, appropriate for the
// small/medium corpora this variant targets.
type FileStore struct {
	mem  *InMemoryStore
	path string
	mu   sync.Mutex
}

type fileSnapshot struct {
	Graphs map[string][]ragno.Triple `json:"graphs"`
}

// OpenFileStore loads an existing snapshot at path, or starts empty if the
// file does not exist.
func OpenFileStore(path string) (*FileStore, error) {
	fs := &FileStore{mem: NewInMemoryStore(), path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, xerrors.NewStorage("read snapshot", err)
	}
	var snap fileSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, xerrors.NewStorage("decode snapshot", err)
	}
	fs.mem.graphs = snap.Graphs
	if fs.mem.graphs == nil {
		fs.mem.graphs = make(map[string][]ragno.Triple)
	}
	return fs, nil
}

func (f *FileStore) persist() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mem.mu.RLock()
	snap := fileSnapshot{Graphs: f.mem.graphs}
	data, err := json.MarshalIndent(snap, "", "  ")
	f.mem.mu.RUnlock()
	if err != nil {
		return xerrors.NewStorage("encode snapshot", err)
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return xerrors.NewStorage("write snapshot", err)
	}
	return nil
}

func (f *FileStore) Insert(ctx context.Context, graph string, triples []ragno.Triple) error {
	if err := f.mem.Insert(ctx, graph, triples); err != nil {
		return err
	}
	return f.persist()
}

func (f *FileStore) Delete(ctx context.Context, graph string, pattern Pattern) error {
	if err := f.mem.Delete(ctx, graph, pattern); err != nil {
		return err
	}
	return f.persist()
}

func (f *FileStore) Replace(ctx context.Context, graph, subject string, triples []ragno.Triple) error {
	if err := f.mem.Replace(ctx, graph, subject, triples); err != nil {
		return err
	}
	return f.persist()
}

func (f *FileStore) Query(ctx context.Context, graph string, pattern Pattern) ([]Binding, error) {
	return f.mem.Query(ctx, graph, pattern)
}

func (f *FileStore) Clear(ctx context.Context, graph string) error {
	if err := f.mem.Clear(ctx, graph); err != nil {
		return err
	}
	return f.persist()
}

func (f *FileStore) Stats(ctx context.Context, graph string) (Stats, error) {
	return f.mem.Stats(ctx, graph)
}
