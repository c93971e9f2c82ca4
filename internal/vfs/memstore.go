package vfs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Storage used by the sandbox platform and by
// tests. A single mutex guards the whole tree; the workloads here are small.
type MemStore struct {
	mu   sync.Mutex
	root *memDir
}

// NewMemStore returns an empty store with a root directory.
func NewMemStore() *MemStore {
	return &MemStore{
		root: &memDir{
			name:    "/",
			files:   map[string]*memFile{},
			dirs:    map[string]*memDir{},
			modTime: time.Now(),
		},
	}
}

func (s *MemStore) Root(ctx context.Context) (DirHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memDirHandle{store: s, dir: s.root}, nil
}

type memDir struct {
	name    string
	files   map[string]*memFile
	dirs    map[string]*memDir
	modTime time.Time
}

type memFile struct {
	name    string
	data    []byte
	modTime time.Time
}

type memDirHandle struct {
	store *MemStore
	dir   *memDir
}

func (h *memDirHandle) Name() string { return h.dir.name }

func (h *memDirHandle) Entries(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	entries := make([]Entry, 0, len(h.dir.files)+len(h.dir.dirs))
	for name := range h.dir.files {
		entries = append(entries, Entry{Name: name})
	}
	for name := range h.dir.dirs {
		entries = append(entries, Entry{Name: name, IsDir: true})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (h *memDirHandle) GetFile(ctx context.Context, name string, create bool) (FileHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	if _, ok := h.dir.dirs[name]; ok {
		return nil, notAFile(name)
	}
	f, ok := h.dir.files[name]
	if !ok {
		if !create {
			return nil, notFound(name)
		}
		f = &memFile{name: name, modTime: time.Now()}
		h.dir.files[name] = f
	}
	return &memFileHandle{store: h.store, file: f}, nil
}

func (h *memDirHandle) GetDirectory(ctx context.Context, name string, create bool) (DirHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	if _, ok := h.dir.files[name]; ok {
		return nil, notADirectory(name)
	}
	d, ok := h.dir.dirs[name]
	if !ok {
		if !create {
			return nil, notFound(name)
		}
		d = &memDir{
			name:    name,
			files:   map[string]*memFile{},
			dirs:    map[string]*memDir{},
			modTime: time.Now(),
		}
		h.dir.dirs[name] = d
	}
	return &memDirHandle{store: h.store, dir: d}, nil
}

func (h *memDirHandle) Remove(ctx context.Context, name string, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	if _, ok := h.dir.files[name]; ok {
		delete(h.dir.files, name)
		return nil
	}
	d, ok := h.dir.dirs[name]
	if !ok {
		return notFound(name)
	}
	if !recursive && (len(d.files) > 0 || len(d.dirs) > 0) {
		return invalidArgument("directory not empty: " + name)
	}
	delete(h.dir.dirs, name)
	return nil
}

type memFileHandle struct {
	store *MemStore
	file  *memFile
}

func (h *memFileHandle) Name() string { return h.file.name }

func (h *memFileHandle) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	out := make([]byte, len(h.file.data))
	copy(out, h.file.data)
	return out, nil
}

func (h *memFileHandle) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	h.file.data = make([]byte, len(data))
	copy(h.file.data, data)
	h.file.modTime = time.Now()
	return nil
}

func (h *memFileHandle) Stat(ctx context.Context) (FileStat, error) {
	if err := ctx.Err(); err != nil {
		return FileStat{}, err
	}
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	return statFor(false, int64(len(h.file.data)), h.file.modTime), nil
}
