package hook

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ManifestFile is the file name looked for in every hook directory.
const ManifestFile = "hook.json"

// ErrHookNotFound is returned when a requested hook cannot be found.
var ErrHookNotFound = errors.New("hook not found")

// Manager keeps the hooks found under one directory.
type Manager struct {
	dir   string
	hooks map[string]*Hook
	mu    sync.RWMutex
}

// NewManager creates a Manager for dir. Nothing is read until Discover.
func NewManager(dir string) *Manager {
	return &Manager{
		dir:   dir,
		hooks: make(map[string]*Hook),
	}
}

// Discover rescans the directory. Each subdirectory holding a readable
// hook.json with a name and an executable becomes a hook; anything else is
// skipped. A missing directory yields no hooks.
func (m *Manager) Discover() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hooks = make(map[string]*Hook)

	info, err := os.Stat(m.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		hookPath := filepath.Join(m.dir, entry.Name())
		data, err := os.ReadFile(filepath.Join(hookPath, ManifestFile))
		if err != nil {
			continue
		}

		var manifest Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			log.Printf("hook %s: invalid %s: %v", entry.Name(), ManifestFile, err)
			continue
		}
		if manifest.Name == "" || manifest.Executable == "" {
			log.Printf("hook %s: %s needs a name and an executable", entry.Name(), ManifestFile)
			continue
		}

		m.hooks[manifest.Name] = &Hook{
			Manifest:   manifest,
			Path:       hookPath,
			Executable: filepath.Join(hookPath, manifest.Executable),
		}
	}

	return nil
}

// Get returns a hook by name.
func (m *Manager) Get(name string) (*Hook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.hooks[name]
	if !ok {
		return nil, ErrHookNotFound
	}
	return h, nil
}

// List returns the discovered hooks sorted by name.
func (m *Manager) List() []*Hook {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hooks := make([]*Hook, 0, len(m.hooks))
	for _, h := range m.hooks {
		hooks = append(hooks, h)
	}
	sort.Slice(hooks, func(i, j int) bool {
		return hooks[i].Manifest.Name < hooks[j].Manifest.Name
	})
	return hooks
}

// Dir returns the hook directory path.
func (m *Manager) Dir() string {
	return m.dir
}
