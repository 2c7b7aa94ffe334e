package inference

import (
	"fmt"
	"sync"

	"github.com/stashapp/stash/pkg/plugin/common/log"
)

// Registry loads each model once and shares the resulting Engine across requests.
// A failed load is remembered and returned for every later lookup of that model.
type Registry struct {
	loader  Loader
	entries map[string]*registryEntry
	mu      sync.RWMutex
}

type registryEntry struct {
	once   sync.Once
	engine Engine
	err    error
}

// NewRegistry creates a new model registry backed by loader
func NewRegistry(loader Loader) *Registry {
	return &Registry{
		loader:  loader,
		entries: make(map[string]*registryEntry),
	}
}

// Get returns the engine for modelPath, loading it on first use
func (r *Registry) Get(modelPath string) (Engine, error) {
	entry := r.entry(modelPath)

	entry.once.Do(func() {
		engine, err := r.loader(modelPath)
		if err != nil {
			entry.err = fmt.Errorf("%w: %s: %v", ErrModelLoad, modelPath, err)
			log.Errorf("Failed to load model %s: %v", modelPath, err)
			return
		}
		if engine == nil {
			entry.err = fmt.Errorf("%w: %s: loader returned no engine", ErrModelLoad, modelPath)
			log.Errorf("Failed to load model %s: loader returned no engine", modelPath)
			return
		}
		log.Infof("Loaded model %s", modelPath)
		entry.engine = engine
	})

	return entry.engine, entry.err
}

// entry retrieves or creates the registry slot for a model path
func (r *Registry) entry(modelPath string) *registryEntry {
	r.mu.RLock()
	entry, ok := r.entries[modelPath]
	r.mu.RUnlock()
	if ok {
		return entry
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok = r.entries[modelPath]; ok {
		return entry
	}
	entry = &registryEntry{}
	r.entries[modelPath] = entry
	return entry
}

// Close releases every loaded engine
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for path, entry := range r.entries {
		if entry.engine != nil {
			entry.engine.Close()
		}
		delete(r.entries, path)
	}
}
