package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryBackend keeps definitions in process memory.
type MemoryBackend struct {
	mu       sync.RWMutex
	elements map[ElementType]map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{elements: make(map[ElementType]map[string][]byte)}
}

func (b *MemoryBackend) Get(_ context.Context, typ ElementType, name string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.elements[typ][name]
	if !ok {
		return nil, notFound(typ, name)
	}
	return data, nil
}

func (b *MemoryBackend) Put(_ context.Context, typ ElementType, name string, definition []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	byName, ok := b.elements[typ]
	if !ok {
		byName = make(map[string][]byte)
		b.elements[typ] = byName
	}
	byName[name] = append([]byte(nil), definition...)
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, typ ElementType, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.elements[typ][name]; !ok {
		return notFound(typ, name)
	}
	delete(b.elements[typ], name)
	return nil
}

func (b *MemoryBackend) Search(_ context.Context, typ ElementType, pattern string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var names []string
	for name := range b.elements[typ] {
		if matchGlob(pattern, name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// matchGlob matches name against pattern, where '*' matches any run of
// characters, including separators.
func matchGlob(pattern, name string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == name
	}
	if !strings.HasPrefix(name, parts[0]) {
		return false
	}
	name = name[len(parts[0]):]
	last := parts[len(parts)-1]
	for _, p := range parts[1 : len(parts)-1] {
		i := strings.Index(name, p)
		if i < 0 {
			return false
		}
		name = name[i+len(p):]
	}
	return strings.HasSuffix(name, last)
}
