// Package backend selects a camera.Manager implementation by name.
// Backend packages register themselves from init, so a binary only
// offers the backends it imports.
package backend

import (
	"sort"
	"strings"
	"sync"

	"github.com/tauraamui/camerastream/pkg/camera"
	"github.com/tauraamui/xerror"
)

// Factory builds a manager for one backend.
type Factory func() (camera.Manager, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
	// preference decides Default when more than one backend is linked in.
	preference = []string{"v4l2", "opencv", "mock"}
)

var ErrUnknownBackend = xerror.New("unknown camera backend")

// Register makes a backend available under name, registering the same
// name twice is a programming error.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	name = strings.ToLower(name)
	if f == nil {
		panic("backend: Register factory is nil for " + name)
	}
	if _, dup := factories[name]; dup {
		panic("backend: Register called twice for " + name)
	}
	factories[name] = f
}

// Names lists registered backends alphabetically.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func Registered(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := factories[strings.ToLower(name)]
	return ok
}

// Default names the preferred registered backend.
func Default() string {
	mu.RLock()
	defer mu.RUnlock()
	for _, n := range preference {
		if _, ok := factories[n]; ok {
			return n
		}
	}
	for n := range factories {
		return n
	}
	return ""
}

// Resolve builds the named backend, an empty name picks Default.
func Resolve(name string) (camera.Manager, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if len(name) == 0 {
		name = Default()
	}

	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, xerror.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return f()
}
