// Package storage persists the documents captures accumulate into.
//
// A capture reads the intermediate document, changes it and writes it back.
// Backends that can be shared between processes implement Locker so that
// only one capture at a time runs that cycle.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/getkin/kin-openapi/openapi2"
)

var (
	ErrNotFound       = errors.New("document not found")
	ErrUnknownBackend = errors.New("unknown storage backend")
)

type Backend interface {
	// LoadIntermediate returns ErrNotFound when no session document exists.
	LoadIntermediate(ctx context.Context) (*openapi2.T, error)
	SaveIntermediate(ctx context.Context, doc *openapi2.T) error
	// Finalize publishes doc permanently.
	Finalize(ctx context.Context, doc *openapi2.T) error
	// ReadPublished returns ErrNotFound when nothing was published yet.
	ReadPublished(ctx context.Context) ([]byte, error)
}

// Locker is implemented by backends that serialize writers. The returned
// function releases the lock.
type Locker interface {
	Lock(ctx context.Context) (unlock func() error, err error)
}

// Options are backend specific settings, e.g. "dir" for the local backend.
type Options map[string]string

func (o Options) Get(key, fallback string) string {
	if v, ok := o[key]; ok && v != "" {
		return v
	}
	return fallback
}

type Factory func(opts Options) (Backend, error)

const DefaultBackend = "local"

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under name. It panics when name is
// taken.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := factories[name]; ok {
		panic(fmt.Sprintf("storage: backend %q registered twice", name))
	}
	factories[name] = f
}

// Open creates the backend registered under name, the local one when name is
// empty.
func Open(name string, opts Options) (Backend, error) {
	if name == "" {
		name = DefaultBackend
	}
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return f(opts)
}

func Backends() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("local", func(opts Options) (Backend, error) { return NewLocal(opts) })
	Register("memory", func(opts Options) (Backend, error) { return NewMemory(), nil })
	Register("remote", func(opts Options) (Backend, error) { return NewRemote(opts) })
}
