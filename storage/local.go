package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/siegeai/autodoc/apispec"
)

const (
	DefaultIntermediateFile = "temp_documentation.json"
	DefaultPublishedFile    = "documentation.json"

	lockRetryDelay = 25 * time.Millisecond
)

// Local keeps both documents as JSON files. The intermediate file is guarded
// by an OS file lock next to it, so test processes sharing a directory take
// turns.
type Local struct {
	Intermediate string
	Published    string

	mu   sync.Mutex
	lock *flock.Flock
}

// NewLocal reads the options "dir", "intermediate" and "published".
func NewLocal(opts Options) (*Local, error) {
	dir := opts.Get("dir", ".")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	l := &Local{
		Intermediate: filepath.Join(dir, opts.Get("intermediate", DefaultIntermediateFile)),
		Published:    filepath.Join(dir, opts.Get("published", DefaultPublishedFile)),
	}
	l.lock = flock.New(l.Intermediate + ".lock")
	return l, nil
}

// Lock takes the in-process mutex first; the file lock alone does not
// exclude goroutines sharing one Local.
func (l *Local) Lock(ctx context.Context) (func() error, error) {
	l.mu.Lock()
	ok, err := l.lock.TryLockContext(ctx, lockRetryDelay)
	if err == nil && !ok {
		err = errors.New("not acquired")
	}
	if err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("lock %s: %w", l.lock.Path(), err)
	}
	return func() error {
		defer l.mu.Unlock()
		return l.lock.Unlock()
	}, nil
}

func (l *Local) LoadIntermediate(ctx context.Context) (*openapi2.T, error) {
	bs, err := readFile(l.Intermediate)
	if err != nil {
		return nil, err
	}
	return apispec.Unmarshal(bs)
}

func (l *Local) SaveIntermediate(ctx context.Context, doc *openapi2.T) error {
	bs, err := apispec.Marshal(doc)
	if err != nil {
		return err
	}
	return writeFile(l.Intermediate, bs)
}

// Finalize writes the published file and drops the intermediate one, so the
// next session starts from a fresh document.
func (l *Local) Finalize(ctx context.Context, doc *openapi2.T) error {
	bs, err := apispec.Marshal(doc)
	if err != nil {
		return err
	}
	if err := writeFile(l.Published, bs); err != nil {
		return err
	}
	if err := os.Remove(l.Intermediate); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not remove intermediate document", "path", l.Intermediate, "err", err)
	}
	return nil
}

func (l *Local) ReadPublished(ctx context.Context) ([]byte, error) {
	return readFile(l.Published)
}

func readFile(path string) ([]byte, error) {
	bs, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	if len(bs) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrNotFound, path)
	}
	return bs, nil
}

// writeFile replaces path atomically so readers never see half a document.
func writeFile(path string, bs []byte) error {
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	if err := os.WriteFile(tmp, bs, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
