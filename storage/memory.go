package storage

import (
	"context"
	"sync"

	"github.com/getkin/kin-openapi/openapi2"

	"github.com/siegeai/autodoc/apispec"
)

// Memory keeps documents in process, encoded the way Local stores them so
// callers never share structure with the stored value.
type Memory struct {
	mu sync.Mutex

	writer       sync.Mutex
	intermediate []byte
	published    []byte
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Lock(ctx context.Context) (func() error, error) {
	m.writer.Lock()
	return func() error {
		m.writer.Unlock()
		return nil
	}, nil
}

func (m *Memory) LoadIntermediate(ctx context.Context) (*openapi2.T, error) {
	m.mu.Lock()
	bs := m.intermediate
	m.mu.Unlock()
	if bs == nil {
		return nil, ErrNotFound
	}
	return apispec.Unmarshal(bs)
}

func (m *Memory) SaveIntermediate(ctx context.Context, doc *openapi2.T) error {
	bs, err := apispec.Marshal(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.intermediate = bs
	m.mu.Unlock()
	return nil
}

func (m *Memory) Finalize(ctx context.Context, doc *openapi2.T) error {
	bs, err := apispec.Marshal(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.published = bs
	m.intermediate = nil
	m.mu.Unlock()
	return nil
}

func (m *Memory) ReadPublished(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.published == nil {
		return nil, ErrNotFound
	}
	return m.published, nil
}
