package descriptor

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var ErrUnknownRequest = errors.New("unknown request")

type Request struct {
	Name        string            `yaml:"name"`
	Routes      []string          `yaml:"routes"`
	Fields      []Field           `yaml:"fields"`
	Annotations map[string]string `yaml:"annotations"`
}

// Registry is a static Source populated by registration or loaded from a
// YAML file.
type Registry struct {
	mu       sync.RWMutex
	routes   map[string]string
	requests map[string]*Request
}

func NewRegistry() *Registry {
	return &Registry{
		routes:   make(map[string]string),
		requests: make(map[string]*Request),
	}
}

func routeKey(method, template string) string {
	return strings.ToUpper(method) + " " + template
}

// Register adds req and binds it to each of its routes, given as
// "METHOD /template".
func (r *Registry) Register(req Request) error {
	if req.Name == "" {
		return fmt.Errorf("%w: empty name", ErrUnknownRequest)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rt := range req.Routes {
		fields := strings.Fields(rt)
		if len(fields) != 2 {
			return fmt.Errorf("request %s: bad route %q", req.Name, rt)
		}
		r.routes[routeKey(fields[0], fields[1])] = req.Name
	}
	cp := req
	r.requests[req.Name] = &cp
	return nil
}

// Bind maps a route to an already registered request.
func (r *Registry) Bind(method, template, request string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[request]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, request)
	}
	r.routes[routeKey(method, template)] = request
	return nil
}

func (r *Registry) Resolve(method, template string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.routes[routeKey(method, template)]
	return name, ok
}

func (r *Registry) RulesFor(request string) []Field {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[request]
	if !ok {
		return nil
	}
	return req.Fields
}

func (r *Registry) Lookup(request, key, fallback string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[request]
	if !ok {
		return fallback
	}
	if v, ok := req.Annotations[key]; ok {
		return v
	}
	return fallback
}

type file struct {
	Requests []Request `yaml:"requests"`
}

// Load reads request descriptors from a YAML file.
func Load(path string) (*Registry, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(bs)
}

// Parse reads request descriptors from YAML.
func Parse(bs []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(bs, &f); err != nil {
		return nil, fmt.Errorf("parse descriptors: %w", err)
	}
	reg := NewRegistry()
	for _, req := range f.Requests {
		if err := reg.Register(req); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
