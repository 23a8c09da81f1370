// Package collector folds observed request/response pairs into the
// intermediate document kept by a storage backend.
//
// Every capture reads the document, changes a private copy of one operation
// and writes the whole document back. Nothing is kept in memory between
// captures, so several collectors may share one backend.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/siegeai/autodoc/apispec"
	"github.com/siegeai/autodoc/config"
	"github.com/siegeai/autodoc/descriptor"
	"github.com/siegeai/autodoc/infer"
	"github.com/siegeai/autodoc/merge"
	"github.com/siegeai/autodoc/metric"
	"github.com/siegeai/autodoc/route"
	"github.com/siegeai/autodoc/security"
	"github.com/siegeai/autodoc/storage"
)

var ErrUnsupportedMethod = apispec.ErrUnsupportedMethod

type Collector struct {
	backend storage.Backend
	scheme  *security.Scheme
	seed    apispec.Seed

	basePath string
	codes    map[int]string

	descriptors descriptor.Source
	metrics     *metric.Metrics
	logger      *slog.Logger
}

type Option func(*Collector)

func WithDescriptors(src descriptor.Source) Option {
	return func(c *Collector) {
		c.descriptors = src
	}
}

func WithMetrics(m *metric.Metrics) Option {
	return func(c *Collector) {
		c.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) {
		c.logger = l
	}
}

// New validates cfg and returns a collector writing to backend. An
// unsupported security scheme fails here, before anything is captured.
func New(cfg *config.Config, backend storage.Backend, opts ...Option) (*Collector, error) {
	if backend == nil {
		return nil, errors.New("collector: nil storage backend")
	}
	scheme, err := cfg.Scheme()
	if err != nil {
		return nil, err
	}
	seed, err := cfg.Seed()
	if err != nil {
		return nil, err
	}
	// fail on a broken description template now rather than on first capture
	if _, err := apispec.New(seed); err != nil {
		return nil, err
	}

	c := &Collector{
		backend:  backend,
		scheme:   scheme,
		seed:     seed,
		basePath: cfg.BasePath,
		codes:    cfg.CodeDescriptions,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Collector) lock(ctx context.Context) (func(), error) {
	l, ok := c.backend.(storage.Locker)
	if !ok {
		return func() {}, nil
	}
	unlock, err := l.Lock(ctx)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := unlock(); err != nil {
			c.logger.Warn("could not release storage lock", "err", err)
		}
	}, nil
}

// load returns the intermediate document, seeding and saving a new one
// when the backend has none.
func (c *Collector) load(ctx context.Context) (*openapi2.T, error) {
	doc, err := c.backend.LoadIntermediate(ctx)
	if err == nil {
		apispec.Normalize(doc)
		return doc, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load intermediate document: %w", err)
	}

	doc, err = apispec.New(c.seed)
	if err != nil {
		return nil, err
	}
	if err := c.backend.SaveIntermediate(ctx, doc); err != nil {
		return nil, fmt.Errorf("save intermediate document: %w", err)
	}
	c.logger.Debug("seeded intermediate document", "title", doc.Info.Title)
	return doc, nil
}

// Document returns the intermediate document, seeding it if needed.
func (c *Collector) Document(ctx context.Context) (*openapi2.T, error) {
	unlock, err := c.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return c.load(ctx)
}

// Capture folds obs into the intermediate document. A failing capture leaves
// the stored document as it was.
func (c *Collector) Capture(ctx context.Context, obs *Observation) (err error) {
	start := time.Now()
	method := strings.ToUpper(obs.Request.Method)
	defer func() {
		c.metrics.ObserveCapture(method, start, err)
	}()

	if !apispec.SupportedMethod(method) {
		return fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}

	unlock, err := c.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := c.load(ctx)
	if err != nil {
		return err
	}

	path := route.Resolve(c.basePath, obs.Template)
	op, ok, err := apispec.Operation(doc, path, method)
	if err != nil {
		return err
	}
	if !ok {
		op = apispec.NewOperation(route.Tag(path), route.PathParameters(path))
	}

	defs := make(map[string]*openapi3.SchemaRef, len(doc.Definitions))
	for k, v := range doc.Definitions {
		defs[k] = v
	}

	in := c.input(method, path, obs.Template)
	c.apply(op, defs, path, method, in, obs)

	doc.Definitions = defs
	if err := apispec.SetOperation(doc, path, method, op); err != nil {
		return err
	}
	if err := c.backend.SaveIntermediate(ctx, doc); err != nil {
		return fmt.Errorf("save intermediate document: %w", err)
	}

	c.metrics.DocumentSize(countOperations(doc), len(doc.Definitions))
	c.logger.Debug("captured", "id", obs.ID, "method", method, "path", path, "status", obs.Response.Code)
	return nil
}

// apply runs every stage over the private copies op and defs.
func (c *Collector) apply(op *openapi2.Operation, defs map[string]*openapi3.SchemaRef, path, method string, in infer.Input, obs *Observation) {
	if ct := obs.Request.Header.Get("Content-Type"); ct != "" {
		n := len(op.Consumes)
		op.Consumes = merge.AppendString(op.Consumes, ct)
		if len(op.Consumes) != n {
			c.metrics.Changed("consumes")
		}
	}
	if tag := route.Tag(path); tag != "" {
		op.Tags = []string{tag}
	}
	if c.scheme.Apply(op, obs.Request) {
		c.metrics.Changed("security")
	}

	if in.Resolved() {
		if infer.Parameters(defs, op, method, route.ActionName(path), in, obs.Payload) {
			c.metrics.Changed("parameters")
		}
		op.Summary = in.Annotations.Lookup(in.Request, "summary", "")
		if op.Summary == "" {
			op.Summary = Summary(in.Request)
		}
		if d := in.Annotations.Lookup(in.Request, "description", ""); d != "" {
			op.Description = d
		}
	} else {
		op.Description = ""
	}

	if infer.RecordResponse(op, obs.Response, in, c.codes) {
		c.metrics.Changed("responses")
	}
}

// input resolves the request descriptor of a route, trying the document path
// first and the raw template second.
func (c *Collector) input(method, path, template string) infer.Input {
	if c.descriptors == nil {
		return infer.Input{}
	}
	name, ok := c.descriptors.Resolve(method, path)
	if !ok && template != "" && template != path {
		name, ok = c.descriptors.Resolve(method, template)
	}
	if !ok {
		return infer.Input{}
	}
	return infer.Input{
		Request:     name,
		Fields:      c.descriptors.RulesFor(name),
		Annotations: c.descriptors,
	}
}

// Finalize publishes the intermediate document.
func (c *Collector) Finalize(ctx context.Context) error {
	unlock, err := c.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := c.load(ctx)
	if err != nil {
		return err
	}
	if err := c.backend.Finalize(ctx, doc); err != nil {
		return fmt.Errorf("finalize document: %w", err)
	}
	c.logger.Info("published documentation", "operations", countOperations(doc), "definitions", len(doc.Definitions))
	return nil
}

// Merge folds a document captured elsewhere, e.g. by a parallel test shard,
// into the intermediate document.
func (c *Collector) Merge(ctx context.Context, other *openapi2.T) error {
	unlock, err := c.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := c.load(ctx)
	if err != nil {
		return err
	}
	merged := merge.Doc(doc, other)
	apispec.Normalize(merged)
	return c.backend.SaveIntermediate(ctx, merged)
}

func countOperations(doc *openapi2.T) int {
	n := 0
	for _, item := range doc.Paths {
		if item != nil {
			n += len(item.Operations())
		}
	}
	return n
}
