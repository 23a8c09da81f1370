// Package autodoctest drives an http.Handler from tests and documents every
// request it serves.
//
// The handler must run capture.Middleware inside its router:
//
//	router.Use(capture.New().Handler)
//	s := autodoctest.NewSession(coll, router)
//	res, err := s.Do(req)
package autodoctest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"

	"github.com/siegeai/autodoc/capture"
	"github.com/siegeai/autodoc/collector"
)

type Session struct {
	coll    *collector.Collector
	handler http.Handler
	header  http.Header
	skip    bool
}

func NewSession(coll *collector.Collector, handler http.Handler) *Session {
	return &Session{
		coll:    coll,
		handler: handler,
		header:  http.Header{},
	}
}

// WithoutDocumentation returns a session sharing s whose requests are served
// but not documented.
func (s *Session) WithoutDocumentation() *Session {
	cp := *s
	cp.skip = true
	return &cp
}

// WithHeader returns a session sharing s that adds key to every request,
// e.g. an authorization header.
func (s *Session) WithHeader(key, value string) *Session {
	cp := *s
	cp.header = s.header.Clone()
	cp.header.Set(key, value)
	return &cp
}

// hook passes observations to the collector and remembers that it was
// called.
type hook struct {
	coll *collector.Collector

	mu     sync.Mutex
	called bool
	err    error
}

func (h *hook) Capture(ctx context.Context, obs *collector.Observation) error {
	err := h.coll.Capture(ctx, obs)
	h.mu.Lock()
	h.called = true
	h.err = err
	h.mu.Unlock()
	return err
}

// Do serves req and returns the recorded response. The error is
// capture.ErrHookMissing when the handler never reached the capture
// middleware, or the error of the capture itself. The response is returned
// in both cases.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	for k, vs := range s.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	ctx := req.Context()
	h := &hook{coll: s.coll}
	if s.skip {
		ctx = capture.Skip(ctx)
	} else {
		ctx = capture.WithHook(ctx, h)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req.WithContext(ctx))
	res := rec.Result()

	if s.skip {
		return res, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.called {
		return res, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, capture.ErrHookMissing)
	}
	return res, h.err
}

func (s *Session) Get(target string) (*http.Response, error) {
	return s.Do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (s *Session) Delete(target string) (*http.Response, error) {
	return s.Do(httptest.NewRequest(http.MethodDelete, target, nil))
}

// JSON sends body encoded as JSON.
func (s *Session) JSON(method, target string, body any) (*http.Response, error) {
	bs, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(bs))
	req.Header.Set("Content-Type", "application/json")
	return s.Do(req)
}

// Form sends fields urlencoded.
func (s *Session) Form(method, target string, fields map[string]string) (*http.Response, error) {
	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.Do(req)
}

// Finalize publishes what the session captured.
func (s *Session) Finalize(ctx context.Context) error {
	return s.coll.Finalize(ctx)
}

// Runner is satisfied by *testing.M.
type Runner interface {
	Run() int
}

// Main runs the tests of m and publishes the documentation afterwards,
// returning the exit code for os.Exit. A failed publish turns a passing run
// into a failing one.
//
//	func TestMain(m *testing.M) {
//		os.Exit(autodoctest.Main(m, session))
//	}
func Main(m Runner, s *Session) int {
	code := m.Run()
	if err := s.Finalize(context.Background()); err != nil {
		slog.Error("could not publish documentation", "err", err)
		if code == 0 {
			code = 1
		}
	}
	return code
}

// ReadBody drains and closes the body of res.
func ReadBody(res *http.Response) ([]byte, error) {
	defer res.Body.Close()
	return io.ReadAll(res.Body)
}
