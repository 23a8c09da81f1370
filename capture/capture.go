// Package capture turns requests served by a gorilla/mux router into
// observations for a collector.
package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/urfave/negroni"

	"github.com/siegeai/autodoc/collector"
	"github.com/siegeai/autodoc/infer"
	"github.com/siegeai/autodoc/route"
)

// ErrHookMissing means a request reached the middleware without a hook to
// hand its observation to. It is a setup error of the calling test harness.
var ErrHookMissing = errors.New("capture hook missing: install one with capture.WithHook")

// Hook receives observations, typically a *collector.Collector.
type Hook interface {
	Capture(ctx context.Context, obs *collector.Observation) error
}

type HookFunc func(ctx context.Context, obs *collector.Observation) error

func (f HookFunc) Capture(ctx context.Context, obs *collector.Observation) error {
	return f(ctx, obs)
}

type hookKey struct{}

type skipKey struct{}

// WithHook returns a context carrying h. Requests with such a context are
// captured into h.
func WithHook(ctx context.Context, h Hook) context.Context {
	return context.WithValue(ctx, hookKey{}, h)
}

// HookFrom returns the hook installed on ctx.
func HookFrom(ctx context.Context) (Hook, bool) {
	h, ok := ctx.Value(hookKey{}).(Hook)
	return h, ok && h != nil
}

// Skip marks a request context as not to be documented.
func Skip(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipKey{}, true)
}

func skipped(ctx context.Context) bool {
	v, _ := ctx.Value(skipKey{}).(bool)
	return v
}

type Middleware struct {
	hook    Hook
	matcher *route.Matcher
	onError func(r *http.Request, err error)
}

type Option func(*Middleware)

// WithDefaultHook captures requests whose context carries no hook into h.
func WithDefaultHook(h Hook) Option {
	return func(m *Middleware) {
		m.hook = h
	}
}

// WithMatcher resolves templates of requests that did not go through a mux
// route.
func WithMatcher(matcher *route.Matcher) Option {
	return func(m *Middleware) {
		m.matcher = matcher
	}
}

// WithErrorHandler replaces the default handler, which logs.
func WithErrorHandler(f func(r *http.Request, err error)) Option {
	return func(m *Middleware) {
		m.onError = f
	}
}

func New(opts ...Option) *Middleware {
	m := &Middleware{
		onError: func(r *http.Request, err error) {
			slog.Error("could not capture request", "method", r.Method, "uri", r.RequestURI, "err", err)
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handler wraps next. Register it with (*mux.Router).Use so the matched
// route is known when the response is complete.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if skipped(r.Context()) {
			next.ServeHTTP(w, r)
			return
		}

		body, err := ReadAllEncoded(r.Header.Get("Content-Encoding"), r.Body)
		if err != nil {
			m.onError(r, err)
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		ww := newRecorder(w)
		next.ServeHTTP(ww, r)

		if err := m.capture(r, body, ww); err != nil {
			m.onError(r, err)
		}
	})
}

func (m *Middleware) hookFor(r *http.Request) (Hook, error) {
	if h, ok := HookFrom(r.Context()); ok {
		return h, nil
	}
	if m.hook != nil {
		return m.hook, nil
	}
	return nil, ErrHookMissing
}

func (m *Middleware) template(r *http.Request) string {
	if t, ok := route.Template(r); ok {
		return t
	}
	if m.matcher != nil {
		if t, ok := m.matcher.Template(r); ok {
			return t
		}
	}
	return ""
}

func (m *Middleware) capture(r *http.Request, body []byte, ww *recorder) error {
	h, err := m.hookFor(r)
	if err != nil {
		return err
	}

	payload, err := ParsePayload(r, body)
	if err != nil {
		slog.Debug("could not parse request payload", "uri", r.RequestURI, "err", err)
	}

	resBody, err := ww.body()
	if err != nil {
		return err
	}

	res := infer.Response{
		Code:        ww.status(),
		ContentType: ww.Header().Get("Content-Type"),
		Body:        resBody,
	}
	obs := collector.NewObservation(r, m.template(r), payload, res)
	return h.Capture(r.Context(), obs)
}

// recorder keeps a copy of the response body next to negroni's status
// tracking.
type recorder struct {
	negroni.ResponseWriter
	buf bytes.Buffer
}

func newRecorder(w http.ResponseWriter) *recorder {
	return &recorder{ResponseWriter: negroni.NewResponseWriter(w)}
}

func (rw *recorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.buf.Write(b[:n])
	return n, err
}

func (rw *recorder) status() int {
	if s := rw.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}

func (rw *recorder) body() ([]byte, error) {
	enc := rw.Header().Get("Content-Encoding")
	if enc == "" {
		return rw.buf.Bytes(), nil
	}
	return ReadAllEncoded(enc, io.NopCloser(bytes.NewReader(rw.buf.Bytes())))
}
