// Package server serves the published documentation.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"

	"github.com/siegeai/autodoc/apispec"
	"github.com/siegeai/autodoc/config"
	"github.com/siegeai/autodoc/metric"
	"github.com/siegeai/autodoc/storage"
)

const (
	DocumentationPath = "/auto-doc/documentation"
	filePrefix        = "/auto-doc/"
)

type Server struct {
	cfg     *config.Config
	backend storage.Backend
	metrics *metric.Metrics

	middlewares map[string]mux.MiddlewareFunc
	router      *mux.Router
}

type Option func(*Server)

func WithMetrics(m *metric.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithMiddleware makes mw available under name to the middlewares setting.
func WithMiddleware(name string, mw mux.MiddlewareFunc) Option {
	return func(s *Server) {
		s.middlewares[name] = mw
	}
}

// New builds the routes of cfg. Every name in cfg.Middlewares must be known.
func New(cfg *config.Config, backend storage.Backend, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		backend: backend,
		middlewares: map[string]mux.MiddlewareFunc{
			"auth":    BearerAuth(cfg.AccessToken),
			"nocache": NoCache,
		},
		router: mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}

	chain := make([]mux.MiddlewareFunc, 0, len(cfg.Middlewares))
	for _, name := range cfg.Middlewares {
		mw, ok := s.middlewares[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMiddleware, name)
		}
		chain = append(chain, mw)
	}
	if cfg.AccessToken == "" && contains(cfg.Middlewares, "auth") {
		slog.Warn("no access token configured, documentation pages are public")
	}

	s.router.Use(s.visible)
	s.router.Handle(DocumentationPath, s.counted("documentation", s.handleDocumentation())).Methods(http.MethodGet)
	s.router.Handle(filePrefix+"{file}", s.counted("file", s.handleFile())).Methods(http.MethodGet)
	for _, rt := range cfg.Routes {
		var h http.Handler = s.counted("index", s.handleIndex())
		for i := len(chain) - 1; i >= 0; i-- {
			h = chain[i](h)
		}
		s.router.Handle(rt, h).Methods(http.MethodGet)
	}
	return s, nil
}

var ErrUnknownMiddleware = errors.New("unknown middleware")

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// Handler wraps the routes with recovery and request logging.
func (s *Server) Handler() http.Handler {
	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.Use(negroni.HandlerFunc(logRequest))
	n.UseHandler(s.router)
	return n
}

func logRequest(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	start := time.Now()
	next(w, r)
	status := 0
	if ww, ok := w.(negroni.ResponseWriter); ok {
		status = ww.Status()
	}
	slog.Info("served", "method", r.Method, "uri", r.RequestURI, "status", status, "took", time.Since(start))
}

// visible hides every route outside the display environments.
func (s *Server) visible(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.Visible() {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) counted(name string, next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := negroni.NewResponseWriter(w)
		next.ServeHTTP(ww, r)
		s.metrics.DocumentRequests.WithLabelValues(name, strconv.Itoa(ww.Status())).Inc()
	})
}

func (s *Server) handleDocumentation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		format, err := apispec.ParseFormat(q.Get("format"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		v3, _ := strconv.ParseBool(q.Get("v3"))

		bs, err := s.backend.ReadPublished(r.Context())
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "documentation has not been published", http.StatusNotFound)
			return
		}
		if err != nil {
			slog.Error("could not read documentation", "err", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		bs, err = apispec.EncodePublished(bs, format, v3)
		if err != nil {
			slog.Error("could not encode documentation", "err", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		if format == apispec.FormatYAML {
			w.Header().Set("Content-Type", "application/yaml")
		} else {
			w.Header().Set("Content-Type", "application/json")
		}
		_, _ = w.Write(bs)
	}
}

// handleFile serves static assets of the documentation page.
func (s *Server) handleFile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Assets == "" {
			http.NotFound(w, r)
			return
		}
		name := mux.Vars(r)["file"]
		if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
			http.NotFound(w, r)
			return
		}
		path := filepath.Join(s.cfg.Assets, name)
		if fi, err := os.Stat(path); err != nil || fi.IsDir() {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, path)
	}
}

func (s *Server) handleIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err := indexTemplate.Execute(w, indexData{
			Title:         s.cfg.Info.Title,
			Documentation: DocumentationPath,
		})
		if err != nil {
			slog.Error("could not render index", "err", err)
		}
	}
}
