package capture

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siegeai/autodoc/collector"
	"github.com/siegeai/autodoc/route"
)

type sink struct {
	mu   sync.Mutex
	seen []*collector.Observation
}

func (s *sink) Capture(ctx context.Context, obs *collector.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, obs)
	return nil
}

func newRouter(m *Middleware) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": mux.Vars(r)["id"]})
	}).Methods(http.MethodGet)
	r.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}).Methods(http.MethodPost)
	r.HandleFunc("/gzip", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte("hello"))
		_ = gz.Close()
	})
	r.Use(m.Handler)
	return r
}

func TestCaptureFromContextHook(t *testing.T) {
	s := &sink{}
	router := newRouter(New())

	req := httptest.NewRequest(http.MethodGet, "/users/42?with=posts", nil)
	req = req.WithContext(WithHook(req.Context(), s))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, s.seen, 1)
	obs := s.seen[0]
	assert.NotEmpty(t, obs.ID)
	assert.Equal(t, "/users/{id}", obs.Template)
	assert.Equal(t, map[string]any{"with": "posts"}, obs.Payload)
	assert.Equal(t, http.StatusOK, obs.Response.Code)
	assert.Equal(t, "application/json", obs.Response.ContentType)
	assert.JSONEq(t, `{"id":"42"}`, string(obs.Response.Body))
}

func TestCaptureJSONBody(t *testing.T) {
	s := &sink{}
	router := newRouter(New(WithDefaultHook(s)))

	req := httptest.NewRequest(http.MethodPost, "/users?source=test", strings.NewReader(`{"email":"a@b.c","age":null}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, s.seen, 1)
	obs := s.seen[0]
	assert.Equal(t, http.StatusCreated, obs.Response.Code)
	assert.Equal(t, map[string]any{"email": "a@b.c", "age": nil, "source": "test"}, obs.Payload)
}

func TestCaptureDecodesResponse(t *testing.T) {
	s := &sink{}
	router := newRouter(New(WithDefaultHook(s)))

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/gzip", nil))
	require.Len(t, s.seen, 1)
	assert.Equal(t, "hello", string(s.seen[0].Response.Body))
}

func TestMissingHookIsReported(t *testing.T) {
	var got error
	router := newRouter(New(WithErrorHandler(func(r *http.Request, err error) { got = err })))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.ErrorIs(t, got, ErrHookMissing)
}

func TestSkip(t *testing.T) {
	s := &sink{}
	router := newRouter(New(WithDefaultHook(s)))

	req := httptest.NewRequest(http.MethodGet, "/users/1", nil)
	req = req.WithContext(Skip(req.Context()))
	router.ServeHTTP(httptest.NewRecorder(), req)
	assert.Empty(t, s.seen)
}

func TestMatcherFallback(t *testing.T) {
	s := &sink{}
	matcher, err := route.NewMatcher([]string{"GET /things/{id}"})
	require.NoError(t, err)

	h := New(WithDefaultHook(s), WithMatcher(matcher)).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/things/9", nil))

	require.Len(t, s.seen, 1)
	assert.Equal(t, "/things/{id}", s.seen[0].Template)
	assert.Equal(t, http.StatusNoContent, s.seen[0].Response.Code)
}

func TestParsePayloadForm(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	payload, err := ParsePayload(req, []byte("name=a&tags[]=x&tags[]=y"))
	require.NoError(t, err)
	assert.Equal(t, "a", payload["name"])
	assert.Equal(t, []any{"x", "y"}, payload["tags"])
}

func TestParsePayloadMultipart(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "avatar"))
	fw, err := mw.CreateFormFile("file", "a.png")
	require.NoError(t, err)
	_, _ = fw.Write([]byte{0x89, 0x50})
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	payload, err := ParsePayload(req, buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "avatar", payload["title"])
	fh, ok := payload["file"].(*multipart.FileHeader)
	require.True(t, ok)
	assert.Equal(t, "a.png", fh.Filename)
}

func TestParsePayloadMalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/?a=1", nil)
	req.Header.Set("Content-Type", "application/json")

	payload, err := ParsePayload(req, []byte(`{"broken":`))
	assert.Error(t, err)
	assert.Equal(t, "1", payload["a"])
}
