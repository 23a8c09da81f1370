package fakejsonserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(s *Server, method, target, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestWidgetLifecycle(t *testing.T) {
	s := New()

	rec := serve(s, http.MethodPost, "/widget", "application/json", `{"title":"Sprocket","quantity":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":"3","title":"Sprocket","description":"","quantity":2}`, rec.Body.String())

	rec = serve(s, http.MethodPatch, "/widgets/3", "application/x-www-form-urlencoded", "description=shiny")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"3","title":"Sprocket","description":"shiny","quantity":2}`, rec.Body.String())

	rec = serve(s, http.MethodGet, "/widgets?search=sprock", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":"3","title":"Sprocket","description":"shiny","quantity":2}]`, rec.Body.String())

	rec = serve(s, http.MethodDelete, "/widgets/3", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(s, http.MethodGet, "/widgets/3", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateWidgetValidation(t *testing.T) {
	s := New()

	rec := serve(s, http.MethodPost, "/widget", "application/json", `{"description":"no title"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = serve(s, http.MethodPost, "/widget", "application/json", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDescriptors(t *testing.T) {
	reg := Descriptors()

	name, ok := reg.Resolve(http.MethodGet, "/widgets/{id}")
	require.True(t, ok)
	assert.Equal(t, "show widget", reg.Lookup(name, "summary", ""))

	name, ok = reg.Resolve(http.MethodPost, "/widget")
	require.True(t, ok)
	assert.Len(t, reg.RulesFor(name), 3)
}
