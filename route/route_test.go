package route

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	assert.Equal(t, "/users/{id}/comments", Resolve("/", "/users/{id}/comments"))
	assert.Equal(t, "/users", Resolve("/api", "/api/users"))
	assert.Equal(t, "/users", Resolve("api/", "api/users"))
	assert.Equal(t, "/", Resolve("/", "/"))
	assert.Equal(t, FailedPath, Resolve("/", ""))
}

func TestPathParameters(t *testing.T) {
	params := PathParameters("/users/{id}/comments")
	require.Len(t, params, 1)
	assert.Equal(t, &openapi2.Parameter{In: "path", Name: "id", Required: true, Type: "string"}, params[0])

	params = PathParameters("/users/{user:[0-9]+}/posts/{post}")
	require.Len(t, params, 2)
	assert.Equal(t, "user", params[0].Name)
	assert.Equal(t, "post", params[1].Name)

	assert.Empty(t, PathParameters("/users"))
}

func TestResolveRequest(t *testing.T) {
	var got Key
	r := mux.NewRouter()
	r.HandleFunc("/api/users/{id}/comments", func(w http.ResponseWriter, req *http.Request) {
		got = ResolveRequest("/api", req)
	}).Methods(http.MethodGet)

	req := httptest.NewRequest(http.MethodGet, "/api/users/42/comments", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, Key{Path: "/users/{id}/comments", Method: http.MethodGet}, got)
	assert.Equal(t, "GET /users/{id}/comments", got.String())
}

func TestResolveRequestWithoutRoute(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/anything", nil)
	assert.Equal(t, Key{Path: FailedPath, Method: http.MethodPost}, ResolveRequest("/", req))
}

func TestTagAndActionName(t *testing.T) {
	assert.Equal(t, "users", Tag("/users/{id}/comments"))
	assert.Equal(t, "", Tag("/"))
	assert.Equal(t, "users{id}comments", ActionName("/users/{id}/comments"))
	assert.Equal(t, "userProfiles", ActionName("/user-profiles"))
	assert.Equal(t, "userProfiles", ActionName("/user_profiles"))
	assert.Equal(t, "v1users", ActionName("/v1users"))
	assert.Equal(t, "v1userList", ActionName("/v1/user-list"))
	assert.Equal(t, "", ActionName("/"))

	// templated and literal paths keep distinct definition names
	assert.NotEqual(t, ActionName("/usersid"), ActionName("/users/{id}"))
}

func TestMatcher(t *testing.T) {
	m, err := NewMatcher([]string{"GET /users/{id}", "post /users", "/health"})
	require.NoError(t, err)

	tmpl, ok := m.Template(httptest.NewRequest(http.MethodGet, "/users/7", nil))
	assert.True(t, ok)
	assert.Equal(t, "/users/{id}", tmpl)

	tmpl, ok = m.Template(httptest.NewRequest(http.MethodPost, "/users", nil))
	assert.True(t, ok)
	assert.Equal(t, "/users", tmpl)

	tmpl, ok = m.Template(httptest.NewRequest(http.MethodDelete, "/health", nil))
	assert.True(t, ok)
	assert.Equal(t, "/health", tmpl)

	_, ok = m.Template(httptest.NewRequest(http.MethodPost, "/users/7", nil))
	assert.False(t, ok)

	_, err = NewMatcher([]string{"GET /a extra"})
	assert.ErrorIs(t, err, ErrBadRoute)
}

func TestGuess(t *testing.T) {
	assert.Equal(t, "/users/{arg1}/posts/{arg2}", Guess("/users/42/posts/7"))
	assert.Equal(t, "/files/{arg1}", Guess("/files/8f14e45f-ceea-467f-a0b6-4a2c0e6b1c7d"))
	assert.Equal(t, "/users/me", Guess("/users/me"))
	assert.Equal(t, "/", Guess("/"))
}
