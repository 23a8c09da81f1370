package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siegeai/autodoc/apispec"
	"github.com/siegeai/autodoc/config"
	"github.com/siegeai/autodoc/descriptor"
	"github.com/siegeai/autodoc/infer"
	"github.com/siegeai/autodoc/security"
	"github.com/siegeai/autodoc/storage"
)

func newCollector(t *testing.T, scheme string, opts ...Option) (*Collector, *storage.Memory) {
	cfg := config.Default()
	cfg.Security = scheme
	backend := storage.NewMemory()
	c, err := New(cfg, backend, opts...)
	require.NoError(t, err)
	return c, backend
}

func registry(t *testing.T) *descriptor.Registry {
	reg := descriptor.NewRegistry()
	require.NoError(t, reg.Register(descriptor.Request{
		Name:   "CreateUserRequest",
		Routes: []string{"POST /users"},
		Fields: []descriptor.Field{
			{Name: "email", Rules: "required|email"},
			{Name: "age", Rules: "integer"},
			{Name: "admin", Rules: "boolean"},
		},
		Annotations: map[string]string{"description": "Creates a user", "_422": "Invalid user"},
	}))
	require.NoError(t, reg.Register(descriptor.Request{
		Name:        "ListUsersRequest",
		Routes:      []string{"GET /users"},
		Fields:      []descriptor.Field{{Name: "page", Rules: []string{"integer"}}},
		Annotations: map[string]string{"summary": "Paginated users"},
	}))
	return reg
}

func jsonResponse(code int, body string) infer.Response {
	return infer.Response{Code: code, ContentType: "application/json", Body: []byte(body)}
}

func capture(t *testing.T, c *Collector, method, target, template string, payload map[string]any, res infer.Response, header ...string) {
	req := httptest.NewRequest(method, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	require.NoError(t, c.Capture(context.Background(), NewObservation(req, template, payload, res)))
}

func document(t *testing.T, c *Collector) *openapi2.T {
	doc, err := c.Document(context.Background())
	require.NoError(t, err)
	return doc
}

func marshal(t *testing.T, c *Collector) string {
	bs, err := apispec.Marshal(document(t, c))
	require.NoError(t, err)
	return string(bs)
}

func TestInvalidScheme(t *testing.T) {
	cfg := config.Default()
	cfg.Security = "foobar"
	backend := storage.NewMemory()

	_, err := New(cfg, backend)
	assert.ErrorIs(t, err, security.ErrUnsupportedScheme)

	_, err = backend.LoadIntermediate(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSeedsDocument(t *testing.T) {
	c, backend := newCollector(t, "jwt")
	doc := document(t, c)

	assert.Equal(t, "2.0", doc.Swagger)
	assert.Equal(t, "Name of Your Application", doc.Info.Title)
	assert.Equal(t, "localhost", doc.Host)
	assert.Contains(t, doc.SecurityDefinitions, "jwt")

	_, err := backend.LoadIntermediate(context.Background())
	assert.NoError(t, err)
}

func TestPathTemplating(t *testing.T) {
	c, _ := newCollector(t, "")
	capture(t, c, http.MethodGet, "/users/42/comments", "/users/{id}/comments", nil, jsonResponse(200, `[]`))

	doc := document(t, c)
	require.Contains(t, doc.Paths, "/users/{id}/comments")
	op := doc.Paths["/users/{id}/comments"].Get
	require.NotNil(t, op)
	require.Len(t, op.Parameters, 1)
	p := op.Parameters[0]
	assert.Equal(t, "path", p.In)
	assert.Equal(t, "id", p.Name)
	assert.True(t, p.Required)
	assert.Equal(t, "string", p.Type)
	assert.Equal(t, []string{"users"}, op.Tags)
	assert.Equal(t, "", op.Description)
}

func TestUnknownTemplateFallsBack(t *testing.T) {
	c, _ := newCollector(t, "")
	capture(t, c, http.MethodGet, "/whatever", "", nil, jsonResponse(200, `{}`))

	doc := document(t, c)
	assert.Contains(t, doc.Paths, "/failed")
}

func TestIdempotence(t *testing.T) {
	c, _ := newCollector(t, "jwt", WithDescriptors(registry(t)))
	payload := map[string]any{"email": "a@b.c", "age": nil}

	run := func() {
		capture(t, c, http.MethodPost, "/users", "/users", payload, jsonResponse(201, `{"id":1}`),
			"Content-Type", "application/json", "Authorization", "Bearer x")
		capture(t, c, http.MethodGet, "/users?page=1", "/users", map[string]any{"page": "1"}, jsonResponse(200, `[]`))
	}

	run()
	first := marshal(t, c)
	run()
	second := marshal(t, c)
	assert.Equal(t, first, second)

	op := document(t, c).Paths["/users"].Post
	assert.Equal(t, []string{"application/json"}, op.Produces)
	assert.Equal(t, []string{"application/json"}, op.Consumes)
	assert.Len(t, op.Parameters, 1)
	assert.Len(t, op.Responses, 1)
	require.NotNil(t, op.Security)
	assert.Len(t, *op.Security, 1)
}

func names(op *openapi2.Operation) []string {
	var res []string
	for _, p := range op.Parameters {
		res = append(res, p.Name)
	}
	return res
}

func TestMonotonicGrowth(t *testing.T) {
	c, _ := newCollector(t, "", WithDescriptors(registry(t)))

	capture(t, c, http.MethodPost, "/users", "/users", map[string]any{"email": "a@b.c"}, jsonResponse(201, `{"id":1}`))
	before := document(t, c)

	capture(t, c, http.MethodPost, "/users", "/users",
		map[string]any{"email": "a@b.c", "age": 3, "admin": nil, "nickname": "x"},
		jsonResponse(422, `{"errors":[]}`))
	after := document(t, c)

	opBefore := before.Paths["/users"].Post
	opAfter := after.Paths["/users"].Post
	assert.Subset(t, names(opAfter), names(opBefore))
	for code := range opBefore.Responses {
		assert.Contains(t, opAfter.Responses, code)
	}
	assert.Contains(t, opAfter.Responses, "422")
	assert.Equal(t, "Invalid user", opAfter.Responses["422"].Description)

	defBefore := before.Definitions["usersObject"].Value
	defAfter := after.Definitions["usersObject"].Value
	for name := range defBefore.Properties {
		assert.Contains(t, defAfter.Properties, name)
	}
	example := defAfter.Example.(map[string]any)
	assert.Equal(t, false, example["admin"])
	assert.Equal(t, "x", example["nickname"])
}

func TestDescriptorStages(t *testing.T) {
	c, _ := newCollector(t, "", WithDescriptors(registry(t)))

	capture(t, c, http.MethodPost, "/users", "/users", map[string]any{"email": "a@b.c"}, jsonResponse(201, `{}`))
	capture(t, c, http.MethodGet, "/users", "/users", nil, infer.Response{Code: 200, ContentType: "text/html", Body: []byte("<ul></ul>")})

	doc := document(t, c)
	post := doc.Paths["/users"].Post
	assert.Equal(t, "create user", post.Summary)
	assert.Equal(t, "Creates a user", post.Description)
	assert.Equal(t, "#/definitions/usersObject", post.Parameters[0].Schema.Ref)
	assert.Equal(t, "Created", post.Responses["201"].Description)

	get := doc.Paths["/users"].Get
	assert.Equal(t, "Paginated users", get.Summary)
	require.Len(t, get.Parameters, 1)
	assert.Equal(t, "query", get.Parameters[0].In)
	assert.Equal(t, "integer", get.Parameters[0].Type)
	assert.Equal(t, "<ul></ul>", get.Responses["200"].Examples["example"])
	assert.Equal(t, "Operation successfully done", get.Responses["200"].Description)
}

func TestSecurityAttachment(t *testing.T) {
	c, _ := newCollector(t, "jwt")

	capture(t, c, http.MethodGet, "/public", "/public", nil, jsonResponse(200, `{}`))
	capture(t, c, http.MethodGet, "/private", "/private", nil, jsonResponse(200, `{}`), "Authorization", "Bearer t")

	doc := document(t, c)
	assert.Nil(t, doc.Paths["/public"].Get.Security)
	sec := doc.Paths["/private"].Get.Security
	require.NotNil(t, sec)
	assert.Equal(t, openapi2.SecurityRequirements{{"jwt": {}}}, *sec)
}

func TestResponseClassification(t *testing.T) {
	c, _ := newCollector(t, "")
	capture(t, c, http.MethodGet, "/avatar", "/avatar", nil, infer.Response{Code: 200, ContentType: "image/png", Body: []byte{0x89}})
	capture(t, c, http.MethodGet, "/report", "/report", nil, infer.Response{Code: 200, ContentType: "application/pdf", Body: []byte("%PDF")})

	doc := document(t, c)
	assert.Equal(t, infer.UnavailablePreview, doc.Paths["/avatar"].Get.Responses["200"].Description)
	assert.Equal(t, "JVBERg==", doc.Paths["/report"].Get.Responses["200"].Schema.Value.Example)
}

func TestUnsupportedMethod(t *testing.T) {
	c, _ := newCollector(t, "")
	before := marshal(t, c)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Method = "TRACE"
	err := c.Capture(context.Background(), NewObservation(req, "/", nil, jsonResponse(200, `{}`)))
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
	assert.Equal(t, before, marshal(t, c))
}

type failingBackend struct {
	*storage.Memory
	fail bool
}

func (b *failingBackend) SaveIntermediate(ctx context.Context, doc *openapi2.T) error {
	if b.fail {
		return errors.New("disk full")
	}
	return b.Memory.SaveIntermediate(ctx, doc)
}

func TestFailedCaptureKeepsDocument(t *testing.T) {
	backend := &failingBackend{Memory: storage.NewMemory()}
	c, err := New(config.Default(), backend)
	require.NoError(t, err)

	capture(t, c, http.MethodGet, "/a", "/a", nil, jsonResponse(200, `{}`))
	before := marshal(t, c)

	backend.fail = true
	err = c.Capture(context.Background(), NewObservation(httptest.NewRequest(http.MethodGet, "/b", nil), "/b", nil, jsonResponse(200, `{}`)))
	assert.Error(t, err)

	backend.fail = false
	assert.Equal(t, before, marshal(t, c))
}

func TestFinalizeAndMerge(t *testing.T) {
	c, backend := newCollector(t, "")
	capture(t, c, http.MethodGet, "/a", "/a", nil, jsonResponse(200, `{}`))

	other, _ := newCollector(t, "")
	capture(t, other, http.MethodGet, "/b", "/b", nil, jsonResponse(200, `{}`))
	require.NoError(t, c.Merge(context.Background(), document(t, other)))

	require.NoError(t, c.Finalize(context.Background()))
	bs, err := backend.ReadPublished(context.Background())
	require.NoError(t, err)

	published, err := apispec.Unmarshal(bs)
	require.NoError(t, err)
	var paths []string
	for p := range published.Paths {
		paths = append(paths, p)
	}
	assert.ElementsMatch(t, []string{"/a", "/b"}, paths)

	// the next session starts over
	doc := document(t, c)
	if diff := cmp.Diff(0, len(doc.Paths)); diff != "" {
		t.Errorf("paths after finalize (-want +got):\n%s", diff)
	}
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "create user", Summary("CreateUserRequest"))
	assert.Equal(t, "list users", Summary("users.ListUsersRequest"))
	assert.Equal(t, "update post", Summary(`App\Http\Requests\UpdatePostRequest`))
}
