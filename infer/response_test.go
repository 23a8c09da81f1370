package infer

import (
	"encoding/base64"
	"testing"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siegeai/autodoc/descriptor"
)

func TestRecordResponseJSON(t *testing.T) {
	op := &openapi2.Operation{}
	res := Response{Code: 200, ContentType: "application/json", Body: []byte(`{"a":1}`)}

	assert.True(t, RecordResponse(op, res, Input{}, nil))
	assert.Equal(t, []string{"application/json"}, op.Produces)
	require.Contains(t, op.Responses, "200")
	r := op.Responses["200"]
	assert.Equal(t, "OK", r.Description)
	require.NotNil(t, r.Schema)
	assert.Equal(t, map[string]any{"a": int64(1)}, r.Schema.Value.Example)

	// first write wins
	res.Body = []byte(`{"b":2}`)
	assert.False(t, RecordResponse(op, res, Input{}, nil))
	assert.Equal(t, map[string]any{"a": int64(1)}, op.Responses["200"].Schema.Value.Example)
	assert.Len(t, op.Produces, 1)
}

func TestRecordResponseDefaultsToTextPlain(t *testing.T) {
	op := &openapi2.Operation{}
	assert.True(t, RecordResponse(op, Response{Code: 204}, Input{}, nil))
	assert.Equal(t, []string{DefaultContentType}, op.Produces)
	assert.Equal(t, map[string]interface{}{"example": ""}, op.Responses["204"].Examples)
}

func TestPreviewClassification(t *testing.T) {
	r := Preview("image/png", []byte{0x89}, "OK")
	assert.Equal(t, UnavailablePreview, r.Description)
	assert.Nil(t, r.Schema)

	r = Preview("application/pdf", []byte("%PDF"), "OK")
	require.NotNil(t, r.Schema)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF")), r.Schema.Value.Example)

	r = Preview("text/html; charset=utf-8", []byte("<p>hi</p>"), "OK")
	assert.Equal(t, "<p>hi</p>", r.Examples["example"])

	r = Preview("application/json; charset=utf-8", []byte(`[1]`), "OK")
	assert.Equal(t, []any{int64(1)}, r.Schema.Value.Example)

	r = Preview("application/json", []byte(`{"broken":`), "OK")
	assert.Equal(t, "OK", r.Description)
	assert.Nil(t, r.Schema)
}

func TestResponseDescription(t *testing.T) {
	reg := descriptor.NewRegistry()
	require.NoError(t, reg.Register(descriptor.Request{
		Name:        "ShowUser",
		Annotations: map[string]string{"_404": "No such user"},
	}))
	codes := map[int]string{200: "Operation successfully done", 404: "This entity not found"}
	in := Input{Request: "ShowUser", Annotations: reg}

	assert.Equal(t, "No such user", ResponseDescription(in, codes, 404))
	assert.Equal(t, "Operation successfully done", ResponseDescription(in, codes, 200))
	assert.Equal(t, "Internal Server Error", ResponseDescription(in, codes, 500))
	assert.Equal(t, "Not Found", ResponseDescription(Input{}, codes, 404))
}
