package infer

import (
	"encoding/base64"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/siegeai/autodoc/merge"
)

// UnavailablePreview replaces the description of responses whose body cannot
// be shown.
const UnavailablePreview = "*Unavailable for preview*"

const DefaultContentType = "text/plain"

type Response struct {
	Code        int
	ContentType string
	Body        []byte
}

// RecordResponse adds the content type of res to the produces of op and, the
// first time its status code is seen, a preview of the body. Later responses
// with a recorded code leave it untouched. It reports whether op changed.
func RecordResponse(op *openapi2.Operation, res Response, in Input, codes map[int]string) bool {
	ct := res.ContentType
	if ct == "" {
		ct = DefaultContentType
	}

	n := len(op.Produces)
	op.Produces = merge.AppendString(op.Produces, ct)
	changed := len(op.Produces) != n

	code := strconv.Itoa(res.Code)
	if op.Responses == nil {
		op.Responses = make(map[string]*openapi2.Response)
	}
	if _, ok := op.Responses[code]; ok {
		return changed
	}

	op.Responses[code] = Preview(ct, res.Body, ResponseDescription(in, codes, res.Code))
	return true
}

// ResponseDescription picks the description of a status code: the status
// text when the request is unknown, else the "_<code>" annotation, the
// configured description or the status text, whichever is set first.
func ResponseDescription(in Input, codes map[int]string, code int) string {
	if !in.Resolved() {
		return http.StatusText(code)
	}
	if d := in.lookup("_"+strconv.Itoa(code), ""); d != "" {
		return d
	}
	if d := codes[code]; d != "" {
		return d
	}
	return http.StatusText(code)
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
		mt = strings.ToLower(strings.TrimSpace(mt))
	}
	return mt
}

// Previewable reports whether bodies of contentType are kept in examples.
func Previewable(contentType string) bool {
	top, _, _ := strings.Cut(mediaType(contentType), "/")
	return top == "application" || top == "text"
}

// Preview builds the response entry for a body.
func Preview(contentType string, body []byte, description string) *openapi2.Response {
	if !Previewable(contentType) {
		return &openapi2.Response{Description: UnavailablePreview}
	}

	res := &openapi2.Response{Description: description}
	switch mediaType(contentType) {
	case "application/json":
		v, err := ParseSampleBodyBytes(body)
		if err != nil || v == nil {
			// malformed bodies are documented without an example
			return res
		}
		res.Schema = &openapi3.SchemaRef{Value: &openapi3.Schema{Example: v}}
	case "application/pdf":
		res.Schema = &openapi3.SchemaRef{Value: &openapi3.Schema{
			Example: base64.StdEncoding.EncodeToString(body),
		}}
	default:
		res.Examples = map[string]interface{}{"example": string(body)}
	}
	return res
}
