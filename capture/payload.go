package capture

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/siegeai/autodoc/infer"
)

const maxMultipartMemory = 32 << 20

// ParsePayload merges the query string and the decoded body of r into the
// input a validator would see. Body fields win over query fields.
func ParsePayload(r *http.Request, body []byte) (map[string]any, error) {
	payload := valuesToMap(r.URL.Query())
	if len(body) == 0 {
		return payload, nil
	}

	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mt = ""
	}

	switch {
	case mt == "application/json" || strings.HasSuffix(mt, "+json"):
		fields, err := infer.ParseSampleObjectBytes(body)
		if err != nil {
			return payload, err
		}
		for k, v := range fields {
			payload[k] = v
		}
	case mt == "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return payload, err
		}
		for k, v := range valuesToMap(values) {
			payload[k] = v
		}
	case mt == "multipart/form-data":
		if err := parseMultipart(r, body, payload); err != nil {
			return payload, err
		}
	}
	return payload, nil
}

func parseMultipart(r *http.Request, body []byte, payload map[string]any) error {
	req := r.Clone(r.Context())
	req.Body = io.NopCloser(bytes.NewReader(body))
	if err := req.ParseMultipartForm(maxMultipartMemory); err != nil {
		return err
	}
	for k, v := range valuesToMap(req.MultipartForm.Value) {
		payload[k] = v
	}
	for k, files := range req.MultipartForm.File {
		if len(files) == 1 {
			payload[k] = files[0]
		} else {
			payload[k] = files
		}
	}
	return nil
}

func valuesToMap(values map[string][]string) map[string]any {
	res := make(map[string]any, len(values))
	for k, vs := range values {
		k = strings.TrimSuffix(k, "[]")
		switch len(vs) {
		case 0:
			res[k] = nil
		case 1:
			res[k] = vs[0]
		default:
			list := make([]any, len(vs))
			for i, v := range vs {
				list[i] = v
			}
			res[k] = list
		}
	}
	return res
}
