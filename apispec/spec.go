// Package apispec holds the Swagger 2.0 document that captures accumulate
// into, and its encodings.
package apispec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"text/template"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi3"
)

const SwaggerVersion = "2.0"

var ErrUnsupportedMethod = errors.New("method cannot be documented")

// Seed is the part of a document that comes from configuration.
type Seed struct {
	Swagger  string
	Info     openapi3.Info
	AppURL   string
	BasePath string
	Schemes  []string

	// Description is a text/template rendered with Info as data into
	// Info.Description.
	Description string

	SecurityDefinitions map[string]*openapi2.SecurityScheme
}

// New builds an empty document from seed.
func New(seed Seed) (*openapi2.T, error) {
	info := seed.Info
	if info.License != nil && info.License.Name == "" && info.License.URL == "" {
		info.License = nil
	}
	if c := info.Contact; c != nil && c.Name == "" && c.URL == "" && c.Email == "" {
		info.Contact = nil
	}
	if seed.Description != "" {
		d, err := RenderDescription(seed.Description, info)
		if err != nil {
			return nil, err
		}
		info.Description = d
	}

	swagger := seed.Swagger
	if swagger == "" {
		swagger = SwaggerVersion
	}

	doc := &openapi2.T{
		Swagger:             swagger,
		Info:                info,
		Host:                Host(seed.AppURL),
		BasePath:            seed.BasePath,
		Schemes:             seed.Schemes,
		SecurityDefinitions: seed.SecurityDefinitions,
	}
	Normalize(doc)
	return doc, nil
}

// Host strips the scheme and every slash from an application URL.
func Host(appURL string) string {
	return strings.NewReplacer("http://", "", "https://", "", "/", "").Replace(appURL)
}

func RenderDescription(text string, info openapi3.Info) (string, error) {
	t, err := template.New("description").Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse description template: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, info); err != nil {
		return "", fmt.Errorf("render description template: %w", err)
	}
	return buf.String(), nil
}

// Normalize allocates the maps a decoded document may lack.
func Normalize(doc *openapi2.T) {
	if doc.Paths == nil {
		doc.Paths = make(map[string]*openapi2.PathItem)
	}
	if doc.Definitions == nil {
		doc.Definitions = make(map[string]*openapi3.SchemaRef)
	}
	if doc.SecurityDefinitions == nil {
		doc.SecurityDefinitions = make(map[string]*openapi2.SecurityScheme)
	}
}

// SupportedMethod reports whether a path item can hold an operation for
// method.
func SupportedMethod(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodDelete, http.MethodGet, http.MethodHead, http.MethodOptions,
		http.MethodPatch, http.MethodPost, http.MethodPut:
		return true
	}
	return false
}

// NewOperation is the starting point of an operation seen for the first
// time.
func NewOperation(tag string, params openapi2.Parameters) *openapi2.Operation {
	op := &openapi2.Operation{
		Parameters: params,
		Responses:  make(map[string]*openapi2.Response),
		Consumes:   []string{},
		Produces:   []string{},
	}
	if tag != "" {
		op.Tags = []string{tag}
	}
	return op
}

// Operation returns a copy of the operation stored for path and method.
func Operation(doc *openapi2.T, path, method string) (*openapi2.Operation, bool, error) {
	if !SupportedMethod(method) {
		return nil, false, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
	item, ok := doc.Paths[path]
	if !ok || item == nil {
		return nil, false, nil
	}
	op := item.GetOperation(strings.ToUpper(method))
	if op == nil {
		return nil, false, nil
	}
	cp, err := clone(op)
	if err != nil {
		return nil, false, err
	}
	if cp.Responses == nil {
		cp.Responses = make(map[string]*openapi2.Response)
	}
	return cp, true, nil
}

// SetOperation stores op for path and method, replacing the previous value.
func SetOperation(doc *openapi2.T, path, method string, op *openapi2.Operation) error {
	if !SupportedMethod(method) {
		return fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
	Normalize(doc)
	doc.AddOperation(path, strings.ToUpper(method), op)
	return nil
}

// Clone deep copies a document.
func Clone(doc *openapi2.T) (*openapi2.T, error) {
	cp, err := clone(doc)
	if err != nil {
		return nil, err
	}
	Normalize(cp)
	return cp, nil
}

func clone[T any](v *T) (*T, error) {
	bs, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var res T
	if err := json.Unmarshal(bs, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
