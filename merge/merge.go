// Package merge combines Swagger 2.0 nodes. Every function takes the earlier
// value a and the later value b and never drops anything a already holds:
// lists grow, first writes win, and only definitions are replaced whole.
package merge

import (
	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi3"
)

func Doc(a, b *openapi2.T) *openapi2.T {
	if a == nil && b == nil {
		return nil
	}
	if a != nil && b == nil {
		return a
	}
	if a == nil && b != nil {
		return b
	}

	return &openapi2.T{
		Extensions:          a.Extensions,
		Swagger:             mergeString(a.Swagger, b.Swagger),
		Info:                a.Info,
		ExternalDocs:        a.ExternalDocs,
		Schemes:             Strings(a.Schemes, b.Schemes),
		Consumes:            Strings(a.Consumes, b.Consumes),
		Produces:            Strings(a.Produces, b.Produces),
		Host:                mergeString(a.Host, b.Host),
		BasePath:            mergeString(a.BasePath, b.BasePath),
		Paths:               Paths(a.Paths, b.Paths),
		Definitions:         Definitions(a.Definitions, b.Definitions),
		Parameters:          a.Parameters,
		Responses:           a.Responses,
		SecurityDefinitions: SecurityDefinitions(a.SecurityDefinitions, b.SecurityDefinitions),
		Security:            a.Security,
		Tags:                a.Tags,
	}
}

func Paths(a, b map[string]*openapi2.PathItem) map[string]*openapi2.PathItem {
	res := make(map[string]*openapi2.PathItem, len(a))

	visited := make(map[string]struct{}, len(a))
	for k, v := range a {
		visited[k] = struct{}{}
		if w, in := b[k]; in {
			res[k] = PathItem(v, w)
		} else {
			res[k] = v
		}
	}

	for k, v := range b {
		if _, in := visited[k]; in {
			continue
		}
		res[k] = v
	}

	return res
}

func PathItem(a, b *openapi2.PathItem) *openapi2.PathItem {
	if a == nil && b == nil {
		return nil
	}
	if a != nil && b == nil {
		return a
	}
	if a == nil && b != nil {
		return b
	}

	return &openapi2.PathItem{
		Extensions: a.Extensions,
		Ref:        mergeString(a.Ref, b.Ref),
		Delete:     Operation(a.Delete, b.Delete),
		Get:        Operation(a.Get, b.Get),
		Head:       Operation(a.Head, b.Head),
		Options:    Operation(a.Options, b.Options),
		Patch:      Operation(a.Patch, b.Patch),
		Post:       Operation(a.Post, b.Post),
		Put:        Operation(a.Put, b.Put),
		Parameters: Parameters(a.Parameters, b.Parameters),
	}
}

func Operation(a, b *openapi2.Operation) *openapi2.Operation {
	if a == nil && b == nil {
		return nil
	}
	if a != nil && b == nil {
		return a
	}
	if a == nil && b != nil {
		return b
	}

	return &openapi2.Operation{
		Extensions:   a.Extensions,
		Summary:      mergeString(a.Summary, b.Summary),
		Description:  mergeString(a.Description, b.Description),
		Deprecated:   a.Deprecated || b.Deprecated,
		ExternalDocs: a.ExternalDocs,
		Tags:         Strings(a.Tags, b.Tags),
		OperationID:  mergeString(a.OperationID, b.OperationID),
		Parameters:   Parameters(a.Parameters, b.Parameters),
		Responses:    Responses(a.Responses, b.Responses),
		Consumes:     Strings(a.Consumes, b.Consumes),
		Produces:     Strings(a.Produces, b.Produces),
		Schemes:      Strings(a.Schemes, b.Schemes),
		Security:     Security(a.Security, b.Security),
	}
}

// Strings appends the values of b missing from a, keeping insertion order.
func Strings(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return a
	}
	res := make([]string, 0, len(a)+len(b))
	res = append(res, a...)
	for _, s := range b {
		res = AppendString(res, s)
	}
	return res
}

// AppendString appends s unless it is already present.
func AppendString(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func HasParameter(ps openapi2.Parameters, name, in string) bool {
	for _, p := range ps {
		if p != nil && p.Name == name && (in == "" || p.In == in) {
			return true
		}
	}
	return false
}

// Parameters keeps every parameter of a and the parameters of b whose
// (name, in) pair a does not hold yet.
func Parameters(a, b openapi2.Parameters) openapi2.Parameters {
	if len(b) == 0 {
		return a
	}
	res := make(openapi2.Parameters, 0, len(a)+len(b))
	res = append(res, a...)
	for _, p := range b {
		if p == nil || HasParameter(res, p.Name, p.In) {
			continue
		}
		res = append(res, p)
	}
	return res
}

// Responses records the codes of b that a does not have. A recorded code is
// never replaced.
func Responses(a, b map[string]*openapi2.Response) map[string]*openapi2.Response {
	res := make(map[string]*openapi2.Response, len(a)+len(b))
	for k, v := range a {
		res[k] = v
	}
	for k, v := range b {
		if _, in := res[k]; in {
			continue
		}
		res[k] = v
	}
	return res
}

func schemes(reqs *openapi2.SecurityRequirements) map[string]struct{} {
	seen := make(map[string]struct{})
	if reqs == nil {
		return seen
	}
	for _, req := range *reqs {
		for name := range req {
			seen[name] = struct{}{}
		}
	}
	return seen
}

// Security appends the requirements of b naming a scheme a does not mention.
func Security(a, b *openapi2.SecurityRequirements) *openapi2.SecurityRequirements {
	if a == nil && b == nil {
		return nil
	}
	if a != nil && b == nil {
		return a
	}
	if a == nil && b != nil {
		return b
	}

	seen := schemes(a)
	res := make(openapi2.SecurityRequirements, 0, len(*a)+len(*b))
	res = append(res, *a...)
	for _, req := range *b {
		fresh := false
		for name := range req {
			if _, in := seen[name]; !in {
				fresh = true
				seen[name] = struct{}{}
			}
		}
		if fresh {
			res = append(res, req)
		}
	}
	return &res
}

// Definitions takes b's schema for a name both hold. Definitions are rebuilt
// whole from richer payloads, so the later one is never poorer.
func Definitions(a, b map[string]*openapi3.SchemaRef) map[string]*openapi3.SchemaRef {
	res := make(map[string]*openapi3.SchemaRef, len(a)+len(b))
	for k, v := range a {
		res[k] = v
	}
	for k, v := range b {
		if w, in := res[k]; in && propertyCount(w) > propertyCount(v) {
			continue
		}
		res[k] = v
	}
	return res
}

func propertyCount(s *openapi3.SchemaRef) int {
	if s == nil || s.Value == nil {
		return 0
	}
	return len(s.Value.Properties)
}

func SecurityDefinitions(a, b map[string]*openapi2.SecurityScheme) map[string]*openapi2.SecurityScheme {
	res := make(map[string]*openapi2.SecurityScheme, len(a)+len(b))
	for k, v := range a {
		res[k] = v
	}
	for k, v := range b {
		if _, in := res[k]; !in {
			res[k] = v
		}
	}
	return res
}

func mergeString(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
