package infer

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/siegeai/autodoc/merge"
)

// BodyParameterName is the name of the single body parameter of mutating
// operations.
const BodyParameterName = "body"

// ReadOnly reports whether fields of method travel in the query string.
func ReadOnly(method string) bool {
	return method == http.MethodGet || method == http.MethodDelete
}

// DefinitionName is the definitions key of the body schema of action.
func DefinitionName(action string) string {
	return action + "Object"
}

// QueryParameters adds a query parameter for every field op does not already
// have a parameter for. It reports whether op changed.
func QueryParameters(op *openapi2.Operation, in Input) bool {
	changed := false
	for _, f := range in.Fields {
		if merge.HasParameter(op.Parameters, f.Name, "") {
			continue
		}
		rules := ParseRules(f.Rules)
		op.Parameters = append(op.Parameters, &openapi2.Parameter{
			In:          "query",
			Name:        f.Name,
			Description: in.Describe(f.Name, rules),
			Required:    rules.Required(),
			Type:        rules.Type(),
		})
		changed = true
	}
	return changed
}

// BodyParameter rebuilds the body definition of action when payload holds
// more fields than the stored definition has properties, and then makes sure
// op references it through a single body parameter. It reports whether
// anything changed.
func BodyParameter(defs map[string]*openapi3.SchemaRef, op *openapi2.Operation, action string, in Input, payload map[string]any) bool {
	name := DefinitionName(action)
	known := 0
	if ref, ok := defs[name]; ok && ref != nil && ref.Value != nil {
		known = len(ref.Value.Properties)
	}
	if len(payload) <= known {
		return false
	}

	defs[name] = Definition(in, payload).NewRef()

	if !merge.HasParameter(op.Parameters, BodyParameterName, "") {
		op.Parameters = append(op.Parameters, &openapi2.Parameter{
			In:       "body",
			Name:     BodyParameterName,
			Required: true,
			Schema:   &openapi3.SchemaRef{Ref: "#/definitions/" + name},
		})
	}
	return true
}

// Parameters runs the stage matching method.
func Parameters(defs map[string]*openapi3.SchemaRef, op *openapi2.Operation, method, action string, in Input, payload map[string]any) bool {
	if ReadOnly(method) {
		return QueryParameters(op, in)
	}
	return BodyParameter(defs, op, action, in, payload)
}
