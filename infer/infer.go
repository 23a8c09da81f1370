package infer

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// Property types used in definitions. date and double are not JSON Schema
// types but are kept for compatibility with existing documents.
const (
	TypeObject  = "object"
	TypeBoolean = "boolean"
	TypeDate    = "date"
	TypeInteger = "integer"
	TypeString  = "string"
	TypeDouble  = "double"
)

func NewPropertySchema(typ, description string) *openapi3.Schema {
	return &openapi3.Schema{
		Type:        typ,
		Description: description,
	}
}

// Definition synthesizes the body schema of a request: one property per
// validated field, the required ones listed, and an example built from the
// submitted payload.
func Definition(in Input, payload map[string]any) *openapi3.Schema {
	s := openapi3.NewObjectSchema()
	types := make(map[string]string, len(in.Fields))
	for _, f := range in.Fields {
		rules := ParseRules(f.Rules)
		typ := rules.Type()
		types[f.Name] = typ
		s.Properties[f.Name] = NewPropertySchema(typ, in.Describe(f.Name, rules)).NewRef()
		if rules.Required() {
			s.Required = append(s.Required, f.Name)
		}
	}
	s.Example = Example(payload, types)
	return s
}
