package infer

import "github.com/siegeai/autodoc/descriptor"

// Input is what is known about the validated request behind one capture.
type Input struct {
	// Request is the resolved request type name, empty when the route has
	// none.
	Request     string
	Fields      []descriptor.Field
	Annotations descriptor.AnnotationSource
}

func (in Input) Resolved() bool {
	return in.Request != ""
}

func (in Input) lookup(key, fallback string) string {
	if in.Annotations == nil || in.Request == "" {
		return fallback
	}
	return in.Annotations.Lookup(in.Request, key, fallback)
}

// Describe returns the annotated description of field, or its joined rules.
func (in Input) Describe(field string, rules Rules) string {
	return in.lookup(field, rules.String())
}
