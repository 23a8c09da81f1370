// Package descriptor supplies what a captured request cannot say about
// itself: which named request type a route accepts, the validation rules of
// its fields and human written descriptions.
package descriptor

// Field is one validated input field. Rules holds either a "a|b" string or a
// []string token list.
type Field struct {
	Name  string `yaml:"name" json:"name"`
	Rules any    `yaml:"rules" json:"rules"`
}

// Resolver maps a route onto the request type that validates it.
type Resolver interface {
	Resolve(method, template string) (request string, ok bool)
}

// RuleSource returns the validated fields of a request type in declaration
// order.
type RuleSource interface {
	RulesFor(request string) []Field
}

// AnnotationSource returns human descriptions keyed by field name or by a
// reserved key such as "summary", "description" or "_404".
type AnnotationSource interface {
	Lookup(request, key, fallback string) string
}

// Source bundles the three capabilities.
type Source interface {
	Resolver
	RuleSource
	AnnotationSource
}
