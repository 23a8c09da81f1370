package infer

import (
	"fmt"
	"strings"
)

// Rules is the validation token list of one field, e.g. required|integer|max:5.
type Rules []string

// ParseRules accepts a "a|b" string or a token list.
func ParseRules(v any) Rules {
	switch rs := v.(type) {
	case nil:
		return nil
	case Rules:
		return rs
	case string:
		if rs == "" {
			return nil
		}
		return strings.Split(rs, "|")
	case []string:
		return rs
	case []any:
		res := make(Rules, 0, len(rs))
		for _, r := range rs {
			res = append(res, fmt.Sprint(r))
		}
		return res
	default:
		return Rules{fmt.Sprint(v)}
	}
}

var ruleTypes = map[string]string{
	"array":   "object",
	"boolean": "boolean",
	"date":    "date",
	"digits":  "integer",
	"email":   "string",
	"integer": "integer",
	"numeric": "double",
	"string":  "string",
}

func ruleName(token string) string {
	name, _, _ := strings.Cut(token, ":")
	return strings.TrimSpace(name)
}

// Type is the type of the first token naming a known rule, string if none
// does.
func (r Rules) Type() string {
	for _, token := range r {
		if t, ok := ruleTypes[ruleName(token)]; ok {
			return t
		}
	}
	return "string"
}

func (r Rules) Required() bool {
	for _, token := range r {
		if token == "required" {
			return true
		}
	}
	return false
}

func (r Rules) String() string {
	return strings.Join(r, ", ")
}
