// Package route maps captured requests onto stable (path template, method)
// keys of the generated document.
package route

import (
	"net/http"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/gorilla/mux"
)

// FailedPath is the key used when a request has no discoverable route
// template. Capture keeps going under this path instead of aborting.
const FailedPath = "/failed"

var pathParamPattern = regexp.MustCompile(`{.*?}`)

type Key struct {
	Path   string
	Method string
}

func (k Key) String() string {
	return k.Method + " " + k.Path
}

// Resolve strips the base path and the leading slash from a route template
// and returns the document path for it, always starting with "/".
func Resolve(basePath, template string) string {
	if template == "" {
		return FailedPath
	}
	base := strings.TrimPrefix(basePath, "/")
	uri := strings.TrimPrefix(template, "/")
	uri = strings.TrimPrefix(uri, base)
	uri = strings.TrimPrefix(uri, "/")
	return "/" + uri
}

// ResolveRequest resolves the key of r using the gorilla/mux route that
// matched it.
func ResolveRequest(basePath string, r *http.Request) Key {
	template, _ := Template(r)
	return Key{Path: Resolve(basePath, template), Method: strings.ToUpper(r.Method)}
}

// Template returns the path template of the mux route that served r.
func Template(r *http.Request) (string, bool) {
	current := mux.CurrentRoute(r)
	if current == nil {
		return "", false
	}
	template, err := current.GetPathTemplate()
	if err != nil {
		return "", false
	}
	return template, true
}

// PathParameters returns one required string path parameter for every
// {name} placeholder of path, in order of appearance.
func PathParameters(path string) openapi2.Parameters {
	matches := pathParamPattern.FindAllString(path, -1)
	params := make(openapi2.Parameters, 0, len(matches))
	for _, m := range matches {
		name := strings.Trim(m, "{}")
		// mux templates may carry a pattern, e.g. {id:[0-9]+}
		if i := strings.IndexByte(name, ':'); i >= 0 {
			name = name[:i]
		}
		params = append(params, &openapi2.Parameter{
			In:       "path",
			Name:     name,
			Required: true,
			Type:     "string",
		})
	}
	return params
}

// Tag is the first segment of a document path.
func Tag(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// ActionName derives the definition prefix for path. Slashes are dropped,
// '-' and '_' start a new word and everything else is kept as is, so
// "/user-profiles/{id}" becomes "userProfiles{id}".
func ActionName(path string) string {
	words := strings.FieldsFunc(strings.ReplaceAll(path, "/", ""), func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	for i, w := range words {
		words[i] = upperFirst(w)
	}
	name := strings.Join(words, "")
	r, size := utf8.DecodeRuneInString(name)
	if size == 0 {
		return ""
	}
	return string(unicode.ToLower(r)) + name[size:]
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
