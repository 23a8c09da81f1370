package route

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

var ErrBadRoute = errors.New("bad route")

// Matcher resolves requests that were not served by a mux router, such as
// replayed traffic, against a fixed list of route templates.
type Matcher struct {
	router *mux.Router
}

// NewMatcher builds a Matcher from entries of the form "GET /users/{id}".
// An entry without a method matches every method.
func NewMatcher(entries []string) (*Matcher, error) {
	r := mux.NewRouter()
	for _, e := range entries {
		fields := strings.Fields(e)
		switch len(fields) {
		case 1:
			r.Path(fields[0])
		case 2:
			r.Methods(strings.ToUpper(fields[0])).Path(fields[1])
		default:
			return nil, fmt.Errorf("%w: %q", ErrBadRoute, e)
		}
	}
	return &Matcher{router: r}, nil
}

// Template returns the template of the first route matching req.
func (m *Matcher) Template(req *http.Request) (string, bool) {
	var match mux.RouteMatch
	if !m.router.Match(req, &match) || match.Route == nil || match.MatchErr != nil {
		return "", false
	}
	t, err := match.Route.GetPathTemplate()
	if err != nil {
		return "", false
	}
	return t, true
}
