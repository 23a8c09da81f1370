// Package security detects the configured authentication scheme on captured
// requests and documents it.
package security

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi2"
)

var ErrUnsupportedScheme = errors.New("unsupported security scheme")

const (
	JWT     = "jwt"
	Laravel = "laravel"
	Token   = "token"
)

// DefaultSessionCookie is the cookie that marks an authenticated laravel
// session.
const DefaultSessionCookie = "__ym_uid"

type Scheme struct {
	Name string

	// SessionCookie overrides DefaultSessionCookie for the laravel scheme.
	SessionCookie string
}

// Parse validates a configured scheme name. The empty name and "null" both
// mean no scheme and yield a nil Scheme.
func Parse(name string) (*Scheme, error) {
	switch name {
	case "", "null":
		return nil, nil
	case JWT, Laravel, Token:
		return &Scheme{Name: name}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, name)
	}
}

func (s *Scheme) cookie() string {
	if s.SessionCookie != "" {
		return s.SessionCookie
	}
	return DefaultSessionCookie
}

// Detect reports whether r carries the credential of the scheme.
func (s *Scheme) Detect(r *http.Request) bool {
	if s == nil {
		return false
	}
	switch s.Name {
	case JWT:
		return r.Header.Get("authorization") != ""
	case Token:
		return r.Header.Get("token") != ""
	case Laravel:
		c, err := r.Cookie(s.cookie())
		return err == nil && c.Value != ""
	}
	return false
}

// Definition returns the securityDefinitions entry for the scheme.
func (s *Scheme) Definition() *openapi2.SecurityScheme {
	if s == nil {
		return nil
	}
	def := &openapi2.SecurityScheme{Type: "apiKey", In: "header"}
	switch s.Name {
	case JWT:
		def.Name = "authorization"
	case Laravel:
		def.Name = "Cookie"
	case Token:
		def.Name = "token"
	}
	return def
}

// Definitions returns the securityDefinitions of a document seeded for s.
func (s *Scheme) Definitions() map[string]*openapi2.SecurityScheme {
	if s == nil {
		return map[string]*openapi2.SecurityScheme{}
	}
	return map[string]*openapi2.SecurityScheme{s.Name: s.Definition()}
}

// Apply attaches a requirement for the scheme to op when r is authenticated
// and op has no security yet. It reports whether op changed.
func (s *Scheme) Apply(op *openapi2.Operation, r *http.Request) bool {
	if !s.Detect(r) {
		return false
	}
	if op.Security != nil && len(*op.Security) > 0 {
		return false
	}
	reqs := openapi2.SecurityRequirements{{s.Name: []string{}}}
	op.Security = &reqs
	return true
}
