// Package config loads the settings of a documentation session from a YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/siegeai/autodoc/apispec"
	"github.com/siegeai/autodoc/security"
	"github.com/siegeai/autodoc/storage"
)

// TestingEnvironment is where captures run. Documentation is always
// visible there.
const TestingEnvironment = "testing"

type Config struct {
	// Routes serving the documentation page, guarded by Middlewares.
	Routes      []string `yaml:"routes"`
	Middlewares []string `yaml:"middlewares"`

	Info     Info     `yaml:"info"`
	Swagger  string   `yaml:"swagger"`
	AppURL   string   `yaml:"app_url"`
	BasePath string   `yaml:"base_path"`
	Schemes  []string `yaml:"schemes"`

	// Security is one of "", "null", "jwt", "laravel", "token".
	Security      string `yaml:"security"`
	SessionCookie string `yaml:"session_cookie"`

	CodeDescriptions map[int]string `yaml:"code_descriptions"`

	Storage Storage `yaml:"storage"`

	DisplayEnvironments []string `yaml:"display_environments"`
	Environment         string   `yaml:"environment"`

	// Descriptors is a YAML file of request descriptors.
	Descriptors string `yaml:"descriptors"`

	Listen      string `yaml:"listen"`
	Assets      string `yaml:"assets"`
	AccessToken string `yaml:"access_token"`
}

type Info struct {
	Title          string  `yaml:"title"`
	Version        string  `yaml:"version"`
	Description    string  `yaml:"description"`
	TermsOfService string  `yaml:"terms_of_service"`
	Contact        Contact `yaml:"contact"`
	License        License `yaml:"license"`
}

type Contact struct {
	Name  string `yaml:"name"`
	URL   string `yaml:"url"`
	Email string `yaml:"email"`
}

type License struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type Storage struct {
	Backend string            `yaml:"backend"`
	Options map[string]string `yaml:"options"`
}

const defaultDescription = `{{.Title}} {{.Version}}

This documentation is generated from the requests made by the test suite.`

func Default() *Config {
	return &Config{
		Routes:      []string{"/"},
		Middlewares: []string{"auth"},
		Info: Info{
			Title:       "Name of Your Application",
			Version:     "0.0.0",
			Description: defaultDescription,
			Contact:     Contact{Email: "your@email.com"},
		},
		Swagger:  apispec.SwaggerVersion,
		AppURL:   "http://localhost",
		BasePath: "/",
		Schemes:  []string{},
		CodeDescriptions: map[int]string{
			200: "Operation successfully done",
			204: "Operation successfully done",
			404: "This entity not found",
		},
		Storage:             Storage{Backend: storage.DefaultBackend, Options: map[string]string{}},
		DisplayEnvironments: []string{"local", "development"},
		Environment:         "local",
		Listen:              ":8080",
	}
}

// Load reads path over the defaults, then applies the AUTODOC_* variables.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		bs, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(bs, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Environment = getEnv("AUTODOC_ENV", c.Environment)
	c.AppURL = getEnv("AUTODOC_APP_URL", c.AppURL)
	c.BasePath = getEnv("AUTODOC_BASE_PATH", c.BasePath)
	c.Security = getEnv("AUTODOC_SECURITY", c.Security)
	c.Storage.Backend = getEnv("AUTODOC_STORAGE", c.Storage.Backend)
	c.Descriptors = getEnv("AUTODOC_DESCRIPTORS", c.Descriptors)
	c.Listen = getEnv("AUTODOC_LISTEN", c.Listen)
	c.AccessToken = getEnv("AUTODOC_ACCESS_TOKEN", c.AccessToken)

	if c.Storage.Options == nil {
		c.Storage.Options = map[string]string{}
	}
	for _, opt := range []string{"dir", "server", "project", "apikey"} {
		if v, ok := os.LookupEnv("AUTODOC_STORAGE_" + strings.ToUpper(opt)); ok {
			c.Storage.Options[opt] = v
		}
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

// Validate rejects settings no session can start with.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Scheme(); err != nil {
		errs = append(errs, err)
	}
	if c.Info.Title == "" {
		errs = append(errs, errors.New("info.title is required"))
	}
	if c.Info.Version == "" {
		errs = append(errs, errors.New("info.version is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Scheme returns the configured security scheme, nil when none is set.
func (c *Config) Scheme() (*security.Scheme, error) {
	s, err := security.Parse(c.Security)
	if err != nil || s == nil {
		return s, err
	}
	s.SessionCookie = c.SessionCookie
	return s, nil
}

// Seed is what a new document is built from.
func (c *Config) Seed() (apispec.Seed, error) {
	scheme, err := c.Scheme()
	if err != nil {
		return apispec.Seed{}, err
	}
	info := openapi3.Info{
		Title:          c.Info.Title,
		Version:        c.Info.Version,
		TermsOfService: c.Info.TermsOfService,
		Contact: &openapi3.Contact{
			Name:  c.Info.Contact.Name,
			URL:   c.Info.Contact.URL,
			Email: c.Info.Contact.Email,
		},
		License: &openapi3.License{Name: c.Info.License.Name, URL: c.Info.License.URL},
	}
	return apispec.Seed{
		Swagger:             c.Swagger,
		Info:                info,
		AppURL:              c.AppURL,
		BasePath:            c.BasePath,
		Schemes:             c.Schemes,
		Description:         c.Info.Description,
		SecurityDefinitions: scheme.Definitions(),
	}, nil
}

// Visible reports whether the documentation may be shown in the current
// environment.
func (c *Config) Visible() bool {
	if c.Environment == TestingEnvironment {
		return true
	}
	for _, env := range c.DisplayEnvironments {
		if env == c.Environment {
			return true
		}
	}
	return false
}

// OpenStorage opens the configured backend.
func (c *Config) OpenStorage() (storage.Backend, error) {
	return storage.Open(c.Storage.Backend, c.Storage.Options)
}
