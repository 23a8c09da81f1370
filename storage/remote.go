package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/getkin/kin-openapi/openapi2"

	"github.com/siegeai/autodoc/apispec"
)

var ErrUnexpectedResponse = errors.New("unexpected response code")

// Remote pushes documents to a documentation server over HTTP. The server
// keeps one intermediate and one published document per project.
type Remote struct {
	APIKey  string
	Server  string
	Project string

	client *http.Client
}

// NewRemote reads the options "server", "project" and "apikey".
func NewRemote(opts Options) (*Remote, error) {
	server := opts.Get("server", "")
	if server == "" {
		return nil, errors.New("remote storage: server is required")
	}
	if _, err := url.Parse(server); err != nil {
		return nil, fmt.Errorf("remote storage: %w", err)
	}
	return &Remote{
		APIKey:  opts.Get("apikey", ""),
		Server:  server,
		Project: opts.Get("project", "default"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *Remote) LoadIntermediate(ctx context.Context) (*openapi2.T, error) {
	bs, err := c.get(ctx, c.formatURL("intermediate"))
	if err != nil {
		return nil, err
	}
	return apispec.Unmarshal(bs)
}

func (c *Remote) SaveIntermediate(ctx context.Context, doc *openapi2.T) error {
	return c.put(ctx, http.MethodPut, c.formatURL("intermediate"), doc)
}

func (c *Remote) Finalize(ctx context.Context, doc *openapi2.T) error {
	return c.put(ctx, http.MethodPost, c.formatURL("published"), doc)
}

func (c *Remote) ReadPublished(ctx context.Context) ([]byte, error) {
	return c.get(ctx, c.formatURL("published"))
}

func (c *Remote) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return io.ReadAll(res.Body)
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedResponse, res.StatusCode)
	}
}

func (c *Remote) put(ctx context.Context, method, u string, doc *openapi2.T) error {
	bs, err := apispec.Marshal(doc)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(bs))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	c.authorize(req)

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: %d", ErrUnexpectedResponse, res.StatusCode)
	}
	return nil
}

func (c *Remote) authorize(req *http.Request) {
	if c.APIKey != "" {
		req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	}
}

func (c *Remote) formatURL(kind string) string {
	return fmt.Sprintf("%s/api/v1/documents/%s/%s", c.Server, url.PathEscape(c.Project), kind)
}
