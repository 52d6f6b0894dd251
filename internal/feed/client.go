package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"buildwatch/internal/status"
)

const defaultUserAgent = "buildwatch/0.1"

// maxErrorBody caps how much of an error response is kept for diagnostics.
const maxErrorBody = 2048

// Fetcher retrieves the current status of one pipeline.
type Fetcher interface {
	FetchStatus(ctx context.Context, server status.Server) (status.Status, error)
}

// Client dispatches fetches to the connector matching the server kind.
type Client struct {
	connectors map[status.ServerKind]Fetcher
}

// Option customizes a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	userAgent  string
}

// WithHTTPClient overrides the HTTP client shared by all connectors.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(agent string) Option {
	return func(o *clientOptions) {
		if strings.TrimSpace(agent) != "" {
			o.userAgent = strings.TrimSpace(agent)
		}
	}
}

// NewClient builds a Client with the CCTray and GitHub connectors registered.
// Request deadlines come from the caller's context.
func NewClient(opts ...Option) *Client {
	options := clientOptions{httpClient: &http.Client{}, userAgent: defaultUserAgent}
	for _, opt := range opts {
		opt(&options)
	}
	base := httpGetter{client: options.httpClient, userAgent: options.userAgent}
	return &Client{
		connectors: map[status.ServerKind]Fetcher{
			status.ServerCCTray: &CCTray{http: base},
			status.ServerGitHub: &GitHubActions{http: base},
		},
	}
}

// FetchStatus implements Fetcher.
func (c *Client) FetchStatus(ctx context.Context, server status.Server) (status.Status, error) {
	connector, ok := c.connectors[server.Kind]
	if !ok {
		return status.Status{}, newFetchError(ErrorConfig, server.URL, fmt.Errorf("unsupported server kind %q", server.Kind))
	}
	return connector.FetchStatus(ctx, server)
}

type httpGetter struct {
	client    *http.Client
	userAgent string
}

type authFunc func(*http.Request)

// get performs a GET and returns the body of a 2xx response.
func (g httpGetter) get(ctx context.Context, endpoint, accept string, auth authFunc) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, newFetchError(ErrorConfig, endpoint, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", g.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if auth != nil {
		auth(req)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, transportError(endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, statusError(endpoint, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(endpoint, err)
	}
	return body, nil
}
