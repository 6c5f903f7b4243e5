package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultBaseURL is the public Modrinth API.
	DefaultBaseURL = "https://api.modrinth.com/v2"

	// DefaultTimeout bounds every catalog request.
	DefaultTimeout = 10 * time.Second

	// BatchChunkSize is the maximum number of ids per batched project
	// lookup. Callers must chunk larger id lists themselves.
	BatchChunkSize = 10
)

// Source is the read-only view of the catalog the rest of modwatch
// depends on.
type Source interface {
	Project(ctx context.Context, id string) (*Project, error)
	Versions(ctx context.Context, projectID string) ([]Version, error)
	ProjectsBatch(ctx context.Context, ids []string) ([]Project, error)
}

// Client fetches projects and versions from the Modrinth API. All fetches
// are read-only and idempotent; failures are reported as *FetchError.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a catalog client. Empty baseURL and zero timeout fall
// back to the defaults.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		userAgent:  "good-yellow-bee/modwatch",
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Project fetches a single project by id or slug.
func (c *Client) Project(ctx context.Context, id string) (*Project, error) {
	var project Project
	if err := c.get(ctx, "/project/"+url.PathEscape(id), &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// Versions fetches the version list for a project, newest-first per the
// API's convention.
func (c *Client) Versions(ctx context.Context, projectID string) ([]Version, error) {
	var versions []Version
	if err := c.get(ctx, "/project/"+url.PathEscape(projectID)+"/version", &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

// ProjectsBatch fetches up to BatchChunkSize projects in one request.
// Projects unknown to the catalog are simply absent from the result.
func (c *Client) ProjectsBatch(ctx context.Context, ids []string) ([]Project, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > BatchChunkSize {
		return nil, fmt.Errorf("batch of %d exceeds chunk size %d", len(ids), BatchChunkSize)
	}

	encoded, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("encode ids: %w", err)
	}
	query := url.Values{"ids": {string(encoded)}}

	var projects []Project
	if err := c.get(ctx, "/projects?"+query.Encode(), &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// get issues a GET against the API and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return transportError(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return transportError(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
