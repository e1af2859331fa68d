// Package listing resolves bulk-listing endpoints into the files they expose.
package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/google/go-github/v60/github"
	"github.com/haukened/blocklist-manager/internal/blocklist/domain"
	"gitlab.com/tozd/go/errors"
)

// DefaultTimeout bounds a listing request when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Client lists the files behind a listing endpoint.
type Client interface {
	List(ctx context.Context, apiURL string) ([]domain.ListingEntry, error)
}

// Options configures NewClient.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// GitHubToken routes GitHub contents endpoints through the authenticated
	// GitHub API client.
	GitHubToken string
	// HTTPClient overrides the client used for requests.
	HTTPClient *http.Client
}

// NewClient returns a plain HTTP client, or, when a GitHub token is set, a
// client that sends GitHub contents endpoints through go-github and
// everything else over plain HTTP.
func NewClient(opts Options) Client {
	plain := NewHTTPClient(opts)
	if opts.GitHubToken == "" {
		return plain
	}
	return &routingClient{github: NewGitHubClient(opts), plain: plain}
}

// HTTPClient fetches a listing endpoint with a GET request and decodes a
// JSON array of {name, download_url} objects.
type HTTPClient struct {
	client    *http.Client
	userAgent string
}

// NewHTTPClient returns an HTTPClient.
func NewHTTPClient(opts Options) *HTTPClient {
	return &HTTPClient{client: httpClient(opts), userAgent: opts.UserAgent}
}

// listingItem is the subset of a listing entry the client reads.
type listingItem struct {
	Name        string  `json:"name"`
	DownloadURL *string `json:"download_url"`
}

func (c *HTTPClient) List(ctx context.Context, apiURL string) ([]domain.ListingEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, errors.Errorf("building listing request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, errors.Errorf("listing %s: unexpected status %s", apiURL, resp.Status)
	}

	var items []listingItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, errors.Errorf("decoding listing %s: %w", apiURL, err)
	}

	entries := make([]domain.ListingEntry, 0, len(items))
	for _, it := range items {
		// directories and submodules carry no download URL
		if it.DownloadURL == nil || *it.DownloadURL == "" {
			continue
		}
		entries = append(entries, domain.ListingEntry{Name: it.Name, DownloadURL: *it.DownloadURL})
	}
	return entries, nil
}

// contentsGetter is the part of the go-github API the GitHub client needs.
type contentsGetter interface {
	GetContents(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentGetOptions) (*github.RepositoryContent, []*github.RepositoryContent, *github.Response, error)
}

// GitHubClient lists GitHub repository directories through the contents API.
type GitHubClient struct {
	contents contentsGetter
}

// NewGitHubClient returns a GitHubClient authenticated with opts.GitHubToken.
func NewGitHubClient(opts Options) *GitHubClient {
	client := github.NewClient(httpClient(opts))
	if opts.GitHubToken != "" {
		client = client.WithAuthToken(opts.GitHubToken)
	}
	if opts.UserAgent != "" {
		client.UserAgent = opts.UserAgent
	}
	return &GitHubClient{contents: client.Repositories}
}

func (c *GitHubClient) List(ctx context.Context, apiURL string) ([]domain.ListingEntry, error) {
	loc, ok := ParseContentsURL(apiURL)
	if !ok {
		return nil, errors.Errorf("%s is not a GitHub contents endpoint", apiURL)
	}

	var opts *github.RepositoryContentGetOptions
	if loc.Ref != "" {
		opts = &github.RepositoryContentGetOptions{Ref: loc.Ref}
	}
	file, dir, _, err := c.contents.GetContents(ctx, loc.Owner, loc.Repo, loc.Path, opts)
	if err != nil {
		return nil, errors.Errorf("listing %s: %w", loc, err)
	}
	if file != nil {
		dir = append(dir, file)
	}

	entries := make([]domain.ListingEntry, 0, len(dir))
	for _, item := range dir {
		if item.GetDownloadURL() == "" {
			continue
		}
		entries = append(entries, domain.ListingEntry{Name: item.GetName(), DownloadURL: item.GetDownloadURL()})
	}
	return entries, nil
}

// ContentsLocation identifies a path in a GitHub repository.
type ContentsLocation struct {
	Owner string
	Repo  string
	Path  string
	Ref   string
}

var contentsPath = regexp.MustCompile(`^/repos/([^/]+)/([^/]+)/contents(?:/(.*))?$`)

// ParseContentsURL parses an api.github.com contents endpoint of the form
// https://api.github.com/repos/{owner}/{repo}/contents/{path}[?ref=...].
func ParseContentsURL(raw string) (ContentsLocation, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host != "api.github.com" {
		return ContentsLocation{}, false
	}
	m := contentsPath.FindStringSubmatch(u.Path)
	if m == nil {
		return ContentsLocation{}, false
	}
	return ContentsLocation{
		Owner: m[1],
		Repo:  m[2],
		Path:  m[3],
		Ref:   u.Query().Get("ref"),
	}, true
}

// routingClient sends GitHub contents endpoints to the GitHub client.
type routingClient struct {
	github Client
	plain  Client
}

func (r *routingClient) List(ctx context.Context, apiURL string) ([]domain.ListingEntry, error) {
	if _, ok := ParseContentsURL(apiURL); ok {
		return r.github.List(ctx, apiURL)
	}
	return r.plain.List(ctx, apiURL)
}

func httpClient(opts Options) *http.Client {
	if opts.HTTPClient != nil {
		return opts.HTTPClient
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func (l ContentsLocation) String() string {
	return fmt.Sprintf("%s/%s/%s", l.Owner, l.Repo, l.Path)
}
