package listing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-github/v60/github"
	"github.com/haukened/blocklist-manager/internal/blocklist/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

func TestHTTPClient_List(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"name": "ads.txt", "type": "file", "download_url": "https://raw.test/ads.txt"},
			{"name": "nested", "type": "dir", "download_url": null},
			{"name": "tracking.txt", "type": "file", "download_url": "https://raw.test/tracking.txt"}
		]`))
	}))
	defer server.Close()

	c := NewHTTPClient(Options{UserAgent: "blmgr-test/1.0", Timeout: time.Second})
	entries, err := c.List(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, []domain.ListingEntry{
		{Name: "ads.txt", DownloadURL: "https://raw.test/ads.txt"},
		{Name: "tracking.txt", DownloadURL: "https://raw.test/tracking.txt"},
	}, entries)
	assert.Equal(t, "blmgr-test/1.0", gotUA)
}

func TestHTTPClient_ListErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"rate limited", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusForbidden) }},
		{"object instead of array", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"message": "Not Found"}`))
		}},
		{"garbage", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`<html>`)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := NewHTTPClient(Options{}).List(context.Background(), server.URL)
			assert.Error(t, err)
		})
	}
}

func TestHTTPClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	_, err := NewHTTPClient(Options{Timeout: 50 * time.Millisecond}).List(context.Background(), server.URL)
	assert.Error(t, err)
}

func TestParseContentsURL(t *testing.T) {
	tests := []struct {
		in   string
		want ContentsLocation
		ok   bool
	}{
		{"https://api.github.com/repos/hagezi/dns-blocklists/contents/adblock", ContentsLocation{"hagezi", "dns-blocklists", "adblock", ""}, true},
		{"https://api.github.com/repos/o/r/contents/a/b?ref=main", ContentsLocation{"o", "r", "a/b", "main"}, true},
		{"https://api.github.com/repos/o/r/contents", ContentsLocation{"o", "r", "", ""}, true},
		{"https://example.com/repos/o/r/contents/x", ContentsLocation{}, false},
		{"https://api.github.com/users/o", ContentsLocation{}, false},
		{"::not a url", ContentsLocation{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseContentsURL(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

type mockContents struct {
	mock.Mock
}

func (m *mockContents) GetContents(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentGetOptions) (*github.RepositoryContent, []*github.RepositoryContent, *github.Response, error) {
	args := m.Called(ctx, owner, repo, path, opts)
	file, _ := args.Get(0).(*github.RepositoryContent)
	dir, _ := args.Get(1).([]*github.RepositoryContent)
	return file, dir, nil, args.Error(2)
}

func TestGitHubClient_List(t *testing.T) {
	mc := &mockContents{}
	mc.On("GetContents", mock.Anything, "hagezi", "dns-blocklists", "adblock", (*github.RepositoryContentGetOptions)(nil)).
		Return(nil, []*github.RepositoryContent{
			{Name: github.String("pro.txt"), DownloadURL: github.String("https://raw.test/pro.txt")},
			{Name: github.String("sub")},
		}, nil).Once()

	c := &GitHubClient{contents: mc}
	entries, err := c.List(context.Background(), "https://api.github.com/repos/hagezi/dns-blocklists/contents/adblock")
	require.NoError(t, err)
	assert.Equal(t, []domain.ListingEntry{{Name: "pro.txt", DownloadURL: "https://raw.test/pro.txt"}}, entries)
	mc.AssertExpectations(t)
}

func TestGitHubClient_ListWithRefAndErrors(t *testing.T) {
	mc := &mockContents{}
	mc.On("GetContents", mock.Anything, "o", "r", "lists", &github.RepositoryContentGetOptions{Ref: "v2"}).
		Return(nil, nil, errors.New("rate limited")).Once()

	c := &GitHubClient{contents: mc}
	_, err := c.List(context.Background(), "https://api.github.com/repos/o/r/contents/lists?ref=v2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")

	_, err = c.List(context.Background(), "https://example.com/list.json")
	assert.Error(t, err)
	mc.AssertExpectations(t)
}

func TestGitHubClient_ListAgainstAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/o/r/contents/lists", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"type":"file","name":"a.txt","path":"lists/a.txt","download_url":"https://raw.test/a.txt"}]`))
	}))
	defer server.Close()

	gh := github.NewClient(nil).WithAuthToken("secret")
	base, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	gh.BaseURL = base

	c := &GitHubClient{contents: gh.Repositories}
	entries, err := c.List(context.Background(), "https://api.github.com/repos/o/r/contents/lists")
	require.NoError(t, err)
	assert.Equal(t, []domain.ListingEntry{{Name: "a.txt", DownloadURL: "https://raw.test/a.txt"}}, entries)
}

type stubClient struct {
	calls []string
}

func (s *stubClient) List(_ context.Context, apiURL string) ([]domain.ListingEntry, error) {
	s.calls = append(s.calls, apiURL)
	return nil, nil
}

func TestNewClient_Routing(t *testing.T) {
	_, plainOnly := NewClient(Options{}).(*HTTPClient)
	assert.True(t, plainOnly)

	rc, ok := NewClient(Options{GitHubToken: "t"}).(*routingClient)
	require.True(t, ok)

	gh, plain := &stubClient{}, &stubClient{}
	rc.github, rc.plain = gh, plain
	_, _ = rc.List(context.Background(), "https://api.github.com/repos/o/r/contents/x")
	_, _ = rc.List(context.Background(), "https://mirror.test/listing.json")

	assert.Equal(t, []string{"https://api.github.com/repos/o/r/contents/x"}, gh.calls)
	assert.Equal(t, []string{"https://mirror.test/listing.json"}, plain.calls)
}
