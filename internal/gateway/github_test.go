package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-github/v84/github"
	"github.com/shurcooL/githubv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestGitHubGateway creates a GitHubGateway that communicates with a mock HTTP server.
func setupTestGitHubGateway(t *testing.T, handler http.Handler) *GitHubGateway {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	restClient := github.NewClient(server.Client())
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	restClient.BaseURL = baseURL

	return &GitHubGateway{
		restClient:    restClient,
		graphqlClient: githubv4.NewEnterpriseClient(server.URL, server.Client()),
		logger:        log.New(io.Discard),
	}
}

func TestGitHubGateway_FetchDefaultBranch(t *testing.T) {
	testCases := []struct {
		name           string
		handlerFunc    func(w http.ResponseWriter, r *http.Request)
		expected       string
		expectedErrMsg string
	}{
		{
			name: "happy path",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/repos/acme/widget", r.URL.Path)
				fmt.Fprint(w, `{"full_name": "acme/widget", "default_branch": "main"}`)
			},
			expected: "main",
		},
		{
			name: "error case - GitHub API returns an error",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"message": "Internal Server Error"}`)
			},
			expectedErrMsg: "failed to get repository with REST API",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway := setupTestGitHubGateway(t, http.HandlerFunc(tc.handlerFunc))
			branch, err := gateway.FetchDefaultBranch(context.Background(), "acme", "widget")
			if tc.expectedErrMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErrMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, branch)
		})
	}
}

func TestGitHubGateway_FetchBranches(t *testing.T) {
	t.Run("follows pagination", func(t *testing.T) {
		calls := 0
		handler := func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			assert.Contains(t, string(body), "refs/heads/")
			assert.Contains(t, string(body), "acme")

			calls++
			if calls == 1 {
				fmt.Fprint(w, `{"data":{"repository":{"refs":{"pageInfo":{"hasNextPage":true,"endCursor":"cursor-1"},"nodes":[{"name":"main","target":{"committedDate":"2024-03-01T10:00:00Z"}}]}}}}`)
				return
			}
			assert.Contains(t, string(body), "cursor-1")
			fmt.Fprint(w, `{"data":{"repository":{"refs":{"pageInfo":{"hasNextPage":false,"endCursor":"cursor-2"},"nodes":[{"name":"feature","target":{"committedDate":"2023-11-15T08:30:00Z"}}]}}}}`)
		}
		gateway := setupTestGitHubGateway(t, http.HandlerFunc(handler))

		branches, err := gateway.FetchBranches(context.Background(), "acme", "widget")
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		assert.Equal(t, []UpstreamBranch{
			{Name: "main", LastCommitAt: time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)},
			{Name: "feature", LastCommitAt: time.Date(2023, time.November, 15, 8, 30, 0, 0, time.UTC)},
		}, branches)
	})

	t.Run("GraphQL error", func(t *testing.T) {
		handler := func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"errors":[{"message":"Something went wrong"}]}`)
		}
		gateway := setupTestGitHubGateway(t, http.HandlerFunc(handler))

		_, err := gateway.FetchBranches(context.Background(), "acme", "widget")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to execute GraphQL query for branches")
	})
}

func TestParseGitHubRepo(t *testing.T) {
	testCases := []struct {
		raw   string
		owner string
		repo  string
		ok    bool
	}{
		{"https://github.com/acme/widget", "acme", "widget", true},
		{"https://github.com/acme/widget.git", "acme", "widget", true},
		{"git@github.com:acme/widget.git", "acme", "widget", true},
		{"git+https://github.com/acme/widget", "acme", "widget", true},
		{"https://www.github.com/acme/widget/tree/main", "acme", "widget", true},
		{"https://gitlab.com/acme/widget", "", "", false},
		{"", "", "", false},
	}
	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			owner, repo, ok := ParseGitHubRepo(tc.raw)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.owner, owner)
			assert.Equal(t, tc.repo, repo)
			assert.False(t, strings.HasSuffix(repo, ".git"))
		})
	}
}
