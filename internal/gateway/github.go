package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v84/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

// UpstreamBranch is a branch that exists in the package's GitHub repository.
type UpstreamBranch struct {
	Name         string
	LastCommitAt time.Time
}

// UpstreamFetcher defines the behavior of a gateway for reading branches from GitHub.
type UpstreamFetcher interface {
	FetchDefaultBranch(ctx context.Context, owner, repo string) (string, error)
	FetchBranches(ctx context.Context, owner, repo string) ([]UpstreamBranch, error)
}

// GitHubGateway is the concrete implementation of the UpstreamFetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *log.Logger
}

// branchRefsQuery lists branch heads together with the date of their tip commit.
type branchRefsQuery struct {
	Repository struct {
		Refs struct {
			PageInfo struct {
				HasNextPage bool
				EndCursor   githubv4.String
			}
			Nodes []struct {
				Name   string
				Target struct {
					Commit struct {
						CommittedDate githubv4.DateTime
					} `graphql:"... on Commit"`
				}
			}
		} `graphql:"refs(refPrefix: \"refs/heads/\", first: 100, after: $cursor)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(token string, logger *log.Logger) (*GitHubGateway, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Minute, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &GitHubGateway{
		restClient:    github.NewClient(httpClient),
		graphqlClient: githubv4.NewClient(httpClient),
		logger:        logger,
	}, nil
}

// FetchDefaultBranch returns the repository's default branch using the REST API.
func (g *GitHubGateway) FetchDefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	r, _, err := g.restClient.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return "", fmt.Errorf("failed to get repository with REST API: %w", err)
	}
	return r.GetDefaultBranch(), nil
}

// FetchBranches lists every branch of the repository using the GraphQL API.
func (g *GitHubGateway) FetchBranches(ctx context.Context, owner, repo string) ([]UpstreamBranch, error) {
	variables := map[string]interface{}{
		"owner":  githubv4.String(owner),
		"name":   githubv4.String(repo),
		"cursor": (*githubv4.String)(nil),
	}

	var branches []UpstreamBranch
	for {
		var q branchRefsQuery
		if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
			return nil, fmt.Errorf("failed to execute GraphQL query for branches: %w", err)
		}
		for _, node := range q.Repository.Refs.Nodes {
			branches = append(branches, UpstreamBranch{
				Name:         node.Name,
				LastCommitAt: node.Target.Commit.CommittedDate.Time,
			})
		}
		if !q.Repository.Refs.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = githubv4.NewString(q.Repository.Refs.PageInfo.EndCursor)
		g.logger.Debug("fetching next page of branches", "repo", owner+"/"+repo)
	}
	g.logger.Debug("fetched upstream branches", "repo", owner+"/"+repo, "count", len(branches))
	return branches, nil
}

var githubRepoPattern = regexp.MustCompile(`^https?://(?:www\.)?github\.com/([^/]+)/([^/#?]+)`)

var repoURLReplacer = strings.NewReplacer(
	"git@github.com:", "https://github.com/",
	"git://github.com/", "https://github.com/",
)

// ParseGitHubRepo extracts owner and repository from a repository URL as
// published in package metadata. ok is false for non-GitHub URLs.
func ParseGitHubRepo(raw string) (owner, repo string, ok bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "git+")
	s = repoURLReplacer.Replace(s)
	m := githubRepoPattern.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	repo = strings.TrimSuffix(m[2], ".git")
	if repo == "" {
		return "", "", false
	}
	return m[1], repo, true
}
