// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/branch-usage-checker/internal/domain"
	"github.com/naka-gawa/branch-usage-checker/internal/gateway"
)

var (
	// ErrNoUpstream is returned by FetchUpstream when no GitHub gateway is configured.
	ErrNoUpstream = errors.New("GitHub lookup is not configured")

	// ErrNotGitHub is returned by FetchUpstream when the package repository is not hosted on GitHub.
	ErrNotGitHub = errors.New("repository is not hosted on GitHub")
)

// Run carries the per-invocation parameters through the pipeline stages.
type Run struct {
	Identity domain.PackageIdentity
	Cutoff   string
}

// BranchFailure records a branch that was excluded from the statistics.
type BranchFailure struct {
	Branch string
	Err    error
}

// Result is the outcome of the statistics stage.
// Stats and Failures follow the order of the requested branches.
type Result struct {
	Stats    []domain.BranchStats
	Failures []BranchFailure
}

// Aggregator is the use case for collecting branch download statistics.
// It orchestrates the fetching and combining of data.
type Aggregator struct {
	fetcher     gateway.Fetcher
	upstream    gateway.UpstreamFetcher
	logger      *log.Logger
	concurrency int
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithConcurrency bounds the number of stats requests in flight. Zero or less means unbounded.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) { a.concurrency = n }
}

// WithUpstream enables the GitHub lookup used by FetchUpstream.
func WithUpstream(u gateway.UpstreamFetcher) Option {
	return func(a *Aggregator) { a.upstream = u }
}

// NewAggregator creates a new Aggregator instance.
func NewAggregator(fetcher gateway.Fetcher, logger *log.Logger, opts ...Option) *Aggregator {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	a := &Aggregator{
		fetcher: fetcher,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FetchMetadata loads the package document from the registry.
func (a *Aggregator) FetchMetadata(ctx context.Context, id domain.PackageIdentity) (*domain.PackageMetadata, error) {
	a.logger.Debug("fetching package metadata", "package", id)
	return a.fetcher.FetchMetadata(ctx, id)
}

// Aggregate fetches the statistics of every branch concurrently and aggregates them.
// A failing branch never affects its siblings; it is reported in Result.Failures.
func (a *Aggregator) Aggregate(ctx context.Context, run Run, branches []string) *Result {
	start := time.Now()
	a.logger.Debug("starting statistics download", "branches", len(branches), "from", run.Cutoff)

	type outcome struct {
		stats domain.BranchStats
		err   error
	}
	outcomes := make([]outcome, len(branches))

	var eg errgroup.Group
	if a.concurrency > 0 {
		eg.SetLimit(a.concurrency)
	}
	for i, branch := range branches {
		eg.Go(func() error {
			stats, err := a.fetchBranch(ctx, run, branch)
			outcomes[i] = outcome{stats: stats, err: err}
			return nil
		})
	}
	_ = eg.Wait()

	result := &Result{Stats: make([]domain.BranchStats, 0, len(branches))}
	for i, branch := range branches {
		if err := outcomes[i].err; err != nil {
			a.logger.Debug("branch skipped", "branch", branch, "err", err)
			result.Failures = append(result.Failures, BranchFailure{Branch: branch, Err: err})
			continue
		}
		result.Stats = append(result.Stats, outcomes[i].stats)
	}

	a.logger.Debug("statistics download complete",
		"ok", len(result.Stats), "failed", len(result.Failures),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return result
}

func (a *Aggregator) fetchBranch(ctx context.Context, run Run, branch string) (domain.BranchStats, error) {
	series, err := a.fetcher.FetchBranchStats(ctx, run.Identity, branch, run.Cutoff)
	if err != nil {
		return domain.BranchStats{}, err
	}
	stats, err := domain.Aggregate(branch, series.Labels, series.Values)
	if err != nil {
		return domain.BranchStats{}, fmt.Errorf("%w: %w", gateway.ErrMalformedPayload, err)
	}
	return stats, nil
}

// Upstream describes the package's GitHub repository.
type Upstream struct {
	Repo          string
	DefaultBranch string
	// LastCommit maps git branch names to the date of their tip commit.
	LastCommit map[string]time.Time
}

// Describe summarizes the upstream state of a registry branch such as "dev-main".
func (u *Upstream) Describe(branch string) string {
	name := strings.TrimPrefix(branch, domain.BranchPrefix)
	if name == u.DefaultBranch {
		return "default branch"
	}
	if at, ok := u.LastCommit[name]; ok {
		return "last commit " + at.Format(domain.CutoffLayout)
	}
	return "not on GitHub"
}

// FetchUpstream reads the default branch and branch list of the GitHub
// repository named by the package's repository URL.
func (a *Aggregator) FetchUpstream(ctx context.Context, repository string) (*Upstream, error) {
	if a.upstream == nil {
		return nil, ErrNoUpstream
	}
	owner, repo, ok := gateway.ParseGitHubRepo(repository)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotGitHub, repository)
	}

	var defaultBranch string
	var branches []gateway.UpstreamBranch

	// Use an errgroup to fetch both concurrently.
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		var err error
		defaultBranch, err = a.upstream.FetchDefaultBranch(egCtx, owner, repo)
		return err
	})

	eg.Go(func() error {
		var err error
		branches, err = a.upstream.FetchBranches(egCtx, owner, repo)
		return err
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	u := &Upstream{
		Repo:          owner + "/" + repo,
		DefaultBranch: defaultBranch,
		LastCommit:    make(map[string]time.Time, len(branches)),
	}
	for _, b := range branches {
		u.LastCommit[b.Name] = b.LastCommitAt
	}
	return u, nil
}
