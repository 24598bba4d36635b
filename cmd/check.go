package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/branch-usage-checker/internal/config"
	"github.com/naka-gawa/branch-usage-checker/internal/domain"
	"github.com/naka-gawa/branch-usage-checker/internal/gateway"
	"github.com/naka-gawa/branch-usage-checker/internal/report"
	"github.com/naka-gawa/branch-usage-checker/internal/usecase"
)

// now is replaced in tests to pin the cutoff date.
var now = time.Now

type checkOptions struct {
	months      int
	concurrency int
	registry    string
	timeout     time.Duration
	github      bool
}

func newCheckCmd(root *rootOptions) *cobra.Command {
	opts := &checkOptions{}

	cmd := &cobra.Command{
		Use:   "check <vendor[/package]> [package] [months]",
		Short: "Check package branch usage",
		Long: `Downloads the monthly download statistics of every "dev-" branch of a
Packagist package and lists the branches without downloads since the cutoff,
the first day of the month [months] months ago (default 9).

The package can be given as "vendor/package" or as two separate arguments.`,
		Args: cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args, root, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.months, "months", "m", 0, "How many months should we return for review (default 9)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Maximum number of statistics requests in flight (default 8)")
	cmd.Flags().StringVar(&opts.registry, "registry", "", "Registry base URL (default https://packagist.org)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Timeout of each HTTP request (default 10s)")
	cmd.Flags().BoolVar(&opts.github, "github", false, "Look up the branches in the package's GitHub repository (needs GITHUB_TOKEN)")
	return cmd
}

func runCheck(cmd *cobra.Command, args []string, root *rootOptions, opts *checkOptions) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)
	p := report.NewPrinter(cmd.OutOrStdout())

	fail := func(format string, a ...any) error {
		msg := fmt.Sprintf(format, a...)
		p.Error("%s", msg)
		return &reportedError{msg: msg}
	}

	cfg, err := config.Load(root.configPath)
	if err != nil {
		return fail("%v", err)
	}
	applyFlags(cmd, cfg, opts)

	var pkgArg string
	if len(args) > 1 {
		pkgArg = args[1]
	}
	id, err := domain.ResolveIdentity(args[0], pkgArg)
	if err != nil {
		return fail("%v", err)
	}

	months := cfg.Months
	if len(args) > 2 {
		months, err = strconv.Atoi(args[2])
		if err != nil || months < 0 {
			return fail("Invalid months value: %s", args[2])
		}
	}
	if months < 0 {
		return fail("Invalid months value: %d", months)
	}
	if cfg.Timeout <= 0 {
		return fail("Invalid timeout value: %s", cfg.Timeout)
	}

	p.Info("Checking: %s", id)
	p.Info("Months: %d", months)

	fetcher := gateway.NewPackagistGateway(cfg.RegistryURL, cfg.Timeout, logger)
	aggOpts := []usecase.Option{usecase.WithConcurrency(cfg.Concurrency)}
	if cfg.GitHub {
		if cfg.GitHubToken == "" {
			p.Warn("GitHub lookup skipped: no token configured (set GITHUB_TOKEN).")
		} else if gh, err := gateway.NewGitHubGateway(cfg.GitHubToken, logger); err != nil {
			p.Warn("GitHub lookup skipped: %v", err)
		} else {
			aggOpts = append(aggOpts, usecase.WithUpstream(gh))
		}
	}
	aggregator := usecase.NewAggregator(fetcher, logger, aggOpts...)

	meta, err := aggregator.FetchMetadata(ctx, id)
	if err != nil {
		var statusErr *gateway.StatusError
		switch {
		case errors.Is(err, gateway.ErrNotFound):
			return fail("Package not found: %s", id)
		case errors.As(err, &statusErr):
			return fail("Failed to fetch package metadata (HTTP %d)", statusErr.Code)
		case errors.Is(err, gateway.ErrMalformedPayload):
			return fail("Malformed package metadata: %v", err)
		default:
			return fail("Failed to fetch package metadata: %v", err)
		}
	}

	run := usecase.Run{Identity: id, Cutoff: domain.Cutoff(now(), months)}
	p.Info("Found the package. Type: %s", meta.Type)

	branches := meta.Branches()
	p.Info("Package has %d branches. Starting to download statistics.", len(branches))

	result := aggregator.Aggregate(ctx, run, branches)
	for _, f := range result.Failures {
		p.BranchSkipped(f.Branch, f.Err)
	}
	p.Info("Downloaded statistics...")

	if !p.Statistics(result.Stats) {
		return nil
	}

	in := report.SuggestionInput{
		RegistryURL:   fetcher.BaseURL(),
		Identity:      id,
		Cutoff:        run.Cutoff,
		TotalBranches: len(branches),
	}
	if cfg.GitHub {
		upstream, err := aggregator.FetchUpstream(ctx, meta.Repository)
		switch {
		case errors.Is(err, usecase.ErrNoUpstream):
		case err != nil:
			p.Warn("GitHub lookup skipped: %v", err)
		default:
			logger.Debug("upstream repository loaded", "repo", upstream.Repo, "default", upstream.DefaultBranch)
			in.Upstream = upstream
		}
	}
	p.Suggestions(result.Stats, in)
	return nil
}

// applyFlags lets explicitly set flags override the loaded configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config, opts *checkOptions) {
	flags := cmd.Flags()
	if flags.Changed("months") {
		cfg.Months = opts.months
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = opts.concurrency
	}
	if flags.Changed("registry") {
		cfg.RegistryURL = opts.registry
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.timeout
	}
	if flags.Changed("github") {
		cfg.GitHub = opts.github
	}
}
