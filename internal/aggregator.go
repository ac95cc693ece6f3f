package internal

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type aggregatorConfig struct {
	global      *Identity
	concurrency int
	ignore      []string
	logger      *zap.Logger
}

type AggregatorOption func(*aggregatorConfig)

// WithGlobalIdentity supplies the identity used when a repository has no
// local user config.
func WithGlobalIdentity(identity Identity) AggregatorOption {
	return func(c *aggregatorConfig) {
		if !identity.IsZero() {
			c.global = &identity
		}
	}
}

func WithConcurrency(n int) AggregatorOption {
	return func(c *aggregatorConfig) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func WithIgnorePatterns(patterns []string) AggregatorOption {
	return func(c *aggregatorConfig) { c.ignore = patterns }
}

func WithLogger(logger *zap.Logger) AggregatorOption {
	return func(c *aggregatorConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Aggregator runs the same query against every repository it was built with.
// Results are index-aligned with the input paths; a nil slot marks a
// repository that could not be opened or scanned.
type Aggregator struct {
	paths       []string
	repos       []*GitRepository
	concurrency int
	logger      *zap.Logger
}

func NewAggregator(paths []string, opts ...AggregatorOption) *Aggregator {
	cfg := &aggregatorConfig{
		concurrency: runtime.GOMAXPROCS(0),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	a := &Aggregator{
		paths:       append([]string(nil), paths...),
		repos:       make([]*GitRepository, len(paths)),
		concurrency: cfg.concurrency,
		logger:      cfg.logger,
	}

	for i, path := range paths {
		repo, err := OpenRepository(path, RepositoryOptions{
			GlobalIdentity: cfg.global,
			Ignore:         cfg.ignore,
			Logger:         cfg.logger,
		})
		if err != nil {
			cfg.logger.Warn("skipping repository", zap.String("path", path), zap.Error(err))
			continue
		}
		a.repos[i] = repo
	}

	return a
}

func (a *Aggregator) Paths() []string {
	return append([]string(nil), a.paths...)
}

// Repositories returns the opened handles, index-aligned with Paths.
func (a *Aggregator) Repositories() []*GitRepository {
	return append([]*GitRepository(nil), a.repos...)
}

func (a *Aggregator) AggregateCurrent(ctx context.Context, withDiffs bool) []*ChangeSet {
	return fanOut(ctx, a, "current changes", func(ctx context.Context, repo *GitRepository) (*ChangeSet, error) {
		return repo.CurrentChanges(ctx, withDiffs)
	})
}

type HistoryRequest struct {
	Since        string
	WithDiffs    bool
	WithMessages bool
	Author       string
}

func (a *Aggregator) AggregateHistory(ctx context.Context, req HistoryRequest) []*HistoryResult {
	since, err := ParseSinceDate(req.Since)
	if err != nil {
		for i, repo := range a.repos {
			if repo != nil {
				a.logger.Warn("skipping repository", zap.String("path", a.paths[i]), zap.Error(err))
			}
		}
		return make([]*HistoryResult, len(a.repos))
	}

	q := HistoryQuery{
		Since:        since,
		WithDiffs:    req.WithDiffs,
		WithMessages: req.WithMessages,
		Author:       req.Author,
	}
	return fanOut(ctx, a, "history", func(ctx context.Context, repo *GitRepository) (*HistoryResult, error) {
		return repo.HistorySince(ctx, q)
	})
}

// fanOut runs scan on every opened repository through a bounded pool and
// stores each result in the slot of its input index.
func fanOut[T any](ctx context.Context, a *Aggregator, what string, scan func(context.Context, *GitRepository) (*T, error)) []*T {
	slots := make([]*T, len(a.repos))

	var g errgroup.Group
	g.SetLimit(a.concurrency)

	for i, repo := range a.repos {
		if repo == nil {
			continue
		}
		g.Go(func() error {
			start := time.Now()
			res, err := scan(ctx, repo)
			if err != nil {
				a.logger.Warn("scan failed",
					zap.String("scan", what),
					zap.String("path", a.paths[i]),
					zap.Error(err),
				)
				return nil
			}
			a.logger.Debug("scan done",
				zap.String("scan", what),
				zap.String("path", a.paths[i]),
				zap.Duration("took", time.Since(start)),
			)
			slots[i] = res
			return nil
		})
	}

	_ = g.Wait()
	return slots
}

// DiffSource is implemented by *ChangeSet and *HistoryResult; both are nil-safe.
type DiffSource interface {
	RepoLabel() string
	FileDiffs() []FileDiff
}

type PromptDiff struct {
	RepoLabel string
	Path      string
	Diff      string
}

// MergeForPrompt flattens per-repository diffs in repository order, then
// discovery order within a repository. Nil slots contribute nothing.
func MergeForPrompt[T DiffSource](results []T) []PromptDiff {
	var merged []PromptDiff
	for _, r := range results {
		for _, d := range r.FileDiffs() {
			merged = append(merged, PromptDiff{
				RepoLabel: r.RepoLabel(),
				Path:      d.Path,
				Diff:      d.Diff,
			})
		}
	}
	return merged
}
