package v1

import (
	"context"
	"fmt"
	"iter"
	"path/filepath"

	"github.com/4thel00z/daily/internal"
	"go.uber.org/zap"
)

// Client generates daily updates from a fixed set of repositories using a
// local Ollama backend.
type Client struct {
	uc     *internal.UseCases
	repos  []string
	author string
	logger *zap.Logger
}

// New creates a new Client with the given options. Without repositories the
// client scans the working directory.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		host:    internal.DefaultOllamaHost,
		model:   internal.DefaultOllamaModel,
		timeout: internal.DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	repos := cfg.repositories
	if len(repos) == 0 {
		repos = []string{"."}
	}
	for i, p := range repos {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		repos[i] = abs
	}

	gen := internal.NewOllamaClient(internal.OllamaConfig{
		Host:         cfg.host,
		Model:        cfg.model,
		Timeout:      cfg.timeout,
		RemoveHidden: !cfg.keepHidden,
		HTTPClient:   cfg.httpClient,
		Logger:       cfg.logger,
	})

	identity := internal.GlobalIdentity()
	aggregatorFor := func(paths []string) *internal.Aggregator {
		return internal.NewAggregator(paths,
			internal.WithGlobalIdentity(identity),
			internal.WithConcurrency(cfg.concurrency),
			internal.WithLogger(cfg.logger),
		)
	}

	return &Client{
		uc:     internal.NewUseCases(aggregatorFor, gen, internal.NewPromptAssembler(cfg.promptsDir), cfg.logger),
		repos:  repos,
		author: cfg.author,
		logger: cfg.logger,
	}, nil
}

func (c *Client) updateInput(req UpdateRequest) internal.UpdateInput {
	author := req.Author
	if author == "" {
		author = c.author
	}
	return internal.UpdateInput{
		Repositories:     c.repos,
		Since:            req.Since,
		Author:           author,
		WithDiffs:        req.WithDiffs,
		WithCurrent:      req.WithCurrent,
		PerFileSummaries: req.PerFileSummaries,
		WorkSummary:      req.Notes,
	}
}

// Update generates the daily update and returns its text.
func (c *Client) Update(ctx context.Context, req UpdateRequest) (string, error) {
	out, err := c.uc.DailyUpdate.Execute(ctx, c.updateInput(req))
	if err != nil {
		return "", fmt.Errorf("update: %w", err)
	}
	return out.Text, nil
}

// Stream generates the daily update incrementally. Git scanning happens when
// the sequence is first ranged over; the sequence can be consumed once.
func (c *Client) Stream(ctx context.Context, req UpdateRequest) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		_, chunks, err := c.uc.DailyUpdate.Stream(ctx, c.updateInput(req))
		if err != nil {
			yield(Chunk{}, fmt.Errorf("update: %w", err))
			return
		}
		for chunk, err := range chunks {
			if !yield(Chunk{Text: chunk.Text, Done: chunk.Done}, err) || err != nil {
				return
			}
		}
	}
}

// Changes returns the commits since a date (YYYY-MM-DD) together with the
// uncommitted changes of every repository.
func (c *Client) Changes(ctx context.Context, since string) ([]RepositoryChanges, error) {
	out, err := c.uc.Changes.Execute(ctx, internal.ChangesInput{
		Repositories: c.repos,
		Since:        since,
		Author:       c.author,
		WithCurrent:  true,
		WithMessages: true,
	})
	if err != nil {
		return nil, fmt.Errorf("changes: %w", err)
	}

	result := make([]RepositoryChanges, len(c.repos))
	for i, path := range c.repos {
		rc := RepositoryChanges{Path: path, Name: filepath.Base(path)}

		if i < len(out.History) && out.History[i] != nil {
			h := out.History[i]
			rc.Available = true
			rc.Branch = h.Branch
			rc.Files = h.ChangedFiles
			for _, cm := range h.Commits {
				rc.Commits = append(rc.Commits, Commit{
					Hash:    cm.Hash,
					Author:  cm.AuthorName,
					Email:   cm.AuthorEmail,
					When:    cm.When,
					Message: cm.Message,
					Files:   cm.Files,
				})
			}
		}
		if i < len(out.Current) && out.Current[i] != nil {
			cs := out.Current[i]
			rc.Available = true
			rc.Added = cs.Added
			rc.Modified = cs.Modified
			rc.Removed = cs.Removed
		}

		result[i] = rc
	}
	return result, nil
}

// Check reports whether the backend is reachable and has the model.
func (c *Client) Check(ctx context.Context) (bool, string) {
	out, err := c.uc.Status.Execute(ctx, nil)
	if err != nil {
		return false, err.Error()
	}
	return out.Backend.Available, out.Backend.Message
}

// Close flushes the client's logger.
func (c *Client) Close() error {
	_ = c.logger.Sync()
	return nil
}
