package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Use case input/output DTOs

type UpdateInput struct {
	Repositories     []string
	Since            string
	Author           string
	WithDiffs        bool
	WithCurrent      bool
	PerFileSummaries bool
	WorkSummary      string
}

type UpdateOutput struct {
	Since   string
	Prompt  string
	Text    string
	Context DailyContext
}

type ChangesInput struct {
	Repositories []string
	Since        string
	Author       string
	WithDiffs    bool
	WithCurrent  bool
	WithMessages bool
}

type ChangesOutput struct {
	Since   string
	History []*HistoryResult
	Current []*ChangeSet
}

type RepositoryStatus struct {
	Path      string
	Label     string
	Branch    string
	Identity  Identity
	Available bool
}

type StatusOutput struct {
	Backend      Health
	Repositories []RepositoryStatus
}

type ExtractInput struct {
	Text     string
	UseModel bool
}

type ExtractOutput struct {
	Paths       []string
	WorkSummary string
	FromModel   bool
	// Message explains why model extraction fell back to pattern matching.
	Message string
}

type InitInput struct {
	Scope        string
	Repositories []string
	Force        bool
}

type InitOutput struct {
	Scope      Scope
	ConfigPath string
	Created    bool
}

type ProviderSummary struct {
	Name    string
	Model   string
	BaseURL string
	Active  bool
}

type ProviderInput struct {
	Name   string
	Scope  string
	Config ProviderConfig
}

// AggregatorFactory opens the repositories of one request.
type AggregatorFactory func(paths []string) *Aggregator

// Use cases

type DailyUpdateUseCase struct {
	aggregatorFor AggregatorFactory
	generator     Generator
	prompts       *PromptAssembler
	now           func() time.Time
	logger        *zap.Logger
}

func NewDailyUpdateUseCase(
	aggregatorFor AggregatorFactory,
	generator Generator,
	prompts *PromptAssembler,
	logger *zap.Logger,
) *DailyUpdateUseCase {
	if prompts == nil {
		prompts = NewPromptAssembler("")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DailyUpdateUseCase{
		aggregatorFor: aggregatorFor,
		generator:     generator,
		prompts:       prompts,
		now:           time.Now,
		logger:        logger,
	}
}

// Prepare gathers the git evidence and renders the prompt without calling
// the backend for the final update. Per-file summaries still need it.
func (uc *DailyUpdateUseCase) Prepare(ctx context.Context, input UpdateInput) (*UpdateOutput, error) {
	since := input.Since
	if since == "" {
		since = uc.now().AddDate(0, 0, -1).Format(time.DateOnly)
	}
	if _, err := ParseSinceDate(since); err != nil {
		return nil, err
	}

	needDiffs := input.WithDiffs || input.PerFileSummaries
	agg := uc.aggregatorFor(input.Repositories)

	history := agg.AggregateHistory(ctx, HistoryRequest{
		Since:        since,
		WithDiffs:    needDiffs,
		WithMessages: true,
		Author:       input.Author,
	})

	var current []*ChangeSet
	if input.WithCurrent {
		current = agg.AggregateCurrent(ctx, needDiffs)
	}

	if allNil(history) && allNil(current) {
		return nil, fmt.Errorf("%w among %d paths", ErrNoRepositories, len(input.Repositories))
	}

	dc := DailyContext{
		Date:         uc.now(),
		History:      history,
		Current:      current,
		IncludeDiffs: input.WithDiffs,
	}

	if input.PerFileSummaries {
		summaries, err := uc.summarizeFiles(ctx, dc)
		if err != nil {
			return nil, err
		}
		dc.FileSummaries = summaries
	}

	prompt, err := uc.prompts.Render(PromptDailyUpdate, dc.Replacements(input.WorkSummary)...)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	return &UpdateOutput{Since: since, Prompt: prompt, Context: dc}, nil
}

func (uc *DailyUpdateUseCase) Execute(ctx context.Context, input UpdateInput) (*UpdateOutput, error) {
	if uc.generator == nil {
		return nil, ErrNoProvider
	}

	out, err := uc.Prepare(ctx, input)
	if err != nil {
		return nil, err
	}

	text, err := uc.generator.Generate(ctx, out.Prompt)
	if err != nil {
		return nil, fmt.Errorf("generate update: %w", err)
	}
	out.Text = text
	return out, nil
}

// Stream prepares the prompt and returns the backend's chunk stream. The
// final Done chunk carries the complete update.
func (uc *DailyUpdateUseCase) Stream(ctx context.Context, input UpdateInput) (*UpdateOutput, iter.Seq2[Chunk, error], error) {
	if uc.generator == nil {
		return nil, nil, ErrNoProvider
	}

	out, err := uc.Prepare(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	return out, uc.generator.Stream(ctx, out.Prompt), nil
}

func (uc *DailyUpdateUseCase) summarizeFiles(ctx context.Context, dc DailyContext) ([]FileSummary, error) {
	if uc.generator == nil {
		return nil, ErrNoProvider
	}

	diffs := append(MergeForPrompt(dc.History), MergeForPrompt(dc.Current)...)
	summaries := make([]FileSummary, 0, len(diffs))

	for _, d := range diffs {
		if d.Diff == "" {
			continue
		}

		prompt, err := uc.prompts.Render(PromptFileChanges,
			Replacement{Placeholder: PlaceholderFileName, Value: d.Path},
			Replacement{Placeholder: PlaceholderModifications, Value: d.Diff},
		)
		if err != nil {
			return nil, fmt.Errorf("render prompt: %w", err)
		}

		start := time.Now()
		text, err := uc.generator.Generate(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("summarize %s/%s: %w", d.RepoLabel, d.Path, err)
		}
		uc.logger.Debug("file summarized",
			zap.String("repo", d.RepoLabel),
			zap.String("path", d.Path),
			zap.Duration("took", time.Since(start)),
		)

		summaries = append(summaries, FileSummary{Repo: d.RepoLabel, Path: d.Path, Summary: text})
	}

	return summaries, nil
}

type ChangesUseCase struct {
	aggregatorFor AggregatorFactory
}

func NewChangesUseCase(aggregatorFor AggregatorFactory) *ChangesUseCase {
	return &ChangesUseCase{aggregatorFor: aggregatorFor}
}

// Execute reports history when Since is set and working-tree changes when
// asked for, or when there is no history query at all.
func (uc *ChangesUseCase) Execute(ctx context.Context, input ChangesInput) (*ChangesOutput, error) {
	if input.Since != "" {
		if _, err := ParseSinceDate(input.Since); err != nil {
			return nil, err
		}
	}

	agg := uc.aggregatorFor(input.Repositories)
	out := &ChangesOutput{Since: input.Since}

	if input.Since != "" {
		out.History = agg.AggregateHistory(ctx, HistoryRequest{
			Since:        input.Since,
			WithDiffs:    input.WithDiffs,
			WithMessages: input.WithMessages,
			Author:       input.Author,
		})
	}
	if input.WithCurrent || input.Since == "" {
		out.Current = agg.AggregateCurrent(ctx, input.WithDiffs)
	}

	return out, nil
}

type StatusUseCase struct {
	aggregatorFor AggregatorFactory
	generator     Generator
}

func NewStatusUseCase(aggregatorFor AggregatorFactory, generator Generator) *StatusUseCase {
	return &StatusUseCase{aggregatorFor: aggregatorFor, generator: generator}
}

func (uc *StatusUseCase) Execute(ctx context.Context, repositories []string) (*StatusOutput, error) {
	out := &StatusOutput{}

	if uc.generator != nil {
		out.Backend = uc.generator.Check(ctx)
	} else {
		out.Backend = Health{Message: ErrNoProvider.Error()}
	}

	agg := uc.aggregatorFor(repositories)
	for i, repo := range agg.Repositories() {
		path := agg.Paths()[i]
		if repo == nil {
			out.Repositories = append(out.Repositories, RepositoryStatus{Path: path, Label: NewRepositoryRef(path, Identity{}).Label})
			continue
		}

		ref := repo.Ref()
		branch, err := repo.Branch()
		if err != nil {
			branch = ""
		}
		out.Repositories = append(out.Repositories, RepositoryStatus{
			Path:      ref.Path,
			Label:     ref.Label,
			Branch:    branch,
			Identity:  ref.Identity,
			Available: true,
		})
	}

	return out, nil
}

type ExtractPathsUseCase struct {
	generator Generator
	prompts   *PromptAssembler
	logger    *zap.Logger
}

func NewExtractPathsUseCase(generator Generator, prompts *PromptAssembler, logger *zap.Logger) *ExtractPathsUseCase {
	if prompts == nil {
		prompts = NewPromptAssembler("")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtractPathsUseCase{generator: generator, prompts: prompts, logger: logger}
}

// Execute asks the model for paths and a work summary when requested and
// falls back to pattern matching when the model yields no paths.
func (uc *ExtractPathsUseCase) Execute(ctx context.Context, input ExtractInput) (*ExtractOutput, error) {
	out := &ExtractOutput{}

	if input.UseModel {
		if uc.generator == nil {
			return nil, ErrNoProvider
		}
		res, msg := uc.extractWithModel(ctx, input.Text)
		out.Message = msg
		if res != nil {
			out.WorkSummary = res.WorkSummary
			if len(res.ProjectPaths) > 0 {
				out.Paths = res.ProjectPaths
				out.FromModel = true
				return out, nil
			}
		}
		uc.logger.Debug("model extraction fell back to patterns", zap.String("reason", msg))
	}

	out.Paths = ExtractPaths(input.Text)
	return out, nil
}

func (uc *ExtractPathsUseCase) extractWithModel(ctx context.Context, text string) (*PathsAndSummary, string) {
	prompt, err := uc.prompts.Render(PromptExtractPaths, Replacement{Placeholder: PlaceholderContext, Value: text})
	if err != nil {
		return nil, fmt.Sprintf("Error calling LLM: %v", err)
	}

	if og, ok := uc.generator.(ObjectGenerator); ok {
		var res PathsAndSummary
		if err := og.GenerateObject(ctx, prompt, &res); err != nil {
			return nil, fmt.Sprintf("Error calling LLM: %v", err)
		}
		return &res, ""
	}

	raw, err := uc.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Sprintf("Error calling LLM: %v", err)
	}
	return ParsePathsAndSummary(raw)
}

// ParsePathsAndSummary decodes a model answer of the form
// {"project_paths": [...], "work_summary": "..."}. On failure it returns a
// message describing what was wrong.
func ParsePathsAndSummary(raw string) (*PathsAndSummary, string) {
	body := stripCodeFence(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil, fmt.Sprintf("Failed to parse JSON: %s", raw)
	}

	var res PathsAndSummary
	pathsRaw, okPaths := fields["project_paths"]
	summaryRaw, okSummary := fields["work_summary"]
	if !okPaths || !okSummary ||
		json.Unmarshal(pathsRaw, &res.ProjectPaths) != nil ||
		json.Unmarshal(summaryRaw, &res.WorkSummary) != nil {
		return nil, "Failed to parse response structure"
	}

	return &res, ""
}

type InitUseCase struct {
	resolver *ScopeResolver
}

func NewInitUseCase(resolver *ScopeResolver) *InitUseCase {
	return &InitUseCase{resolver: resolver}
}

// Execute writes a default config and the built-in prompt templates into the
// chosen scope. An existing config is left alone unless Force is set.
func (uc *InitUseCase) Execute(input InitInput) (*InitOutput, error) {
	scope := uc.resolver.ProjectAt()
	if input.Scope == string(ScopeGlobal) {
		scope = uc.resolver.Global()
	}

	out := &InitOutput{Scope: scope, ConfigPath: scope.ConfigPath()}

	if _, err := os.Stat(scope.ConfigPath()); err == nil && !input.Force {
		return out, nil
	}

	cfg := DefaultConfig()
	cfg.Repositories = input.Repositories
	if err := SaveConfig(scope, cfg); err != nil {
		return nil, err
	}
	if err := ExportPrompts(scope.PromptsPath()); err != nil {
		return nil, err
	}

	out.Created = true
	return out, nil
}

type ProviderListUseCase struct {
	resolver *ScopeResolver
}

func NewProviderListUseCase(resolver *ScopeResolver) *ProviderListUseCase {
	return &ProviderListUseCase{resolver: resolver}
}

// Execute lists the registered providers by name. Ollama is always listed
// first since it needs no registration.
func (uc *ProviderListUseCase) Execute(input ProviderInput) ([]ProviderSummary, error) {
	cfg, err := LoadConfig(uc.resolver.Resolve(input.Scope))
	if err != nil {
		return nil, err
	}

	summaries := []ProviderSummary{{
		Name:    BackendOllama,
		Model:   cfg.Ollama.Model,
		BaseURL: cfg.Ollama.Host,
		Active:  cfg.Backend == BackendOllama || cfg.Backend == "",
	}}

	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pc := cfg.Providers[name]
		summaries = append(summaries, ProviderSummary{
			Name:    name,
			Model:   pc.Model,
			BaseURL: pc.BaseURL,
			Active:  cfg.Backend == name,
		})
	}
	return summaries, nil
}

type ProviderAddUseCase struct {
	resolver *ScopeResolver
}

func NewProviderAddUseCase(resolver *ScopeResolver) *ProviderAddUseCase {
	return &ProviderAddUseCase{resolver: resolver}
}

func (uc *ProviderAddUseCase) Execute(input ProviderInput) error {
	switch input.Name {
	case "openai", "anthropic", "openrouter":
	default:
		return fmt.Errorf("unsupported provider: %s", input.Name)
	}

	scope := uc.resolver.Resolve(input.Scope)
	cfg, err := LoadConfig(scope)
	if err != nil {
		return err
	}

	cfg.Providers[input.Name] = input.Config
	return SaveConfig(scope, cfg)
}

type ProviderRemoveUseCase struct {
	resolver *ScopeResolver
}

func NewProviderRemoveUseCase(resolver *ScopeResolver) *ProviderRemoveUseCase {
	return &ProviderRemoveUseCase{resolver: resolver}
}

// Execute removes the provider; if it was the active backend, generation
// falls back to Ollama.
func (uc *ProviderRemoveUseCase) Execute(input ProviderInput) error {
	scope := uc.resolver.Resolve(input.Scope)
	cfg, err := LoadConfig(scope)
	if err != nil {
		return err
	}

	if _, exists := cfg.Providers[input.Name]; !exists {
		return fmt.Errorf("provider %q not found", input.Name)
	}

	delete(cfg.Providers, input.Name)
	if cfg.DefaultProvider == input.Name {
		cfg.DefaultProvider = ""
	}
	if cfg.Backend == input.Name {
		cfg.Backend = BackendOllama
	}
	return SaveConfig(scope, cfg)
}

type ProviderSetDefaultUseCase struct {
	resolver *ScopeResolver
}

func NewProviderSetDefaultUseCase(resolver *ScopeResolver) *ProviderSetDefaultUseCase {
	return &ProviderSetDefaultUseCase{resolver: resolver}
}

// Execute makes the named provider the generation backend. "ollama" selects
// the local backend again.
func (uc *ProviderSetDefaultUseCase) Execute(input ProviderInput) error {
	scope := uc.resolver.Resolve(input.Scope)
	cfg, err := LoadConfig(scope)
	if err != nil {
		return err
	}

	if input.Name == BackendOllama {
		cfg.DefaultProvider = ""
		cfg.Backend = BackendOllama
		return SaveConfig(scope, cfg)
	}

	if _, exists := cfg.Providers[input.Name]; !exists {
		return fmt.Errorf("provider %q not found", input.Name)
	}

	cfg.DefaultProvider = input.Name
	cfg.Backend = input.Name
	return SaveConfig(scope, cfg)
}

type ProviderTestUseCase struct {
	resolver *ScopeResolver
}

func NewProviderTestUseCase(resolver *ScopeResolver) *ProviderTestUseCase {
	return &ProviderTestUseCase{resolver: resolver}
}

func (uc *ProviderTestUseCase) Execute(ctx context.Context, input ProviderInput) (Health, error) {
	cfg, err := LoadConfig(uc.resolver.Resolve(input.Scope))
	if err != nil {
		return Health{}, err
	}

	if input.Name != BackendOllama {
		if _, exists := cfg.Providers[input.Name]; !exists {
			return Health{}, fmt.Errorf("provider %q not found", input.Name)
		}
	}

	cfg.Backend = input.Name
	gen, err := NewGenerator(ctx, cfg, nil)
	if err != nil {
		return Health{}, err
	}
	return gen.Check(ctx), nil
}

func allNil[T any](slots []*T) bool {
	for _, s := range slots {
		if s != nil {
			return false
		}
	}
	return true
}

// UseCases groups the use cases that need a generation backend, for
// embedding callers that wire everything once.
type UseCases struct {
	DailyUpdate  *DailyUpdateUseCase
	Changes      *ChangesUseCase
	Status       *StatusUseCase
	ExtractPaths *ExtractPathsUseCase
}

func NewUseCases(aggregatorFor AggregatorFactory, generator Generator, prompts *PromptAssembler, logger *zap.Logger) *UseCases {
	return &UseCases{
		DailyUpdate:  NewDailyUpdateUseCase(aggregatorFor, generator, prompts, logger),
		Changes:      NewChangesUseCase(aggregatorFor),
		Status:       NewStatusUseCase(aggregatorFor, generator),
		ExtractPaths: NewExtractPathsUseCase(generator, prompts, logger),
	}
}
