package internal

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeGenerator answers every prompt with reply and records the prompts.
type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	reply   func(prompt string) (string, error)
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.reply == nil {
		return "ok", nil
	}
	return g.reply(prompt)
}

func (g *fakeGenerator) Stream(ctx context.Context, prompt string) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		text, err := g.Generate(ctx, prompt)
		if err != nil {
			yield(Chunk{}, err)
			return
		}
		words := strings.SplitAfter(text, " ")
		raw := func(y func(string, error) bool) {
			for _, w := range words {
				if !y(w, nil) {
					return
				}
			}
		}
		FilterStream(raw, NewHiddenFilter("", ""))(yield)
	}
}

func (g *fakeGenerator) Check(context.Context) Health {
	return Health{Available: true, Message: "fake"}
}

func aggregatorFactory(t *testing.T) AggregatorFactory {
	return func(paths []string) *Aggregator {
		return NewAggregator(paths, WithLogger(zaptest.NewLogger(t)))
	}
}

func updateFixture(t *testing.T) *testRepo {
	r := newTestRepo(t)
	r.write("auth.go", "package auth\n")
	r.commit("Add auth package", alice, day("2025-07-02", 10), "auth.go")
	r.write("auth.go", "package auth\n\nfunc Login() {}\n")
	return r
}

func TestDailyUpdateExecute(t *testing.T) {
	r := updateFixture(t)
	gen := &fakeGenerator{reply: func(string) (string, error) {
		return "<think>hmm</think>\nYesterday I added auth.", nil
	}}

	uc := NewDailyUpdateUseCase(aggregatorFactory(t), gen, nil, zaptest.NewLogger(t))
	out, err := uc.Execute(context.Background(), UpdateInput{
		Repositories: []string{r.dir},
		Since:        "2025-07-01",
		WithCurrent:  true,
		WorkSummary:  "pairing on auth",
	})
	require.NoError(t, err)

	require.Len(t, gen.prompts, 1)
	prompt := gen.prompts[0]
	assert.Contains(t, prompt, "- 2025-07-02 Alice: Add auth package")
	assert.Contains(t, prompt, "pairing on auth")
	assert.Contains(t, prompt, "MODIFIED: auth.go")
	assert.NotContains(t, prompt, PlaceholderContext)
	assert.Equal(t, prompt, out.Prompt)
	assert.Equal(t, "<think>hmm</think>\nYesterday I added auth.", out.Text, "cleaning is the backend's job")
}

func TestDailyUpdateDefaultsToYesterday(t *testing.T) {
	r := updateFixture(t)
	uc := NewDailyUpdateUseCase(aggregatorFactory(t), &fakeGenerator{}, nil, nil)
	uc.now = func() time.Time { return day("2025-07-03", 8) }

	out, err := uc.Prepare(context.Background(), UpdateInput{Repositories: []string{r.dir}})
	require.NoError(t, err)
	assert.Equal(t, "2025-07-02", out.Since)
	assert.Len(t, out.Context.CommitLines(), 1)
}

func TestDailyUpdatePerFileSummaries(t *testing.T) {
	r := updateFixture(t)
	gen := &fakeGenerator{reply: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Summarize the following changes to auth.go") {
			return "Adds Login.", nil
		}
		return "update", nil
	}}

	uc := NewDailyUpdateUseCase(aggregatorFactory(t), gen, nil, nil)
	out, err := uc.Execute(context.Background(), UpdateInput{
		Repositories:     []string{r.dir},
		Since:            "2025-07-01",
		WithCurrent:      true,
		PerFileSummaries: true,
	})
	require.NoError(t, err)

	// one summary for the committed patch, one for the working-tree diff, one update
	assert.Len(t, gen.prompts, 3)
	assert.Len(t, out.Context.FileSummaries, 2)
	assert.Contains(t, out.Prompt, "Summary for "+out.Context.FileSummaries[0].Repo+"/auth.go:\nAdds Login.")
	assert.False(t, out.Context.IncludeDiffs)
}

func TestDailyUpdateBackendFailure(t *testing.T) {
	r := updateFixture(t)
	gen := &fakeGenerator{reply: func(string) (string, error) { return "", ErrBackendUnreachable }}

	uc := NewDailyUpdateUseCase(aggregatorFactory(t), gen, nil, nil)
	_, err := uc.Execute(context.Background(), UpdateInput{Repositories: []string{r.dir}, Since: "2025-07-01"})
	assert.ErrorIs(t, err, ErrBackendUnreachable)
}

func TestDailyUpdateValidation(t *testing.T) {
	uc := NewDailyUpdateUseCase(aggregatorFactory(t), &fakeGenerator{}, nil, nil)

	_, err := uc.Execute(context.Background(), UpdateInput{Repositories: []string{t.TempDir()}, Since: "yesterday"})
	assert.ErrorIs(t, err, ErrDateParse)

	_, err = uc.Execute(context.Background(), UpdateInput{Repositories: []string{t.TempDir()}, Since: "2025-07-01"})
	assert.ErrorIs(t, err, ErrNoRepositories)

	_, err = NewDailyUpdateUseCase(aggregatorFactory(t), nil, nil, nil).Execute(context.Background(), UpdateInput{})
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestDailyUpdateStream(t *testing.T) {
	r := updateFixture(t)
	gen := &fakeGenerator{reply: func(string) (string, error) { return "<think>x</think>Done with auth work", nil }}

	uc := NewDailyUpdateUseCase(aggregatorFactory(t), gen, nil, nil)
	_, chunks, err := uc.Stream(context.Background(), UpdateInput{Repositories: []string{r.dir}, Since: "2025-07-01"})
	require.NoError(t, err)

	var b strings.Builder
	var final string
	for c, err := range chunks {
		require.NoError(t, err)
		if c.Done {
			final = c.Text
			break
		}
		b.WriteString(c.Text)
	}
	assert.Equal(t, "Done with auth work", final)
	assert.Equal(t, final, b.String())
}

func TestChangesUseCase(t *testing.T) {
	r := updateFixture(t)
	uc := NewChangesUseCase(aggregatorFactory(t))

	current, err := uc.Execute(context.Background(), ChangesInput{Repositories: []string{r.dir}})
	require.NoError(t, err)
	assert.Nil(t, current.History)
	require.Len(t, current.Current, 1)
	assert.Equal(t, []string{"auth.go"}, current.Current[0].Modified)

	both, err := uc.Execute(context.Background(), ChangesInput{
		Repositories: []string{r.dir},
		Since:        "2025-07-01",
		WithCurrent:  true,
		WithDiffs:    true,
	})
	require.NoError(t, err)
	require.Len(t, both.History, 1)
	assert.Len(t, both.History[0].Commits, 1)
	require.Len(t, both.Current, 1)
	assert.Len(t, both.Current[0].Diffs, 1)

	_, err = uc.Execute(context.Background(), ChangesInput{Since: "01-07-2025"})
	assert.ErrorIs(t, err, ErrDateParse)
}

func TestStatusUseCase(t *testing.T) {
	r := updateFixture(t)
	r.setIdentity("Alice", "alice@example.com")
	missing := t.TempDir()

	out, err := NewStatusUseCase(aggregatorFactory(t), &fakeGenerator{}).Execute(context.Background(), []string{r.dir, missing})
	require.NoError(t, err)

	assert.True(t, out.Backend.Available)
	require.Len(t, out.Repositories, 2)
	assert.True(t, out.Repositories[0].Available)
	assert.Equal(t, "master", out.Repositories[0].Branch)
	assert.Equal(t, alice, out.Repositories[0].Identity)
	assert.False(t, out.Repositories[1].Available)

	out, err = NewStatusUseCase(aggregatorFactory(t), nil).Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, out.Backend.Available)
}

// objectGenerator also implements ObjectGenerator.
type objectGenerator struct {
	fakeGenerator
	result PathsAndSummary
	err    error
}

func (g *objectGenerator) GenerateObject(_ context.Context, _ string, target any) error {
	if g.err != nil {
		return g.err
	}
	*target.(*PathsAndSummary) = g.result
	return nil
}

func TestExtractPathsUseCase(t *testing.T) {
	note := "Worked on /srv/api and /srv/web today."

	t.Run("patterns only", func(t *testing.T) {
		out, err := NewExtractPathsUseCase(nil, nil, nil).Execute(context.Background(), ExtractInput{Text: note})
		require.NoError(t, err)
		assert.Equal(t, []string{"/srv/api", "/srv/web"}, out.Paths)
		assert.False(t, out.FromModel)
	})

	t.Run("model text", func(t *testing.T) {
		gen := &fakeGenerator{reply: func(string) (string, error) {
			return `{"project_paths": ["/srv/api"], "work_summary": "API work"}`, nil
		}}
		out, err := NewExtractPathsUseCase(gen, nil, nil).Execute(context.Background(), ExtractInput{Text: note, UseModel: true})
		require.NoError(t, err)
		assert.True(t, out.FromModel)
		assert.Equal(t, []string{"/srv/api"}, out.Paths)
		assert.Equal(t, "API work", out.WorkSummary)
		assert.Contains(t, gen.prompts[0], note)
	})

	t.Run("model garbage falls back", func(t *testing.T) {
		gen := &fakeGenerator{reply: func(string) (string, error) { return "no idea", nil }}
		out, err := NewExtractPathsUseCase(gen, nil, nil).Execute(context.Background(), ExtractInput{Text: note, UseModel: true})
		require.NoError(t, err)
		assert.False(t, out.FromModel)
		assert.Equal(t, "Failed to parse JSON: no idea", out.Message)
		assert.Equal(t, []string{"/srv/api", "/srv/web"}, out.Paths)
	})

	t.Run("structured output", func(t *testing.T) {
		gen := &objectGenerator{result: PathsAndSummary{ProjectPaths: []string{"/x"}, WorkSummary: "s"}}
		out, err := NewExtractPathsUseCase(gen, nil, nil).Execute(context.Background(), ExtractInput{Text: note, UseModel: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"/x"}, out.Paths)
		assert.Empty(t, gen.prompts, "structured path does not use Generate")
	})

	t.Run("structured error", func(t *testing.T) {
		gen := &objectGenerator{err: errors.New("quota")}
		out, err := NewExtractPathsUseCase(gen, nil, nil).Execute(context.Background(), ExtractInput{Text: note, UseModel: true})
		require.NoError(t, err)
		assert.Equal(t, "Error calling LLM: quota", out.Message)
		assert.Len(t, out.Paths, 2)
	})
}

func TestInitUseCase(t *testing.T) {
	work := t.TempDir()
	uc := NewInitUseCase(NewScopeResolverAt(t.TempDir(), work))

	out, err := uc.Execute(InitInput{Repositories: []string{"api"}})
	require.NoError(t, err)
	assert.True(t, out.Created)
	assert.Equal(t, ScopeProject, out.Scope.Type)
	assert.FileExists(t, out.ConfigPath)
	assert.FileExists(t, out.Scope.PromptsPath()+"/"+PromptDailyUpdate+".txt")

	cfg, err := LoadConfig(out.Scope)
	require.NoError(t, err)
	assert.Equal(t, []string{"api"}, cfg.Repositories)

	again, err := uc.Execute(InitInput{})
	require.NoError(t, err)
	assert.False(t, again.Created)

	forced, err := uc.Execute(InitInput{Force: true})
	require.NoError(t, err)
	assert.True(t, forced.Created)
}

func TestProviderUseCases(t *testing.T) {
	resolver := NewScopeResolverAt(t.TempDir(), t.TempDir())

	add := NewProviderAddUseCase(resolver)
	require.NoError(t, add.Execute(ProviderInput{Name: "openai", Config: ProviderConfig{APIKey: "k", Model: "gpt-4o"}}))
	assert.Error(t, add.Execute(ProviderInput{Name: "mystery"}))

	list, err := NewProviderListUseCase(resolver).Execute(ProviderInput{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, BackendOllama, list[0].Name)
	assert.True(t, list[0].Active)
	assert.Equal(t, "openai", list[1].Name)

	setDefault := NewProviderSetDefaultUseCase(resolver)
	require.NoError(t, setDefault.Execute(ProviderInput{Name: "openai"}))
	assert.Error(t, setDefault.Execute(ProviderInput{Name: "anthropic"}))

	cfg, err := LoadConfig(resolver.Resolve(""))
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Backend)
	assert.Equal(t, "openai", cfg.DefaultProvider)

	require.NoError(t, NewProviderRemoveUseCase(resolver).Execute(ProviderInput{Name: "openai"}))
	cfg, err = LoadConfig(resolver.Resolve(""))
	require.NoError(t, err)
	assert.Equal(t, BackendOllama, cfg.Backend)
	assert.Empty(t, cfg.Providers)

	_, err = NewProviderTestUseCase(resolver).Execute(context.Background(), ProviderInput{Name: "openai"})
	assert.Error(t, err)
}
