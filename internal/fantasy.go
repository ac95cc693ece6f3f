package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net"
	"reflect"
	"time"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
	"charm.land/fantasy/providers/openai"
	"charm.land/fantasy/providers/openrouter"
	"charm.land/fantasy/schema"
)

type FantasyConfig struct {
	Provider     string
	APIKey       string
	BaseURL      string
	Model        string
	RemoveHidden bool
	OpenMarker   string
	CloseMarker  string
	Timeout      time.Duration
}

var (
	_ Generator       = (*FantasyProvider)(nil)
	_ ObjectGenerator = (*FantasyProvider)(nil)
)

// FantasyProvider generates through a hosted provider (or any
// OpenAI-compatible base URL) using the fantasy agent API.
type FantasyProvider struct {
	model        fantasy.LanguageModel
	name         string
	removeHidden bool
	open         string
	close        string
	timeout      time.Duration
}

func NewFantasyProvider(ctx context.Context, cfg FantasyConfig) (*FantasyProvider, error) {
	var provider fantasy.Provider
	var err error

	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		provider, err = openai.New(opts...)

	case "anthropic":
		opts := []anthropic.Option{anthropic.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		provider, err = anthropic.New(opts...)

	case "openrouter":
		opts := []openrouter.Option{openrouter.WithAPIKey(cfg.APIKey)}
		provider, err = openrouter.New(opts...)

	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	model, err := provider.LanguageModel(ctx, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("get language model: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &FantasyProvider{
		model:        model,
		name:         cfg.Provider,
		removeHidden: cfg.RemoveHidden,
		open:         cfg.OpenMarker,
		close:        cfg.CloseMarker,
		timeout:      timeout,
	}, nil
}

func (p *FantasyProvider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

// classifyProviderError maps deadlines and network failures onto the backend
// sentinels. Errors reported by the provider itself pass through.
func classifyProviderError(ctx context.Context, err error) error {
	var netErr net.Error
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return classifyTransportError(ctx, err)
	}
	return err
}

func (p *FantasyProvider) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	agent := fantasy.NewAgent(p.model)

	result, err := agent.Generate(ctx, fantasy.AgentCall{
		Prompt: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", classifyProviderError(ctx, err))
	}

	text := result.Response.Content.Text()
	if p.removeHidden {
		text = RemoveHidden(text, p.open, p.close)
	}
	return text, nil
}

// GenerateObject asks for JSON matching target's schema and decodes the
// parsed object into target, which must be a pointer.
func (p *FantasyProvider) GenerateObject(ctx context.Context, prompt string, target any) error {
	t := reflect.TypeOf(target)
	if t == nil || t.Kind() != reflect.Ptr {
		return fmt.Errorf("target must be a pointer")
	}
	t = t.Elem()

	s := schema.Generate(t)

	call := fantasy.ObjectCall{
		Prompt: fantasy.Prompt{fantasy.NewUserMessage(prompt)},
		Schema: s,
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	resp, err := p.model.GenerateObject(ctx, call)
	if err != nil {
		return fmt.Errorf("generate object: %w", classifyProviderError(ctx, err))
	}

	// The provider hands back the schema-validated value as generic JSON
	// (map[string]any), so it is re-encoded into the caller's type.
	raw := []byte(resp.RawText)
	if resp.Object != nil {
		if raw, err = json.Marshal(resp.Object); err != nil {
			return fmt.Errorf("encode object: %w", err)
		}
	}
	if len(raw) == 0 {
		return fmt.Errorf("decode object: empty response")
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode object: %w", err)
	}
	return nil
}

func (p *FantasyProvider) Stream(ctx context.Context, prompt string) iter.Seq2[Chunk, error] {
	var filter *HiddenFilter
	if p.removeHidden {
		filter = NewHiddenFilter(p.open, p.close)
	}
	return singleUse(FilterStream(p.deltas(ctx, prompt), filter))
}

// deltas adapts the agent's text-delta callback into a pull sequence. The
// agent runs in its own goroutine and stops when the consumer does.
func (p *FantasyProvider) deltas(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := p.withTimeout(ctx)
		defer cancel()

		agent := fantasy.NewAgent(p.model)
		ch := make(chan string, 100)
		errc := make(chan error, 1)

		go func() {
			defer close(ch)

			_, err := agent.Stream(ctx, fantasy.AgentStreamCall{
				Prompt: prompt,
				OnTextDelta: func(_, text string) error {
					if text == "" {
						return nil
					}
					select {
					case ch <- text:
						return nil
					case <-ctx.Done():
						return ctx.Err()
					}
				},
			})
			if err != nil {
				errc <- fmt.Errorf("stream: %w", classifyProviderError(ctx, err))
			}
		}()

		for text := range ch {
			if !yield(text, nil) {
				return
			}
		}

		select {
		case err := <-errc:
			yield("", err)
		default:
		}
	}
}

// Check issues a tiny completion; fantasy exposes no model listing.
func (p *FantasyProvider) Check(ctx context.Context) Health {
	if _, err := p.Generate(ctx, "Say hello"); err != nil {
		return Health{Message: fmt.Sprintf("Provider %s is not available: %v", p.name, err)}
	}
	return Health{Available: true, Message: fmt.Sprintf("Provider %s is available.", p.name)}
}
