package internal

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// NewGenerator builds the generation backend the config selects: the local
// Ollama client, or a hosted provider registered under cfg.Providers.
func NewGenerator(ctx context.Context, cfg *Config, logger *zap.Logger) (Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	backend := cfg.Backend
	if backend == "" {
		backend = BackendOllama
	}

	if backend == BackendOllama {
		return NewOllamaClient(OllamaConfig{
			Host:         cfg.Ollama.Host,
			Model:        cfg.Ollama.Model,
			Timeout:      cfg.Timeout,
			RemoveHidden: !cfg.KeepHidden,
			OpenMarker:   cfg.Markers.Open,
			CloseMarker:  cfg.Markers.Close,
			Logger:       logger.Named("ollama"),
		}), nil
	}

	pc, ok := cfg.Providers[backend]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not configured", ErrNoProvider, backend)
	}

	provider, err := NewFantasyProvider(ctx, FantasyConfig{
		Provider:     backend,
		APIKey:       pc.APIKey,
		BaseURL:      pc.BaseURL,
		Model:        pc.Model,
		RemoveHidden: !cfg.KeepHidden,
		OpenMarker:   cfg.Markers.Open,
		CloseMarker:  cfg.Markers.Close,
		Timeout:      cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", backend, err)
	}
	return provider, nil
}
