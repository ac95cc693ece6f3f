package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/4thel00z/daily/internal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// session is the resolved configuration of one command run: the scope's
// config file with command-line flags applied on top.
type session struct {
	scope    internal.Scope
	cfg      *internal.Config
	logger   *zap.Logger
	prompts  *internal.PromptAssembler
	identity internal.Identity
}

type sessionFactory func(cmd *cobra.Command) (*session, error)

func newSessionFactory(resolver *internal.ScopeResolver) sessionFactory {
	return func(cmd *cobra.Command) (*session, error) {
		scopeHint, _ := cmd.Flags().GetString("scope")
		scope := resolver.Resolve(scopeHint)

		cfg, err := internal.LoadConfig(scope)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		applyFlagOverrides(cmd, cfg)

		logger, err := internal.NewLogger(cfg.LogLevel)
		if err != nil {
			return nil, err
		}

		promptsDir := cfg.PromptsDir
		if promptsDir == "" {
			promptsDir = scope.PromptsPath()
		}

		return &session{
			scope:    scope,
			cfg:      cfg,
			logger:   logger,
			prompts:  internal.NewPromptAssembler(promptsDir),
			identity: internal.GlobalIdentity(),
		}, nil
	}
}

func applyFlagOverrides(cmd *cobra.Command, cfg *internal.Config) {
	flags := cmd.Flags()

	if flags.Changed("backend") {
		cfg.Backend, _ = flags.GetString("backend")
	}
	if flags.Changed("host") {
		cfg.Ollama.Host, _ = flags.GetString("host")
	}
	if flags.Changed("model") {
		model, _ := flags.GetString("model")
		if pc, ok := cfg.Providers[cfg.Backend]; ok {
			pc.Model = model
			cfg.Providers[cfg.Backend] = pc
		} else {
			cfg.Ollama.Model = model
		}
	}
	if flags.Changed("timeout") {
		cfg.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("keep-hidden") {
		cfg.KeepHidden, _ = flags.GetBool("keep-hidden")
	}
	if flags.Changed("author") {
		cfg.Author, _ = flags.GetString("author")
	}
}

// repositories picks the paths to scan: --repo flags, then positional
// arguments, then the config, then the working directory.
func (s *session) repositories(cmd *cobra.Command, args []string) []string {
	if repos, _ := cmd.Flags().GetStringSlice("repo"); len(repos) > 0 {
		return repos
	}
	if len(args) > 0 {
		return args
	}
	if len(s.cfg.Repositories) > 0 {
		out := make([]string, 0, len(s.cfg.Repositories))
		for _, p := range s.cfg.Repositories {
			if !filepath.IsAbs(p) && s.scope.Type == internal.ScopeProject {
				p = filepath.Join(s.scope.Path, p)
			}
			out = append(out, p)
		}
		return out
	}
	cwd, err := os.Getwd()
	if err != nil {
		return []string{"."}
	}
	return []string{cwd}
}

func (s *session) aggregatorFactory() internal.AggregatorFactory {
	return func(paths []string) *internal.Aggregator {
		return internal.NewAggregator(paths,
			internal.WithGlobalIdentity(s.identity),
			internal.WithConcurrency(s.cfg.Concurrency),
			internal.WithIgnorePatterns(s.cfg.Ignore),
			internal.WithLogger(s.logger.Named("aggregator")),
		)
	}
}

func (s *session) generator(ctx context.Context) (internal.Generator, error) {
	return internal.NewGenerator(ctx, s.cfg, s.logger)
}

func (s *session) close() {
	_ = s.logger.Sync()
}
