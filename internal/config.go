package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	gitconfig "github.com/go-git/go-git/v5/config"
	"gopkg.in/yaml.v3"
)

const BackendOllama = "ollama"

type OllamaSettings struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

type MarkerConfig struct {
	Open  string `yaml:"open"`
	Close string `yaml:"close"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model"`
}

type Config struct {
	Backend         string                    `yaml:"backend"`
	Ollama          OllamaSettings            `yaml:"ollama"`
	Timeout         time.Duration             `yaml:"timeout"`
	Concurrency     int                       `yaml:"concurrency,omitempty"`
	Author          string                    `yaml:"author,omitempty"`
	Repositories    []string                  `yaml:"repositories,omitempty"`
	Ignore          []string                  `yaml:"ignore,omitempty"`
	PromptsDir      string                    `yaml:"prompts_dir,omitempty"`
	LogLevel        string                    `yaml:"log_level,omitempty"`
	KeepHidden      bool                      `yaml:"keep_hidden,omitempty"`
	Markers         MarkerConfig              `yaml:"markers"`
	Providers       map[string]ProviderConfig `yaml:"providers,omitempty"`
	DefaultProvider string                    `yaml:"default_provider,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Backend: BackendOllama,
		Ollama: OllamaSettings{
			Host:  DefaultOllamaHost,
			Model: DefaultOllamaModel,
		},
		Timeout: DefaultTimeout,
		Markers: MarkerConfig{
			Open:  DefaultOpenMarker,
			Close: DefaultCloseMarker,
		},
		Providers: make(map[string]ProviderConfig),
	}
}

// LoadConfig reads the scope's config file. A missing file yields the
// defaults; fields left out of the file keep their default values.
func LoadConfig(scope Scope) (*Config, error) {
	path := scope.ConfigPath()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendOllama
	}
	if cfg.PromptsDir != "" && !filepath.IsAbs(cfg.PromptsDir) {
		cfg.PromptsDir = filepath.Join(scope.Path, cfg.PromptsDir)
	}

	return cfg, nil
}

func SaveConfig(scope Scope, cfg *Config) error {
	path := scope.ConfigPath()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// GlobalIdentity reads user.name and user.email from the user's global git
// config. Missing or unreadable config yields the zero Identity.
func GlobalIdentity() Identity {
	cfg, err := gitconfig.LoadConfig(gitconfig.GlobalScope)
	if err != nil || cfg == nil {
		return Identity{}
	}
	return Identity{Name: cfg.User.Name, Email: cfg.User.Email}
}
