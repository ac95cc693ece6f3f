package v1

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	repositories []string
	host         string
	model        string
	author       string
	timeout      time.Duration
	concurrency  int
	keepHidden   bool
	promptsDir   string
	httpClient   *http.Client
	logger       *zap.Logger
}

// WithRepositories sets the repositories every request scans.
func WithRepositories(paths ...string) Option {
	return func(c *clientConfig) {
		c.repositories = append(c.repositories, paths...)
	}
}

// WithHost sets the Ollama host URL.
func WithHost(host string) Option {
	return func(c *clientConfig) {
		c.host = host
	}
}

// WithModel sets the Ollama model name.
func WithModel(model string) Option {
	return func(c *clientConfig) {
		c.model = model
	}
}

// WithAuthor sets the default author filter for history queries.
func WithAuthor(author string) Option {
	return func(c *clientConfig) {
		c.author = author
	}
}

// WithTimeout bounds each generation request.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithConcurrency bounds how many repositories are scanned at once.
func WithConcurrency(n int) Option {
	return func(c *clientConfig) {
		c.concurrency = n
	}
}

// WithKeepHidden keeps <think> sections in generated text.
func WithKeepHidden() Option {
	return func(c *clientConfig) {
		c.keepHidden = true
	}
}

// WithPromptsDir overrides the built-in prompt templates with files from dir.
func WithPromptsDir(dir string) Option {
	return func(c *clientConfig) {
		c.promptsDir = dir
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}
