package internal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "qwen3"
	DefaultTimeout     = 5 * time.Minute

	healthTimeout   = 2 * time.Second
	maxStreamLine   = 4 * 1024 * 1024
	maxErrorSnippet = 512
)

type OllamaConfig struct {
	Host         string
	Model        string
	Timeout      time.Duration
	RemoveHidden bool
	OpenMarker   string
	CloseMarker  string
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

var _ Generator = (*OllamaClient)(nil)

// OllamaClient talks to a local Ollama-compatible /api/generate endpoint.
type OllamaClient struct {
	host         string
	model        string
	timeout      time.Duration
	removeHidden bool
	open         string
	close        string
	client       *http.Client
	logger       *zap.Logger
}

func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	c := &OllamaClient{
		host:         strings.TrimRight(cfg.Host, "/"),
		model:        cfg.Model,
		timeout:      cfg.Timeout,
		removeHidden: cfg.RemoveHidden,
		open:         cfg.OpenMarker,
		close:        cfg.CloseMarker,
		client:       cfg.HTTPClient,
		logger:       cfg.Logger,
	}
	if c.host == "" {
		c.host = DefaultOllamaHost
	}
	if c.model == "" {
		c.model = DefaultOllamaModel
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.client == nil {
		c.client = http.DefaultClient
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type streamRecord struct {
	Response *string `json:"response"`
	Done     bool    `json:"done"`
	Error    string  `json:"error"`
}

func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.post(ctx, prompt, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var data any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", readError(ctx, fmt.Errorf("decode response: %w", err))
	}

	text := ExtractResponseText(data)
	if c.removeHidden {
		text = RemoveHidden(text, c.open, c.close)
	}
	return text, nil
}

// Stream posts the prompt in streaming mode. The returned sequence performs
// the request when ranged over and can be consumed only once.
func (c *OllamaClient) Stream(ctx context.Context, prompt string) iter.Seq2[Chunk, error] {
	var filter *HiddenFilter
	if c.removeHidden {
		filter = NewHiddenFilter(c.open, c.close)
	}
	return singleUse(FilterStream(c.rawStream(ctx, prompt), filter))
}

func (c *OllamaClient) rawStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.post(ctx, prompt, true)
		if err != nil {
			yield("", err)
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLine)

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var rec streamRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				c.logger.Debug("skipping stream record",
					zap.Error(ErrMalformedStreamRecord),
					zap.ByteString("line", truncateBytes(line, maxErrorSnippet)),
				)
				continue
			}
			if rec.Error != "" {
				yield("", fmt.Errorf("backend error: %s", rec.Error))
				return
			}
			if rec.Response != nil {
				if !yield(*rec.Response, nil) {
					return
				}
			}
			if rec.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield("", readError(ctx, fmt.Errorf("read stream: %w", err)))
		}
	}
}

func (c *OllamaClient) post(ctx context.Context, prompt string, stream bool) (*http.Response, error) {
	body, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt, Stream: stream})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorSnippet))
		return nil, fmt.Errorf("backend returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	return resp, nil
}

// Check reports whether the backend answers and lists the configured model.
func (c *OllamaClient) Check(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return Health{Message: fmt.Sprintf("Error connecting to Ollama: %v", err)}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(classifyTransportError(ctx, err), ErrBackendUnreachable) {
			return Health{Message: fmt.Sprintf(
				"Ollama is not running or not reachable at %s. Please install and start Ollama: https://ollama.com/download",
				c.host,
			)}
		}
		return Health{Message: fmt.Sprintf("Error connecting to Ollama: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Health{Message: fmt.Sprintf("Error connecting to Ollama: %s", resp.Status)}
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return Health{Message: fmt.Sprintf("Error checking model %q: %v", c.model, err)}
	}

	want := strings.ToLower(c.model)
	for _, m := range tags.Models {
		if strings.Contains(strings.ToLower(m.Name), want) {
			return Health{Available: true, Message: fmt.Sprintf("Ollama and model %q are available.", c.model)}
		}
	}

	return Health{Message: fmt.Sprintf(
		"Model %q is not available in Ollama. Run: ollama pull %s", c.model, c.model,
	)}
}

// ExtractResponseText locates the generated text in a decoded response. It
// tries a top-level "response", then the first nested object holding a
// "response" (keys in sorted order), then an OpenAI-style
// choices[0].message.content, and finally the whole object as JSON.
func ExtractResponseText(data any) string {
	obj, ok := data.(map[string]any)
	if !ok {
		return stringify(data)
	}

	if v, ok := obj["response"]; ok {
		return stringify(v)
	}

	var text string

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if nested, ok := obj[k].(map[string]any); ok {
			if v, ok := nested["response"]; ok {
				text = stringify(v)
				break
			}
		}
	}

	if text == "" {
		text = openAIContent(obj)
	}
	if text == "" {
		text = stringify(obj)
	}
	return text
}

func openAIContent(obj map[string]any) string {
	choices, ok := obj["choices"].([]any)
	if !ok || len(choices) == 0 {
		return ""
	}
	choice, ok := choices[0].(map[string]any)
	if !ok {
		return ""
	}
	message, ok := choice["message"].(map[string]any)
	if !ok {
		return ""
	}
	content, _ := message["content"].(string)
	return content
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// classifyTransportError maps transport failures onto ErrBackendTimeout and
// ErrBackendUnreachable. Caller cancellation is returned unchanged.
func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrBackendTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrBackendTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
}

// readError classifies a failure while reading a response body. Only a
// context that ran out turns it into a transport error.
func readError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return classifyTransportError(ctx, err)
	}
	return err
}

func truncateBytes(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
