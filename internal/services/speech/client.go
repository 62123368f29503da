package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mmoto/internal/services"
	"mmoto/internal/services/llm"
)

const defaultHTTPTimeout = 120 * time.Second

// Config captures the OpenAI-compatible audio endpoint settings.
type Config struct {
	APIKey         string
	BaseURL        string
	TTSModel       string
	Voice          string
	STTModel       string
	TimeoutSeconds int
}

// Client talks to /audio/speech and /audio/transcriptions.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retry      llm.RetryPolicy
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy llm.RetryPolicy) Option {
	return func(c *Client) {
		c.retry = policy
	}
}

// NewClient constructs a speech client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		retry:      llm.DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Synthesize renders text to speech and writes the audio to dest. An empty
// voice uses the configured default. The language is advisory and sent as
// an instruction hint for multilingual voices.
func (c *Client) Synthesize(ctx context.Context, text, voice, language, dest string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", services.Wrap(services.ErrValidation, "narration", "synthesize", "empty text", nil)
	}
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "narration", "synthesize", "speech api key required", nil)
	}
	if strings.TrimSpace(voice) == "" {
		voice = c.cfg.Voice
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(dest)), ".")
	if format == "" {
		format = "mp3"
	}
	payload := map[string]string{
		"model":           c.cfg.TTSModel,
		"input":           text,
		"voice":           voice,
		"response_format": format,
	}
	if lang := strings.TrimSpace(language); lang != "" {
		payload["instructions"] = "Speak in language: " + lang
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("speech synthesize: encode body: %w", err)
	}

	body, err := c.doWithRetry(ctx, "speech synthesize", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/audio/speech", bytes.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", err
	}
	if len(body) == 0 {
		return "", services.Wrap(services.ErrExternalTool, "narration", "synthesize", "empty audio response", nil)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("speech synthesize: create dir: %w", err)
	}
	if err := os.WriteFile(dest, body, 0o644); err != nil {
		return "", fmt.Errorf("speech synthesize: write %s: %w", dest, err)
	}
	return dest, nil
}

// Transcribe uploads audioPath and returns the raw verbose_json transcript
// with word-level timestamps.
func (c *Client) Transcribe(ctx context.Context, audioPath string) ([]byte, error) {
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "timing", "transcribe", "speech api key required", nil)
	}
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "timing", "transcribe", "read audio", err)
	}

	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	fields := [][2]string{
		{"model", c.cfg.STTModel},
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "word"},
		{"timestamp_granularities[]", "segment"},
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, fmt.Errorf("speech transcribe: write field: %w", err)
		}
	}
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("speech transcribe: create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("speech transcribe: write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("speech transcribe: close form: %w", err)
	}
	encoded := form.Bytes()
	contentType := writer.FormDataContentType()

	return c.doWithRetry(ctx, "speech transcribe", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/audio/transcriptions", bytes.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
}

func (c *Client) doWithRetry(ctx context.Context, op string, build func() (*http.Request, error)) ([]byte, error) {
	attempts := c.retry.Attempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		body, err := c.doOnce(op, build)
		if err == nil {
			return body, nil
		}
		delay, retry := c.retry.Delay(ctx, err, attempt)
		if !retry {
			return nil, err
		}
		if err := c.retry.Sleep(ctx, delay); err != nil {
			return nil, err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	return nil, fmt.Errorf("%s: failed after %d attempts: %w", op, attempts, lastErr)
}

func (c *Client) doOnce(op string, build func() (*http.Request, error)) ([]byte, error) {
	req, err := build()
	if err != nil {
		return nil, fmt.Errorf("%s: new request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: http error: %w", op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := llm.ParseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &llm.StatusError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       llm.Snippet(string(body)),
			RetryAfter: retryAfter,
		}
	}
	return body, nil
}
