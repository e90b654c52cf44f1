// Package openai wraps the two OpenAI endpoints the pipeline depends on:
// audio transcription (speech-to-text) and chat completions (transcript
// structuring and medical report synthesis).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"

	transcriptionModel = "whisper-1"
	completionModel    = "gpt-4o-mini"
)

// ErrNotConfigured is returned when the client was built without an API key.
// Callers surface it as a terminal failed status, never as a retriable error.
var ErrNotConfigured = errors.New("openai: api key not configured")

// Config carries the credentials injected at construction.
type Config struct {
	APIKey  string
	BaseURL string
}

// Client talks to the OpenAI HTTP API. Server errors and network failures
// are retried with exponential backoff; 4xx responses are permanent.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger.With().Str("component", "openai").Logger(),
	}
}

// Configured reports whether the client has a usable credential.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Transcribe sends audio to the transcription endpoint and returns the plain
// text result. The request asks for response_format=text so the body is the
// transcript itself, not a JSON envelope.
func (c *Client) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("building multipart form: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", fmt.Errorf("copying audio into form: %w", err)
	}
	if err := w.WriteField("model", transcriptionModel); err != nil {
		return "", fmt.Errorf("building multipart form: %w", err)
	}
	if err := w.WriteField("response_format", "text"); err != nil {
		return "", fmt.Errorf("building multipart form: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing multipart form: %w", err)
	}

	body := buf.Bytes()
	var text string

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/audio/transcriptions", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(resp.Body)
		if err := checkStatus(resp.StatusCode, respBody); err != nil {
			return err
		}

		text = strings.TrimSpace(string(respBody))
		return nil
	}

	if err := c.retry(ctx, "transcribe", operation); err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	return text, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends a system+user prompt pair to the chat completions endpoint
// and returns the assistant's text.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	messages := make([]chatMessage, 0, 2)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	payload, err := json.Marshal(chatRequest{
		Model:       completionModel,
		Messages:    messages,
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("encoding chat request: %w", err)
	}

	var content string

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(resp.Body)
		if err := checkStatus(resp.StatusCode, respBody); err != nil {
			return err
		}

		var parsed chatResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding chat response: %w", err))
		}
		if len(parsed.Choices) == 0 {
			return backoff.Permanent(errors.New("chat response has no choices"))
		}

		content = parsed.Choices[0].Message.Content
		return nil
	}

	if err := c.retry(ctx, "complete", operation); err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	return content, nil
}

// checkStatus maps HTTP statuses onto the retry policy: 2xx succeeds, 4xx is
// permanent (a retry cannot fix a bad request or bad credential), everything
// else is retriable.
func checkStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status >= 400 && status < 500:
		return backoff.Permanent(fmt.Errorf("openai returned status %d: %s", status, truncateBody(body)))
	default:
		return fmt.Errorf("openai returned status %d: %s", status, truncateBody(body))
	}
}

func truncateBody(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

func (c *Client) retry(ctx context.Context, op string, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = 30 * time.Second

	return backoff.RetryNotify(fn, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		c.logger.Warn().Err(err).Str("op", op).Dur("retry_in", wait).Msg("openai request failed, retrying")
	})
}
