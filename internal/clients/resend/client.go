// Package resend sends transactional email through the Resend API, used to
// share generated medical reports with caregivers.
package resend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const DefaultBaseURL = "https://api.resend.com"

// ErrNotConfigured is returned when the client has no API key.
var ErrNotConfigured = errors.New("resend: api key not configured")

// Config carries the credentials injected at construction.
type Config struct {
	APIKey    string
	FromEmail string
	BaseURL   string
}

// Email is one outbound message. HTML and Text are both sent so clients
// without HTML rendering still get a readable report.
type Email struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// Client talks to the Resend HTTP API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.With().Str("component", "resend").Logger(),
	}
}

// Configured reports whether the client has a usable credential.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// Send delivers the email and returns the provider's message id.
func (c *Client) Send(ctx context.Context, email Email) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if len(email.To) == 0 {
		return "", errors.New("resend: at least one recipient is required")
	}

	payload, err := json.Marshal(sendRequest{
		From:    c.cfg.FromEmail,
		To:      email.To,
		Subject: email.Subject,
		HTML:    email.HTML,
		Text:    email.Text,
	})
	if err != nil {
		return "", fmt.Errorf("encoding email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending email: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("resend returned status %d: %s", resp.StatusCode, body)
	}

	var parsed sendResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding email response: %w", err)
	}

	c.logger.Info().Str("message_id", parsed.ID).Int("recipients", len(email.To)).Msg("email sent")
	return parsed.ID, nil
}
