// Package vapi places outbound voice calls through the Vapi API. Call
// progress comes back asynchronously on the webhook endpoint; this client
// only starts calls and returns Vapi's call id for correlation.
package vapi

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

// ErrNotConfigured is returned when any of the four required settings is
// missing. Call placement hard-fails on it; there is no degraded mode.
var ErrNotConfigured = errors.New("vapi: call service not configured")

// Config carries the credentials injected at construction.
type Config struct {
	BaseURL       string
	PhoneNumberID string
	PrivateAPIKey string
	WorkflowID    string
}

func (c Config) complete() bool {
	return c.BaseURL != "" && c.PhoneNumberID != "" && c.PrivateAPIKey != "" && c.WorkflowID != ""
}

// CallRequest describes one outbound call. ScheduledCallID travels in the
// workflow variables so webhook events can be correlated back to our row.
type CallRequest struct {
	PhoneNumber     string
	ScheduledCallID string
	PatientName     string
	Variables       map[string]string
}

// Call is the subset of Vapi's call object we use.
type Call struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Client talks to the Vapi HTTP API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With().Str("component", "vapi").Logger(),
	}
}

// Configured reports whether all four required settings are present.
func (c *Client) Configured() bool {
	return c.cfg.complete()
}

type placeCallRequest struct {
	PhoneNumberID     string            `json:"phoneNumberId"`
	WorkflowID        string            `json:"workflowId"`
	Customer          customer          `json:"customer"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	WorkflowOverrides workflowOverrides `json:"workflowOverrides"`
}

type customer struct {
	Number string `json:"number"`
}

type workflowOverrides struct {
	VariableValues map[string]string `json:"variableValues"`
}

// PlaceCall starts an outbound call. The scheduled call id is carried both
// in metadata and in the workflow variable values because Vapi echoes the
// two back on different webhook event shapes.
func (c *Client) PlaceCall(ctx context.Context, req CallRequest) (*Call, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	variables := map[string]string{
		"scheduled_call_id": req.ScheduledCallID,
	}
	if req.PatientName != "" {
		variables["patient_name"] = req.PatientName
	}
	for k, v := range req.Variables {
		variables[k] = v
	}

	payload, err := json.Marshal(placeCallRequest{
		PhoneNumberID: c.cfg.PhoneNumberID,
		WorkflowID:    c.cfg.WorkflowID,
		Customer:      customer{Number: req.PhoneNumber},
		Metadata:      map[string]string{"scheduled_call_id": req.ScheduledCallID},
		WorkflowOverrides: workflowOverrides{
			VariableValues: variables,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding call request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/call", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building call request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.PrivateAPIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("placing call: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vapi returned status %d: %s", resp.StatusCode, body)
	}

	var call Call
	if err := json.Unmarshal(body, &call); err != nil {
		return nil, fmt.Errorf("decoding call response: %w", err)
	}
	if call.ID == "" {
		return nil, errors.New("vapi response has no call id")
	}

	c.logger.Info().
		Str("vapi_call_id", call.ID).
		Str("scheduled_call_id", req.ScheduledCallID).
		Msg("call placed")

	return &call, nil
}
