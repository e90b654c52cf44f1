package resend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestSend_Success(t *testing.T) {
	var got sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emails" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer re-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(sendResponse{ID: "msg-1"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "re-key", FromEmail: "reports@carevisit.app", BaseURL: server.URL}, zerolog.Nop())
	id, err := client.Send(context.Background(), Email{
		To:      []string{"caregiver@example.com"},
		Subject: "Medical Report",
		HTML:    "<h1>Report</h1>",
		Text:    "Report",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "msg-1" {
		t.Errorf("unexpected message id %q", id)
	}
	if got.From != "reports@carevisit.app" {
		t.Errorf("unexpected from %q", got.From)
	}
	if len(got.To) != 1 || got.To[0] != "caregiver@example.com" {
		t.Errorf("unexpected recipients %v", got.To)
	}
}

func TestSend_NotConfigured(t *testing.T) {
	client := NewClient(Config{}, zerolog.Nop())
	if _, err := client.Send(context.Background(), Email{To: []string{"a@b.c"}}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSend_NoRecipients(t *testing.T) {
	client := NewClient(Config{APIKey: "re-key"}, zerolog.Nop())
	if _, err := client.Send(context.Background(), Email{}); err == nil {
		t.Fatal("expected error for empty recipient list")
	}
}

func TestSend_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid from address"}`, http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "re-key", BaseURL: server.URL}, zerolog.Nop())
	if _, err := client.Send(context.Background(), Email{To: []string{"a@b.c"}}); err == nil {
		t.Fatal("expected error for 422 response")
	}
}
