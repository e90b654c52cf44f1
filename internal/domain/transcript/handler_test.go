package transcript

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carevisit/carevisit/internal/platform/auth"
)

func newRetryContext(t *testing.T, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/retry-transcription", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, "user-1")
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRetryTranscription_ReturnsCount(t *testing.T) {
	f := newFixture()
	recordingID := uuid.New()
	key := f.storeAudio(t, "user-1", recordingID)
	f.svc.StartForRecording(context.Background(), recordingID, "user-1", key)
	tr, _ := f.repo.GetByRecordingID(context.Background(), recordingID)

	h := NewHandler(f.svc)
	c, rec := newRetryContext(t, `{"transcriptId":"`+tr.ID.String()+`"}`)

	if err := h.RetryTranscription(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["retryCount"] != 1 {
		t.Errorf("expected retryCount 1, got %d", resp["retryCount"])
	}
}

func TestRetryTranscription_LimitReturns400(t *testing.T) {
	f := newFixture()
	tr := &Transcript{RecordingID: uuid.New(), OwnerID: "user-1", Status: StatusFailed, RetryCount: MaxRetries}
	f.repo.Create(context.Background(), tr)

	h := NewHandler(f.svc)
	c, _ := newRetryContext(t, `{"transcriptId":"`+tr.ID.String()+`"}`)

	err := h.RetryTranscription(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 at retry limit, got %v", err)
	}
}

func TestRetryTranscription_InvalidID(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	c, _ := newRetryContext(t, `{"transcriptId":"nope"}`)

	err := h.RetryTranscription(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid id, got %v", err)
	}
}

func TestDeleteTranscript_QueryParam(t *testing.T) {
	f := newFixture()
	tr := &Transcript{RecordingID: uuid.New(), OwnerID: "user-1", Status: StatusFailed}
	f.repo.Create(context.Background(), tr)

	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/delete-transcript?transcriptId="+tr.ID.String(), nil)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, "user-1")
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewHandler(f.svc)
	if err := h.DeleteTranscript(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if _, err := f.repo.GetByID(context.Background(), tr.ID); err == nil {
		t.Error("expected transcript to be removed")
	}
}

func TestDeleteTranscript_ForeignOwner(t *testing.T) {
	f := newFixture()
	tr := &Transcript{RecordingID: uuid.New(), OwnerID: "someone-else", Status: StatusFailed}
	f.repo.Create(context.Background(), tr)

	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/delete-transcript?transcriptId="+tr.ID.String(), nil)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, "user-1")
	req = req.WithContext(ctx)
	c := e.NewContext(req, httptest.NewRecorder())

	h := NewHandler(f.svc)
	err := h.DeleteTranscript(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign transcript, got %v", err)
	}
}
