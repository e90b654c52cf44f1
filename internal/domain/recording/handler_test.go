package recording

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/carevisit/carevisit/internal/platform/auth"
	"github.com/carevisit/carevisit/internal/platform/blobstore"
)

func multipartBody(t *testing.T, title string, audio []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if title != "" {
		w.WriteField("title", title)
	}
	if audio != nil {
		part, err := w.CreateFormFile("file", "visit.webm")
		if err != nil {
			t.Fatalf("creating form file: %v", err)
		}
		part.Write(audio)
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

func newHandlerContext(t *testing.T, method, path string, body *bytes.Buffer, contentType string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, contentType)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, "user-1")
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestConvertAudio_ReturnsRecordingID(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo, blobstore.NewInMemoryStore())
	h := NewHandler(svc)

	body, contentType := multipartBody(t, "Checkup", []byte("audio-bytes"))
	c, rec := newHandlerContext(t, http.MethodPost, "/api/convert-audio", body, contentType)

	if err := h.ConvertAudio(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["recordingId"] == "" || resp["recordingId"] == nil {
		t.Error("expected recordingId in response")
	}
	if resp["status"] == nil {
		t.Error("expected status in response")
	}
}

func TestConvertAudio_MissingFile(t *testing.T) {
	svc, _ := newTestService(newMockRepo(), blobstore.NewInMemoryStore())
	h := NewHandler(svc)

	body, contentType := multipartBody(t, "Checkup", nil)
	c, _ := newHandlerContext(t, http.MethodPost, "/api/convert-audio", body, contentType)

	err := h.ConvertAudio(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing file, got %v", err)
	}
}

func TestListRecordings_OnlyOwnersRows(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo, blobstore.NewInMemoryStore())
	svc.Upload(context.Background(), "user-1", "mine", []byte("a"))
	svc.Upload(context.Background(), "user-2", "theirs", []byte("b"))

	h := NewHandler(svc)
	c, rec := newHandlerContext(t, http.MethodGet, "/api/recordings", bytes.NewBuffer(nil), "application/json")

	if err := h.ListRecordings(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp struct {
		Data  []Recording `json:"data"`
		Total int         `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("expected 1 recording for user-1, got %d", resp.Total)
	}
	if len(resp.Data) == 1 && resp.Data[0].Title != "mine" {
		t.Errorf("unexpected recording %q", resp.Data[0].Title)
	}
}

func TestGetRecording_InvalidID(t *testing.T) {
	svc, _ := newTestService(newMockRepo(), blobstore.NewInMemoryStore())
	h := NewHandler(svc)

	c, _ := newHandlerContext(t, http.MethodGet, "/api/recordings/abc", bytes.NewBuffer(nil), "application/json")
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.GetRecording(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid id, got %v", err)
	}
}
