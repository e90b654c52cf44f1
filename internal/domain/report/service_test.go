package report

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carevisit/carevisit/internal/clients/resend"
	"github.com/carevisit/carevisit/internal/platform/jobs"
)

type mockRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*MedicalReport
}

func newMockRepo() *mockRepo {
	return &mockRepo{byID: make(map[uuid.UUID]*MedicalReport)}
}

func (m *mockRepo) CreateOrGet(_ context.Context, r *MedicalReport) (*MedicalReport, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.TranscriptID == r.TranscriptID {
			cp := *existing
			return &cp, false, nil
		}
	}
	cp := *r
	cp.ID = uuid.New()
	cp.RedFlags = []string{}
	cp.SharedCaregivers = []string{}
	m.byID[cp.ID] = &cp
	out := cp
	return &out, true, nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*MedicalReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepo) GetByTranscriptID(_ context.Context, transcriptID uuid.UUID) (*MedicalReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.byID {
		if r.TranscriptID == transcriptID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, errors.New("no rows")
}

func (m *mockRepo) Update(_ context.Context, r *MedicalReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[r.ID]; !ok {
		return errors.New("no rows")
	}
	cp := *r
	m.byID[r.ID] = &cp
	return nil
}

func (m *mockRepo) AppendSharedCaregiver(_ context.Context, id uuid.UUID, caregiverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return errors.New("no rows")
	}
	for _, cg := range r.SharedCaregivers {
		if cg == caregiverID {
			return nil
		}
	}
	r.SharedCaregivers = append(r.SharedCaregivers, caregiverID)
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

func (m *mockRepo) ListByOwner(_ context.Context, ownerID string, limit, offset int) ([]*MedicalReport, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*MedicalReport
	for _, r := range m.byID {
		if r.OwnerID == ownerID {
			cp := *r
			items = append(items, &cp)
		}
	}
	return items, len(items), nil
}

type fakeCompleter struct {
	mu    sync.Mutex
	out   string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

type fakeTranscripts struct {
	text        string
	recordingID uuid.UUID
	err         error
}

func (f *fakeTranscripts) CompletedText(_ context.Context, _ string, _ uuid.UUID) (string, uuid.UUID, error) {
	if f.err != nil {
		return "", uuid.Nil, f.err
	}
	return f.text, f.recordingID, nil
}

type fakeEmail struct {
	configured bool
	sent       []resend.Email
	err        error
}

func (f *fakeEmail) Configured() bool { return f.configured }

func (f *fakeEmail) Send(_ context.Context, email resend.Email) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, email)
	return "msg-1", nil
}

type fixture struct {
	repo        *mockRepo
	llm         *fakeCompleter
	transcripts *fakeTranscripts
	email       *fakeEmail
	svc         *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:        newMockRepo(),
		llm:         &fakeCompleter{out: validResponse},
		transcripts: &fakeTranscripts{text: "Hello doctor", recordingID: uuid.New()},
		email:       &fakeEmail{configured: true},
	}
	f.svc = NewService(f.repo, f.llm, f.transcripts, f.email, jobs.Sync{}, nil, zerolog.Nop())
	return f
}

func (f *fixture) completedReport(t *testing.T, ownerID string) *MedicalReport {
	t.Helper()
	rep, err := f.svc.Generate(context.Background(), ownerID, uuid.New())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	stored, err := f.repo.GetByID(context.Background(), rep.ID)
	if err != nil {
		t.Fatalf("fetch report: %v", err)
	}
	if stored.Status != StatusCompleted {
		t.Fatalf("expected completed fixture report, got %s", stored.Status)
	}
	return stored
}

func TestGenerate_HappyPath(t *testing.T) {
	f := newFixture()

	rep, err := f.svc.Generate(context.Background(), "user-1", uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := f.repo.GetByID(context.Background(), rep.ID)
	if stored.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", stored.Status)
	}
	if stored.ChiefComplaint == nil || *stored.ChiefComplaint != "Chest pain for two days" {
		t.Errorf("unexpected chief complaint %v", stored.ChiefComplaint)
	}
	if len(stored.PatientDemographics) == 0 || len(stored.SOAPNote) == 0 {
		t.Error("expected structured sections to be written")
	}
	if stored.ErrorMessage != nil {
		t.Errorf("unexpected error message %q", *stored.ErrorMessage)
	}
	if stored.RecordingID != f.transcripts.recordingID {
		t.Errorf("report not linked to recording")
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	f := newFixture()
	transcriptID := uuid.New()

	first, err := f.svc.Generate(context.Background(), "user-1", transcriptID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.svc.Generate(context.Background(), "user-1", transcriptID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("expected same report id, got %s and %s", first.ID, second.ID)
	}
	if f.llm.calls != 1 {
		t.Errorf("expected one model call, got %d", f.llm.calls)
	}
}

func TestGenerate_InvalidModelOutput(t *testing.T) {
	f := newFixture()
	f.llm.out = "I'm sorry, I cannot produce a report."

	rep, err := f.svc.Generate(context.Background(), "user-1", uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := f.repo.GetByID(context.Background(), rep.ID)
	if stored.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", stored.Status)
	}
	if stored.ErrorMessage == nil || *stored.ErrorMessage != "Invalid response format from AI" {
		t.Errorf("unexpected error message %v", stored.ErrorMessage)
	}
	// No partial fields on a rejected response.
	if stored.ChiefComplaint != nil || stored.PatientSummary != nil ||
		len(stored.PatientDemographics) != 0 || len(stored.SOAPNote) != 0 {
		t.Error("expected no report fields on validation failure")
	}
}

func TestGenerate_PartiallyValidOutputRejected(t *testing.T) {
	f := newFixture()
	// Valid JSON missing one required field is still rejected whole.
	f.llm.out = strings.Replace(validResponse, `"patient_summary"`, `"notes"`, 1)

	rep, err := f.svc.Generate(context.Background(), "user-1", uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := f.repo.GetByID(context.Background(), rep.ID)
	if stored.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", stored.Status)
	}
	if stored.ChiefComplaint != nil {
		t.Error("expected no partial fields from a rejected response")
	}
}

func TestGenerate_CompletionFailure(t *testing.T) {
	f := newFixture()
	f.llm.err = errors.New("model unavailable")

	rep, err := f.svc.Generate(context.Background(), "user-1", uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := f.repo.GetByID(context.Background(), rep.ID)
	if stored.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", stored.Status)
	}
	if stored.ErrorMessage == nil || !strings.Contains(*stored.ErrorMessage, "model unavailable") {
		t.Errorf("unexpected error message %v", stored.ErrorMessage)
	}
}

func TestGenerate_TranscriptNotReady(t *testing.T) {
	f := newFixture()
	f.transcripts.err = errors.New("transcript is not completed")

	if _, err := f.svc.Generate(context.Background(), "user-1", uuid.New()); err == nil {
		t.Fatal("expected error for incomplete transcript")
	}
	if f.llm.calls != 0 {
		t.Errorf("expected no model calls, got %d", f.llm.calls)
	}
}

func TestTriggerGeneration_CreatesAndCompletes(t *testing.T) {
	f := newFixture()
	transcriptID := uuid.New()

	f.svc.TriggerGeneration(context.Background(), transcriptID, uuid.New(), "user-1", "Hello doctor")

	stored, err := f.repo.GetByTranscriptID(context.Background(), transcriptID)
	if err != nil {
		t.Fatalf("expected report row: %v", err)
	}
	if stored.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", stored.Status)
	}
}

func TestTriggerGeneration_SecondTriggerIsNoop(t *testing.T) {
	f := newFixture()
	transcriptID := uuid.New()

	f.svc.TriggerGeneration(context.Background(), transcriptID, uuid.New(), "user-1", "Hello doctor")
	f.svc.TriggerGeneration(context.Background(), transcriptID, uuid.New(), "user-1", "Hello doctor")

	if f.llm.calls != 1 {
		t.Errorf("expected one model call, got %d", f.llm.calls)
	}
}

func TestShare_AppendsCaregiverOnce(t *testing.T) {
	f := newFixture()
	rep := f.completedReport(t, "user-1")

	if err := f.svc.Share(context.Background(), "user-1", rep.ID, "caregiver-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.svc.Share(context.Background(), "user-1", rep.ID, "caregiver-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := f.repo.GetByID(context.Background(), rep.ID)
	if len(stored.SharedCaregivers) != 1 || stored.SharedCaregivers[0] != "caregiver-1" {
		t.Errorf("unexpected shared caregivers %v", stored.SharedCaregivers)
	}
}

func TestShare_RejectsForeignOwner(t *testing.T) {
	f := newFixture()
	rep := f.completedReport(t, "user-1")

	if err := f.svc.Share(context.Background(), "user-2", rep.ID, "caregiver-1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestGet_SharedCaregiverCanRead(t *testing.T) {
	f := newFixture()
	rep := f.completedReport(t, "user-1")
	f.svc.Share(context.Background(), "user-1", rep.ID, "caregiver-1")

	if _, err := f.svc.Get(context.Background(), "caregiver-1", rep.ID); err != nil {
		t.Errorf("expected shared caregiver to read report, got %v", err)
	}
	if _, err := f.svc.Get(context.Background(), "stranger", rep.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for stranger, got %v", err)
	}
}

func TestSendEmail_RendersBothBodies(t *testing.T) {
	f := newFixture()
	rep := f.completedReport(t, "user-1")

	messageID, err := f.svc.SendEmail(context.Background(), "user-1", rep.ID, []string{"caregiver@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if messageID != "msg-1" {
		t.Errorf("unexpected message id %q", messageID)
	}
	if len(f.email.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(f.email.sent))
	}
	sent := f.email.sent[0]
	if !strings.Contains(sent.HTML, "Chest pain for two days") {
		t.Error("html body missing chief complaint")
	}
	if !strings.Contains(sent.Text, "CHIEF COMPLAINT") {
		t.Error("text body missing section heading")
	}
}

func TestSendEmail_RequiresConfiguredProvider(t *testing.T) {
	f := newFixture()
	f.email.configured = false
	rep := f.completedReport(t, "user-1")

	if _, err := f.svc.SendEmail(context.Background(), "user-1", rep.ID, []string{"a@example.com"}); !errors.Is(err, ErrEmailDisabled) {
		t.Fatalf("expected ErrEmailDisabled, got %v", err)
	}
}

func TestSendEmail_RejectsIncompleteReport(t *testing.T) {
	f := newFixture()
	f.llm.err = errors.New("model unavailable")
	rep, _ := f.svc.Generate(context.Background(), "user-1", uuid.New())

	if _, err := f.svc.SendEmail(context.Background(), "user-1", rep.ID, []string{"a@example.com"}); !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("expected ErrNotCompleted, got %v", err)
	}
}
