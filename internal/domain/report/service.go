package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carevisit/carevisit/internal/clients/resend"
	"github.com/carevisit/carevisit/internal/platform/jobs"
	"github.com/carevisit/carevisit/internal/platform/websocket"
)

var (
	ErrNotFound      = errors.New("report not found")
	ErrForbidden     = errors.New("report belongs to another user")
	ErrNotCompleted  = errors.New("report is not completed")
	ErrEmailDisabled = errors.New("email delivery is not configured")
)

// Completer is the chat-completion dependency used to draft the report.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// TranscriptSource resolves a transcript the caller owns into its completed
// text. The transcript service implements it.
type TranscriptSource interface {
	CompletedText(ctx context.Context, ownerID string, transcriptID uuid.UUID) (string, uuid.UUID, error)
}

// EmailSender delivers rendered reports. The resend client implements it.
type EmailSender interface {
	Configured() bool
	Send(ctx context.Context, email resend.Email) (string, error)
}

type Service struct {
	repo        Repository
	llm         Completer
	transcripts TranscriptSource
	email       EmailSender
	jobs        jobs.Dispatcher
	events      websocket.EventPublisher
	logger      zerolog.Logger
}

func NewService(repo Repository, llm Completer, transcripts TranscriptSource, email EmailSender,
	dispatcher jobs.Dispatcher, events websocket.EventPublisher, logger zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		llm:         llm,
		transcripts: transcripts,
		email:       email,
		jobs:        dispatcher,
		events:      events,
		logger:      logger.With().Str("component", "report").Logger(),
	}
}

// Generate starts report generation for a completed transcript the caller
// owns and returns the report id. Repeated requests for the same transcript
// return the existing report instead of generating a second one; the unique
// constraint on transcript_id makes this hold under concurrency too.
func (s *Service) Generate(ctx context.Context, ownerID string, transcriptID uuid.UUID) (*MedicalReport, error) {
	text, recordingID, err := s.transcripts.CompletedText(ctx, ownerID, transcriptID)
	if err != nil {
		return nil, err
	}

	rep, created, err := s.repo.CreateOrGet(ctx, &MedicalReport{
		TranscriptID: transcriptID,
		RecordingID:  recordingID,
		OwnerID:      ownerID,
		Status:       StatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("creating report: %w", err)
	}
	if !created {
		return rep, nil
	}

	s.publishStatus(rep)
	id := rep.ID
	if !s.jobs.Submit("report.generate", func(jobCtx context.Context) {
		s.generate(jobCtx, id, text)
	}) {
		s.setFailed(ctx, id, "Report generation could not be scheduled")
	}
	return rep, nil
}

// TriggerGeneration is the pipeline entry point called by the transcript
// service when a transcription completes. Failures are logged, never
// surfaced to the transcription path.
func (s *Service) TriggerGeneration(ctx context.Context, transcriptID, recordingID uuid.UUID, ownerID, text string) {
	rep, created, err := s.repo.CreateOrGet(ctx, &MedicalReport{
		TranscriptID: transcriptID,
		RecordingID:  recordingID,
		OwnerID:      ownerID,
		Status:       StatusPending,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("transcript_id", transcriptID.String()).Msg("failed to create report row")
		return
	}
	if !created {
		return
	}

	s.publishStatus(rep)
	id := rep.ID
	if !s.jobs.Submit("report.generate", func(jobCtx context.Context) {
		s.generate(jobCtx, id, text)
	}) {
		s.setFailed(ctx, id, "Report generation could not be scheduled")
	}
}

// generate runs the model and validates its output. Validation is all or
// nothing: a response that fails any field check marks the report failed
// with no partial sections written.
func (s *Service) generate(ctx context.Context, id uuid.UUID, text string) {
	rep, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("report_id", id.String()).Msg("report vanished before generation")
		return
	}

	rep.Status = StatusProcessing
	if err := s.repo.Update(ctx, rep); err != nil {
		s.logger.Error().Err(err).Str("report_id", id.String()).Msg("failed to mark report processing")
		return
	}
	s.publishStatus(rep)

	raw, err := s.llm.Complete(ctx, reportPrompt, text)
	if err != nil {
		s.logger.Error().Err(err).Str("report_id", id.String()).Msg("report completion failed")
		s.setFailed(ctx, id, "Report generation failed: "+err.Error())
		return
	}

	parsed, err := parsePayload(raw)
	if err != nil {
		s.logger.Error().Err(err).Str("report_id", id.String()).Msg("rejecting malformed report payload")
		s.setFailed(ctx, id, invalidFormatMessage)
		return
	}

	rep.Status = StatusCompleted
	rep.PatientDemographics = parsed.PatientDemographics
	rep.ChiefComplaint = &parsed.ChiefComplaint
	rep.HPIDetails = &parsed.HPIDetails
	rep.MedicalHistory = parsed.MedicalHistory
	rep.SOAPNote = parsed.SOAPNote
	rep.RedFlags = parsed.RedFlags
	rep.PatientSummary = &parsed.PatientSummary
	rep.ErrorMessage = nil
	if err := s.repo.Update(ctx, rep); err != nil {
		s.logger.Error().Err(err).Str("report_id", id.String()).Msg("failed to store completed report")
		return
	}
	s.publishStatus(rep)
	s.logger.Info().Str("report_id", id.String()).Msg("medical report generated")
}

func (s *Service) setFailed(ctx context.Context, id uuid.UUID, message string) {
	rep, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("report_id", id.String()).Msg("cannot mark report failed")
		return
	}
	rep.Status = StatusFailed
	rep.ErrorMessage = &message
	if err := s.repo.Update(ctx, rep); err != nil {
		s.logger.Error().Err(err).Str("report_id", id.String()).Msg("failed to persist failure state")
		return
	}
	s.publishStatus(rep)
}

func (s *Service) publishStatus(rep *MedicalReport) {
	if s.events == nil {
		return
	}
	event := websocket.StatusEvent(websocket.ReportTopic(rep.ID.String()), "report", rep.ID.String(), string(rep.Status))
	if err := s.events.Publish(context.Background(), event); err != nil {
		s.logger.Warn().Err(err).Str("report_id", rep.ID.String()).Msg("failed to publish report status event")
	}
}

// Get returns a report visible to the caller: its owner or any caregiver it
// has been shared with.
func (s *Service) Get(ctx context.Context, userID string, id uuid.UUID) (*MedicalReport, error) {
	rep, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if rep.OwnerID == userID {
		return rep, nil
	}
	for _, cg := range rep.SharedCaregivers {
		if cg == userID {
			return rep, nil
		}
	}
	return nil, ErrForbidden
}

// GetByTranscript returns the caller's report for a transcript, if any.
func (s *Service) GetByTranscript(ctx context.Context, ownerID string, transcriptID uuid.UUID) (*MedicalReport, error) {
	rep, err := s.repo.GetByTranscriptID(ctx, transcriptID)
	if err != nil {
		return nil, ErrNotFound
	}
	if rep.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return rep, nil
}

func (s *Service) List(ctx context.Context, ownerID string, limit, offset int) ([]*MedicalReport, int, error) {
	return s.repo.ListByOwner(ctx, ownerID, limit, offset)
}

func (s *Service) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	rep, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return ErrNotFound
	}
	if rep.OwnerID != ownerID {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}

// Share grants a caregiver read access to the report. Sharing the same
// caregiver twice is a no-op.
func (s *Service) Share(ctx context.Context, ownerID string, id uuid.UUID, caregiverID string) error {
	rep, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return ErrNotFound
	}
	if rep.OwnerID != ownerID {
		return ErrForbidden
	}
	if rep.Status != StatusCompleted {
		return ErrNotCompleted
	}
	return s.repo.AppendSharedCaregiver(ctx, id, caregiverID)
}

// SendEmail renders a completed report and delivers it to the given
// recipients.
func (s *Service) SendEmail(ctx context.Context, ownerID string, id uuid.UUID, recipients []string) (string, error) {
	rep, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", ErrNotFound
	}
	if rep.OwnerID != ownerID {
		return "", ErrForbidden
	}
	if rep.Status != StatusCompleted {
		return "", ErrNotCompleted
	}
	if s.email == nil || !s.email.Configured() {
		return "", ErrEmailDisabled
	}

	html, plain, err := renderEmail(rep)
	if err != nil {
		return "", err
	}
	messageID, err := s.email.Send(ctx, resend.Email{
		To:      recipients,
		Subject: "Medical Visit Report",
		HTML:    html,
		Text:    plain,
	})
	if err != nil {
		return "", fmt.Errorf("sending report email: %w", err)
	}
	return messageID, nil
}
