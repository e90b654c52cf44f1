package transcript

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carevisit/carevisit/internal/platform/blobstore"
	"github.com/carevisit/carevisit/internal/platform/jobs"
	"github.com/carevisit/carevisit/internal/platform/websocket"
)

var (
	ErrNotFound   = errors.New("transcript not found")
	ErrForbidden  = errors.New("transcript does not belong to caller")
	ErrRetryLimit = errors.New("maximum retry attempts reached")
)

const notConfiguredMessage = "Transcription service not configured"

// SpeechToText is the transcription dependency, satisfied by the OpenAI
// client.
type SpeechToText interface {
	Configured() bool
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// Completer is the chat-completion dependency used by the structuring
// stage.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ReportTrigger kicks off medical report generation after a transcription
// completes. The report service implements it; main wires it in to avoid a
// package cycle.
type ReportTrigger interface {
	TriggerGeneration(ctx context.Context, transcriptID, recordingID uuid.UUID, ownerID, text string)
}

type Service struct {
	repo    Repository
	blobs   blobstore.Store
	stt     SpeechToText
	llm     Completer
	jobs    jobs.Dispatcher
	events  websocket.EventPublisher
	reports ReportTrigger
	logger  zerolog.Logger
}

func NewService(repo Repository, blobs blobstore.Store, stt SpeechToText, llm Completer,
	dispatcher jobs.Dispatcher, events websocket.EventPublisher, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		blobs:  blobs,
		stt:    stt,
		llm:    llm,
		jobs:   dispatcher,
		events: events,
		logger: logger.With().Str("component", "transcript").Logger(),
	}
}

// SetReportTrigger wires the report generation handoff. Called once from
// main after both services exist.
func (s *Service) SetReportTrigger(r ReportTrigger) { s.reports = r }

// StartForRecording creates the pending Transcript for a freshly converted
// recording and starts transcription. Without a configured speech-to-text
// credential the transcript is created failed with an explanatory message
// instead; that is a terminal state, not a retriable one.
func (s *Service) StartForRecording(ctx context.Context, recordingID uuid.UUID, ownerID, audioKey string) error {
	t := &Transcript{
		RecordingID: recordingID,
		OwnerID:     ownerID,
		Status:      StatusPending,
	}

	if s.stt == nil || !s.stt.Configured() {
		msg := notConfiguredMessage
		t.Status = StatusFailed
		t.ErrorMessage = &msg
		if err := s.repo.Create(ctx, t); err != nil {
			return fmt.Errorf("creating transcript: %w", err)
		}
		s.publishStatus(ctx, t)
		return nil
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return fmt.Errorf("creating transcript: %w", err)
	}
	s.publishStatus(ctx, t)

	id := t.ID
	if ok := s.jobs.Submit("transcript.transcribe", func(jobCtx context.Context) {
		s.transcribe(jobCtx, id, audioKey, true)
	}); !ok {
		s.setFailed(ctx, id, "transcription could not be scheduled")
	}
	return nil
}

// RecordConversionFailure creates a failed placeholder transcript so upload
// failures show up in the transcript list.
func (s *Service) RecordConversionFailure(ctx context.Context, recordingID uuid.UUID, ownerID, message string) error {
	t := &Transcript{
		RecordingID:  recordingID,
		OwnerID:      ownerID,
		Status:       StatusFailed,
		ErrorMessage: &message,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return fmt.Errorf("creating failed transcript: %w", err)
	}
	s.publishStatus(ctx, t)
	return nil
}

// transcribe is the background transcription stage. triggerReport controls
// whether a completed transcription also kicks off report generation; the
// retry path re-runs transcription and structuring but not the report.
func (s *Service) transcribe(ctx context.Context, id uuid.UUID, audioKey string, triggerReport bool) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("transcript_id", id.String()).Msg("transcription: row vanished")
		return
	}

	t.Status = StatusProcessing
	t.ErrorMessage = nil
	if err := s.repo.Update(ctx, t); err != nil {
		s.setFailed(ctx, id, fmt.Sprintf("updating status: %v", err))
		return
	}
	s.publishStatus(ctx, t)

	rc, _, err := s.blobs.Get(ctx, audioKey)
	if err != nil {
		s.setFailed(ctx, id, fmt.Sprintf("fetching audio: %v", err))
		return
	}
	defer rc.Close()

	text, err := s.stt.Transcribe(ctx, t.RecordingID.String()+".mp3", rc)
	if err != nil {
		s.setFailed(ctx, id, fmt.Sprintf("transcription failed: %v", err))
		return
	}

	t.Status = StatusCompleted
	t.TranscriptionText = &text
	t.ErrorMessage = nil
	if err := s.repo.Update(ctx, t); err != nil {
		s.setFailed(ctx, id, fmt.Sprintf("persisting transcription: %v", err))
		return
	}
	s.publishStatus(ctx, t)

	s.logger.Info().Str("transcript_id", id.String()).Int("chars", len(text)).Msg("transcription completed")

	// Structuring and report generation run independently; a failure in
	// either does not touch the completed transcription.
	if !s.jobs.Submit("transcript.structure", func(jobCtx context.Context) {
		s.structure(jobCtx, id)
	}) {
		s.logger.Warn().Str("transcript_id", id.String()).Msg("structuring job rejected, keeping raw transcript")
	}
	if triggerReport && s.reports != nil {
		s.reports.TriggerGeneration(ctx, t.ID, t.RecordingID, t.OwnerID, text)
	}
}

// structure asks the model to label speaker turns. Best-effort: failures
// are logged and the transcript keeps its completed status.
func (s *Service) structure(ctx context.Context, id uuid.UUID) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil || t.TranscriptionText == nil {
		return
	}

	if s.llm == nil {
		return
	}
	structured, err := s.llm.Complete(ctx, structuringPrompt, *t.TranscriptionText)
	if err != nil {
		s.logger.Warn().Err(err).Str("transcript_id", id.String()).Msg("structuring failed, keeping raw transcript")
		return
	}

	t.StructuredTranscript = &structured
	if err := s.repo.Update(ctx, t); err != nil {
		s.logger.Warn().Err(err).Str("transcript_id", id.String()).Msg("persisting structured transcript failed")
		return
	}
	s.publishStatus(ctx, t)
}

func (s *Service) setFailed(ctx context.Context, id uuid.UUID, message string) {
	s.logger.Error().Str("transcript_id", id.String()).Str("reason", message).Msg("transcript stage failed")

	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return
	}
	t.Status = StatusFailed
	t.ErrorMessage = &message
	if err := s.repo.Update(ctx, t); err != nil {
		s.logger.Error().Err(err).Str("transcript_id", id.String()).Msg("could not mark transcript failed")
		return
	}
	s.publishStatus(ctx, t)
}

func (s *Service) publishStatus(ctx context.Context, t *Transcript) {
	if s.events == nil {
		return
	}
	event := websocket.StatusEvent(websocket.TranscriptTopic(t.ID.String()), "transcript", t.ID.String(), string(t.Status))
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Msg("publishing transcript status event")
	}
}

// Retry re-runs transcription and structuring for a failed transcript. The
// medical report is not regenerated. Returns the new retry count.
func (s *Service) Retry(ctx context.Context, ownerID string, id uuid.UUID) (int, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return 0, ErrNotFound
	}
	if t.OwnerID != ownerID {
		return 0, ErrForbidden
	}
	if t.RetryCount >= MaxRetries {
		return t.RetryCount, ErrRetryLimit
	}

	t.RetryCount++
	t.ErrorMessage = nil
	t.Status = StatusPending
	if err := s.repo.Update(ctx, t); err != nil {
		return 0, fmt.Errorf("resetting transcript: %w", err)
	}
	s.publishStatus(ctx, t)

	audioKey := blobstore.ObjectKey(t.OwnerID, t.RecordingID.String())
	retryCount := t.RetryCount
	if ok := s.jobs.Submit("transcript.retry", func(jobCtx context.Context) {
		s.transcribe(jobCtx, id, audioKey, false)
	}); !ok {
		s.setFailed(ctx, id, "retry could not be scheduled")
	}
	return retryCount, nil
}

// Get returns one transcript after an ownership check.
func (s *Service) Get(ctx context.Context, ownerID string, id uuid.UUID) (*Transcript, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if t.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return t, nil
}

// GetByRecording returns the transcript attached to a recording.
func (s *Service) GetByRecording(ctx context.Context, ownerID string, recordingID uuid.UUID) (*Transcript, error) {
	t, err := s.repo.GetByRecordingID(ctx, recordingID)
	if err != nil {
		return nil, ErrNotFound
	}
	if t.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return t, nil
}

// List returns the caller's transcripts, newest first.
func (s *Service) List(ctx context.Context, ownerID string, limit, offset int) ([]*Transcript, int, error) {
	return s.repo.ListByOwner(ctx, ownerID, limit, offset)
}

// Delete removes a transcript after an ownership check.
func (s *Service) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// CompletedText returns the raw text of a completed transcript, used by the
// report service to validate its input.
func (s *Service) CompletedText(ctx context.Context, ownerID string, id uuid.UUID) (string, uuid.UUID, error) {
	t, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return "", uuid.Nil, err
	}
	if t.Status != StatusCompleted || t.TranscriptionText == nil {
		return "", uuid.Nil, fmt.Errorf("transcript %s is not completed", id)
	}
	return *t.TranscriptionText, t.RecordingID, nil
}
