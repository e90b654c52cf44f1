package recording

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carevisit/carevisit/internal/platform/blobstore"
	"github.com/carevisit/carevisit/internal/platform/jobs"
	"github.com/carevisit/carevisit/internal/platform/websocket"
)

var (
	ErrNotFound  = errors.New("recording not found")
	ErrForbidden = errors.New("recording does not belong to caller")
	ErrEmptyFile = errors.New("uploaded file is empty")
)

// TranscriptPipeline is the hook into the transcription stage. The recording
// service never imports the transcript package; main wires the transcript
// service in behind this interface.
type TranscriptPipeline interface {
	// StartForRecording creates a pending transcript for a converted
	// recording and kicks off transcription.
	StartForRecording(ctx context.Context, recordingID uuid.UUID, ownerID, audioKey string) error
	// RecordConversionFailure creates a failed placeholder transcript so
	// the transcript list always reflects upload failures.
	RecordConversionFailure(ctx context.Context, recordingID uuid.UUID, ownerID, message string) error
}

type Service struct {
	repo     Repository
	blobs    blobstore.Store
	jobs     jobs.Dispatcher
	events   websocket.EventPublisher
	pipeline TranscriptPipeline
	logger   zerolog.Logger
}

func NewService(repo Repository, blobs blobstore.Store, dispatcher jobs.Dispatcher, events websocket.EventPublisher, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		blobs:  blobs,
		jobs:   dispatcher,
		events: events,
		logger: logger.With().Str("component", "recording").Logger(),
	}
}

// SetTranscriptPipeline wires the transcription handoff. Called once from
// main after both services exist.
func (s *Service) SetTranscriptPipeline(p TranscriptPipeline) { s.pipeline = p }

// EstimateDuration derives a duration in seconds from blob size. There is
// no real audio inspection; the heuristic is one minute per megabyte with a
// 30 second floor.
func EstimateDuration(sizeBytes int64) int {
	sizeMB := float64(sizeBytes) / (1024 * 1024)
	seconds := int(sizeMB * 60)
	if seconds < 30 {
		return 30
	}
	return seconds
}

// Upload creates the Recording row and hands conversion to a background
// job. The caller gets the row back with status uploading before any of the
// pipeline runs.
func (s *Service) Upload(ctx context.Context, ownerID, title string, audio []byte) (*Recording, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyFile
	}
	if title == "" {
		title = "Untitled recording"
	}

	rec := &Recording{
		OwnerID: ownerID,
		Title:   title,
		Status:  StatusUploading,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("creating recording: %w", err)
	}

	id := rec.ID
	if ok := s.jobs.Submit("recording.convert", func(jobCtx context.Context) {
		s.convert(jobCtx, id, ownerID, audio)
	}); !ok {
		s.failConversion(ctx, id, ownerID, "conversion could not be scheduled")
	}

	return rec, nil
}

// convert is the background stage: pass the audio through as audio/mpeg,
// store the blob, estimate duration, mark the row ready, and hand off to
// transcription. Any failure marks the recording failed and records a
// failed placeholder transcript.
func (s *Service) convert(ctx context.Context, id uuid.UUID, ownerID string, audio []byte) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("recording_id", id.String()).Msg("conversion: recording row vanished")
		return
	}

	rec.Status = StatusConverting
	if err := s.repo.Update(ctx, rec); err != nil {
		s.failConversion(ctx, id, ownerID, fmt.Sprintf("updating status: %v", err))
		return
	}
	s.publishStatus(ctx, rec)

	// Pass-through conversion: the bytes are re-wrapped as audio/mpeg
	// rather than transcoded.
	key := blobstore.ObjectKey(ownerID, id.String())
	info, err := s.blobs.Put(ctx, key, "audio/mpeg", bytes.NewReader(audio))
	if err != nil {
		s.failConversion(ctx, id, ownerID, fmt.Sprintf("storing audio: %v", err))
		return
	}

	rec.FilePath = key
	rec.DurationSeconds = EstimateDuration(info.Size)
	rec.Status = StatusReady
	if err := s.repo.Update(ctx, rec); err != nil {
		s.failConversion(ctx, id, ownerID, fmt.Sprintf("finalizing recording: %v", err))
		return
	}
	s.publishStatus(ctx, rec)

	s.logger.Info().
		Str("recording_id", id.String()).
		Int("duration_seconds", rec.DurationSeconds).
		Msg("recording converted")

	if s.pipeline != nil {
		if err := s.pipeline.StartForRecording(ctx, id, ownerID, key); err != nil {
			s.logger.Error().Err(err).Str("recording_id", id.String()).Msg("transcription handoff failed")
		}
	}
}

// failConversion marks the recording failed and records the failure on a
// placeholder transcript. Errors here are logged, not raised; the caller's
// response already went out.
func (s *Service) failConversion(ctx context.Context, id uuid.UUID, ownerID, message string) {
	s.logger.Error().Str("recording_id", id.String()).Str("reason", message).Msg("conversion failed")

	rec, err := s.repo.GetByID(ctx, id)
	if err == nil {
		rec.Status = StatusFailed
		if err := s.repo.Update(ctx, rec); err != nil {
			s.logger.Error().Err(err).Str("recording_id", id.String()).Msg("could not mark recording failed")
		} else {
			s.publishStatus(ctx, rec)
		}
	}

	if s.pipeline != nil {
		if err := s.pipeline.RecordConversionFailure(ctx, id, ownerID, "Audio conversion failed: "+message); err != nil {
			s.logger.Error().Err(err).Str("recording_id", id.String()).Msg("could not record failed transcript")
		}
	}
}

func (s *Service) publishStatus(ctx context.Context, rec *Recording) {
	if s.events == nil {
		return
	}
	event := websocket.StatusEvent(websocket.RecordingTopic(rec.ID.String()), "recording", rec.ID.String(), string(rec.Status))
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Msg("publishing recording status event")
	}
}

// Get returns one recording after an ownership check.
func (s *Service) Get(ctx context.Context, ownerID string, id uuid.UUID) (*Recording, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if rec.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return rec, nil
}

// List returns the caller's recordings, newest first.
func (s *Service) List(ctx context.Context, ownerID string, limit, offset int) ([]*Recording, int, error) {
	return s.repo.ListByOwner(ctx, ownerID, limit, offset)
}

// Delete removes a recording and its stored audio.
func (s *Service) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	rec, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if rec.FilePath != "" {
		if err := s.blobs.Delete(ctx, rec.FilePath); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
			return fmt.Errorf("deleting audio blob: %w", err)
		}
	}
	return s.repo.Delete(ctx, id)
}
