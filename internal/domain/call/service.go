package call

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/carevisit/carevisit/internal/clients/vapi"
	"github.com/carevisit/carevisit/internal/platform/jobs"
	"github.com/carevisit/carevisit/internal/platform/websocket"
)

var (
	ErrNotFound  = errors.New("scheduled call not found")
	ErrForbidden = errors.New("scheduled call belongs to another user")
)

// dedupCacheSize bounds the replay window for webhook deliveries. The
// provider retries deliveries on its own schedule; a bounded LRU is enough
// to absorb the common duplicate bursts without unbounded growth.
const dedupCacheSize = 1024

// Dialer places outbound calls. The vapi client implements it.
type Dialer interface {
	Configured() bool
	PlaceCall(ctx context.Context, req vapi.CallRequest) (*vapi.Call, error)
}

// WebhookResult is the acknowledgment body returned for every processed
// event. Success is true even when the event matched nothing; the provider
// must not retry deliveries the application cannot act on.
type WebhookResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// StatusResult is the polling view of one scheduled call.
type StatusResult struct {
	Found            bool           `json:"found"`
	WebhookProcessed bool           `json:"webhookProcessed"`
	CallRecord       *ScheduledCall `json:"callRecord,omitempty"`
	Summary          *string        `json:"summary,omitempty"`
}

type Service struct {
	repo   Repository
	dialer Dialer
	jobs   jobs.Dispatcher
	events websocket.EventPublisher
	seen   *lru.Cache[string, struct{}]
	logger zerolog.Logger

	// simulateStepDelay paces the demo lifecycle walk; tests set it to zero.
	simulateStepDelay time.Duration
}

func NewService(repo Repository, dialer Dialer, dispatcher jobs.Dispatcher,
	events websocket.EventPublisher, logger zerolog.Logger) *Service {
	seen, _ := lru.New[string, struct{}](dedupCacheSize)
	return &Service{
		repo:              repo,
		dialer:            dialer,
		jobs:              dispatcher,
		events:            events,
		seen:              seen,
		logger:            logger.With().Str("component", "call").Logger(),
		simulateStepDelay: 2 * time.Second,
	}
}

// HandleWebhook merges one provider event into the matching ScheduledCall.
// Resolution tries the application correlation id first and falls back to
// the provider's call id; an event matching neither is acknowledged and
// dropped. All failures after resolution are logged, not surfaced: the
// provider retrying a delivery cannot fix a condition on our side.
func (s *Service) HandleWebhook(ctx context.Context, event *WebhookEvent) *WebhookResult {
	logger := s.logger.With().Str("event_type", event.Type).Str("vapi_call_id", event.Call.ID).Logger()

	if key, ok := event.DedupKey(); ok {
		if found, _ := s.seen.ContainsOrAdd(key, struct{}{}); found {
			logger.Debug().Msg("duplicate webhook delivery ignored")
			return &WebhookResult{Success: true, Message: "duplicate event"}
		}
	}

	rec := s.resolve(ctx, &event.Call)
	if rec == nil {
		logger.Info().Msg("webhook event matched no scheduled call")
		return &WebhookResult{Success: true, Message: "no matching call"}
	}

	s.applyEvent(rec, event)

	if rec.VapiCallID == nil && event.Call.ID != "" {
		id := event.Call.ID
		rec.VapiCallID = &id
	}
	rec.WebhookProcessed = true

	if err := s.repo.Update(ctx, rec); err != nil {
		logger.Error().Err(err).Str("scheduled_call_id", rec.ID.String()).Msg("failed to persist webhook update")
		return &WebhookResult{Success: true, Message: "update failed"}
	}
	s.publishStatus(rec)
	logger.Info().Str("scheduled_call_id", rec.ID.String()).Str("status", string(rec.Status)).Msg("webhook event applied")
	return &WebhookResult{Success: true}
}

func (s *Service) resolve(ctx context.Context, c *WebhookCall) *ScheduledCall {
	if corr := c.CorrelationID(); corr != "" {
		if id, err := uuid.Parse(corr); err == nil {
			if rec, err := s.repo.GetByID(ctx, id); err == nil {
				return rec
			}
		}
	}
	if c.ID != "" {
		if rec, err := s.repo.GetByVapiCallID(ctx, c.ID); err == nil {
			return rec
		}
	}
	return nil
}

// applyEvent mutates the record per the event type. Unknown event types
// update nothing but still mark the record as webhook-processed.
func (s *Service) applyEvent(rec *ScheduledCall, event *WebhookEvent) {
	switch event.Type {
	case "call-started":
		rec.Status = StatusInProgress
	case "call-ended":
		rec.Status, rec.ErrorMessage = statusFromEndedReason(event.Call.EndedReason)
		if event.Call.Duration != nil {
			d := int(*event.Call.Duration)
			rec.CallDuration = &d
		}
		if summary := summarizeTranscript(event.Call.Transcript); summary != "" {
			rec.CallSummary = &summary
		}
	case "call-forwarded", "function-call":
		// No status change; duration still merges if present.
		if event.Call.Duration != nil {
			d := int(*event.Call.Duration)
			rec.CallDuration = &d
		}
	}
}

func statusFromEndedReason(reason string) (Status, *string) {
	switch reason {
	case "customer-ended-call", "assistant-ended-call":
		return StatusCompleted, nil
	case "customer-did-not-answer":
		return StatusNoAnswer, nil
	case "customer-busy":
		return StatusMissed, nil
	case "assistant-error", "phone-call-provider-error":
		msg := "Call failed: " + reason
		return StatusFailed, &msg
	default:
		return StatusCompleted, nil
	}
}

// PlaceDemoCall places a real outbound call and records it. Missing call
// provider configuration is a hard failure, not a degraded path.
func (s *Service) PlaceDemoCall(ctx context.Context, userID, phoneNumber, patientName string) (*ScheduledCall, error) {
	if !s.dialer.Configured() {
		return nil, vapi.ErrNotConfigured
	}

	rec := &ScheduledCall{
		PatientID:     userID,
		CaregiverID:   userID,
		PhoneNumber:   phoneNumber,
		ScheduledTime: time.Now().UTC(),
		Status:        StatusPending,
		CallAttempts:  1,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("creating scheduled call: %w", err)
	}

	placed, err := s.dialer.PlaceCall(ctx, vapi.CallRequest{
		PhoneNumber:     phoneNumber,
		ScheduledCallID: rec.ID.String(),
		PatientName:     patientName,
	})
	if err != nil {
		msg := err.Error()
		rec.Status = StatusFailed
		rec.ErrorMessage = &msg
		if updErr := s.repo.Update(ctx, rec); updErr != nil {
			s.logger.Error().Err(updErr).Str("scheduled_call_id", rec.ID.String()).Msg("failed to record placement failure")
		}
		return nil, err
	}

	rec.VapiCallID = &placed.ID
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("storing call id: %w", err)
	}
	s.publishStatus(rec)
	return rec, nil
}

// SimulateDemoCall creates an is_demo row and walks it through the call
// lifecycle in the background, standing in for the provider's webhooks in
// environments without real telephony.
func (s *Service) SimulateDemoCall(ctx context.Context, userID string) (*ScheduledCall, error) {
	rec := &ScheduledCall{
		PatientID:     userID,
		CaregiverID:   userID,
		PhoneNumber:   "+15550000000",
		ScheduledTime: time.Now().UTC(),
		Status:        StatusPending,
		CallAttempts:  1,
		IsDemo:        true,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("creating demo call: %w", err)
	}

	id := rec.ID
	if !s.jobs.Submit("call.simulate", func(jobCtx context.Context) {
		s.runSimulation(jobCtx, id)
	}) {
		s.logger.Warn().Str("scheduled_call_id", id.String()).Msg("simulation job rejected")
	}
	return rec, nil
}

func (s *Service) runSimulation(ctx context.Context, id uuid.UUID) {
	advance := func(mutate func(*ScheduledCall)) bool {
		rec, err := s.repo.GetByID(ctx, id)
		if err != nil {
			s.logger.Error().Err(err).Str("scheduled_call_id", id.String()).Msg("demo call vanished mid-simulation")
			return false
		}
		mutate(rec)
		if err := s.repo.Update(ctx, rec); err != nil {
			s.logger.Error().Err(err).Str("scheduled_call_id", id.String()).Msg("failed to advance simulation")
			return false
		}
		s.publishStatus(rec)
		return true
	}

	if !advance(func(rec *ScheduledCall) { rec.Status = StatusInProgress }) {
		return
	}
	if !s.pause(ctx) {
		return
	}
	advance(func(rec *ScheduledCall) {
		rec.Status = StatusCompleted
		duration := 42
		summary := "Simulated call completed successfully."
		rec.CallDuration = &duration
		rec.CallSummary = &summary
		rec.WebhookProcessed = true
	})
}

func (s *Service) pause(ctx context.Context) bool {
	if s.simulateStepDelay <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(s.simulateStepDelay):
		return true
	}
}

// Status answers the polling endpoint. Lookup accepts either our id or the
// provider's; a miss is reported as found=false, not an error.
func (s *Service) Status(ctx context.Context, userID, scheduledCallID, vapiCallID string) (*StatusResult, error) {
	var rec *ScheduledCall

	if scheduledCallID != "" {
		id, err := uuid.Parse(scheduledCallID)
		if err != nil {
			return nil, fmt.Errorf("invalid scheduled_call_id: %w", err)
		}
		rec, _ = s.repo.GetByID(ctx, id)
	} else if vapiCallID != "" {
		rec, _ = s.repo.GetByVapiCallID(ctx, vapiCallID)
	} else {
		return nil, errors.New("scheduled_call_id or vapi_call_id is required")
	}

	if rec == nil {
		return &StatusResult{Found: false}, nil
	}
	if !rec.visibleTo(userID) {
		return &StatusResult{Found: false}, nil
	}
	return &StatusResult{
		Found:            true,
		WebhookProcessed: rec.WebhookProcessed,
		CallRecord:       rec,
		Summary:          rec.CallSummary,
	}, nil
}

func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]*ScheduledCall, int, error) {
	return s.repo.ListForUser(ctx, userID, limit, offset)
}

func (s *Service) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return ErrNotFound
	}
	if !rec.visibleTo(userID) {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) publishStatus(rec *ScheduledCall) {
	if s.events == nil {
		return
	}
	event := websocket.StatusEvent(websocket.CallTopic(rec.ID.String()), "call", rec.ID.String(), string(rec.Status))
	if err := s.events.Publish(context.Background(), event); err != nil {
		s.logger.Warn().Err(err).Str("call_id", rec.ID.String()).Msg("failed to publish call status event")
	}
}
