package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/intervexa/interview-api/internal/dto"
	"github.com/intervexa/interview-api/internal/models"
	"github.com/intervexa/interview-api/internal/observability"
	"github.com/intervexa/interview-api/internal/repository"
)

// ErrAnswerNotFound indicates the answer could not be located.
var ErrAnswerNotFound = errors.New("answer not found")

// ErrTransitionConflict indicates another writer owns the answer's state.
var ErrTransitionConflict = errors.New("answer state changed concurrently")

// ErrInvalidTransition indicates the requested status change is not legal.
var ErrInvalidTransition = errors.New("invalid status transition")

// StatusTracker owns the per-answer processing state machine. Every
// transition is a guarded update so exactly one writer wins, and every
// transition emits one event observed by both the poll path and the stream
// path.
type StatusTracker interface {
	MarkProcessing(ctx context.Context, answer models.Answer) error
	// CompleteWithAnalysis drives processing to completed and persists the
	// analysis in the same transaction: either the answer ends up completed
	// with its analysis attached, or nothing is written at all.
	CompleteWithAnalysis(ctx context.Context, answer models.Answer, analysis *models.AnswerAnalysis, score *float64, feedback string, processedAt time.Time) error
	MarkFailed(ctx context.Context, answer models.Answer) error
	// Requeue drives failed back to pending. Only an explicit external
	// re-submission reaches this; the pipeline never retries on its own.
	Requeue(ctx context.Context, answer models.Answer) error
	Poll(ctx context.Context, answerID uint) (dto.AnswerStatusResponse, error)
	ApplyWebhook(ctx context.Context, payload dto.WebhookRequest) (dto.AnswerStatusResponse, error)
	Subscribe(answerID uint) (<-chan dto.AnswerStatusEvent, func())
	Start(ctx context.Context)
}

type statusTracker struct {
	answers   repository.AnswerRepository
	analyses  repository.AnalysisRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	broker    *statusBroker
	publisher *statusPublisher
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewStatusTracker constructs the tracker. Redis and NATS are optional;
// without them events stay node-local.
func NewStatusTracker(answerRepo repository.AnswerRepository, analysisRepo repository.AnalysisRepository, redisClient *redis.Client, natsConn *nats.Conn, channelBase string, validate *validator.Validate, logger zerolog.Logger) StatusTracker {
	broker := newStatusBroker()

	return &statusTracker{
		answers:   answerRepo,
		analyses:  analysisRepo,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		broker:    broker,
		publisher: newStatusPublisher(redisClient, natsConn, channelBase, broker, logger),
		logger:    logger.With().Str("component", "status_tracker").Logger(),
		tracer:    otel.Tracer("github.com/intervexa/interview-api/internal/service/status"),
		now:       time.Now,
	}
}

func (s *statusTracker) Start(ctx context.Context) {
	s.publisher.start(ctx)
}

func (s *statusTracker) MarkProcessing(ctx context.Context, answer models.Answer) error {
	return s.transition(ctx, answer, models.AnswerStatusProcessing, nil)
}

func (s *statusTracker) CompleteWithAnalysis(ctx context.Context, answer models.Answer, analysis *models.AnswerAnalysis, score *float64, feedback string, processedAt time.Time) error {
	from := answer.ProcessingStatus
	if !models.CanTransitionTo(from, models.AnswerStatusCompleted) {
		return ErrInvalidTransition
	}

	updates := map[string]interface{}{
		"feedback":     feedback,
		"processed_at": processedAt,
	}
	if score != nil {
		updates["score"] = *score
	}
	answer.Score = score

	won, err := s.answers.CompleteWithAnalysis(ctx, answer.ID, from, updates, analysis)
	if err != nil {
		return err
	}
	if !won {
		return ErrTransitionConflict
	}

	s.announce(ctx, answer, from, models.AnswerStatusCompleted)
	return nil
}

func (s *statusTracker) MarkFailed(ctx context.Context, answer models.Answer) error {
	return s.transition(ctx, answer, models.AnswerStatusFailed, nil)
}

func (s *statusTracker) Requeue(ctx context.Context, answer models.Answer) error {
	return s.transition(ctx, answer, models.AnswerStatusPending, map[string]interface{}{
		"score":        nil,
		"feedback":     "",
		"processed_at": nil,
	})
}

func (s *statusTracker) transition(ctx context.Context, answer models.Answer, to string, updates map[string]interface{}) error {
	from := answer.ProcessingStatus
	if !models.CanTransitionTo(from, to) {
		return ErrInvalidTransition
	}

	won, err := s.answers.TransitionStatus(ctx, answer.ID, from, to, updates)
	if err != nil {
		return err
	}
	if !won {
		return ErrTransitionConflict
	}

	s.announce(ctx, answer, from, to)
	return nil
}

func (s *statusTracker) announce(ctx context.Context, answer models.Answer, from, to string) {
	s.logger.Info().
		Uint("answer_id", answer.ID).
		Str("from", from).
		Str("to", to).
		Msg("answer status changed")

	s.publisher.publish(ctx, dto.AnswerStatusEvent{
		AnswerID:         answer.ID,
		SessionID:        answer.SessionID,
		ProcessingStatus: to,
		Score:            answer.Score,
		OccurredAt:       s.now().UTC(),
	})
}

func (s *statusTracker) Poll(ctx context.Context, answerID uint) (dto.AnswerStatusResponse, error) {
	answer, err := s.answers.GetByID(ctx, answerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AnswerStatusResponse{}, ErrAnswerNotFound
		}
		return dto.AnswerStatusResponse{}, err
	}

	var analysis *models.AnswerAnalysis
	if answer.ProcessingStatus == models.AnswerStatusCompleted {
		found, err := s.analyses.GetByAnswerID(ctx, answerID)
		if err == nil {
			analysis = &found
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AnswerStatusResponse{}, err
		}
	}

	return dto.NewAnswerStatusResponse(answer, analysis), nil
}

// ApplyWebhook ingests results delivered by an external async scorer. The
// shared-secret check happens at the HTTP layer before this runs; nothing
// here mutates state for an unknown answer.
func (s *statusTracker) ApplyWebhook(ctx context.Context, payload dto.WebhookRequest) (dto.AnswerStatusResponse, error) {
	ctx, span := s.tracer.Start(ctx, "status.apply_webhook", trace.WithAttributes(
		attribute.Int64("answer_id", int64(payload.AnswerID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		return dto.AnswerStatusResponse{}, err
	}

	answer, err := s.answers.GetByID(ctx, payload.AnswerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AnswerStatusResponse{}, ErrAnswerNotFound
		}
		return dto.AnswerStatusResponse{}, err
	}

	if answer.IsTerminal() {
		span.RecordError(ErrInvalidTransition)
		return dto.AnswerStatusResponse{}, ErrInvalidTransition
	}

	overall := renormalizedOverall(payload.Scores.Technical, payload.Scores.VoiceTone, payload.Scores.BodyLanguage, DefaultWeights())

	analysis := models.AnswerAnalysis{
		AnswerID:          answer.ID,
		ConfidenceScore:   payload.Scores.Confidence,
		ClarityScore:      payload.Scores.Clarity,
		TechnicalScore:    payload.Scores.Technical,
		BodyLanguageScore: payload.Scores.BodyLanguage,
		VoiceToneScore:    payload.Scores.VoiceTone,
		OverallScore:      overall,
		Strengths:         dto.EncodeStringList(s.sanitizeAll(payload.Feedback.Strengths)),
		Improvements:      dto.EncodeStringList(s.sanitizeAll(payload.Feedback.Improvements)),
		Summary:           s.sanitizer.Sanitize(payload.Feedback.Summary),
	}

	// The external service did the processing; walk the machine forward to
	// keep transitions monotonic.
	if answer.ProcessingStatus == models.AnswerStatusPending {
		if err := s.MarkProcessing(ctx, answer); err != nil {
			span.RecordError(err)
			return dto.AnswerStatusResponse{}, err
		}
		answer.ProcessingStatus = models.AnswerStatusProcessing
	}

	if err := s.CompleteWithAnalysis(ctx, answer, &analysis, overall, analysis.Summary, s.now().UTC()); err != nil {
		span.RecordError(err)
		return dto.AnswerStatusResponse{}, err
	}

	observability.EvaluationsTotal().WithLabelValues("webhook").Inc()

	return s.Poll(ctx, answer.ID)
}

func (s *statusTracker) Subscribe(answerID uint) (<-chan dto.AnswerStatusEvent, func()) {
	channel := make(chan dto.AnswerStatusEvent, statusBufferSize)

	s.broker.subscribe(answerID, channel)
	observability.StatusStreamClients().Inc()

	cleanup := func() {
		s.broker.unsubscribe(answerID, channel)
		observability.StatusStreamClients().Dec()
	}

	return channel, cleanup
}

func (s *statusTracker) sanitizeAll(values []string) []string {
	cleaned := make([]string, 0, len(values))
	for _, value := range values {
		if sanitized := s.sanitizer.Sanitize(value); sanitized != "" {
			cleaned = append(cleaned, sanitized)
		}
	}
	return cleaned
}
