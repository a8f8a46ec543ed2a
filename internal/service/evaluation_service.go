package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/intervexa/interview-api/internal/dto"
	"github.com/intervexa/interview-api/internal/models"
	"github.com/intervexa/interview-api/internal/observability"
	"github.com/intervexa/interview-api/internal/repository"
	"github.com/intervexa/interview-api/internal/scorer"
	"github.com/intervexa/interview-api/internal/worker"
)

// ErrEvaluationInProgress is returned when the answer is already owned by a
// running evaluation or already carries a final score.
var ErrEvaluationInProgress = errors.New("evaluation already in progress or finished")

// ErrEvaluationBacklog surfaces worker-queue backpressure to the caller.
var ErrEvaluationBacklog = errors.New("evaluation queue is full")

// Weights assigns the relative importance of each dimension. When a
// dimension is absent its weight drops out and the remaining weights are
// renormalized, so a missing modality never drags the overall score down.
type Weights struct {
	Content float64
	Vocal   float64
	Visual  float64
}

// DefaultWeights returns the production weighting: content carries half,
// delivery splits the rest.
func DefaultWeights() Weights {
	return Weights{Content: 0.5, Vocal: 0.25, Visual: 0.25}
}

// renormalizedOverall computes the weighted average over present dimensions
// only. All absent yields nil, never zero.
func renormalizedOverall(content, vocal, visual *float64, w Weights) *float64 {
	sum := 0.0
	weight := 0.0

	if content != nil {
		sum += *content * w.Content
		weight += w.Content
	}
	if vocal != nil {
		sum += *vocal * w.Vocal
		weight += w.Vocal
	}
	if visual != nil {
		sum += *visual * w.Visual
		weight += w.Visual
	}

	if weight == 0 {
		return nil
	}

	overall := sum / weight
	return &overall
}

// EvaluationService orchestrates the asynchronous evaluation of an answer:
// accept the trigger, hand the work to the pool, fan out across the
// dimension scorers, and persist one atomic analysis row.
type EvaluationService interface {
	// Enqueue validates the trigger and schedules the evaluation. It returns
	// before any scoring happens.
	Enqueue(ctx context.Context, req dto.EvaluationRequest) error
	// Evaluate runs the full pipeline for one answer. The pool calls this;
	// it is exported so tests can drive it synchronously.
	Evaluate(ctx context.Context, answerID uint)
}

type evaluationService struct {
	answers      repository.AnswerRepository
	tracker      StatusTracker
	pool         *worker.Pool
	scorers      []scorer.Scorer
	weights      Weights
	scorerBudget time.Duration
	validator    *validator.Validate
	sanitizer    *bluemonday.Policy
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewEvaluationService wires the orchestrator. The scorer slice is the
// strategy decision: pass remote scorers, AI scorers, or heuristics, the
// pipeline does not care.
func NewEvaluationService(
	answerRepo repository.AnswerRepository,
	tracker StatusTracker,
	pool *worker.Pool,
	scorers []scorer.Scorer,
	scorerBudget time.Duration,
	validate *validator.Validate,
	logger zerolog.Logger,
) EvaluationService {
	if scorerBudget <= 0 {
		scorerBudget = 2 * time.Minute
	}

	return &evaluationService{
		answers:      answerRepo,
		tracker:      tracker,
		pool:         pool,
		scorers:      scorers,
		weights:      DefaultWeights(),
		scorerBudget: scorerBudget,
		validator:    validate,
		sanitizer:    bluemonday.StrictPolicy(),
		logger:       logger.With().Str("component", "evaluation_service").Logger(),
		tracer:       otel.Tracer("github.com/intervexa/interview-api/internal/service/evaluation"),
		now:          time.Now,
	}
}

func (s *evaluationService) Enqueue(ctx context.Context, req dto.EvaluationRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}

	answer, err := s.answers.GetByID(ctx, req.AnswerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAnswerNotFound
		}
		return err
	}

	if s.applyContentUpdates(&answer, req) {
		if err := s.answers.Update(ctx, &answer); err != nil {
			return err
		}
	}

	switch answer.ProcessingStatus {
	case models.AnswerStatusPending:
		// ready to go
	case models.AnswerStatusFailed:
		if err := s.tracker.Requeue(ctx, answer); err != nil {
			return err
		}
		answer.ProcessingStatus = models.AnswerStatusPending
	default:
		return ErrEvaluationInProgress
	}

	answerID := answer.ID
	err = s.pool.Submit(func(taskCtx context.Context) {
		s.Evaluate(taskCtx, answerID)
	})
	if err != nil {
		if errors.Is(err, worker.ErrQueueFull) {
			s.logger.Warn().Uint("answer_id", answerID).Int("depth", s.pool.Depth()).Msg("evaluation queue saturated")
			return ErrEvaluationBacklog
		}
		return err
	}

	s.logger.Info().Uint("answer_id", answerID).Msg("evaluation enqueued")
	return nil
}

// applyContentUpdates folds optional trigger fields into the answer. Text is
// sanitized before it reaches the scorers or the store.
func (s *evaluationService) applyContentUpdates(answer *models.Answer, req dto.EvaluationRequest) bool {
	changed := false

	if req.TextContent != nil {
		answer.TextContent = s.sanitizer.Sanitize(*req.TextContent)
		changed = true
	}
	if req.AudioRef != nil {
		answer.AudioRef = *req.AudioRef
		changed = true
	}
	if req.VideoRef != nil {
		answer.VideoRef = *req.VideoRef
		changed = true
	}

	return changed
}

func (s *evaluationService) Evaluate(ctx context.Context, answerID uint) {
	ctx, span := s.tracer.Start(ctx, "evaluation.run", trace.WithAttributes(
		attribute.Int64("answer_id", int64(answerID)),
	))
	defer span.End()

	answer, err := s.answers.GetByID(ctx, answerID)
	if err != nil {
		s.logger.Error().Err(err).Uint("answer_id", answerID).Msg("failed to load answer for evaluation")
		span.SetStatus(codes.Error, "load failed")
		return
	}

	if err := s.tracker.MarkProcessing(ctx, answer); err != nil {
		// Losing the transition means another worker owns this answer or it
		// was already finished. Either way there is nothing to do.
		s.logger.Debug().Err(err).Uint("answer_id", answerID).Msg("skipping evaluation, transition lost")
		return
	}
	answer.ProcessingStatus = models.AnswerStatusProcessing

	scores := s.fanOut(ctx, answer)

	var content, vocal, visual *scorer.Score
	for i := range scores {
		switch scores[i].Dimension {
		case scorer.DimensionContent:
			content = &scores[i]
		case scorer.DimensionVocal:
			vocal = &scores[i]
		case scorer.DimensionVisual:
			visual = &scores[i]
		}
	}

	overall := renormalizedOverall(scoreValue(content), scoreValue(vocal), scoreValue(visual), s.weights)
	if overall == nil {
		s.logger.Warn().Uint("answer_id", answerID).Msg("no dimension produced a score")
		span.SetStatus(codes.Error, "all dimensions absent")
		s.finishFailed(ctx, answer)
		return
	}

	analysis := s.buildAnalysis(answer.ID, content, vocal, visual, overall)
	if err := s.tracker.CompleteWithAnalysis(ctx, answer, &analysis, overall, analysis.Summary, s.now().UTC()); err != nil {
		if errors.Is(err, ErrTransitionConflict) || errors.Is(err, ErrInvalidTransition) {
			// Another writer finished this answer; its outcome stands and
			// this analysis is discarded with the rolled-back transaction.
			s.logger.Debug().Err(err).Uint("answer_id", answerID).Msg("completion lost to a concurrent writer")
			return
		}
		s.logger.Error().Err(err).Uint("answer_id", answerID).Msg("failed to persist analysis")
		span.RecordError(err)
		s.finishFailed(ctx, answer)
		return
	}

	observability.EvaluationsTotal().WithLabelValues("completed").Inc()
	span.SetAttributes(attribute.Float64("overall_score", *overall))
	s.logger.Info().Uint("answer_id", answerID).Float64("overall", *overall).Msg("evaluation completed")
}

// fanOut runs every scorer concurrently under one shared budget. A slow or
// failing dimension costs only itself, never its siblings.
func (s *evaluationService) fanOut(ctx context.Context, answer models.Answer) []scorer.Score {
	content := scorer.Content{
		AnswerID:  answer.ID,
		Text:      answer.TextContent,
		Reference: answer.Question.ReferenceAnswer,
		AudioRef:  answer.AudioRef,
		VideoRef:  answer.VideoRef,
	}

	results := make([]scorer.Score, len(s.scorers))
	var wg sync.WaitGroup

	for i, dim := range s.scorers {
		wg.Add(1)
		go func(idx int, sc scorer.Scorer) {
			defer wg.Done()

			scoreCtx, cancel := context.WithTimeout(ctx, s.scorerBudget)
			defer cancel()

			result, err := sc.Score(scoreCtx, content)
			if err != nil {
				s.logger.Warn().Err(err).
					Uint("answer_id", answer.ID).
					Str("dimension", string(sc.Dimension())).
					Msg("dimension scoring failed")
				result = scorer.Score{Dimension: sc.Dimension()}
			}
			results[idx] = result
		}(i, dim)
	}

	wg.Wait()
	return results
}

func (s *evaluationService) finishFailed(ctx context.Context, answer models.Answer) {
	if err := s.tracker.MarkFailed(ctx, answer); err != nil {
		s.logger.Error().Err(err).Uint("answer_id", answer.ID).Msg("failed to mark answer failed")
		return
	}
	observability.EvaluationsTotal().WithLabelValues("failed").Inc()
}

// buildAnalysis maps dimension outcomes onto the analysis row. Content fills
// the technical and clarity columns, vocal fills voice tone and confidence,
// visual fills body language.
func (s *evaluationService) buildAnalysis(answerID uint, content, vocal, visual *scorer.Score, overall *float64) models.AnswerAnalysis {
	analysis := models.AnswerAnalysis{
		AnswerID:     answerID,
		OverallScore: overall,
	}

	var strengths, improvements []string
	var summaries []string

	if content != nil && content.Present() {
		analysis.TechnicalScore = content.Value
		if clarity, ok := content.Metrics["clarity"]; ok {
			analysis.ClarityScore = &clarity
		}
		strengths = append(strengths, content.Feedback.Strengths...)
		improvements = append(improvements, content.Feedback.Improvements...)
		summaries = appendSummary(summaries, content.Feedback.Summary)
	}

	if vocal != nil && vocal.Present() {
		analysis.VoiceToneScore = vocal.Value
		if confidence, ok := vocal.Metrics["confidence"]; ok {
			analysis.ConfidenceScore = &confidence
		}
		strengths = append(strengths, vocal.Feedback.Strengths...)
		improvements = append(improvements, vocal.Feedback.Improvements...)
		summaries = appendSummary(summaries, vocal.Feedback.Summary)
	}

	if visual != nil && visual.Present() {
		analysis.BodyLanguageScore = visual.Value
		strengths = append(strengths, visual.Feedback.Strengths...)
		improvements = append(improvements, visual.Feedback.Improvements...)
		summaries = appendSummary(summaries, visual.Feedback.Summary)
	}

	analysis.Strengths = dto.EncodeStringList(dedupeStrings(strengths))
	analysis.Improvements = dto.EncodeStringList(dedupeStrings(improvements))
	analysis.Summary = joinSummaries(summaries)

	return analysis
}

func scoreValue(score *scorer.Score) *float64 {
	if score == nil {
		return nil
	}
	return score.Value
}

func appendSummary(summaries []string, summary string) []string {
	if summary == "" {
		return summaries
	}
	return append(summaries, summary)
}

func joinSummaries(summaries []string) string {
	joined := ""
	for i, summary := range summaries {
		if i > 0 {
			joined += " "
		}
		joined += summary
	}
	return joined
}

// dedupeStrings removes duplicates while preserving first-seen order.
func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	unique := make([]string, 0, len(values))

	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		unique = append(unique, value)
	}

	return unique
}
