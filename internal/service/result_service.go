package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/intervexa/interview-api/internal/dto"
	"github.com/intervexa/interview-api/internal/models"
	"github.com/intervexa/interview-api/internal/repository"
	"github.com/intervexa/interview-api/internal/scorer"
)

// ErrSessionNotFound indicates the session could not be located.
var ErrSessionNotFound = errors.New("session not found")

// ErrNoCompletedAnswers means no answer in the session has an analysis yet,
// so there is nothing to aggregate and nothing is written.
var ErrNoCompletedAnswers = errors.New("session has no completed evaluations")

// ErrResultNotFound indicates no aggregate has been compiled yet.
var ErrResultNotFound = errors.New("result not compiled yet")

const feedbackHighlightLimit = 5

// ResultService compiles the per-session aggregate from whatever answer
// analyses exist at compile time. Compilation is idempotent: recompiling
// replaces the stored row with the aggregate of the current analyses.
type ResultService interface {
	Compile(ctx context.Context, sessionID uint) (dto.ResultResponse, error)
	Get(ctx context.Context, sessionID uint) (dto.ResultResponse, error)
}

type resultService struct {
	sessions repository.SessionRepository
	answers  repository.AnswerRepository
	analyses repository.AnalysisRepository
	results  repository.ResultRepository
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewResultService wires the compiler.
func NewResultService(
	sessionRepo repository.SessionRepository,
	answerRepo repository.AnswerRepository,
	analysisRepo repository.AnalysisRepository,
	resultRepo repository.ResultRepository,
	logger zerolog.Logger,
) ResultService {
	return &resultService{
		sessions: sessionRepo,
		answers:  answerRepo,
		analyses: analysisRepo,
		results:  resultRepo,
		logger:   logger.With().Str("component", "result_service").Logger(),
		tracer:   otel.Tracer("github.com/intervexa/interview-api/internal/service/result"),
		now:      time.Now,
	}
}

func (s *resultService) Compile(ctx context.Context, sessionID uint) (dto.ResultResponse, error) {
	ctx, span := s.tracer.Start(ctx, "result.compile", trace.WithAttributes(
		attribute.Int64("session_id", int64(sessionID)),
	))
	defer span.End()

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ResultResponse{}, ErrSessionNotFound
		}
		return dto.ResultResponse{}, err
	}

	answers, err := s.answers.ListBySession(ctx, session.ID)
	if err != nil {
		return dto.ResultResponse{}, err
	}

	answerIDs := make([]uint, 0, len(answers))
	for _, answer := range answers {
		answerIDs = append(answerIDs, answer.ID)
	}

	analyses, err := s.analyses.ListByAnswerIDs(ctx, answerIDs)
	if err != nil {
		return dto.ResultResponse{}, err
	}
	if len(analyses) == 0 {
		return dto.ResultResponse{}, ErrNoCompletedAnswers
	}

	questionCount, err := s.sessions.CountQuestions(ctx, session.ID)
	if err != nil {
		return dto.ResultResponse{}, err
	}

	result := s.aggregate(session.ID, analyses)
	result.QuestionCount = int(questionCount)
	result.AnswerCount = len(analyses)
	result.GeneratedAt = s.now().UTC()

	if err := s.results.Upsert(ctx, &result); err != nil {
		span.RecordError(err)
		return dto.ResultResponse{}, err
	}

	s.logger.Info().
		Uint("session_id", session.ID).
		Int("answers", len(analyses)).
		Msg("session result compiled")

	return dto.NewResultResponse(result), nil
}

func (s *resultService) Get(ctx context.Context, sessionID uint) (dto.ResultResponse, error) {
	result, err := s.results.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ResultResponse{}, ErrResultNotFound
		}
		return dto.ResultResponse{}, err
	}

	return dto.NewResultResponse(result), nil
}

// aggregate folds the analyses into one result row. Each dimension averages
// over the answers where it is present; an answer missing a dimension does
// not pull that dimension down.
func (s *resultService) aggregate(sessionID uint, analyses []models.AnswerAnalysis) models.Result {
	var confidence, clarity, technical, bodyLanguage, voiceTone, overall average
	var strengths, improvements []string

	for _, analysis := range analyses {
		confidence.add(analysis.ConfidenceScore)
		clarity.add(analysis.ClarityScore)
		technical.add(analysis.TechnicalScore)
		bodyLanguage.add(analysis.BodyLanguageScore)
		voiceTone.add(analysis.VoiceToneScore)
		overall.add(analysis.OverallScore)

		strengths = append(strengths, dto.DecodeStringList(analysis.Strengths)...)
		improvements = append(improvements, dto.DecodeStringList(analysis.Improvements)...)
	}

	result := models.Result{
		SessionID:         sessionID,
		ConfidenceScore:   confidence.value(),
		ClarityScore:      clarity.value(),
		TechnicalScore:    technical.value(),
		BodyLanguageScore: bodyLanguage.value(),
		VoiceToneScore:    voiceTone.value(),
		OverallScore:      overall.value(),
		Strengths:         dto.EncodeStringList(topHighlights(strengths, feedbackHighlightLimit)),
		Improvements:      dto.EncodeStringList(topHighlights(improvements, feedbackHighlightLimit)),
	}
	result.Summary = summarize(result.OverallScore, len(analyses))

	return result
}

// average accumulates present values only.
type average struct {
	sum   float64
	count int
}

func (a *average) add(v *float64) {
	if v == nil {
		return
	}
	a.sum += *v
	a.count++
}

func (a *average) value() *float64 {
	if a.count == 0 {
		return nil
	}
	mean := a.sum / float64(a.count)
	return &mean
}

// topHighlights keeps the most frequent entries, breaking frequency ties by
// first appearance so the output is stable across recompiles.
func topHighlights(values []string, limit int) []string {
	counts := make(map[string]int, len(values))
	firstSeen := make(map[string]int, len(values))
	order := make([]string, 0, len(values))

	for i, value := range values {
		if value == "" {
			continue
		}
		if _, ok := counts[value]; !ok {
			firstSeen[value] = i
			order = append(order, value)
		}
		counts[value]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		if counts[order[i]] != counts[order[j]] {
			return counts[order[i]] > counts[order[j]]
		}
		return firstSeen[order[i]] < firstSeen[order[j]]
	})

	if len(order) > limit {
		order = order[:limit]
	}
	return order
}

func summarize(overall *float64, answerCount int) string {
	if overall == nil {
		return fmt.Sprintf("Evaluated %d answer(s); no overall score could be derived.", answerCount)
	}

	return fmt.Sprintf("%s performance across %d evaluated answer(s) with an overall score of %.1f.",
		scorer.BandLabel(*overall), answerCount, *overall)
}
