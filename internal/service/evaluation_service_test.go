package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/intervexa/interview-api/internal/dto"
	"github.com/intervexa/interview-api/internal/models"
	"github.com/intervexa/interview-api/internal/repository"
	"github.com/intervexa/interview-api/internal/scorer"
	"github.com/intervexa/interview-api/internal/worker"
)

func ptrFloat(v float64) *float64 { return &v }

func TestRenormalizedOverall(t *testing.T) {
	weights := DefaultWeights()

	t.Run("all present", func(t *testing.T) {
		overall := renormalizedOverall(ptrFloat(80), ptrFloat(60), ptrFloat(40), weights)
		require.NotNil(t, overall)
		require.InDelta(t, 80*0.5+60*0.25+40*0.25, *overall, 1e-9)
	})

	t.Run("content only renormalizes to full weight", func(t *testing.T) {
		overall := renormalizedOverall(ptrFloat(80), nil, nil, weights)
		require.NotNil(t, overall)
		require.InDelta(t, 80, *overall, 1e-9)
	})

	t.Run("content and vocal", func(t *testing.T) {
		overall := renormalizedOverall(ptrFloat(90), ptrFloat(60), nil, weights)
		require.NotNil(t, overall)
		require.InDelta(t, (90*0.5+60*0.25)/0.75, *overall, 1e-9)
	})

	t.Run("all absent yields nil not zero", func(t *testing.T) {
		require.Nil(t, renormalizedOverall(nil, nil, nil, weights))
	})
}

func newEvaluationService(t *testing.T, db *gorm.DB, tracker StatusTracker, pool *worker.Pool, scorers []scorer.Scorer) EvaluationService {
	t.Helper()

	validate := validator.New(validator.WithRequiredStructEnabled())
	return NewEvaluationService(
		repository.NewAnswerRepository(db),
		tracker,
		pool,
		scorers,
		0,
		validate,
		zerolog.Nop(),
	)
}

func TestEvaluateCompletesAnswer(t *testing.T) {
	db := setupDB(t)
	answer := seedAnswer(t, db, models.AnswerStatusPending, "First I triaged the incident, then I fixed it.")
	tracker := newTracker(t, db)

	svc := newEvaluationService(t, db, tracker, worker.NewPool(1, 4, zerolog.Nop()), []scorer.Scorer{
		presentScore(scorer.DimensionContent, 80),
		presentScore(scorer.DimensionVocal, 60),
		presentScore(scorer.DimensionVisual, 40),
	})

	svc.Evaluate(context.Background(), answer.ID)

	var stored models.Answer
	require.NoError(t, db.First(&stored, answer.ID).Error)
	require.Equal(t, models.AnswerStatusCompleted, stored.ProcessingStatus)
	require.NotNil(t, stored.Score)
	require.InDelta(t, 65, *stored.Score, 1e-9)
	require.NotNil(t, stored.ProcessedAt)

	var analysis models.AnswerAnalysis
	require.NoError(t, db.Where("answer_id = ?", answer.ID).First(&analysis).Error)
	require.NotNil(t, analysis.TechnicalScore)
	require.InDelta(t, 80, *analysis.TechnicalScore, 1e-9)
	require.NotNil(t, analysis.VoiceToneScore)
	require.NotNil(t, analysis.BodyLanguageScore)
	require.NotNil(t, analysis.OverallScore)
}

func TestEvaluateAbsentDimensionRenormalizes(t *testing.T) {
	db := setupDB(t)
	answer := seedAnswer(t, db, models.AnswerStatusPending, "A text-only answer.")
	tracker := newTracker(t, db)

	svc := newEvaluationService(t, db, tracker, worker.NewPool(1, 4, zerolog.Nop()), []scorer.Scorer{
		presentScore(scorer.DimensionContent, 80),
		absentScore(scorer.DimensionVocal),
		absentScore(scorer.DimensionVisual),
	})

	svc.Evaluate(context.Background(), answer.ID)

	var stored models.Answer
	require.NoError(t, db.First(&stored, answer.ID).Error)
	require.Equal(t, models.AnswerStatusCompleted, stored.ProcessingStatus)
	require.NotNil(t, stored.Score)
	require.InDelta(t, 80, *stored.Score, 1e-9, "a missing modality must not drag the overall down")

	var analysis models.AnswerAnalysis
	require.NoError(t, db.Where("answer_id = ?", answer.ID).First(&analysis).Error)
	require.Nil(t, analysis.VoiceToneScore)
	require.Nil(t, analysis.BodyLanguageScore)
}

func TestEvaluateAllAbsentFails(t *testing.T) {
	db := setupDB(t)
	answer := seedAnswer(t, db, models.AnswerStatusPending, "")
	tracker := newTracker(t, db)

	svc := newEvaluationService(t, db, tracker, worker.NewPool(1, 4, zerolog.Nop()), []scorer.Scorer{
		absentScore(scorer.DimensionContent),
		absentScore(scorer.DimensionVocal),
		absentScore(scorer.DimensionVisual),
	})

	svc.Evaluate(context.Background(), answer.ID)

	var stored models.Answer
	require.NoError(t, db.First(&stored, answer.ID).Error)
	require.Equal(t, models.AnswerStatusFailed, stored.ProcessingStatus)
	require.Nil(t, stored.Score)

	var count int64
	require.NoError(t, db.Model(&models.AnswerAnalysis{}).Where("answer_id = ?", answer.ID).Count(&count).Error)
	require.Zero(t, count, "a failed evaluation must not leave a partial analysis")
}

func TestEvaluateScorerErrorIsAbsorbedAsAbsent(t *testing.T) {
	db := setupDB(t)
	answer := seedAnswer(t, db, models.AnswerStatusPending, "Some answer text.")
	tracker := newTracker(t, db)

	svc := newEvaluationService(t, db, tracker, worker.NewPool(1, 4, zerolog.Nop()), []scorer.Scorer{
		presentScore(scorer.DimensionContent, 72),
		stubScorer{dim: scorer.DimensionVocal, err: context.DeadlineExceeded},
		absentScore(scorer.DimensionVisual),
	})

	svc.Evaluate(context.Background(), answer.ID)

	var stored models.Answer
	require.NoError(t, db.First(&stored, answer.ID).Error)
	require.Equal(t, models.AnswerStatusCompleted, stored.ProcessingStatus)
	require.NotNil(t, stored.Score)
	require.InDelta(t, 72, *stored.Score, 1e-9, "one failing dimension costs only itself")
}

func TestEvaluateSkipsWhenNotPending(t *testing.T) {
	db := setupDB(t)
	answer := seedAnswer(t, db, models.AnswerStatusCompleted, "done already")
	tracker := newTracker(t, db)

	svc := newEvaluationService(t, db, tracker, worker.NewPool(1, 4, zerolog.Nop()), []scorer.Scorer{
		presentScore(scorer.DimensionContent, 10),
	})

	svc.Evaluate(context.Background(), answer.ID)

	var stored models.Answer
	require.NoError(t, db.First(&stored, answer.ID).Error)
	require.Equal(t, models.AnswerStatusCompleted, stored.ProcessingStatus, "a finished answer is never re-scored in place")
}

func TestEnqueueValidation(t *testing.T) {
	db := setupDB(t)
	tracker := newTracker(t, db)
	pool := worker.NewPool(1, 4, zerolog.Nop())

	svc := newEvaluationService(t, db, tracker, pool, []scorer.Scorer{presentScore(scorer.DimensionContent, 50)})

	err := svc.Enqueue(context.Background(), dto.EvaluationRequest{AnswerID: 9999})
	require.ErrorIs(t, err, ErrAnswerNotFound)
}

func TestEnqueueConflictsOnProcessing(t *testing.T) {
	db := setupDB(t)
	answer := seedAnswer(t, db, models.AnswerStatusProcessing, "in flight")
	tracker := newTracker(t, db)

	svc := newEvaluationService(t, db, tracker, worker.NewPool(1, 4, zerolog.Nop()), nil)

	err := svc.Enqueue(context.Background(), dto.EvaluationRequest{AnswerID: answer.ID})
	require.ErrorIs(t, err, ErrEvaluationInProgress)
}

func TestEnqueueRequeuesFailedAnswer(t *testing.T) {
	db := setupDB(t)
	answer := seedAnswer(t, db, models.AnswerStatusFailed, "try again")
	tracker := newTracker(t, db)
	pool := worker.NewPool(1, 4, zerolog.Nop())

	svc := newEvaluationService(t, db, tracker, pool, nil)

	require.NoError(t, svc.Enqueue(context.Background(), dto.EvaluationRequest{AnswerID: answer.ID}))

	var stored models.Answer
	require.NoError(t, db.First(&stored, answer.ID).Error)
	require.Equal(t, models.AnswerStatusPending, stored.ProcessingStatus)
	require.Equal(t, 1, pool.Depth())
}

func TestEnqueueSurfacesBackpressure(t *testing.T) {
	db := setupDB(t)
	first := seedAnswer(t, db, models.AnswerStatusPending, "one")
	second := seedAnswer(t, db, models.AnswerStatusPending, "two")
	tracker := newTracker(t, db)

	// One queue slot and no running workers: the second submission must be
	// rejected, not silently dropped.
	pool := worker.NewPool(1, 1, zerolog.Nop())
	svc := newEvaluationService(t, db, tracker, pool, nil)

	require.NoError(t, svc.Enqueue(context.Background(), dto.EvaluationRequest{AnswerID: first.ID}))
	err := svc.Enqueue(context.Background(), dto.EvaluationRequest{AnswerID: second.ID})
	require.ErrorIs(t, err, ErrEvaluationBacklog)
}

func TestEnqueueAppliesContentUpdates(t *testing.T) {
	db := setupDB(t)
	answer := seedAnswer(t, db, models.AnswerStatusPending, "original")
	tracker := newTracker(t, db)
	pool := worker.NewPool(1, 4, zerolog.Nop())

	svc := newEvaluationService(t, db, tracker, pool, nil)

	text := "updated <script>alert(1)</script>answer"
	audio := "answers/1/audio.webm"
	require.NoError(t, svc.Enqueue(context.Background(), dto.EvaluationRequest{
		AnswerID:    answer.ID,
		TextContent: &text,
		AudioRef:    &audio,
	}))

	var stored models.Answer
	require.NoError(t, db.First(&stored, answer.ID).Error)
	require.NotContains(t, stored.TextContent, "<script>")
	require.Contains(t, stored.TextContent, "updated")
	require.Equal(t, audio, stored.AudioRef)
}

func TestDedupeStrings(t *testing.T) {
	out := dedupeStrings([]string{"a", "b", "a", "c", "b"})
	require.Equal(t, []string{"a", "b", "c"}, out)
}
