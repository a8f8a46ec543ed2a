package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/intervexa/interview-api/internal/models"
	"github.com/intervexa/interview-api/internal/repository"
	"github.com/intervexa/interview-api/internal/scorer"
)

type stubScorer struct {
	dim   scorer.Dimension
	score scorer.Score
	err   error
}

func (s stubScorer) Dimension() scorer.Dimension { return s.dim }

func (s stubScorer) Score(context.Context, scorer.Content) (scorer.Score, error) {
	return s.score, s.err
}

func presentScore(dim scorer.Dimension, value float64) stubScorer {
	return stubScorer{dim: dim, score: scorer.Score{Dimension: dim, Value: &value}}
}

func absentScore(dim scorer.Dimension) stubScorer {
	return stubScorer{dim: dim, score: scorer.Score{Dimension: dim}}
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Session{}, &models.Question{}, &models.Answer{}, &models.AnswerAnalysis{}, &models.Result{}))

	return db
}

func seedAnswer(t *testing.T, db *gorm.DB, status, text string) models.Answer {
	t.Helper()

	session := models.Session{RoleTitle: "Backend Engineer", Status: models.SessionStatusActive}
	require.NoError(t, db.Create(&session).Error)

	question := models.Question{
		SessionID:       session.ID,
		Text:            "Describe a production incident you resolved.",
		ReferenceAnswer: "A structured answer covering detection, mitigation, and prevention.",
		Position:        1,
	}
	require.NoError(t, db.Create(&question).Error)

	answer := models.Answer{
		SessionID:        session.ID,
		QuestionID:       question.ID,
		TextContent:      text,
		ProcessingStatus: status,
	}
	require.NoError(t, db.Create(&answer).Error)

	return answer
}

func newTracker(t *testing.T, db *gorm.DB) StatusTracker {
	t.Helper()

	validate := validator.New(validator.WithRequiredStructEnabled())
	return NewStatusTracker(
		repository.NewAnswerRepository(db),
		repository.NewAnalysisRepository(db),
		nil, nil, "",
		validate,
		zerolog.Nop(),
	)
}
