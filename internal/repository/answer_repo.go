package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/intervexa/interview-api/internal/models"
)

// AnswerRepository defines data operations for answers.
type AnswerRepository interface {
	GetByID(ctx context.Context, id uint) (models.Answer, error)
	ListBySession(ctx context.Context, sessionID uint) ([]models.Answer, error)
	Update(ctx context.Context, answer *models.Answer) error
	// TransitionStatus performs a guarded status update: the row changes only
	// while its status still equals from. The boolean reports whether this
	// caller won the transition, which backs the single-owner invariant.
	TransitionStatus(ctx context.Context, id uint, from, to string, updates map[string]interface{}) (bool, error)
	// CompleteWithAnalysis runs the guarded transition to completed and the
	// analysis upsert in one transaction. A lost guard writes nothing, so a
	// late completion can never attach its analysis to an answer another
	// writer already finished.
	CompleteWithAnalysis(ctx context.Context, id uint, from string, updates map[string]interface{}, analysis *models.AnswerAnalysis) (bool, error)
}

type answerRepository struct {
	db *gorm.DB
}

// NewAnswerRepository instantiates the repository.
func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepository{db: db}
}

func (r *answerRepository) GetByID(ctx context.Context, id uint) (models.Answer, error) {
	var answer models.Answer
	if err := r.db.WithContext(ctx).Preload("Question").First(&answer, id).Error; err != nil {
		return models.Answer{}, err
	}

	return answer, nil
}

func (r *answerRepository) ListBySession(ctx context.Context, sessionID uint) ([]models.Answer, error) {
	var answers []models.Answer
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&answers).Error; err != nil {
		return nil, err
	}

	return answers, nil
}

func (r *answerRepository) Update(ctx context.Context, answer *models.Answer) error {
	return r.db.WithContext(ctx).Save(answer).Error
}

func (r *answerRepository) TransitionStatus(ctx context.Context, id uint, from, to string, updates map[string]interface{}) (bool, error) {
	values := map[string]interface{}{"processing_status": to}
	for key, value := range updates {
		values[key] = value
	}

	tx := r.db.WithContext(ctx).
		Model(&models.Answer{}).
		Where("id = ? AND processing_status = ?", id, from).
		Updates(values)
	if tx.Error != nil {
		return false, tx.Error
	}

	return tx.RowsAffected == 1, nil
}

func (r *answerRepository) CompleteWithAnalysis(ctx context.Context, id uint, from string, updates map[string]interface{}, analysis *models.AnswerAnalysis) (bool, error) {
	values := map[string]interface{}{"processing_status": models.AnswerStatusCompleted}
	for key, value := range updates {
		values[key] = value
	}

	won := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Answer{}).
			Where("id = ? AND processing_status = ?", id, from).
			Updates(values)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			return nil
		}
		won = true

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "answer_id"}},
			UpdateAll: true,
		}).Create(analysis).Error
	})

	return won, err
}
