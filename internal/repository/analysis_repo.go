package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/intervexa/interview-api/internal/models"
)

// AnalysisRepository defines data operations for answer analyses.
type AnalysisRepository interface {
	// Upsert writes the analysis keyed by answer id: at most one analysis
	// exists per answer and a re-evaluation fully replaces it.
	Upsert(ctx context.Context, analysis *models.AnswerAnalysis) error
	GetByAnswerID(ctx context.Context, answerID uint) (models.AnswerAnalysis, error)
	ListByAnswerIDs(ctx context.Context, answerIDs []uint) ([]models.AnswerAnalysis, error)
}

type analysisRepository struct {
	db *gorm.DB
}

// NewAnalysisRepository instantiates the repository.
func NewAnalysisRepository(db *gorm.DB) AnalysisRepository {
	return &analysisRepository{db: db}
}

func (r *analysisRepository) Upsert(ctx context.Context, analysis *models.AnswerAnalysis) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "answer_id"}},
			UpdateAll: true,
		}).
		Create(analysis).Error
}

func (r *analysisRepository) GetByAnswerID(ctx context.Context, answerID uint) (models.AnswerAnalysis, error) {
	var analysis models.AnswerAnalysis
	if err := r.db.WithContext(ctx).
		Where("answer_id = ?", answerID).
		First(&analysis).Error; err != nil {
		return models.AnswerAnalysis{}, err
	}

	return analysis, nil
}

func (r *analysisRepository) ListByAnswerIDs(ctx context.Context, answerIDs []uint) ([]models.AnswerAnalysis, error) {
	if len(answerIDs) == 0 {
		return nil, nil
	}

	var analyses []models.AnswerAnalysis
	if err := r.db.WithContext(ctx).
		Where("answer_id IN ?", answerIDs).
		Order("answer_id ASC").
		Find(&analyses).Error; err != nil {
		return nil, err
	}

	return analyses, nil
}
