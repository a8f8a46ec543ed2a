package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/intervexa/interview-api/internal/models"
)

// ResultRepository defines data operations for session results.
type ResultRepository interface {
	// Upsert writes the aggregate keyed by session id; regeneration fully
	// replaces the previous row.
	Upsert(ctx context.Context, result *models.Result) error
	GetBySessionID(ctx context.Context, sessionID uint) (models.Result, error)
}

type resultRepository struct {
	db *gorm.DB
}

// NewResultRepository instantiates the repository.
func NewResultRepository(db *gorm.DB) ResultRepository {
	return &resultRepository{db: db}
}

func (r *resultRepository) Upsert(ctx context.Context, result *models.Result) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			UpdateAll: true,
		}).
		Create(result).Error
}

func (r *resultRepository) GetBySessionID(ctx context.Context, sessionID uint) (models.Result, error) {
	var result models.Result
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&result).Error; err != nil {
		return models.Result{}, err
	}

	return result, nil
}
