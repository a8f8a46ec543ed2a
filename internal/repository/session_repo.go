package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/intervexa/interview-api/internal/models"
)

// SessionRepository defines the read operations the pipeline needs on
// sessions. Session CRUD itself belongs to the surrounding application.
type SessionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Session, error)
	CountQuestions(ctx context.Context, sessionID uint) (int64, error)
}

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository instantiates the repository.
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) GetByID(ctx context.Context, id uint) (models.Session, error) {
	var session models.Session
	if err := r.db.WithContext(ctx).First(&session, id).Error; err != nil {
		return models.Session{}, err
	}

	return session, nil
}

func (r *sessionRepository) CountQuestions(ctx context.Context, sessionID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Question{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}
