package models

import (
	"time"

	"gorm.io/datatypes"
)

// Result is the aggregate evaluation for one session, recomputed from the
// session's answer analyses. One row per session (unique index + upsert);
// regeneration fully replaces the previous aggregate.
type Result struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	SessionID         uint           `gorm:"not null;uniqueIndex" json:"session_id"`
	ConfidenceScore   *float64       `json:"confidence_score"`
	ClarityScore      *float64       `json:"clarity_score"`
	TechnicalScore    *float64       `json:"technical_score"`
	BodyLanguageScore *float64       `json:"body_language_score"`
	VoiceToneScore    *float64       `json:"voice_tone_score"`
	OverallScore      *float64       `json:"overall_score"`
	QuestionCount     int            `gorm:"not null;default:0" json:"question_count"`
	AnswerCount       int            `gorm:"not null;default:0" json:"answer_count"`
	Strengths         datatypes.JSON `json:"strengths"`
	Improvements      datatypes.JSON `json:"improvements"`
	Summary           string         `gorm:"type:text" json:"summary"`
	GeneratedAt       time.Time      `json:"generated_at"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	Session           Session        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
