package models

import (
	"time"

	"gorm.io/datatypes"
)

// AnswerAnalysis is the structured multi-dimension evaluation of exactly one
// answer. Dimension columns are nullable: a dimension that could not be
// scored stays null rather than being coerced to zero. The unique index on
// AnswerID backs the upsert so repeated evaluations overwrite in place.
type AnswerAnalysis struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	AnswerID          uint           `gorm:"not null;uniqueIndex" json:"answer_id"`
	ConfidenceScore   *float64       `json:"confidence_score"`
	ClarityScore      *float64       `json:"clarity_score"`
	TechnicalScore    *float64       `json:"technical_score"`
	BodyLanguageScore *float64       `json:"body_language_score"`
	VoiceToneScore    *float64       `json:"voice_tone_score"`
	OverallScore      *float64       `json:"overall_score"`
	Strengths         datatypes.JSON `json:"strengths"`
	Improvements      datatypes.JSON `json:"improvements"`
	Summary           string         `gorm:"type:text" json:"summary"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	Answer            Answer         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// DimensionScores returns the nullable dimension columns keyed by name,
// in the order used for aggregation.
func (a AnswerAnalysis) DimensionScores() map[string]*float64 {
	return map[string]*float64{
		"confidence":    a.ConfidenceScore,
		"clarity":       a.ClarityScore,
		"technical":     a.TechnicalScore,
		"body_language": a.BodyLanguageScore,
		"voice_tone":    a.VoiceToneScore,
	}
}
