package dto

import (
	"time"

	"github.com/intervexa/interview-api/internal/models"
)

// ResultResponse is the aggregate evaluation returned for a session.
type ResultResponse struct {
	SessionID     uint            `json:"session_id"`
	Scores        DimensionScores `json:"scores"`
	OverallScore  *float64        `json:"overall_score"`
	QuestionCount int             `json:"question_count"`
	AnswerCount   int             `json:"answer_count"`
	Strengths     []string        `json:"strengths"`
	Improvements  []string        `json:"improvements"`
	Summary       string          `json:"summary"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// NewResultResponse converts a Result model into a DTO.
func NewResultResponse(model models.Result) ResultResponse {
	return ResultResponse{
		SessionID: model.SessionID,
		Scores: DimensionScores{
			Confidence:   model.ConfidenceScore,
			Clarity:      model.ClarityScore,
			Technical:    model.TechnicalScore,
			BodyLanguage: model.BodyLanguageScore,
			VoiceTone:    model.VoiceToneScore,
		},
		OverallScore:  model.OverallScore,
		QuestionCount: model.QuestionCount,
		AnswerCount:   model.AnswerCount,
		Strengths:     DecodeStringList(model.Strengths),
		Improvements:  DecodeStringList(model.Improvements),
		Summary:       model.Summary,
		GeneratedAt:   model.GeneratedAt,
	}
}
