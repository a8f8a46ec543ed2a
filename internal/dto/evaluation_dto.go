package dto

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/intervexa/interview-api/internal/models"
)

// EvaluationRequest is the fire-and-forget trigger handed to the pipeline
// by the ingestion layer. Content fields are optional updates; the answer
// itself must already exist.
type EvaluationRequest struct {
	AnswerID    uint    `json:"answer_id" validate:"required,gt=0"`
	TextContent *string `json:"text_content" validate:"omitempty,min=1"`
	AudioRef    *string `json:"audio_ref" validate:"omitempty,max=512"`
	VideoRef    *string `json:"video_ref" validate:"omitempty,max=512"`
}

// DimensionScores carries the nullable per-dimension scores of an analysis.
type DimensionScores struct {
	Confidence   *float64 `json:"confidence"`
	Clarity      *float64 `json:"clarity"`
	Technical    *float64 `json:"technical"`
	BodyLanguage *float64 `json:"body_language"`
	VoiceTone    *float64 `json:"voice_tone"`
}

// FeedbackResponse is the qualitative portion of an analysis.
type FeedbackResponse struct {
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	Summary      string   `json:"summary"`
}

// AnswerStatusResponse is returned by the status poll. Scores and feedback
// appear only once the answer is completed.
type AnswerStatusResponse struct {
	AnswerID         uint              `json:"answer_id"`
	ProcessingStatus string            `json:"processing_status"`
	Score            *float64          `json:"score,omitempty"`
	Scores           *DimensionScores  `json:"scores,omitempty"`
	Feedback         *FeedbackResponse `json:"feedback,omitempty"`
	ProcessedAt      *time.Time        `json:"processed_at,omitempty"`
}

// AnswerStatusEvent is published on every status transition and consumed by
// both the SSE stream and cross-node brokers.
type AnswerStatusEvent struct {
	AnswerID         uint      `json:"answer_id"`
	SessionID        uint      `json:"session_id"`
	ProcessingStatus string    `json:"processing_status"`
	Score            *float64  `json:"score,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// WebhookScores is the score block delivered by an external async scorer.
type WebhookScores struct {
	Confidence   *float64 `json:"confidence" validate:"omitempty,gte=0,lte=100"`
	Clarity      *float64 `json:"clarity" validate:"omitempty,gte=0,lte=100"`
	Technical    *float64 `json:"technical" validate:"omitempty,gte=0,lte=100"`
	BodyLanguage *float64 `json:"body_language" validate:"omitempty,gte=0,lte=100"`
	VoiceTone    *float64 `json:"voice_tone" validate:"omitempty,gte=0,lte=100"`
}

// WebhookRequest is the inbound webhook payload for the alternative async
// delivery pattern.
type WebhookRequest struct {
	AnswerID uint             `json:"answer_id" validate:"required,gt=0"`
	Scores   WebhookScores    `json:"scores"`
	Feedback FeedbackResponse `json:"feedback"`
}

// NewAnswerStatusResponse builds the poll payload from an answer and its
// analysis, if any.
func NewAnswerStatusResponse(answer models.Answer, analysis *models.AnswerAnalysis) AnswerStatusResponse {
	response := AnswerStatusResponse{
		AnswerID:         answer.ID,
		ProcessingStatus: answer.ProcessingStatus,
	}

	if answer.ProcessingStatus != models.AnswerStatusCompleted {
		return response
	}

	response.Score = answer.Score
	response.ProcessedAt = answer.ProcessedAt
	if analysis != nil {
		response.Scores = &DimensionScores{
			Confidence:   analysis.ConfidenceScore,
			Clarity:      analysis.ClarityScore,
			Technical:    analysis.TechnicalScore,
			BodyLanguage: analysis.BodyLanguageScore,
			VoiceTone:    analysis.VoiceToneScore,
		}
		response.Feedback = &FeedbackResponse{
			Strengths:    DecodeStringList(analysis.Strengths),
			Improvements: DecodeStringList(analysis.Improvements),
			Summary:      analysis.Summary,
		}
	}

	return response
}

// DecodeStringList unpacks a JSON-encoded string list column. A broken or
// empty column decodes to an empty slice rather than an error.
func DecodeStringList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return []string{}
	}

	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return []string{}
	}

	return values
}

// EncodeStringList packs a string list into a JSON column. Nil becomes an
// empty list so readers never see null.
func EncodeStringList(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}

	encoded, err := json.Marshal(values)
	if err != nil {
		return datatypes.JSON("[]")
	}

	return datatypes.JSON(encoded)
}
