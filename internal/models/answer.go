package models

import "time"

// Answer is one submitted interview response. Content travels by reference:
// text inline, audio/video as opaque pointers owned by the upload layer.
type Answer struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	SessionID        uint       `gorm:"not null;index" json:"session_id"`
	QuestionID       uint       `gorm:"not null" json:"question_id"`
	TextContent      string     `gorm:"type:text" json:"text_content"`
	AudioRef         string     `gorm:"size:512" json:"audio_ref"`
	VideoRef         string     `gorm:"size:512" json:"video_ref"`
	ProcessingStatus string     `gorm:"size:32;not null;default:pending" json:"processing_status"`
	Score            *float64   `json:"score"`
	Feedback         string     `gorm:"type:text" json:"feedback"`
	ProcessedAt      *time.Time `json:"processed_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Session          Session    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Question         Question   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

const (
	// AnswerStatusPending indicates the answer is queued for evaluation.
	AnswerStatusPending = "pending"
	// AnswerStatusProcessing indicates an evaluation owns the answer.
	AnswerStatusProcessing = "processing"
	// AnswerStatusCompleted indicates the analysis is attached. Terminal.
	AnswerStatusCompleted = "completed"
	// AnswerStatusFailed indicates the evaluation gave up. Terminal except
	// for an explicit external re-submission back to pending.
	AnswerStatusFailed = "failed"
)

// IsTerminal reports whether the status admits no further pipeline-driven
// transition.
func (a Answer) IsTerminal() bool {
	return a.ProcessingStatus == AnswerStatusCompleted || a.ProcessingStatus == AnswerStatusFailed
}

// CanTransitionTo reports whether a status transition is legal. Transitions
// are monotonic forward; failed -> pending is reserved for re-submission.
func CanTransitionTo(from, to string) bool {
	switch from {
	case AnswerStatusPending:
		return to == AnswerStatusProcessing || to == AnswerStatusFailed
	case AnswerStatusProcessing:
		return to == AnswerStatusCompleted || to == AnswerStatusFailed
	case AnswerStatusFailed:
		return to == AnswerStatusPending
	default:
		return false
	}
}

// HasContent reports whether the answer carries anything a scorer could use.
func (a Answer) HasContent() bool {
	return a.TextContent != "" || a.AudioRef != "" || a.VideoRef != ""
}
