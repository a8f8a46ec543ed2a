package models

import "time"

// Session groups the questions and answers of one mock interview run.
type Session struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoleTitle string    `gorm:"size:128" json:"role_title"`
	Status    string    `gorm:"size:32;not null;default:active" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	// SessionStatusActive indicates the interview is still in progress.
	SessionStatusActive = "active"
	// SessionStatusCompleted indicates all answers have been submitted.
	SessionStatusCompleted = "completed"
)

// Question is a single interview question within a session. The reference
// answer is the comparison text used by the content scorer.
type Question struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	SessionID       uint      `gorm:"not null;index" json:"session_id"`
	Text            string    `gorm:"type:text;not null" json:"text"`
	ReferenceAnswer string    `gorm:"type:text" json:"reference_answer"`
	Position        int       `gorm:"not null;default:0" json:"position"`
	CreatedAt       time.Time `json:"created_at"`
	Session         Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
