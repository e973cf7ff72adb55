package model

import (
	"encoding/json"
	"time"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptTimedOut   AttemptStatus = "timed_out"
	AttemptGraded     AttemptStatus = "graded"
)

// Closed reports whether the status is past the answering phase.
func (s AttemptStatus) Closed() bool {
	return s != AttemptInProgress
}

type SubmitTrigger string

const (
	TriggerManual  SubmitTrigger = "manual"
	TriggerTimeout SubmitTrigger = "timeout"
)

// swagger:model QuizAttempt
type QuizAttempt struct {
	UUIDBase
	QuizID        string        `gorm:"index;type:varchar(36);not null" json:"quizId"`
	UserID        uint          `gorm:"index;type:bigint unsigned;not null" json:"userId"`
	Status        AttemptStatus `gorm:"size:20;default:'in_progress'" json:"status"`
	StartedAt     time.Time     `json:"startedAt"`
	Deadline      time.Time     `json:"deadline"`
	SubmittedAt   *time.Time    `json:"submittedAt,omitempty"`
	RetryCount    int           `gorm:"default:0" json:"retryCount"`
	RevealAnswers bool          `gorm:"default:false" json:"revealAnswers"`

	// Grade projection, populated once Status becomes graded.
	Score        int             `gorm:"default:0" json:"score"`
	MaxScore     int             `gorm:"default:0" json:"maxScore"`
	Percentage   float64         `gorm:"default:0" json:"percentage"`
	IncorrectIDs json.RawMessage `gorm:"type:json" json:"incorrectQuestionIds,omitempty"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// IncorrectQuestionIDs decodes the persisted incorrect-question list.
func (a *QuizAttempt) IncorrectQuestionIDs() []string {
	if len(a.IncorrectIDs) == 0 {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(a.IncorrectIDs, &ids); err != nil {
		return nil
	}
	return ids
}

// AttemptAnswer is one autosaved answer. Seq is the client-side sequence
// number used to resolve out-of-order delivery: the highest Seq wins.
type AttemptAnswer struct {
	UUIDBase
	AttemptID  string `gorm:"uniqueIndex:idx_attempt_question;type:varchar(36);not null" json:"attemptId"`
	QuestionID string `gorm:"uniqueIndex:idx_attempt_question;type:varchar(36);not null" json:"questionId"`
	Value      string `gorm:"type:text" json:"value"`
	Seq        int64  `gorm:"not null" json:"seq"`
}

func (AttemptAnswer) TableName() string {
	return "quiz_attempt_answers"
}
