package model

import "encoding/json"

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TextAnswer     QuestionType = "text"
)

const (
	// DefaultTimeLimitMinutes applies when a quiz is created without a limit.
	DefaultTimeLimitMinutes = 30
	MinTimeLimitMinutes     = 1
	MaxTimeLimitMinutes     = 180
)

// swagger:model Quiz
type Quiz struct {
	UUIDBase
	Title            string `gorm:"size:255;not null" json:"title"`
	Curriculum       string `gorm:"size:255;not null" json:"curriculum"`
	TimeLimitMinutes int    `gorm:"default:30" json:"timeLimitMinutes"`
	IsPublished      bool   `gorm:"default:false" json:"isPublished"`
	CreatorID        uint   `gorm:"index;type:bigint unsigned" json:"creatorId"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// swagger:model QuizQuestion
type QuizQuestion struct {
	UUIDBase
	QuizID        string          `gorm:"index;type:varchar(36)" json:"quizId"`
	Type          QuestionType    `gorm:"size:32;not null" json:"type"`
	Text          string          `gorm:"type:text;not null" json:"text"`
	Options       json.RawMessage `gorm:"type:json" json:"options,omitempty"`
	CorrectAnswer string          `gorm:"type:text" json:"-"`
	Order         int             `gorm:"default:0" json:"order"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

// OptionList decodes the stored options JSON. A nil or malformed payload
// decodes to an empty list.
func (q *QuizQuestion) OptionList() []string {
	if len(q.Options) == 0 {
		return nil
	}
	var opts []string
	if err := json.Unmarshal(q.Options, &opts); err != nil {
		return nil
	}
	return opts
}
