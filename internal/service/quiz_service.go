package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"eduquiz_backend/internal/model"
	"eduquiz_backend/internal/repository"
	"eduquiz_backend/internal/util"

	"gorm.io/gorm"
)

// Validation error codes for quiz authoring.
const (
	CodeMissingField         = "MissingField"
	CodeEmptyQuestionText    = "EmptyQuestionText"
	CodeInsufficientOptions  = "InsufficientOptions"
	CodeInvalidCorrectAnswer = "InvalidCorrectAnswer"
)

type ValidationError struct {
	Code       string `json:"code"`
	Field      string `json:"field,omitempty"`
	QuestionID string `json:"questionId,omitempty"`
	Message    string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ValidateQuiz checks a quiz definition before it is accepted, identically on
// create and on update. It has no side effects.
func ValidateQuiz(quiz *model.Quiz, questions []model.QuizQuestion) *ValidationError {
	if strings.TrimSpace(quiz.Title) == "" {
		return &ValidationError{Code: CodeMissingField, Field: "title", Message: "title is required"}
	}
	if strings.TrimSpace(quiz.Curriculum) == "" {
		return &ValidationError{Code: CodeMissingField, Field: "curriculum", Message: "curriculum is required"}
	}
	if len(questions) == 0 {
		return &ValidationError{Code: CodeMissingField, Field: "questions", Message: "at least one question is required"}
	}

	for i := range questions {
		q := &questions[i]
		if strings.TrimSpace(q.Text) == "" {
			return &ValidationError{
				Code:       CodeEmptyQuestionText,
				QuestionID: q.ID,
				Message:    fmt.Sprintf("question %d has empty text", i+1),
			}
		}

		if q.Type != model.MultipleChoice {
			continue
		}

		opts := q.OptionList()
		distinct := make(map[string]bool, len(opts))
		for _, opt := range opts {
			if strings.TrimSpace(opt) == "" {
				return &ValidationError{
					Code:       CodeInsufficientOptions,
					QuestionID: q.ID,
					Message:    fmt.Sprintf("question %d has an empty option", i+1),
				}
			}
			distinct[opt] = true
		}
		if len(distinct) < 2 {
			return &ValidationError{
				Code:       CodeInsufficientOptions,
				QuestionID: q.ID,
				Message:    fmt.Sprintf("question %d needs at least 2 distinct options", i+1),
			}
		}
		if !distinct[q.CorrectAnswer] {
			return &ValidationError{
				Code:       CodeInvalidCorrectAnswer,
				QuestionID: q.ID,
				Message:    fmt.Sprintf("question %d has a correct answer that is not among its options", i+1),
			}
		}
	}

	return nil
}

type QuizService struct {
	Repo     *repository.QuizRepository
	Attempts *repository.AttemptRepository
}

func NewQuizService(repo *repository.QuizRepository, attempts *repository.AttemptRepository) *QuizService {
	return &QuizService{Repo: repo, Attempts: attempts}
}

type QuizQuestionReq struct {
	ID            string   `json:"id"`
	Type          string   `json:"type" binding:"required,oneof=multiple_choice text"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Order         int      `json:"order"`
}

type QuizReq struct {
	Title            *string            `json:"title"`
	Curriculum       *string            `json:"curriculum"`
	TimeLimitMinutes *int               `json:"timeLimitMinutes"`
	IsPublished      *bool              `json:"isPublished"`
	Questions        *[]QuizQuestionReq `json:"questions"`
}

func buildQuestions(quizID string, reqs []QuizQuestionReq) []model.QuizQuestion {
	qs := make([]model.QuizQuestion, 0, len(reqs))
	for i, qReq := range reqs {
		q := model.QuizQuestion{
			QuizID:        quizID,
			Type:          model.QuestionType(qReq.Type),
			Text:          qReq.Text,
			CorrectAnswer: qReq.CorrectAnswer,
			Order:         qReq.Order,
		}
		q.ID = qReq.ID
		if q.Order == 0 {
			q.Order = i + 1
		}
		if len(qReq.Options) > 0 {
			opts, _ := json.Marshal(qReq.Options)
			q.Options = opts
		}
		qs = append(qs, q)
	}
	return qs
}

// clampTimeLimit keeps the limit inside the supported window, falling back to
// the default when unset.
func clampTimeLimit(minutes int) int {
	if minutes == 0 {
		return model.DefaultTimeLimitMinutes
	}
	if minutes < model.MinTimeLimitMinutes {
		return model.MinTimeLimitMinutes
	}
	if minutes > model.MaxTimeLimitMinutes {
		return model.MaxTimeLimitMinutes
	}
	return minutes
}

func (s *QuizService) CreateQuiz(creatorID uint, req QuizReq) (*model.Quiz, error) {
	quiz := &model.Quiz{
		TimeLimitMinutes: model.DefaultTimeLimitMinutes,
		CreatorID:        creatorID,
	}
	if req.Title != nil {
		quiz.Title = *req.Title
	}
	if req.Curriculum != nil {
		quiz.Curriculum = *req.Curriculum
	}
	if req.TimeLimitMinutes != nil {
		quiz.TimeLimitMinutes = clampTimeLimit(*req.TimeLimitMinutes)
	}
	if req.IsPublished != nil {
		quiz.IsPublished = *req.IsPublished
	}

	var questions []model.QuizQuestion
	if req.Questions != nil {
		questions = buildQuestions("", *req.Questions)
	}

	if vErr := ValidateQuiz(quiz, questions); vErr != nil {
		return nil, vErr
	}

	if err := s.Repo.CreateQuiz(quiz); err != nil {
		return nil, err
	}
	if err := s.Repo.ReplaceQuestions(quiz.ID, questions); err != nil {
		return nil, err
	}

	return quiz, nil
}

// UpdateQuiz re-runs the same validation as creation. A quiz that already
// has attempts is frozen: in-flight and graded attempts must keep grading
// against the questions they were answered under.
func (s *QuizService) UpdateQuiz(quizID string, req QuizReq) (*model.Quiz, error) {
	quiz, err := s.Repo.FindQuizByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}

	attemptCount, err := s.Repo.CountAttempts(quizID)
	if err != nil {
		return nil, err
	}
	if attemptCount > 0 {
		return nil, util.ErrQuizHasAttempts
	}

	if req.Title != nil {
		quiz.Title = *req.Title
	}
	if req.Curriculum != nil {
		quiz.Curriculum = *req.Curriculum
	}
	if req.TimeLimitMinutes != nil {
		quiz.TimeLimitMinutes = clampTimeLimit(*req.TimeLimitMinutes)
	}
	if req.IsPublished != nil {
		quiz.IsPublished = *req.IsPublished
	}

	questions, err := s.Repo.ListQuestions(quizID)
	if err != nil {
		return nil, err
	}
	if req.Questions != nil {
		questions = buildQuestions(quizID, *req.Questions)
	}

	if vErr := ValidateQuiz(quiz, questions); vErr != nil {
		return nil, vErr
	}

	if err := s.Repo.UpdateQuiz(quiz); err != nil {
		return nil, err
	}
	if req.Questions != nil {
		if err := s.Repo.ReplaceQuestions(quizID, questions); err != nil {
			return nil, err
		}
	}

	return quiz, nil
}

func (s *QuizService) DeleteQuiz(quizID string) error {
	return s.Repo.DeleteQuiz(quizID)
}

func (s *QuizService) GetQuiz(quizID string) (*model.Quiz, []model.QuizQuestion, error) {
	quiz, err := s.Repo.FindQuizByID(quizID)
	if err != nil {
		return nil, nil, err
	}
	qs, err := s.Repo.ListQuestions(quizID)
	return quiz, qs, err
}

func (s *QuizService) ListQuizzes(page, limit int, publishedOnly bool) ([]repository.QuizListRow, int64, error) {
	return s.Repo.ListQuizzes(page, limit, publishedOnly)
}

// StudentQuestion omits the correct answer.
type StudentQuestion struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"`
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
	Order   int      `json:"order"`
}

type StudentQuizDetail struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	Curriculum       string            `json:"curriculum"`
	TimeLimitMinutes int               `json:"timeLimitMinutes"`
	QuestionCount    int               `json:"questionCount"`
	Questions        []StudentQuestion `json:"questions"`

	// Set when the caller has an in-flight attempt against this quiz.
	AttemptID        string            `json:"attemptId,omitempty"`
	AttemptStatus    string            `json:"attemptStatus,omitempty"`
	RemainingSeconds int               `json:"remainingSeconds"`
	SavedAnswers     map[string]string `json:"savedAnswers,omitempty"`
}

// GetStudentQuizDetail returns the answering view of a published quiz. The
// correct answers never appear here; they surface only through the result
// endpoint once reveal kicks in.
func (s *QuizService) GetStudentQuizDetail(userID uint, quizID string) (*StudentQuizDetail, error) {
	quiz, qs, err := s.Repo.GetQuizWithQuestions(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	if !quiz.IsPublished {
		return nil, util.ErrQuizNotPublished
	}

	detail := &StudentQuizDetail{
		ID:               quiz.ID,
		Title:            quiz.Title,
		Curriculum:       quiz.Curriculum,
		TimeLimitMinutes: quiz.TimeLimitMinutes,
		QuestionCount:    len(qs),
		Questions:        make([]StudentQuestion, len(qs)),
		RemainingSeconds: quiz.TimeLimitMinutes * 60,
	}
	for i, q := range qs {
		detail.Questions[i] = StudentQuestion{
			ID:      q.ID,
			Type:    string(q.Type),
			Text:    q.Text,
			Options: q.OptionList(),
			Order:   q.Order,
		}
	}

	if s.Attempts != nil {
		if active, err := s.Attempts.FindActiveAttempt(quizID, userID); err == nil {
			detail.AttemptID = active.ID
			detail.AttemptStatus = string(active.Status)
			remaining := int(time.Until(active.Deadline).Seconds())
			if remaining < 0 {
				remaining = 0
			}
			detail.RemainingSeconds = remaining
			if answers, err := s.Attempts.ListAnswers(active.ID); err == nil {
				detail.SavedAnswers = answers
			}
		}
	}

	return detail, nil
}
