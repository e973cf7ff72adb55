package service

import (
	"encoding/json"
	"errors"
	"time"

	"eduquiz_backend/internal/model"
	"eduquiz_backend/internal/util"
	"eduquiz_backend/pkg/logger"
	"eduquiz_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Clock abstracts time for deadline decisions so tests can drive it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// QuizSource resolves quiz definitions. Definitions are read-only from the
// engine's perspective.
type QuizSource interface {
	GetQuizWithQuestions(id string) (*model.Quiz, []model.QuizQuestion, error)
}

// AttemptStore is the durable record of attempts. The store is the single
// source of truth for attempt status: every transition is a guarded update
// there, never a decision on engine-local state.
type AttemptStore interface {
	CreateAttempt(a *model.QuizAttempt) error
	FindAttemptByID(id string) (*model.QuizAttempt, error)
	FindActiveAttempt(quizID string, userID uint) (*model.QuizAttempt, error)
	ListChain(quizID string, userID uint) ([]model.QuizAttempt, error)
	ListInProgress() ([]model.QuizAttempt, error)
	SaveAnswer(attemptID, questionID, value string, seq int64) error
	ListAnswers(attemptID string) (map[string]string, error)
	CloseAttempt(id string, status model.AttemptStatus, submittedAt time.Time) (bool, error)
	SaveGrade(a *model.QuizAttempt, from model.AttemptStatus) (bool, error)
}

// AttemptNotifier pushes attempt lifecycle events to watching clients.
type AttemptNotifier interface {
	NotifyAttempt(attemptID string, event string, data interface{})
}

type AttemptService struct {
	Quizzes  QuizSource
	Store    AttemptStore
	Clock    Clock
	Timers   *TimerRegistry
	Notifier AttemptNotifier
}

func NewAttemptService(quizzes QuizSource, store AttemptStore) *AttemptService {
	return &AttemptService{
		Quizzes: quizzes,
		Store:   store,
		Clock:   systemClock{},
		Timers:  NewTimerRegistry(),
	}
}

// AttemptResult is the graded view of an attempt returned to callers.
type AttemptResult struct {
	AttemptID string               `json:"attemptId"`
	QuizID    string               `json:"quizId"`
	Status    model.AttemptStatus  `json:"status"`
	GradeResult
	Passed           bool              `json:"passed"`
	RetryCount       int               `json:"retryCount"`
	RetriesRemaining int               `json:"retriesRemaining"`
	RevealAnswers    bool              `json:"revealAnswers"`
	CorrectAnswers   map[string]string `json:"correctAnswers,omitempty"`
}

// StartAttempt opens a timed attempt against a published quiz. If the user
// already has one in flight it is returned as-is; if prior attempts exist
// the retry policy decides whether another is allowed.
func (s *AttemptService) StartAttempt(quizID string, userID uint) (*model.QuizAttempt, error) {
	quiz, _, err := s.Quizzes.GetQuizWithQuestions(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	if !quiz.IsPublished {
		return nil, util.ErrQuizNotPublished
	}

	if active, err := s.Store.FindActiveAttempt(quizID, userID); err == nil {
		return active, nil
	}

	retryCount := 0
	chain, err := s.Store.ListChain(quizID, userID)
	if err != nil {
		return nil, err
	}
	if len(chain) > 0 {
		latest := chain[len(chain)-1]
		if latest.Status != model.AttemptGraded {
			// a closed but ungraded attempt is finished first so the
			// policy sees its outcome
			if _, err := s.finalizeGrade(&latest); err != nil {
				return nil, err
			}
			if chain, err = s.Store.ListChain(quizID, userID); err != nil {
				return nil, err
			}
		}
		decision := NextAttemptAction(chain)
		if decision.Action != ActionRetry {
			return nil, util.ErrRetryExhausted
		}
		retryCount = decision.NextRetryCount
	}

	return s.openAttempt(quiz, userID, retryCount)
}

func (s *AttemptService) openAttempt(quiz *model.Quiz, userID uint, retryCount int) (*model.QuizAttempt, error) {
	now := s.Clock.Now()
	attempt := &model.QuizAttempt{
		QuizID:     quiz.ID,
		UserID:     userID,
		Status:     model.AttemptInProgress,
		StartedAt:  now,
		Deadline:   now.Add(time.Duration(quiz.TimeLimitMinutes) * time.Minute),
		RetryCount: retryCount,
	}
	if err := s.Store.CreateAttempt(attempt); err != nil {
		return nil, err
	}

	monitoring.AttemptsStarted.Inc()
	s.scheduleTimer(attempt)
	return attempt, nil
}

func (s *AttemptService) scheduleTimer(a *model.QuizAttempt) {
	id := a.ID
	s.Timers.Schedule(id, a.Deadline.Sub(s.Clock.Now()), func() {
		if _, err := s.Submit(id, model.TriggerTimeout); err != nil &&
			!errors.Is(err, util.ErrAttemptNotFound) {
			logger.Log.Error("deadline submit failed",
				zap.String("attemptId", id), zap.Error(err))
		}
	})
}

// RecordAnswer stores one answer while the attempt is open. Correctness is
// not checked here; any value is accepted and overwrites a lower-sequence
// value for the same question. Past the deadline or after submission the
// write is rejected with ErrAttemptClosed, which autosave treats as terminal.
func (s *AttemptService) RecordAnswer(attemptID, questionID, value string, seq int64) error {
	a, err := s.Store.FindAttemptByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrAttemptNotFound
		}
		return err
	}

	if a.Status.Closed() || !s.Clock.Now().Before(a.Deadline) {
		return util.ErrAttemptClosed
	}

	return s.Store.SaveAnswer(attemptID, questionID, value, seq)
}

// Submit closes an attempt and grades it. The deadline always wins: at or
// past it the attempt is recorded as timed out even on a manual trigger.
// Submitting an already-closed attempt is a no-op returning the existing
// result, so duplicate deliveries and the timer/manual race are safe.
func (s *AttemptService) Submit(attemptID string, trigger model.SubmitTrigger) (*AttemptResult, error) {
	a, err := s.Store.FindAttemptByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}

	if a.Status == model.AttemptGraded {
		return s.resultFromAttempt(a)
	}

	if a.Status == model.AttemptInProgress {
		now := s.Clock.Now()
		status := model.AttemptSubmitted
		if trigger == model.TriggerTimeout || !now.Before(a.Deadline) {
			status = model.AttemptTimedOut
		}

		won, err := s.Store.CloseAttempt(a.ID, status, now)
		if err != nil {
			return nil, err
		}
		if won {
			s.Timers.Cancel(a.ID)
			monitoring.AttemptSubmissions.WithLabelValues(string(status)).Inc()
			a.Status = status
			a.SubmittedAt = &now
			if status == model.AttemptTimedOut && s.Notifier != nil {
				s.Notifier.NotifyAttempt(a.ID, "TIMED_OUT", nil)
			}
		} else {
			// lost the race to another submit; observe the winner's state
			if a, err = s.Store.FindAttemptByID(a.ID); err != nil {
				return nil, err
			}
			if a.Status == model.AttemptGraded {
				return s.resultFromAttempt(a)
			}
		}
	}

	return s.finalizeGrade(a)
}

// finalizeGrade grades a closed attempt from whatever answers made it in
// before the deadline and persists the projection. Grading is deterministic,
// so a concurrent duplicate simply serves the stored outcome.
func (s *AttemptService) finalizeGrade(a *model.QuizAttempt) (*AttemptResult, error) {
	_, questions, err := s.Quizzes.GetQuizWithQuestions(a.QuizID)
	if err != nil {
		return nil, err
	}
	answers, err := s.Store.ListAnswers(a.ID)
	if err != nil {
		return nil, err
	}

	result := Grade(questions, answers)

	graded := *a
	graded.Score = result.Score
	graded.MaxScore = result.MaxScore
	graded.Percentage = result.Percentage
	graded.IncorrectIDs, _ = json.Marshal(result.IncorrectQuestionIDs)
	graded.RevealAnswers = a.RevealAnswers || ShouldReveal(a.RetryCount)

	won, err := s.Store.SaveGrade(&graded, a.Status)
	if err != nil {
		return nil, err
	}
	if !won {
		stored, err := s.Store.FindAttemptByID(a.ID)
		if err != nil {
			return nil, err
		}
		return s.resultFromAttempt(stored)
	}

	graded.Status = model.AttemptGraded
	monitoring.AttemptsGraded.Inc()
	if s.Notifier != nil {
		s.Notifier.NotifyAttempt(graded.ID, "GRADED", result)
	}
	return s.buildResult(&graded, result), nil
}

// GetResult is an idempotent read of a graded attempt. An attempt stuck in
// a closed-but-ungraded state is finished on the way out.
func (s *AttemptService) GetResult(attemptID string) (*AttemptResult, error) {
	a, err := s.Store.FindAttemptByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}

	switch a.Status {
	case model.AttemptGraded:
		return s.resultFromAttempt(a)
	case model.AttemptInProgress:
		return nil, util.ErrAttemptInProgress
	default:
		return s.finalizeGrade(a)
	}
}

// RequestRetry starts the next attempt in the chain if the policy allows one.
func (s *AttemptService) RequestRetry(attemptID string) (*model.QuizAttempt, error) {
	a, err := s.Store.FindAttemptByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}

	if a.Status == model.AttemptInProgress {
		return nil, util.ErrAttemptInProgress
	}
	if a.Status != model.AttemptGraded {
		if _, err := s.finalizeGrade(a); err != nil {
			return nil, err
		}
	}

	if active, err := s.Store.FindActiveAttempt(a.QuizID, a.UserID); err == nil {
		return active, nil
	}

	chain, err := s.Store.ListChain(a.QuizID, a.UserID)
	if err != nil {
		return nil, err
	}
	decision := NextAttemptAction(chain)
	if decision.Action != ActionRetry {
		return nil, util.ErrRetryExhausted
	}

	quiz, _, err := s.Quizzes.GetQuizWithQuestions(a.QuizID)
	if err != nil {
		return nil, err
	}
	return s.openAttempt(quiz, a.UserID, decision.NextRetryCount)
}

// Owned loads an attempt scoped to its owner. A foreign attempt id reads as
// not found rather than leaking existence.
func (s *AttemptService) Owned(attemptID string, userID uint) (*model.QuizAttempt, error) {
	a, err := s.Store.FindAttemptByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	if a.UserID != userID {
		return nil, util.ErrAttemptNotFound
	}
	return a, nil
}

// ResumeTimers re-arms countdowns for in-flight attempts after a restart.
// Attempts already past their deadline fire immediately.
func (s *AttemptService) ResumeTimers() error {
	open, err := s.Store.ListInProgress()
	if err != nil {
		return err
	}
	for i := range open {
		s.scheduleTimer(&open[i])
	}
	if len(open) > 0 {
		logger.Log.Info("resumed attempt timers", zap.Int("count", len(open)))
	}
	return nil
}

// CloseOverdue times out any in-flight attempt past its deadline. It backs
// up the per-attempt timers; a missed timer delays the timeout by at most
// one sweep interval.
func (s *AttemptService) CloseOverdue() error {
	open, err := s.Store.ListInProgress()
	if err != nil {
		return err
	}
	now := s.Clock.Now()
	for i := range open {
		if now.Before(open[i].Deadline) {
			continue
		}
		if _, err := s.Submit(open[i].ID, model.TriggerTimeout); err != nil {
			logger.Log.Error("overdue close failed",
				zap.String("attemptId", open[i].ID), zap.Error(err))
		}
	}
	return nil
}

func (s *AttemptService) resultFromAttempt(a *model.QuizAttempt) (*AttemptResult, error) {
	result := GradeResult{
		Score:                a.Score,
		MaxScore:             a.MaxScore,
		Percentage:           a.Percentage,
		IncorrectQuestionIDs: a.IncorrectQuestionIDs(),
	}
	if result.IncorrectQuestionIDs == nil {
		result.IncorrectQuestionIDs = []string{}
	}
	return s.buildResult(a, result), nil
}

func (s *AttemptService) buildResult(a *model.QuizAttempt, result GradeResult) *AttemptResult {
	remaining := MaxRetries - a.RetryCount
	if remaining < 0 {
		remaining = 0
	}

	res := &AttemptResult{
		AttemptID:        a.ID,
		QuizID:           a.QuizID,
		Status:           a.Status,
		GradeResult:      result,
		Passed:           Passed(result.Percentage),
		RetryCount:       a.RetryCount,
		RetriesRemaining: remaining,
		RevealAnswers:    a.RevealAnswers,
	}

	if a.RevealAnswers {
		if _, questions, err := s.Quizzes.GetQuizWithQuestions(a.QuizID); err == nil {
			reveal := make(map[string]string, len(result.IncorrectQuestionIDs))
			byID := make(map[string]string, len(questions))
			for _, q := range questions {
				byID[q.ID] = q.CorrectAnswer
			}
			for _, id := range result.IncorrectQuestionIDs {
				if answer, ok := byID[id]; ok {
					reveal[id] = answer
				}
			}
			res.CorrectAnswers = reveal
		}
	}

	return res
}
