package service

import "eduquiz_backend/internal/model"

const (
	// MaxRetries bounds re-attempts beyond the first try: one regular retry
	// plus one final retry, 3 attempts total.
	MaxRetries = 2

	// PassingPercent is the course-wide pass mark.
	PassingPercent = 50.0
)

type RetryAction int

const (
	// ActionRetry permits another attempt.
	ActionRetry RetryAction = iota
	// ActionReveal means retries are exhausted and the correct answers are
	// disclosed for review.
	ActionReveal
	// ActionDone means retries are exhausted with nothing left to disclose.
	ActionDone
)

type RetryDecision struct {
	Action RetryAction
	// FinalRetry marks the permitted attempt as the last one; grading it
	// flips answer disclosure on regardless of outcome.
	FinalRetry bool
	// NextRetryCount is the retry counter the new attempt carries.
	NextRetryCount int
}

// NextAttemptAction evaluates the retry policy over a user's ordered attempt
// chain for one quiz. It is only meaningful once the latest attempt has been
// graded; callers gate on that.
func NextAttemptAction(chain []model.QuizAttempt) RetryDecision {
	if len(chain) == 0 {
		return RetryDecision{Action: ActionRetry, NextRetryCount: 0}
	}

	latest := chain[len(chain)-1]
	if latest.RetryCount >= MaxRetries {
		if latest.RevealAnswers {
			return RetryDecision{Action: ActionReveal}
		}
		return RetryDecision{Action: ActionDone}
	}

	next := latest.RetryCount + 1
	return RetryDecision{
		Action:         ActionRetry,
		FinalRetry:     next == MaxRetries,
		NextRetryCount: next,
	}
}

// ShouldReveal reports whether grading an attempt with this retry counter
// discloses the correct answers.
func ShouldReveal(retryCount int) bool {
	return retryCount >= MaxRetries
}

// Passed applies the pass mark to a grade percentage.
func Passed(percentage float64) bool {
	return percentage >= PassingPercent
}
