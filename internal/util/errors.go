package util

import "errors"

var (
	ErrEmailRegistered   = errors.New("email already registered")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrQuizNotFound      = errors.New("quiz not found")
	ErrQuizNotPublished  = errors.New("quiz not published or not accessible")
	ErrQuizHasAttempts   = errors.New("quiz already has attempts and can no longer be edited")
	ErrAttemptNotFound   = errors.New("attempt not found")
	ErrAttemptClosed     = errors.New("attempt closed")
	ErrAttemptInProgress = errors.New("attempt still in progress")
	ErrRetryExhausted    = errors.New("retry limit reached")
)
