package service

import (
	"testing"

	"eduquiz_backend/internal/model"

	"github.com/stretchr/testify/assert"
)

func gradedAttempt(retryCount int, reveal bool) model.QuizAttempt {
	return model.QuizAttempt{
		Status:        model.AttemptGraded,
		RetryCount:    retryCount,
		RevealAnswers: reveal,
	}
}

func TestNextAttemptAction(t *testing.T) {
	tests := []struct {
		name  string
		chain []model.QuizAttempt
		want  RetryDecision
	}{
		{
			name:  "empty chain opens the first attempt",
			chain: nil,
			want:  RetryDecision{Action: ActionRetry, NextRetryCount: 0},
		},
		{
			name:  "first failure permits a regular retry",
			chain: []model.QuizAttempt{gradedAttempt(0, false)},
			want:  RetryDecision{Action: ActionRetry, NextRetryCount: 1},
		},
		{
			name: "second failure permits the final retry",
			chain: []model.QuizAttempt{
				gradedAttempt(0, false),
				gradedAttempt(1, false),
			},
			want: RetryDecision{Action: ActionRetry, FinalRetry: true, NextRetryCount: 2},
		},
		{
			name: "exhausted with reveal",
			chain: []model.QuizAttempt{
				gradedAttempt(0, false),
				gradedAttempt(1, false),
				gradedAttempt(2, true),
			},
			want: RetryDecision{Action: ActionReveal},
		},
		{
			name:  "exhausted without reveal",
			chain: []model.QuizAttempt{gradedAttempt(2, false)},
			want:  RetryDecision{Action: ActionDone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextAttemptAction(tt.chain))
		})
	}
}

func TestShouldReveal(t *testing.T) {
	assert.False(t, ShouldReveal(0))
	assert.False(t, ShouldReveal(1))
	assert.True(t, ShouldReveal(2))
	assert.True(t, ShouldReveal(3))
}

func TestPassed(t *testing.T) {
	assert.False(t, Passed(0))
	assert.False(t, Passed(49.9))
	assert.True(t, Passed(50))
	assert.True(t, Passed(100))
}
