package service

import (
	"testing"

	"eduquiz_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validQuiz() (*model.Quiz, []model.QuizQuestion) {
	quiz := &model.Quiz{
		Title:            "Capitals",
		Curriculum:       "geography",
		TimeLimitMinutes: 30,
	}
	questions := []model.QuizQuestion{
		mcQuestion("q1", "B", "A", "B", "C"),
		textQuestion("q2", "Paris"),
	}
	return quiz, questions
}

func TestValidateQuizAcceptsWellFormedQuiz(t *testing.T) {
	quiz, questions := validQuiz()
	assert.Nil(t, ValidateQuiz(quiz, questions))
}

func TestValidateQuizRejections(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(quiz *model.Quiz, questions []model.QuizQuestion) []model.QuizQuestion
		wantCode string
	}{
		{
			name: "missing title",
			mutate: func(quiz *model.Quiz, qs []model.QuizQuestion) []model.QuizQuestion {
				quiz.Title = "   "
				return qs
			},
			wantCode: CodeMissingField,
		},
		{
			name: "missing curriculum",
			mutate: func(quiz *model.Quiz, qs []model.QuizQuestion) []model.QuizQuestion {
				quiz.Curriculum = ""
				return qs
			},
			wantCode: CodeMissingField,
		},
		{
			name: "no questions",
			mutate: func(quiz *model.Quiz, qs []model.QuizQuestion) []model.QuizQuestion {
				return nil
			},
			wantCode: CodeMissingField,
		},
		{
			name: "empty question text",
			mutate: func(quiz *model.Quiz, qs []model.QuizQuestion) []model.QuizQuestion {
				qs[1].Text = " "
				return qs
			},
			wantCode: CodeEmptyQuestionText,
		},
		{
			name: "single option",
			mutate: func(quiz *model.Quiz, qs []model.QuizQuestion) []model.QuizQuestion {
				qs[0] = mcQuestion("q1", "A", "A")
				return qs
			},
			wantCode: CodeInsufficientOptions,
		},
		{
			name: "duplicate options collapse below two",
			mutate: func(quiz *model.Quiz, qs []model.QuizQuestion) []model.QuizQuestion {
				qs[0] = mcQuestion("q1", "A", "A", "A")
				return qs
			},
			wantCode: CodeInsufficientOptions,
		},
		{
			name: "blank option",
			mutate: func(quiz *model.Quiz, qs []model.QuizQuestion) []model.QuizQuestion {
				qs[0] = mcQuestion("q1", "A", "A", " ")
				return qs
			},
			wantCode: CodeInsufficientOptions,
		},
		{
			name: "correct answer not among options",
			mutate: func(quiz *model.Quiz, qs []model.QuizQuestion) []model.QuizQuestion {
				qs[0] = mcQuestion("q1", "D", "A", "B")
				return qs
			},
			wantCode: CodeInvalidCorrectAnswer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quiz, questions := validQuiz()
			questions = tt.mutate(quiz, questions)

			vErr := ValidateQuiz(quiz, questions)
			require.NotNil(t, vErr)
			assert.Equal(t, tt.wantCode, vErr.Code)
		})
	}
}

func TestValidateQuizSkipsOptionChecksForTextQuestions(t *testing.T) {
	quiz, _ := validQuiz()
	// a text question has no options at all and an empty correct answer is legal
	questions := []model.QuizQuestion{textQuestion("q1", "")}
	assert.Nil(t, ValidateQuiz(quiz, questions))
}

func TestClampTimeLimit(t *testing.T) {
	assert.Equal(t, model.DefaultTimeLimitMinutes, clampTimeLimit(0))
	assert.Equal(t, model.MinTimeLimitMinutes, clampTimeLimit(-5))
	assert.Equal(t, 45, clampTimeLimit(45))
	assert.Equal(t, model.MaxTimeLimitMinutes, clampTimeLimit(9999))
}

func TestBuildQuestionsAssignsOrder(t *testing.T) {
	reqs := []QuizQuestionReq{
		{Type: "multiple_choice", Text: "a", Options: []string{"A", "B"}, CorrectAnswer: "A"},
		{Type: "text", Text: "b", CorrectAnswer: "x", Order: 9},
		{Type: "text", Text: "c", CorrectAnswer: "y"},
	}

	qs := buildQuestions("quiz-1", reqs)

	require.Len(t, qs, 3)
	assert.Equal(t, 1, qs[0].Order)
	assert.Equal(t, 9, qs[1].Order)
	assert.Equal(t, 3, qs[2].Order)
	assert.Equal(t, []string{"A", "B"}, qs[0].OptionList())
	assert.Equal(t, "quiz-1", qs[0].QuizID)
}
