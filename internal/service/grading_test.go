package service

import (
	"testing"

	"eduquiz_backend/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestGradeMultipleChoiceExactMatch(t *testing.T) {
	questions := []model.QuizQuestion{
		mcQuestion("q1", "B", "A", "B", "C"),
		mcQuestion("q2", "A", "A", "B"),
	}

	result := Grade(questions, map[string]string{"q1": "B", "q2": "b"})

	assert.Equal(t, 1, result.Score)
	assert.Equal(t, 2, result.MaxScore)
	assert.Equal(t, []string{"q2"}, result.IncorrectQuestionIDs)
	assert.Equal(t, float64(50), result.Percentage)
}

func TestGradeTextIgnoresCaseAndWhitespace(t *testing.T) {
	questions := []model.QuizQuestion{textQuestion("q1", "Paris")}

	for _, answer := range []string{"Paris", "paris", "  PARIS  ", "\tparis\n"} {
		result := Grade(questions, map[string]string{"q1": answer})
		assert.Equal(t, 1, result.Score, "answer %q should match", answer)
	}

	result := Grade(questions, map[string]string{"q1": "Pa ris"})
	assert.Equal(t, 0, result.Score)
}

func TestGradeMissingAnswerIsWrongNotError(t *testing.T) {
	questions := []model.QuizQuestion{
		mcQuestion("q1", "B", "A", "B"),
		textQuestion("q2", "Paris"),
	}

	result := Grade(questions, map[string]string{})

	assert.Equal(t, 0, result.Score)
	assert.Equal(t, []string{"q1", "q2"}, result.IncorrectQuestionIDs)
	assert.Equal(t, float64(0), result.Percentage)
}

func TestGradeEmptyTextCorrectAnswerMatchesEmptySubmission(t *testing.T) {
	questions := []model.QuizQuestion{textQuestion("q1", "")}

	assert.Equal(t, 1, Grade(questions, map[string]string{"q1": ""}).Score)
	assert.Equal(t, 1, Grade(questions, map[string]string{"q1": "   "}).Score)
	assert.Equal(t, 1, Grade(questions, map[string]string{}).Score)
	assert.Equal(t, 0, Grade(questions, map[string]string{"q1": "x"}).Score)
}

func TestGradeEmptyMultipleChoiceAnswerNeverMatches(t *testing.T) {
	q := mcQuestion("q1", "", "A", "B")
	result := Grade([]model.QuizQuestion{q}, map[string]string{"q1": ""})
	assert.Equal(t, 0, result.Score)
}

func TestGradeNoQuestions(t *testing.T) {
	result := Grade(nil, map[string]string{"ghost": "x"})

	assert.Equal(t, 0, result.Score)
	assert.Equal(t, 0, result.MaxScore)
	assert.Equal(t, float64(0), result.Percentage)
	assert.Empty(t, result.IncorrectQuestionIDs)
}

func TestGradeIsDeterministic(t *testing.T) {
	questions := []model.QuizQuestion{
		mcQuestion("q1", "B", "A", "B", "C"),
		textQuestion("q2", "Paris"),
		textQuestion("q3", "42"),
	}
	answers := map[string]string{"q1": "A", "q2": "paris", "q3": "41"}

	first := Grade(questions, answers)
	second := Grade(questions, answers)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"q1", "q3"}, first.IncorrectQuestionIDs)
}
