package service

import (
	"strings"

	"eduquiz_backend/internal/model"
)

// GradeResult is a pure projection of (questions, answers). It is computed
// deterministically and can be recomputed at any time with the same outcome.
type GradeResult struct {
	Score                int      `json:"score"`
	MaxScore             int      `json:"maxScore"`
	Percentage           float64  `json:"percentage"`
	IncorrectQuestionIDs []string `json:"incorrectQuestionIds"`
}

// Grade scores the recorded answers against the quiz questions. A question
// with no recorded answer is simply wrong, never an error. Multiple choice
// requires the exact option string; text answers compare case- and
// whitespace-insensitively.
func Grade(questions []model.QuizQuestion, answers map[string]string) GradeResult {
	result := GradeResult{
		MaxScore:             len(questions),
		IncorrectQuestionIDs: []string{},
	}

	for _, q := range questions {
		if answerCorrect(&q, answers[q.ID]) {
			result.Score++
		} else {
			result.IncorrectQuestionIDs = append(result.IncorrectQuestionIDs, q.ID)
		}
	}

	if result.MaxScore > 0 {
		result.Percentage = 100 * float64(result.Score) / float64(result.MaxScore)
	}

	return result
}

func answerCorrect(q *model.QuizQuestion, answer string) bool {
	switch q.Type {
	case model.MultipleChoice:
		return answer != "" && answer == q.CorrectAnswer
	case model.TextAnswer:
		return normalizeText(answer) == normalizeText(q.CorrectAnswer)
	default:
		return false
	}
}

func normalizeText(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}
