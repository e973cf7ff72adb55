package repository

import (
	"errors"
	"time"

	"eduquiz_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) CreateAttempt(a *model.QuizAttempt) error {
	return r.DB.Create(a).Error
}

func (r *AttemptRepository) FindAttemptByID(id string) (*model.QuizAttempt, error) {
	var a model.QuizAttempt
	err := r.DB.First(&a, "id = ?", id).Error
	return &a, err
}

func (r *AttemptRepository) FindActiveAttempt(quizID string, userID uint) (*model.QuizAttempt, error) {
	var a model.QuizAttempt
	err := r.DB.Where("quiz_id = ? AND user_id = ? AND status = ?",
		quizID, userID, model.AttemptInProgress).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListChain returns every attempt a user has made against one quiz, oldest
// first. The retry policy operates on this ordering.
func (r *AttemptRepository) ListChain(quizID string, userID uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Order("started_at asc").Find(&attempts).Error
	return attempts, err
}

// ListInProgress feeds timer recovery on startup and the overdue sweeper.
func (r *AttemptRepository) ListInProgress() ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Where("status = ?", model.AttemptInProgress).Find(&attempts).Error
	return attempts, err
}

// SaveAnswer upserts one answer with last-write-wins semantics: a write only
// lands if its sequence number is higher than the stored one. Stale writes
// return nil so delayed autosave retries stay idempotent.
func (r *AttemptRepository) SaveAnswer(attemptID, questionID, value string, seq int64) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var existing model.AttemptAnswer
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("attempt_id = ? AND question_id = ?", attemptID, questionID).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&model.AttemptAnswer{
				AttemptID:  attemptID,
				QuestionID: questionID,
				Value:      value,
				Seq:        seq,
			}).Error
		}
		if err != nil {
			return err
		}
		if existing.Seq >= seq {
			return nil
		}
		existing.Value = value
		existing.Seq = seq
		return tx.Save(&existing).Error
	})
}

// ListAnswers returns the saved answers keyed by question id.
func (r *AttemptRepository) ListAnswers(attemptID string) (map[string]string, error) {
	var rows []model.AttemptAnswer
	if err := r.DB.Where("attempt_id = ?", attemptID).Find(&rows).Error; err != nil {
		return nil, err
	}
	answers := make(map[string]string, len(rows))
	for _, row := range rows {
		answers[row.QuestionID] = row.Value
	}
	return answers, nil
}

// CloseAttempt moves an in_progress attempt to a terminal submission status.
// The status guard makes it a compare-and-swap: under a timer/manual submit
// race exactly one caller observes won=true.
func (r *AttemptRepository) CloseAttempt(id string, status model.AttemptStatus, submittedAt time.Time) (bool, error) {
	res := r.DB.Model(&model.QuizAttempt{}).
		Where("id = ? AND status = ?", id, model.AttemptInProgress).
		Updates(map[string]interface{}{
			"status":       status,
			"submitted_at": submittedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SaveGrade persists the grade projection and flips the attempt to graded.
// Guarded on the pre-grading status so a duplicate grading pass is a no-op.
func (r *AttemptRepository) SaveGrade(a *model.QuizAttempt, from model.AttemptStatus) (bool, error) {
	res := r.DB.Model(&model.QuizAttempt{}).
		Where("id = ? AND status = ?", a.ID, from).
		Updates(map[string]interface{}{
			"status":         model.AttemptGraded,
			"score":          a.Score,
			"max_score":      a.MaxScore,
			"percentage":     a.Percentage,
			"incorrect_ids":  a.IncorrectIDs,
			"reveal_answers": a.RevealAnswers,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

type AttemptListRow struct {
	model.QuizAttempt
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
}

func (r *AttemptRepository) ListAttemptsForQuiz(quizID string, page, limit int) ([]AttemptListRow, int64, error) {
	query := r.DB.Table("quiz_attempts a").
		Select("a.*, u.name as user_name, u.email as user_email").
		Joins("JOIN users u ON a.user_id = u.id").
		Where("a.quiz_id = ? AND a.deleted_at IS NULL", quizID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []AttemptListRow
	offset := (page - 1) * limit
	err := query.Order("a.created_at desc").Offset(offset).Limit(limit).Scan(&rows).Error
	return rows, total, err
}
