package repository

import (
	"context"
	"encoding/json"
	"time"

	"eduquiz_backend/internal/model"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const (
	quizCacheKeyPrefix = "quiz:detail:"
	quizCacheTTL       = 10 * time.Minute
)

type QuizRepository struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewQuizRepository(db *gorm.DB, rdb *redis.Client) *QuizRepository {
	return &QuizRepository{DB: db, Redis: rdb}
}

func (r *QuizRepository) CreateQuiz(quiz *model.Quiz) error {
	return r.DB.Create(quiz).Error
}

func (r *QuizRepository) FindQuizByID(id string) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.First(&quiz, "id = ?", id).Error
	return &quiz, err
}

func (r *QuizRepository) UpdateQuiz(quiz *model.Quiz) error {
	if err := r.DB.Save(quiz).Error; err != nil {
		return err
	}
	r.invalidate(quiz.ID)
	return nil
}

func (r *QuizRepository) DeleteQuiz(id string) error {
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quiz_id = ?", id).Delete(&model.QuizQuestion{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Quiz{}, "id = ?", id).Error
	})
	if err != nil {
		return err
	}
	r.invalidate(id)
	return nil
}

func (r *QuizRepository) CreateQuestion(q *model.QuizQuestion) error {
	return r.DB.Create(q).Error
}

func (r *QuizRepository) UpdateQuestion(q *model.QuizQuestion) error {
	return r.DB.Save(q).Error
}

func (r *QuizRepository) DeleteQuestion(id string) error {
	return r.DB.Delete(&model.QuizQuestion{}, "id = ?", id).Error
}

func (r *QuizRepository) ListQuestions(quizID string) ([]model.QuizQuestion, error) {
	var qs []model.QuizQuestion
	err := r.DB.Where("quiz_id = ?", quizID).Order("`order` asc, created_at asc").Find(&qs).Error
	return qs, err
}

// ReplaceQuestions swaps the full question set of a quiz in one transaction.
func (r *QuizRepository) ReplaceQuestions(quizID string, qs []model.QuizQuestion) error {
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quiz_id = ?", quizID).Delete(&model.QuizQuestion{}).Error; err != nil {
			return err
		}
		for i := range qs {
			qs[i].QuizID = quizID
			if err := tx.Create(&qs[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.invalidate(quizID)
	return nil
}

type QuizListRow struct {
	model.Quiz
	QuestionCount int `json:"questionCount"`
}

func (r *QuizRepository) ListQuizzes(page, limit int, publishedOnly bool) ([]QuizListRow, int64, error) {
	query := r.DB.Model(&model.Quiz{}).Where("deleted_at IS NULL")
	if publishedOnly {
		query = query.Where("is_published = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	dbQuery := r.DB.Table("quizzes q").
		Select("q.*, (SELECT COUNT(*) FROM quiz_questions qq WHERE qq.quiz_id = q.id AND qq.deleted_at IS NULL) as question_count").
		Where("q.deleted_at IS NULL")
	if publishedOnly {
		dbQuery = dbQuery.Where("q.is_published = ?", true)
	}

	var rows []QuizListRow
	offset := (page - 1) * limit
	err := dbQuery.Order("q.created_at desc").Offset(offset).Limit(limit).Scan(&rows).Error
	return rows, total, err
}

// cachedQuestion mirrors QuizQuestion with the correct answer included;
// the model's json tag hides it from API responses, but the cache is
// internal and grading needs it back.
type cachedQuestion struct {
	model.QuizQuestion
	CorrectAnswer string `json:"correctAnswer"`
}

type cachedQuiz struct {
	Quiz      model.Quiz       `json:"quiz"`
	Questions []cachedQuestion `json:"questions"`
}

func (c *cachedQuiz) questionModels() []model.QuizQuestion {
	qs := make([]model.QuizQuestion, len(c.Questions))
	for i, cq := range c.Questions {
		qs[i] = cq.QuizQuestion
		qs[i].CorrectAnswer = cq.CorrectAnswer
	}
	return qs
}

// GetQuizWithQuestions is the read path the attempt engine uses. Published
// quizzes are effectively immutable, so the detail is served from a short
// redis cache; authoring writes invalidate it.
func (r *QuizRepository) GetQuizWithQuestions(id string) (*model.Quiz, []model.QuizQuestion, error) {
	ctx := context.Background()

	if r.Redis != nil {
		val, err := r.Redis.Get(ctx, quizCacheKeyPrefix+id).Result()
		if err == nil {
			var cached cachedQuiz
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return &cached.Quiz, cached.questionModels(), nil
			}
		}
	}

	quiz, err := r.FindQuizByID(id)
	if err != nil {
		return nil, nil, err
	}
	qs, err := r.ListQuestions(id)
	if err != nil {
		return nil, nil, err
	}

	if r.Redis != nil && quiz.IsPublished {
		cached := cachedQuiz{Quiz: *quiz, Questions: make([]cachedQuestion, len(qs))}
		for i, q := range qs {
			cached.Questions[i] = cachedQuestion{QuizQuestion: q, CorrectAnswer: q.CorrectAnswer}
		}
		if payload, err := json.Marshal(cached); err == nil {
			r.Redis.Set(ctx, quizCacheKeyPrefix+id, payload, quizCacheTTL)
		}
	}

	return quiz, qs, nil
}

func (r *QuizRepository) CountAttempts(quizID string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.QuizAttempt{}).Where("quiz_id = ?", quizID).Count(&count).Error
	return count, err
}

func (r *QuizRepository) invalidate(quizID string) {
	if r.Redis != nil {
		r.Redis.Del(context.Background(), quizCacheKeyPrefix+quizID)
	}
}
