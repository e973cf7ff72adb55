package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"eduquiz_backend/internal/model"
	"eduquiz_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeQuizzes struct {
	quizzes   map[string]*model.Quiz
	questions map[string][]model.QuizQuestion
}

func (f *fakeQuizzes) GetQuizWithQuestions(id string) (*model.Quiz, []model.QuizQuestion, error) {
	quiz, ok := f.quizzes[id]
	if !ok {
		return nil, nil, gorm.ErrRecordNotFound
	}
	return quiz, f.questions[id], nil
}

type answerRec struct {
	value string
	seq   int64
}

type fakeStore struct {
	mu        sync.Mutex
	nextID    int
	order     map[string]int
	attempts  map[string]*model.QuizAttempt
	answers   map[string]map[string]answerRec
	closeWins int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		order:    map[string]int{},
		attempts: map[string]*model.QuizAttempt{},
		answers:  map[string]map[string]answerRec{},
	}
}

func (s *fakeStore) CreateAttempt(a *model.QuizAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	if a.ID == "" {
		a.ID = fmt.Sprintf("attempt-%d", s.nextID)
	}
	s.order[a.ID] = s.nextID
	cp := *a
	s.attempts[a.ID] = &cp
	return nil
}

func (s *fakeStore) FindAttemptByID(id string) (*model.QuizAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *fakeStore) FindActiveAttempt(quizID string, userID uint) (*model.QuizAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if a.QuizID == quizID && a.UserID == userID && a.Status == model.AttemptInProgress {
			cp := *a
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeStore) ListChain(quizID string, userID uint) ([]model.QuizAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var chain []model.QuizAttempt
	for _, a := range s.attempts {
		if a.QuizID == quizID && a.UserID == userID {
			chain = append(chain, *a)
		}
	}
	sort.Slice(chain, func(i, j int) bool {
		return s.order[chain[i].ID] < s.order[chain[j].ID]
	})
	return chain, nil
}

func (s *fakeStore) ListInProgress() ([]model.QuizAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var open []model.QuizAttempt
	for _, a := range s.attempts {
		if a.Status == model.AttemptInProgress {
			open = append(open, *a)
		}
	}
	return open, nil
}

func (s *fakeStore) SaveAnswer(attemptID, questionID, value string, seq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byQuestion, ok := s.answers[attemptID]
	if !ok {
		byQuestion = map[string]answerRec{}
		s.answers[attemptID] = byQuestion
	}
	if existing, ok := byQuestion[questionID]; ok && existing.seq >= seq {
		return nil
	}
	byQuestion[questionID] = answerRec{value: value, seq: seq}
	return nil
}

func (s *fakeStore) ListAnswers(attemptID string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]string{}
	for q, rec := range s.answers[attemptID] {
		out[q] = rec.value
	}
	return out, nil
}

func (s *fakeStore) CloseAttempt(id string, status model.AttemptStatus, submittedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok || a.Status != model.AttemptInProgress {
		return false, nil
	}
	a.Status = status
	t := submittedAt
	a.SubmittedAt = &t
	s.closeWins++
	return true, nil
}

func (s *fakeStore) SaveGrade(a *model.QuizAttempt, from model.AttemptStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.attempts[a.ID]
	if !ok || stored.Status != from {
		return false, nil
	}
	stored.Status = model.AttemptGraded
	stored.Score = a.Score
	stored.MaxScore = a.MaxScore
	stored.Percentage = a.Percentage
	stored.IncorrectIDs = a.IncorrectIDs
	stored.RevealAnswers = a.RevealAnswers
	return true, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) NotifyAttempt(attemptID string, event string, data interface{}) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

func (n *fakeNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

func mcQuestion(id, correct string, options ...string) model.QuizQuestion {
	q := model.QuizQuestion{
		Type:          model.MultipleChoice,
		Text:          "pick one",
		CorrectAnswer: correct,
	}
	q.ID = id
	raw, _ := json.Marshal(options)
	q.Options = raw
	return q
}

func textQuestion(id, correct string) model.QuizQuestion {
	q := model.QuizQuestion{
		Type:          model.TextAnswer,
		Text:          "write it",
		CorrectAnswer: correct,
	}
	q.ID = id
	return q
}

func newEngine(t *testing.T) (*AttemptService, *fakeStore, *fakeClock, *fakeNotifier) {
	t.Helper()

	quiz := &model.Quiz{
		Title:            "Capitals",
		Curriculum:       "geography",
		TimeLimitMinutes: 30,
		IsPublished:      true,
	}
	quiz.ID = "quiz-1"

	quizzes := &fakeQuizzes{
		quizzes: map[string]*model.Quiz{"quiz-1": quiz},
		questions: map[string][]model.QuizQuestion{
			"quiz-1": {
				mcQuestion("q1", "B", "A", "B", "C"),
				textQuestion("q2", "Paris"),
			},
		},
	}

	store := newFakeStore()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	notifier := &fakeNotifier{}

	svc := NewAttemptService(quizzes, store)
	svc.Clock = clock
	svc.Notifier = notifier
	t.Cleanup(svc.Timers.Stop)

	return svc, store, clock, notifier
}

func TestStartAttemptSetsDeadlineFromTimeLimit(t *testing.T) {
	svc, _, clock, _ := newEngine(t)

	a, err := svc.StartAttempt("quiz-1", 7)
	require.NoError(t, err)

	assert.Equal(t, model.AttemptInProgress, a.Status)
	assert.Equal(t, clock.Now(), a.StartedAt)
	assert.Equal(t, clock.Now().Add(30*time.Minute), a.Deadline)
	assert.Equal(t, 0, a.RetryCount)
}

func TestStartAttemptReturnsExistingActiveAttempt(t *testing.T) {
	svc, _, _, _ := newEngine(t)

	first, err := svc.StartAttempt("quiz-1", 7)
	require.NoError(t, err)
	second, err := svc.StartAttempt("quiz-1", 7)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestStartAttemptRejectsUnpublishedQuiz(t *testing.T) {
	svc, _, _, _ := newEngine(t)
	quiz := &model.Quiz{Title: "Draft", Curriculum: "x", TimeLimitMinutes: 10}
	quiz.ID = "quiz-draft"
	svc.Quizzes.(*fakeQuizzes).quizzes["quiz-draft"] = quiz

	_, err := svc.StartAttempt("quiz-draft", 7)
	assert.ErrorIs(t, err, util.ErrQuizNotPublished)

	_, err = svc.StartAttempt("no-such-quiz", 7)
	assert.ErrorIs(t, err, util.ErrQuizNotFound)
}

func TestRecordAnswerHighestSequenceWins(t *testing.T) {
	svc, store, _, _ := newEngine(t)
	a, err := svc.StartAttempt("quiz-1", 7)
	require.NoError(t, err)

	// deliveries arrive out of order; the highest clientSeq must stand
	require.NoError(t, svc.RecordAnswer(a.ID, "q1", "C", 3))
	require.NoError(t, svc.RecordAnswer(a.ID, "q1", "A", 1))
	require.NoError(t, svc.RecordAnswer(a.ID, "q1", "B", 2))

	answers, err := store.ListAnswers(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "C", answers["q1"])
}

func TestRecordAnswerRejectedPastDeadline(t *testing.T) {
	svc, _, clock, _ := newEngine(t)
	a, err := svc.StartAttempt("quiz-1", 7)
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)

	err = svc.RecordAnswer(a.ID, "q1", "B", 1)
	assert.ErrorIs(t, err, util.ErrAttemptClosed)

	err = svc.RecordAnswer("no-such-attempt", "q1", "B", 1)
	assert.ErrorIs(t, err, util.ErrAttemptNotFound)
}

func TestSubmitGradesRecordedAnswers(t *testing.T) {
	svc, _, _, notifier := newEngine(t)
	a, err := svc.StartAttempt("quiz-1", 7)
	require.NoError(t, err)

	require.NoError(t, svc.RecordAnswer(a.ID, "q1", "B", 1))
	require.NoError(t, svc.RecordAnswer(a.ID, "q2", "  PARIS ", 1))

	result, err := svc.Submit(a.ID, model.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, model.AttemptGraded, result.Status)
	assert.Equal(t, 2, result.Score)
	assert.Equal(t, 2, result.MaxScore)
	assert.Equal(t, float64(100), result.Percentage)
	assert.True(t, result.Passed)
	assert.Empty(t, result.IncorrectQuestionIDs)
	assert.Contains(t, notifier.Events(), "GRADED")
}

func TestSubmitUnansweredQuestionsAreWrong(t *testing.T) {
	svc, _, _, _ := newEngine(t)
	a, err := svc.StartAttempt("quiz-1", 7)
	require.NoError(t, err)

	require.NoError(t, svc.RecordAnswer(a.ID, "q1", "B", 1))

	result, err := svc.Submit(a.ID, model.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Score)
	assert.Equal(t, []string{"q2"}, result.IncorrectQuestionIDs)
	assert.Equal(t, float64(50), result.Percentage)
	assert.True(t, result.Passed)
}

func TestSubmitPastDeadlineRecordsTimeout(t *testing.T) {
	svc, _, clock, notifier := newEngine(t)
	a, err := svc.StartAttempt("quiz-1", 7)
	require.NoError(t, err)

	require.NoError(t, svc.RecordAnswer(a.ID, "q1", "B", 1))
	clock.Advance(31 * time.Minute)

	// a manual submit after the deadline still counts as a timeout
	result, err := svc.Submit(a.ID, model.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Score)
	events := notifier.Events()
	assert.Contains(t, events, "TIMED_OUT")
	assert.Contains(t, events, "GRADED")
}

func TestSubmitIsIdempotent(t *testing.T) {
	svc, store, _, _ := newEngine(t)
	a, err := svc.StartAttempt("quiz-1", 7)
	require.NoError(t, err)
	require.NoError(t, svc.RecordAnswer(a.ID, "q1", "B", 1))

	first, err := svc.Submit(a.ID, model.TriggerManual)
	require.NoError(t, err)
	second, err := svc.Submit(a.ID, model.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Percentage, second.Percentage)
	assert.Equal(t, 1, store.closeWins)
}

func TestGetResultWhileInProgress(t *testing.T) {
	svc, _, _, _ := newEngine(t)
	a, err := svc.StartAttempt("quiz-1", 7)
	require.NoError(t, err)

	_, err = svc.GetResult(a.ID)
	assert.ErrorIs(t, err, util.ErrAttemptInProgress)

	_, err = svc.GetResult("no-such-attempt")
	assert.ErrorIs(t, err, util.ErrAttemptNotFound)
}

func TestRetryChainBoundedAndRevealsOnFinal(t *testing.T) {
	svc, _, _, _ := newEngine(t)

	a0, err := svc.StartAttempt("quiz-1", 7)
	require.NoError(t, err)
	r0, err := svc.Submit(a0.ID, model.TriggerManual)
	require.NoError(t, err)
	assert.False(t, r0.RevealAnswers)
	assert.Equal(t, 2, r0.RetriesRemaining)

	a1, err := svc.RequestRetry(a0.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, a1.RetryCount)
	r1, err := svc.Submit(a1.ID, model.TriggerManual)
	require.NoError(t, err)
	assert.False(t, r1.RevealAnswers)

	a2, err := svc.RequestRetry(a1.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, a2.RetryCount)

	// grading the final retry discloses the correct answers for review
	r2, err := svc.Submit(a2.ID, model.TriggerManual)
	require.NoError(t, err)
	assert.True(t, r2.RevealAnswers)
	assert.Equal(t, 0, r2.RetriesRemaining)
	assert.Equal(t, "B", r2.CorrectAnswers["q1"])
	assert.Equal(t, "Paris", r2.CorrectAnswers["q2"])

	_, err = svc.RequestRetry(a2.ID)
	assert.ErrorIs(t, err, util.ErrRetryExhausted)
}

func TestRequestRetryWhileInProgress(t *testing.T) {
	svc, _, _, _ := newEngine(t)
	a, err := svc.StartAttempt("quiz-1", 7)
	require.NoError(t, err)

	_, err = svc.RequestRetry(a.ID)
	assert.ErrorIs(t, err, util.ErrAttemptInProgress)
}

func TestStartAttemptContinuesRetryChain(t *testing.T) {
	svc, _, _, _ := newEngine(t)

	a0, err := svc.StartAttempt("quiz-1", 7)
	require.NoError(t, err)
	_, err = svc.Submit(a0.ID, model.TriggerManual)
	require.NoError(t, err)

	a1, err := svc.StartAttempt("quiz-1", 7)
	require.NoError(t, err)
	assert.NotEqual(t, a0.ID, a1.ID)
	assert.Equal(t, 1, a1.RetryCount)
}

func TestOwnedHidesForeignAttempts(t *testing.T) {
	svc, _, _, _ := newEngine(t)
	a, err := svc.StartAttempt("quiz-1", 7)
	require.NoError(t, err)

	got, err := svc.Owned(a.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = svc.Owned(a.ID, 8)
	assert.ErrorIs(t, err, util.ErrAttemptNotFound)
}

func TestCloseOverdueTimesOutExpiredAttempts(t *testing.T) {
	svc, store, clock, notifier := newEngine(t)
	a, err := svc.StartAttempt("quiz-1", 7)
	require.NoError(t, err)
	require.NoError(t, svc.RecordAnswer(a.ID, "q1", "B", 1))

	clock.Advance(31 * time.Minute)
	require.NoError(t, svc.CloseOverdue())

	stored, err := store.FindAttemptByID(a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptGraded, stored.Status)
	assert.Equal(t, 1, stored.Score)
	assert.Contains(t, notifier.Events(), "TIMED_OUT")
}
