package controller

import (
	"errors"
	"strconv"

	"eduquiz_backend/internal/model"
	"eduquiz_backend/internal/repository"
	"eduquiz_backend/internal/service"
	"eduquiz_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	Attempts  *service.AttemptService
	Autosaver *service.Autosaver
	Hub       *service.AttemptHub
	Repo      *repository.AttemptRepository
}

func NewAttemptController(attempts *service.AttemptService, autosaver *service.Autosaver, hub *service.AttemptHub, repo *repository.AttemptRepository) *AttemptController {
	return &AttemptController{Attempts: attempts, Autosaver: autosaver, Hub: hub, Repo: repo}
}

func respondAttemptError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrQuizNotFound),
		errors.Is(err, util.ErrQuizNotPublished),
		errors.Is(err, util.ErrAttemptNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrAttemptClosed):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrAttemptInProgress):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrRetryExhausted):
		// an expected terminal outcome, not a failure
		util.Success(ctx, gin.H{"retryExhausted": true})
	default:
		util.LogInternalError(ctx, err)
	}
}

// @Summary Start a timed attempt
// @Tags attempts
// @Produce json
// @Security BearerAuth
// @Param id path string true "quiz id"
// @Success 201 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/quizzes/{id}/attempts [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, err := c.Attempts.StartAttempt(ctx.Param("id"), user.UserID)
	if err != nil {
		respondAttemptError(ctx, err)
		return
	}

	util.Created(ctx, gin.H{
		"attemptId": attempt.ID,
		"status":    attempt.Status,
		"startedAt": attempt.StartedAt,
		"deadline":  attempt.Deadline,
	})
}

type SubmitAnswerRequest struct {
	QuestionID string `json:"questionId" binding:"required"`
	Value      string `json:"value"`
	ClientSeq  int64  `json:"clientSeq" binding:"required,min=1"`
}

// @Summary Autosave one answer
// @Description Accepted answers are persisted asynchronously; a higher
// clientSeq always wins over a lower one regardless of arrival order.
// @Tags attempts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "attempt id"
// @Param body body SubmitAnswerRequest true "answer"
// @Success 202 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/attempts/{id}/answers [post]
func (c *AttemptController) SubmitAnswer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req SubmitAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	attempt, err := c.Attempts.Owned(ctx.Param("id"), user.UserID)
	if err != nil {
		respondAttemptError(ctx, err)
		return
	}
	if attempt.Status.Closed() {
		util.Conflict(ctx, util.ErrAttemptClosed.Error())
		return
	}

	if !c.Autosaver.Enqueue(attempt.ID, req.QuestionID, req.Value, req.ClientSeq) {
		util.Error(ctx, 503, "autosave queue full, retry")
		return
	}

	util.Accepted(ctx, gin.H{"questionId": req.QuestionID, "clientSeq": req.ClientSeq})
}

// @Summary Submit an attempt for grading
// @Description Submitting past the deadline records a timeout; submitting an
// already-closed attempt returns the existing result.
// @Tags attempts
// @Produce json
// @Security BearerAuth
// @Param id path string true "attempt id"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/submit [post]
func (c *AttemptController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if _, err := c.Attempts.Owned(ctx.Param("id"), user.UserID); err != nil {
		respondAttemptError(ctx, err)
		return
	}

	result, err := c.Attempts.Submit(ctx.Param("id"), model.TriggerManual)
	if err != nil {
		respondAttemptError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary Graded result of an attempt
// @Tags attempts
// @Produce json
// @Security BearerAuth
// @Param id path string true "attempt id"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/attempts/{id}/result [get]
func (c *AttemptController) GetResult(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if _, err := c.Attempts.Owned(ctx.Param("id"), user.UserID); err != nil {
		respondAttemptError(ctx, err)
		return
	}

	result, err := c.Attempts.GetResult(ctx.Param("id"))
	if err != nil {
		respondAttemptError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary Request another attempt
// @Description Returns the new attempt while the retry policy allows one;
// once retries are exhausted the response carries retryExhausted instead.
// @Tags attempts
// @Produce json
// @Security BearerAuth
// @Param id path string true "attempt id"
// @Success 201 {object} util.Response
// @Router /api/attempts/{id}/retry [post]
func (c *AttemptController) RequestRetry(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if _, err := c.Attempts.Owned(ctx.Param("id"), user.UserID); err != nil {
		respondAttemptError(ctx, err)
		return
	}

	attempt, err := c.Attempts.RequestRetry(ctx.Param("id"))
	if err != nil {
		respondAttemptError(ctx, err)
		return
	}

	util.Created(ctx, gin.H{
		"attemptId":  attempt.ID,
		"status":     attempt.Status,
		"deadline":   attempt.Deadline,
		"retryCount": attempt.RetryCount,
	})
}

// @Summary Watch attempt events over websocket
// @Tags attempts
// @Security BearerAuth
// @Param id path string true "attempt id"
// @Router /api/attempts/{id}/ws [get]
func (c *AttemptController) Watch(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, err := c.Attempts.Owned(ctx.Param("id"), user.UserID)
	if err != nil {
		respondAttemptError(ctx, err)
		return
	}

	c.Hub.Serve(ctx, attempt)
}

// @Summary Attempts for a quiz, with student info
// @Tags quiz authoring
// @Produce json
// @Security BearerAuth
// @Param id path string true "quiz id"
// @Param page query int false "page" default(1)
// @Param limit query int false "per page" default(20)
// @Success 200 {object} util.Response
// @Router /api/teacher/quizzes/{id}/attempts [get]
func (c *AttemptController) ListAttempts(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	rows, total, err := c.Repo.ListAttemptsForQuiz(ctx.Param("id"), page, limit)
	if err != nil {
		util.InternalServerError(ctx)
		return
	}

	util.Success(ctx, gin.H{"items": rows, "total": total})
}
