package controller

import (
	"errors"
	"strconv"

	"eduquiz_backend/internal/model"
	"eduquiz_backend/internal/service"
	"eduquiz_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	Service *service.QuizService
}

func NewQuizController(svc *service.QuizService) *QuizController {
	return &QuizController{Service: svc}
}

func respondQuizError(ctx *gin.Context, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		ctx.JSON(400, util.Response{Code: 400, Message: vErr.Message, Data: vErr})
	case errors.Is(err, util.ErrQuizNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrQuizHasAttempts):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrQuizNotPublished):
		util.NotFound(ctx)
	default:
		util.LogInternalError(ctx, err)
	}
}

// @Summary Create a quiz
// @Tags quiz authoring
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.QuizReq true "quiz definition"
// @Success 201 {object} util.Response
// @Failure 400 {object} util.Response
// @Router /api/teacher/quizzes [post]
func (c *QuizController) CreateQuiz(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.QuizReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.Service.CreateQuiz(user.UserID, req)
	if err != nil {
		respondQuizError(ctx, err)
		return
	}

	util.Created(ctx, quiz)
}

// @Summary Update a quiz
// @Tags quiz authoring
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "quiz id"
// @Param body body service.QuizReq true "quiz definition"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/teacher/quizzes/{id} [put]
func (c *QuizController) UpdateQuiz(ctx *gin.Context) {
	id := ctx.Param("id")

	var req service.QuizReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.Service.UpdateQuiz(id, req)
	if err != nil {
		respondQuizError(ctx, err)
		return
	}

	util.Success(ctx, quiz)
}

// @Summary Delete a quiz
// @Tags quiz authoring
// @Produce json
// @Security BearerAuth
// @Param id path string true "quiz id"
// @Success 200 {object} util.Response
// @Router /api/teacher/quizzes/{id} [delete]
func (c *QuizController) DeleteQuiz(ctx *gin.Context) {
	id := ctx.Param("id")

	if err := c.Service.DeleteQuiz(id); err != nil {
		util.InternalServerError(ctx)
		return
	}

	util.Success(ctx, gin.H{"deleted": id})
}

// authorQuestion is the authoring view; unlike the API model it carries the
// correct answer.
type authorQuestion struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	Text          string   `json:"text"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correctAnswer"`
	Order         int      `json:"order"`
}

// @Summary Quiz detail with questions and correct answers
// @Tags quiz authoring
// @Produce json
// @Security BearerAuth
// @Param id path string true "quiz id"
// @Success 200 {object} util.Response
// @Router /api/teacher/quizzes/{id} [get]
func (c *QuizController) GetQuiz(ctx *gin.Context) {
	id := ctx.Param("id")

	quiz, qs, err := c.Service.GetQuiz(id)
	if err != nil {
		util.NotFound(ctx)
		return
	}

	questions := make([]authorQuestion, len(qs))
	for i, q := range qs {
		questions[i] = authorQuestion{
			ID:            q.ID,
			Type:          string(q.Type),
			Text:          q.Text,
			Options:       q.OptionList(),
			CorrectAnswer: q.CorrectAnswer,
			Order:         q.Order,
		}
	}

	util.Success(ctx, gin.H{"quiz": quiz, "questions": questions})
}

// @Summary List quizzes
// @Tags quiz
// @Produce json
// @Security BearerAuth
// @Param page query int false "page" default(1)
// @Param limit query int false "per page" default(20)
// @Success 200 {object} util.Response
// @Router /api/quizzes [get]
func (c *QuizController) ListQuizzes(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	user := util.GetUserFromContext(ctx)
	publishedOnly := user == nil || user.Role != model.Teacher

	quizzes, total, err := c.Service.ListQuizzes(page, limit, publishedOnly)
	if err != nil {
		util.InternalServerError(ctx)
		return
	}

	util.Success(ctx, gin.H{"items": quizzes, "total": total})
}

// @Summary Student view of a published quiz
// @Tags quiz
// @Produce json
// @Security BearerAuth
// @Param id path string true "quiz id"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/quizzes/{id} [get]
func (c *QuizController) GetQuizForStudent(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	detail, err := c.Service.GetStudentQuizDetail(user.UserID, ctx.Param("id"))
	if err != nil {
		respondQuizError(ctx, err)
		return
	}

	util.Success(ctx, detail)
}
