package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/qa-forum/backend/internal/apperrors"
	"github.com/emilythestrangee/qa-forum/backend/internal/middleware"
	"github.com/emilythestrangee/qa-forum/backend/internal/models"
	"github.com/emilythestrangee/qa-forum/backend/internal/service"
)

type QuestionHandler struct {
	questions *service.QuestionService
	answers   *service.AnswerService
}

func NewQuestionHandler(questions *service.QuestionService, answers *service.AnswerService) *QuestionHandler {
	return &QuestionHandler{questions: questions, answers: answers}
}

// GetQuestions lists questions, newest first
func (h *QuestionHandler) GetQuestions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	res, err := h.questions.List(c.Request.Context(), page, limit, c.Query("tag"))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetQuestion returns a single question and counts the view
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	q, err := h.questions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	var input models.QuestionRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.Fail(c, apperrors.Validation(err.Error()))
		return
	}

	q, err := h.questions.Create(c.Request.Context(), middleware.GetUserID(c), input)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	var input models.QuestionRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.Fail(c, apperrors.Validation(err.Error()))
		return
	}

	q, err := h.questions.Update(c.Request.Context(), c.Param("id"), middleware.GetUserID(c), input)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	if err := h.questions.Delete(c.Request.Context(), c.Param("id"), middleware.GetUserID(c)); err != nil {
		middleware.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetAnswers lists the answers of a question, accepted first
func (h *QuestionHandler) GetAnswers(c *gin.Context) {
	answers, err := h.answers.ListByQuestion(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, answers)
}
