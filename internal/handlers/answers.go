package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/qa-forum/backend/internal/apperrors"
	"github.com/emilythestrangee/qa-forum/backend/internal/middleware"
	"github.com/emilythestrangee/qa-forum/backend/internal/models"
	"github.com/emilythestrangee/qa-forum/backend/internal/service"
)

type AnswerHandler struct {
	answers *service.AnswerService
}

func NewAnswerHandler(answers *service.AnswerService) *AnswerHandler {
	return &AnswerHandler{answers: answers}
}

func (h *AnswerHandler) CreateAnswer(c *gin.Context) {
	var input models.CreateAnswerRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.Fail(c, apperrors.Validation(err.Error()))
		return
	}

	a, err := h.answers.Create(c.Request.Context(), middleware.GetUserID(c), input)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *AnswerHandler) UpdateAnswer(c *gin.Context) {
	var input models.UpdateAnswerRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.Fail(c, apperrors.Validation(err.Error()))
		return
	}

	a, err := h.answers.Update(c.Request.Context(), c.Param("id"), middleware.GetUserID(c), input)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *AnswerHandler) DeleteAnswer(c *gin.Context) {
	if err := h.answers.Delete(c.Request.Context(), c.Param("id"), middleware.GetUserID(c)); err != nil {
		middleware.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AcceptAnswer marks the answer as the accepted one for its question
func (h *AnswerHandler) AcceptAnswer(c *gin.Context) {
	a, err := h.answers.Accept(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}
