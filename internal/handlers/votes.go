package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/qa-forum/backend/internal/apperrors"
	"github.com/emilythestrangee/qa-forum/backend/internal/middleware"
	"github.com/emilythestrangee/qa-forum/backend/internal/models"
	"github.com/emilythestrangee/qa-forum/backend/internal/voting"
)

type VoteHandler struct {
	ledger *voting.Ledger
}

func NewVoteHandler(ledger *voting.Ledger) *VoteHandler {
	return &VoteHandler{ledger: ledger}
}

// CastVote votes on a question or an answer. Repeating a vote withdraws it.
func (h *VoteHandler) CastVote(c *gin.Context) {
	var input models.CastVoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.Fail(c, apperrors.Validation(err.Error()))
		return
	}

	res, err := h.ledger.CastVote(c.Request.Context(), voting.CastVoteInput{
		VoterID:     middleware.GetUserID(c),
		VotableID:   input.VotableID,
		VotableType: input.VotableType,
		Direction:   input.VoteType,
	})
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, models.CastVoteResponse{
		VotableID:   res.VotableID,
		NewVoteType: res.NewVoteType,
		TotalVotes:  res.TotalVotes,
	})
}

func (h *VoteHandler) RevokeVote(c *gin.Context) {
	res, err := h.ledger.RevokeVote(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, models.RevokeVoteResponse{
		Message:    "Vote revoked",
		TotalVotes: res.TotalVotes,
	})
}
