package handlers

import (
	"github.com/emilythestrangee/qa-forum/backend/internal/service"
	"github.com/emilythestrangee/qa-forum/backend/internal/voting"
)

// Handler combines all handler types
type Handler struct {
	Auth     *AuthHandler
	Question *QuestionHandler
	Answer   *AnswerHandler
	Vote     *VoteHandler
	Tag      *TagHandler
	Stats    *StatsHandler
}

type Deps struct {
	Auth      *service.AuthService
	Questions *service.QuestionService
	Answers   *service.AnswerService
	Tags      *service.TagService
	Stats     *service.StatsService
	Ledger    *voting.Ledger
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(d Deps) *Handler {
	return &Handler{
		Auth:     NewAuthHandler(d.Auth),
		Question: NewQuestionHandler(d.Questions, d.Answers),
		Answer:   NewAnswerHandler(d.Answers),
		Vote:     NewVoteHandler(d.Ledger),
		Tag:      NewTagHandler(d.Tags),
		Stats:    NewStatsHandler(d.Stats),
	}
}
