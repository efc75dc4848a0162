package service

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emilythestrangee/qa-forum/backend/internal/apperrors"
	"github.com/emilythestrangee/qa-forum/backend/internal/database"
	"github.com/emilythestrangee/qa-forum/backend/internal/logger"
	"github.com/emilythestrangee/qa-forum/backend/internal/models"
	"github.com/emilythestrangee/qa-forum/backend/internal/repository"
	"github.com/emilythestrangee/qa-forum/backend/internal/voting"
)

type AnswerService struct {
	db         database.Service
	answers    *repository.AnswerRepository
	questions  *repository.QuestionRepository
	ledger     *voting.Ledger
	registry   *voting.Registry
	acceptance *voting.Acceptance
	stats      *StatsService
}

func NewAnswerService(db database.Service, ledger *voting.Ledger, registry *voting.Registry, acceptance *voting.Acceptance, stats *StatsService) *AnswerService {
	return &AnswerService{
		db:         db,
		answers:    repository.NewAnswerRepository(db.GetDB()),
		questions:  repository.NewQuestionRepository(db.GetDB()),
		ledger:     ledger,
		registry:   registry,
		acceptance: acceptance,
		stats:      stats,
	}
}

func (s *AnswerService) Create(ctx context.Context, authorID string, req models.CreateAnswerRequest) (*models.Answer, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperrors.Validation("content is required")
	}
	if !models.IsID(req.QuestionID) {
		return nil, apperrors.Validation("question id is invalid")
	}

	a := &models.Answer{Content: content, QuestionID: req.QuestionID, AuthorID: authorID}
	err := s.db.Transact(ctx, func(tx *gorm.DB) error {
		// Holding the question row keeps a concurrent delete from orphaning the answer.
		if _, err := s.questions.WithTx(tx).FindForUpdate(ctx, req.QuestionID); err != nil {
			return apperrors.FromStore(err, "question not found")
		}
		return apperrors.FromStore(s.answers.WithTx(tx).Create(ctx, a), "")
	})
	if err != nil {
		return nil, err
	}

	logger.L.Info("answer created", zap.String("answer_id", a.ID), zap.String("question_id", a.QuestionID))
	return s.find(ctx, a.ID)
}

func (s *AnswerService) ListByQuestion(ctx context.Context, questionID string) ([]models.Answer, error) {
	if !models.IsID(questionID) {
		return nil, apperrors.Validation("question id is invalid")
	}
	if _, err := s.registry.Resolve(ctx, s.db.GetDB(), models.VotableQuestion, questionID); err != nil {
		return nil, err
	}

	answers, err := s.answers.ListByQuestion(ctx, questionID)
	if err != nil {
		return nil, apperrors.Internal("list answers", err)
	}
	if answers == nil {
		answers = []models.Answer{}
	}
	return answers, nil
}

// Update rewrites the content. Accepted answers stay editable.
func (s *AnswerService) Update(ctx context.Context, id, requesterID string, req models.UpdateAnswerRequest) (*models.Answer, error) {
	if !models.IsID(id) {
		return nil, apperrors.Validation("answer id is invalid")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperrors.Validation("content is required")
	}

	err := s.db.Transact(ctx, func(tx *gorm.DB) error {
		answers := s.answers.WithTx(tx)
		a, err := answers.FindByID(ctx, id)
		if err != nil {
			return apperrors.FromStore(err, "answer not found")
		}
		if a.AuthorID != requesterID {
			return apperrors.Forbidden("you are not the author of this answer")
		}
		return apperrors.FromStore(answers.UpdateContent(ctx, id, content), "")
	})
	if err != nil {
		return nil, err
	}
	return s.find(ctx, id)
}

// Delete removes the answer and the votes cast on it. Author only.
func (s *AnswerService) Delete(ctx context.Context, id, requesterID string) error {
	if !models.IsID(id) {
		return apperrors.Validation("answer id is invalid")
	}

	var wasAccepted bool
	err := s.db.Transact(ctx, func(tx *gorm.DB) error {
		target, err := s.registry.Lock(ctx, tx, models.VotableAnswer, id)
		if err != nil {
			return err
		}
		if target.AuthorID != requesterID {
			return apperrors.Forbidden("you are not the author of this answer")
		}

		answers := s.answers.WithTx(tx)
		a, err := answers.FindByID(ctx, id)
		if err != nil {
			return apperrors.FromStore(err, "answer not found")
		}
		wasAccepted = a.IsAccepted

		if _, err := s.ledger.DeleteVotesFor(ctx, tx, id); err != nil {
			return err
		}
		n, err := answers.Delete(ctx, id)
		if err != nil {
			return apperrors.FromStore(err, "")
		}
		if n == 0 {
			return apperrors.NotFound("answer not found")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if wasAccepted {
		s.stats.Invalidate(ctx)
	}
	return nil
}

func (s *AnswerService) Accept(ctx context.Context, id, requesterID string) (*models.Answer, error) {
	a, err := s.acceptance.Accept(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}
	s.stats.Invalidate(ctx)
	return a, nil
}

func (s *AnswerService) find(ctx context.Context, id string) (*models.Answer, error) {
	a, err := s.answers.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.FromStore(err, "answer not found")
	}
	return a, nil
}
