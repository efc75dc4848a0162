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

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type QuestionService struct {
	db        database.Service
	questions *repository.QuestionRepository
	answers   *repository.AnswerRepository
	tags      *repository.TagRepository
	ledger    *voting.Ledger
	stats     *StatsService
}

func NewQuestionService(db database.Service, ledger *voting.Ledger, stats *StatsService) *QuestionService {
	return &QuestionService{
		db:        db,
		questions: repository.NewQuestionRepository(db.GetDB()),
		answers:   repository.NewAnswerRepository(db.GetDB()),
		tags:      repository.NewTagRepository(db.GetDB()),
		ledger:    ledger,
		stats:     stats,
	}
}

func normalizeQuestion(req models.QuestionRequest, minTags int) (models.QuestionRequest, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if req.Title == "" || req.Content == "" {
		return req, apperrors.Validation("title and content are required")
	}
	if len(req.Title) > 300 {
		return req, apperrors.Validation("title must be at most 300 characters")
	}

	seen := make(map[string]bool, len(req.Tags))
	tags := make([]string, 0, len(req.Tags))
	for _, id := range req.Tags {
		if !models.IsID(id) {
			return req, apperrors.Validation("tag id is invalid")
		}
		if !seen[id] {
			seen[id] = true
			tags = append(tags, id)
		}
	}
	if len(tags) < minTags {
		return req, apperrors.Validation("at least one tag is required")
	}
	req.Tags = tags
	return req, nil
}

func (s *QuestionService) checkTags(ctx context.Context, tags *repository.TagRepository, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	n, err := tags.CountExisting(ctx, ids)
	if err != nil {
		return apperrors.Internal("check tags", err)
	}
	if n != int64(len(ids)) {
		return apperrors.Validation("unknown tag")
	}
	return nil
}

// Create stores the question and its tag links in one transaction.
func (s *QuestionService) Create(ctx context.Context, authorID string, req models.QuestionRequest) (*models.Question, error) {
	req, err := normalizeQuestion(req, 1)
	if err != nil {
		return nil, err
	}

	q := &models.Question{Title: req.Title, Content: req.Content, AuthorID: authorID}
	err = s.db.Transact(ctx, func(tx *gorm.DB) error {
		if err := s.checkTags(ctx, s.tags.WithTx(tx), req.Tags); err != nil {
			return err
		}
		questions := s.questions.WithTx(tx)
		if err := questions.Create(ctx, q); err != nil {
			return apperrors.FromStore(err, "")
		}
		return apperrors.FromStore(questions.ReplaceTags(ctx, q.ID, req.Tags), "")
	})
	if err != nil {
		return nil, err
	}

	s.stats.Invalidate(ctx)
	logger.L.Info("question created", zap.String("question_id", q.ID), zap.String("author_id", authorID))
	return s.find(ctx, q.ID)
}

func (s *QuestionService) List(ctx context.Context, page, limit int, tag string) (*models.QuestionPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	questions, total, err := s.questions.List(ctx, page, limit, strings.TrimSpace(tag))
	if err != nil {
		return nil, apperrors.Internal("list questions", err)
	}
	if questions == nil {
		questions = []models.Question{}
	}

	return &models.QuestionPage{
		Pagination: models.Pagination{
			TotalCount:  total,
			TotalPages:  int((total + int64(limit) - 1) / int64(limit)),
			CurrentPage: page,
			Limit:       limit,
		},
		Questions: questions,
	}, nil
}

// Get counts a view and returns the question.
func (s *QuestionService) Get(ctx context.Context, id string) (*models.Question, error) {
	if !models.IsID(id) {
		return nil, apperrors.Validation("question id is invalid")
	}

	n, err := s.questions.IncrementViews(ctx, id)
	if err != nil {
		return nil, apperrors.Internal("count view", err)
	}
	if n == 0 {
		return nil, apperrors.NotFound("question not found")
	}
	return s.find(ctx, id)
}

// Update rewrites title and content and replaces the tag set. Author only.
func (s *QuestionService) Update(ctx context.Context, id, requesterID string, req models.QuestionRequest) (*models.Question, error) {
	if !models.IsID(id) {
		return nil, apperrors.Validation("question id is invalid")
	}
	req, err := normalizeQuestion(req, 0)
	if err != nil {
		return nil, err
	}

	err = s.db.Transact(ctx, func(tx *gorm.DB) error {
		questions := s.questions.WithTx(tx)
		q, err := questions.FindForUpdate(ctx, id)
		if err != nil {
			return apperrors.FromStore(err, "question not found")
		}
		if q.AuthorID != requesterID {
			return apperrors.Forbidden("you are not the author of this question")
		}
		if err := s.checkTags(ctx, s.tags.WithTx(tx), req.Tags); err != nil {
			return err
		}
		if err := questions.UpdateContent(ctx, id, req.Title, req.Content); err != nil {
			return apperrors.FromStore(err, "")
		}
		return apperrors.FromStore(questions.ReplaceTags(ctx, id, req.Tags), "")
	})
	if err != nil {
		return nil, err
	}

	s.stats.Invalidate(ctx)
	return s.find(ctx, id)
}

// Delete removes the question with its answers, tag links and every vote
// cast on any of them. Author only.
func (s *QuestionService) Delete(ctx context.Context, id, requesterID string) error {
	if !models.IsID(id) {
		return apperrors.Validation("question id is invalid")
	}

	err := s.db.Transact(ctx, func(tx *gorm.DB) error {
		questions := s.questions.WithTx(tx)
		answers := s.answers.WithTx(tx)

		q, err := questions.FindForUpdate(ctx, id)
		if err != nil {
			return apperrors.FromStore(err, "question not found")
		}
		if q.AuthorID != requesterID {
			return apperrors.Forbidden("you are not the author of this question")
		}

		answerIDs, err := answers.LockIDsByQuestion(ctx, id)
		if err != nil {
			return apperrors.Internal("list answers", err)
		}
		if _, err := s.ledger.DeleteVotesFor(ctx, tx, append(answerIDs, id)...); err != nil {
			return err
		}
		if err := answers.DeleteByQuestion(ctx, id); err != nil {
			return apperrors.FromStore(err, "")
		}
		n, err := questions.Delete(ctx, id)
		if err != nil {
			return apperrors.FromStore(err, "")
		}
		if n == 0 {
			return apperrors.NotFound("question not found")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.stats.Invalidate(ctx)
	logger.L.Info("question deleted", zap.String("question_id", id))
	return nil
}

func (s *QuestionService) find(ctx context.Context, id string) (*models.Question, error) {
	q, err := s.questions.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.FromStore(err, "question not found")
	}
	if q.Tags == nil {
		q.Tags = []models.Tag{}
	}
	return q, nil
}
