package service

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/emilythestrangee/qa-forum/backend/internal/apperrors"
	"github.com/emilythestrangee/qa-forum/backend/internal/database"
	"github.com/emilythestrangee/qa-forum/backend/internal/logger"
	"github.com/emilythestrangee/qa-forum/backend/internal/models"
	"github.com/emilythestrangee/qa-forum/backend/internal/repository"
)

// StatsCache stores the computed site stats between requests. Set must drop
// stats computed at a generation older than the latest Invalidate.
type StatsCache interface {
	Get(ctx context.Context) (*models.Stats, bool, error)
	Generation(ctx context.Context) (int64, error)
	Set(ctx context.Context, stats *models.Stats, generation int64) error
	Invalidate(ctx context.Context) error
}

type StatsService struct {
	questions *repository.QuestionRepository
	tags      *repository.TagRepository
	cache     StatsCache
}

// NewStatsService computes stats on every call when cache is nil.
func NewStatsService(db database.Service, cache StatsCache) *StatsService {
	return &StatsService{
		questions: repository.NewQuestionRepository(db.GetDB()),
		tags:      repository.NewTagRepository(db.GetDB()),
		cache:     cache,
	}
}

func (s *StatsService) Get(ctx context.Context) (*models.Stats, error) {
	if s.cache == nil {
		return s.compute(ctx)
	}

	stats, ok, err := s.cache.Get(ctx)
	if err != nil {
		logger.L.Warn("stats cache read failed", zap.Error(err))
	}
	if ok {
		return stats, nil
	}

	// Read the generation before counting so a write that lands meanwhile
	// makes the Set below a no-op.
	gen, genErr := s.cache.Generation(ctx)
	if genErr != nil {
		logger.L.Warn("stats cache generation read failed", zap.Error(genErr))
	}

	stats, err = s.compute(ctx)
	if err != nil {
		return nil, err
	}

	if genErr == nil {
		if err := s.cache.Set(ctx, stats, gen); err != nil {
			logger.L.Warn("stats cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

func (s *StatsService) compute(ctx context.Context) (*models.Stats, error) {
	total, err := s.questions.Count(ctx)
	if err != nil {
		return nil, apperrors.Internal("count questions", err)
	}
	resolved, err := s.questions.CountResolved(ctx)
	if err != nil {
		return nil, apperrors.Internal("count resolved", err)
	}
	active, err := s.tags.CountActive(ctx)
	if err != nil {
		return nil, apperrors.Internal("count active tags", err)
	}

	stats := &models.Stats{Total: total, Resolved: resolved, ActiveTags: active}
	if total > 0 {
		stats.Resolution = int(math.Round(float64(resolved) / float64(total) * 100))
	}
	return stats, nil
}

// Invalidate drops the cached stats after a write that changes them.
func (s *StatsService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		logger.L.Warn("stats cache invalidate failed", zap.Error(err))
	}
}
