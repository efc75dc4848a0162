package service

import (
	"context"
	"strings"

	"github.com/emilythestrangee/qa-forum/backend/internal/apperrors"
	"github.com/emilythestrangee/qa-forum/backend/internal/database"
	"github.com/emilythestrangee/qa-forum/backend/internal/models"
	"github.com/emilythestrangee/qa-forum/backend/internal/repository"
)

var tagColors = []string{"blue", "green", "purple", "orange", "red", "teal"}

type TagService struct {
	tags *repository.TagRepository
}

func NewTagService(db database.Service) *TagService {
	return &TagService{tags: repository.NewTagRepository(db.GetDB())}
}

func (s *TagService) List(ctx context.Context) ([]models.TagUsage, error) {
	tags, err := s.tags.ListWithUsage(ctx)
	if err != nil {
		return nil, apperrors.Internal("list tags", err)
	}
	if tags == nil {
		tags = []models.TagUsage{}
	}
	return tags, nil
}

// Seed inserts the named tags that do not exist yet and reports how many
// were added.
func (s *TagService) Seed(ctx context.Context, names []string) (int64, error) {
	seen := make(map[string]bool, len(names))
	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		tags = append(tags, models.Tag{Name: name, Color: tagColors[len(tags)%len(tagColors)]})
	}

	n, err := s.tags.Upsert(ctx, tags)
	if err != nil {
		return 0, apperrors.Internal("seed tags", err)
	}
	return n, nil
}
