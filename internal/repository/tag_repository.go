package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/qa-forum/backend/internal/models"
)

type TagRepository struct {
	DB *gorm.DB
}

func NewTagRepository(db *gorm.DB) *TagRepository {
	return &TagRepository{DB: db}
}

func (r *TagRepository) WithTx(tx *gorm.DB) *TagRepository {
	return &TagRepository{DB: tx}
}

// ListWithUsage returns every tag with the number of questions using it,
// most used first.
func (r *TagRepository) ListWithUsage(ctx context.Context) ([]models.TagUsage, error) {
	var tags []models.TagUsage
	err := r.DB.WithContext(ctx).Table("tags AS t").
		Select("t.id, t.name, t.color, t.description, COUNT(qt.question_id) AS usage_count").
		Joins("LEFT JOIN question_tags qt ON t.id = qt.tag_id").
		Group("t.id, t.name, t.color, t.description").
		Order("usage_count DESC, t.name ASC").
		Scan(&tags).Error
	return tags, err
}

// CountExisting reports how many of ids name a stored tag.
func (r *TagRepository) CountExisting(ctx context.Context, ids []string) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.Tag{}).Where("id IN ?", ids).Count(&count).Error
	return count, err
}

// CountActive counts tags attached to at least one question.
func (r *TagRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.QuestionTag{}).Distinct("tag_id").Count(&count).Error
	return count, err
}

// Upsert inserts tags whose name is not taken yet and returns how many were new.
func (r *TagRepository) Upsert(ctx context.Context, tags []models.Tag) (int64, error) {
	if len(tags) == 0 {
		return 0, nil
	}
	res := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&tags)
	return res.RowsAffected, res.Error
}
