package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/qa-forum/backend/internal/models"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

func (r *QuestionRepository) WithTx(tx *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: tx}
}

func (r *QuestionRepository) Create(ctx context.Context, q *models.Question) error {
	return r.DB.WithContext(ctx).Omit(clause.Associations).Create(q).Error
}

// FindByID loads a question with its author and tags.
func (r *QuestionRepository) FindByID(ctx context.Context, id string) (*models.Question, error) {
	var q models.Question
	err := r.DB.WithContext(ctx).
		Preload("Author").
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.name ASC") }).
		Where("id = ?", id).
		First(&q).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// FindForUpdate loads the bare question row under a row lock.
func (r *QuestionRepository) FindForUpdate(ctx context.Context, id string) (*models.Question, error) {
	var q models.Question
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&q).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// List returns one page of questions, newest first, optionally restricted to
// the questions carrying the tag named tagName.
func (r *QuestionRepository) List(ctx context.Context, page, limit int, tagName string) ([]models.Question, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if tagName == "" {
			return db
		}
		return db.Where("questions.id IN (?)",
			r.DB.Table("question_tags qt").
				Select("qt.question_id").
				Joins("JOIN tags t ON t.id = qt.tag_id").
				Where("t.name = ?", tagName))
	}

	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Question{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var questions []models.Question
	err := r.DB.WithContext(ctx).
		Scopes(scope).
		Preload("Author").
		Preload("Tags").
		Order("questions.created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&questions).Error
	return questions, total, err
}

func (r *QuestionRepository) IncrementViews(ctx context.Context, id string) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&models.Question{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	return res.RowsAffected, res.Error
}

func (r *QuestionRepository) UpdateContent(ctx context.Context, id, title, content string) error {
	return r.DB.WithContext(ctx).Model(&models.Question{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"title": title, "content": content}).Error
}

// ReplaceTags drops every tag link of the question and inserts tagIDs.
func (r *QuestionRepository) ReplaceTags(ctx context.Context, questionID string, tagIDs []string) error {
	db := r.DB.WithContext(ctx)
	if err := db.Where("question_id = ?", questionID).Delete(&models.QuestionTag{}).Error; err != nil {
		return err
	}
	if len(tagIDs) == 0 {
		return nil
	}
	links := make([]models.QuestionTag, 0, len(tagIDs))
	for _, id := range tagIDs {
		links = append(links, models.QuestionTag{QuestionID: questionID, TagID: id})
	}
	return db.Create(&links).Error
}

// Delete removes the question and its tag links. Answers and votes are the
// caller's responsibility.
func (r *QuestionRepository) Delete(ctx context.Context, id string) (int64, error) {
	db := r.DB.WithContext(ctx)
	if err := db.Where("question_id = ?", id).Delete(&models.QuestionTag{}).Error; err != nil {
		return 0, err
	}
	res := db.Where("id = ?", id).Delete(&models.Question{})
	return res.RowsAffected, res.Error
}

func (r *QuestionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.Question{}).Count(&count).Error
	return count, err
}

// CountResolved counts questions that have an accepted answer.
func (r *QuestionRepository) CountResolved(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.Answer{}).
		Where("is_accepted = ?", true).
		Distinct("question_id").
		Count(&count).Error
	return count, err
}
