package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/qa-forum/backend/internal/models"
)

type AnswerRepository struct {
	DB *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) *AnswerRepository {
	return &AnswerRepository{DB: db}
}

func (r *AnswerRepository) WithTx(tx *gorm.DB) *AnswerRepository {
	return &AnswerRepository{DB: tx}
}

func (r *AnswerRepository) Create(ctx context.Context, a *models.Answer) error {
	return r.DB.WithContext(ctx).Omit(clause.Associations).Create(a).Error
}

func (r *AnswerRepository) FindByID(ctx context.Context, id string) (*models.Answer, error) {
	var a models.Answer
	if err := r.DB.WithContext(ctx).Preload("Author").Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// ListByQuestion orders the accepted answer first, then by votes.
func (r *AnswerRepository) ListByQuestion(ctx context.Context, questionID string) ([]models.Answer, error) {
	var answers []models.Answer
	err := r.DB.WithContext(ctx).
		Preload("Author").
		Where("question_id = ?", questionID).
		Order("is_accepted DESC, votes DESC, created_at ASC").
		Find(&answers).Error
	return answers, err
}

// LockIDsByQuestion locks every answer of the question and returns their ids.
func (r *AnswerRepository) LockIDsByQuestion(ctx context.Context, questionID string) ([]string, error) {
	var ids []string
	err := r.DB.WithContext(ctx).Model(&models.Answer{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("question_id = ?", questionID).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *AnswerRepository) UpdateContent(ctx context.Context, id, content string) error {
	return r.DB.WithContext(ctx).Model(&models.Answer{}).
		Where("id = ?", id).
		Update("content", content).Error
}

// ResetAccepted clears the accepted flag on every answer of the question.
func (r *AnswerRepository) ResetAccepted(ctx context.Context, questionID string) error {
	return r.DB.WithContext(ctx).Model(&models.Answer{}).
		Where("question_id = ? AND is_accepted = ?", questionID, true).
		Updates(map[string]interface{}{"is_accepted": false, "accepted_at": nil}).Error
}

// MarkAccepted flags one answer of the question as accepted.
func (r *AnswerRepository) MarkAccepted(ctx context.Context, id, questionID string, at time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&models.Answer{}).
		Where("id = ? AND question_id = ?", id, questionID).
		Updates(map[string]interface{}{"is_accepted": true, "accepted_at": at})
	return res.RowsAffected, res.Error
}

func (r *AnswerRepository) Delete(ctx context.Context, id string) (int64, error) {
	res := r.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Answer{})
	return res.RowsAffected, res.Error
}

func (r *AnswerRepository) DeleteByQuestion(ctx context.Context, questionID string) error {
	return r.DB.WithContext(ctx).Where("question_id = ?", questionID).Delete(&models.Answer{}).Error
}
