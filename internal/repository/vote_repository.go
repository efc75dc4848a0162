package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/qa-forum/backend/internal/models"
)

type VoteRepository struct {
	DB *gorm.DB
}

func NewVoteRepository(db *gorm.DB) *VoteRepository {
	return &VoteRepository{DB: db}
}

func (r *VoteRepository) WithTx(tx *gorm.DB) *VoteRepository {
	return &VoteRepository{DB: tx}
}

// FindForUpdate locks the voter's row on the target. It returns
// gorm.ErrRecordNotFound when the voter has no stance yet.
func (r *VoteRepository) FindForUpdate(ctx context.Context, voterID, votableID string) (*models.Vote, error) {
	var v models.Vote
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("voter_id = ? AND votable_id = ?", voterID, votableID).
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VoteRepository) FindByIDForUpdate(ctx context.Context, id string) (*models.Vote, error) {
	var v models.Vote
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VoteRepository) Create(ctx context.Context, v *models.Vote) error {
	return r.DB.WithContext(ctx).Create(v).Error
}

// UpdateDirection flips the vote and records its kind, which older rows lack.
func (r *VoteRepository) UpdateDirection(ctx context.Context, id string, direction int, kind models.VotableType) error {
	return r.DB.WithContext(ctx).Model(&models.Vote{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"vote_type": direction, "votable_type": string(kind)}).Error
}

func (r *VoteRepository) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Vote{}).Error
}

// DeleteForTargets removes every vote on the given entities.
func (r *VoteRepository) DeleteForTargets(ctx context.Context, votableIDs []string) (int64, error) {
	if len(votableIDs) == 0 {
		return 0, nil
	}
	res := r.DB.WithContext(ctx).Where("votable_id IN ?", votableIDs).Delete(&models.Vote{})
	return res.RowsAffected, res.Error
}
