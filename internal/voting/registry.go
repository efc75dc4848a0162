package voting

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/qa-forum/backend/internal/apperrors"
	"github.com/emilythestrangee/qa-forum/backend/internal/models"
)

// Votable is the part of a question or answer the ledger needs.
type Votable struct {
	Kind     models.VotableType
	ID       string
	AuthorID string
	Votes    int
}

type votableRow struct {
	ID       string
	AuthorID string
	Votes    int
}

// Registry maps a votable kind to the table holding its tally.
type Registry struct {
	tables map[models.VotableType]string
}

func NewRegistry() *Registry {
	return &Registry{tables: map[models.VotableType]string{
		models.VotableQuestion: "questions",
		models.VotableAnswer:   "answers",
	}}
}

func (r *Registry) Table(kind models.VotableType) (string, error) {
	table, ok := r.tables[kind]
	if !ok {
		return "", apperrors.Validation("votable_type must be 'question' or 'answer'")
	}
	return table, nil
}

// Resolve looks up the entity of the given kind.
func (r *Registry) Resolve(ctx context.Context, tx *gorm.DB, kind models.VotableType, id string) (Votable, error) {
	return r.find(ctx, tx, kind, id, false)
}

// Lock is Resolve with a row lock held until tx ends.
func (r *Registry) Lock(ctx context.Context, tx *gorm.DB, kind models.VotableType, id string) (Votable, error) {
	return r.find(ctx, tx, kind, id, true)
}

// Probe finds the kind of an entity by id alone, questions first. It serves
// vote rows stored before the kind was recorded.
func (r *Registry) Probe(ctx context.Context, tx *gorm.DB, id string) (Votable, error) {
	for _, kind := range []models.VotableType{models.VotableQuestion, models.VotableAnswer} {
		v, err := r.Resolve(ctx, tx, kind, id)
		if err == nil {
			return v, nil
		}
		if apperrors.KindOf(err) != apperrors.KindNotFound {
			return Votable{}, err
		}
	}
	return Votable{}, apperrors.NotFound("voted entity no longer exists")
}

func (r *Registry) find(ctx context.Context, tx *gorm.DB, kind models.VotableType, id string, lock bool) (Votable, error) {
	table, err := r.Table(kind)
	if err != nil {
		return Votable{}, err
	}

	q := tx.WithContext(ctx).Table(table)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var row votableRow
	err = q.Select("id, author_id, votes").Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Votable{}, apperrors.NotFound(fmt.Sprintf("%s not found", kind))
	}
	if err != nil {
		return Votable{}, apperrors.Internal("resolve votable", err)
	}
	return Votable{Kind: kind, ID: row.ID, AuthorID: row.AuthorID, Votes: row.Votes}, nil
}

// ApplyDelta shifts the tally of v by delta and returns the new total as seen
// inside tx.
func (r *Registry) ApplyDelta(ctx context.Context, tx *gorm.DB, v Votable, delta int) (int, error) {
	table, err := r.Table(v.Kind)
	if err != nil {
		return 0, err
	}
	db := tx.WithContext(ctx)

	if delta != 0 {
		res := db.Table(table).Where("id = ?", v.ID).UpdateColumn("votes", gorm.Expr("votes + ?", delta))
		if res.Error != nil {
			return 0, apperrors.FromStore(res.Error, "")
		}
		if res.RowsAffected == 0 {
			return 0, apperrors.NotFound(fmt.Sprintf("%s not found", v.Kind))
		}
	}

	var total int
	if err := db.Table(table).Select("votes").Where("id = ?", v.ID).Scan(&total).Error; err != nil {
		return 0, apperrors.Internal("read tally", err)
	}
	return total, nil
}
