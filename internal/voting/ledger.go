package voting

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emilythestrangee/qa-forum/backend/internal/apperrors"
	"github.com/emilythestrangee/qa-forum/backend/internal/database"
	"github.com/emilythestrangee/qa-forum/backend/internal/logger"
	"github.com/emilythestrangee/qa-forum/backend/internal/metrics"
	"github.com/emilythestrangee/qa-forum/backend/internal/models"
	"github.com/emilythestrangee/qa-forum/backend/internal/repository"
)

const (
	Up   = 1
	Down = -1
)

type CastVoteInput struct {
	VoterID     string
	VotableID   string
	VotableType models.VotableType
	Direction   int
}

type CastVoteResult struct {
	VotableID   string
	NewVoteType int
	TotalVotes  int
}

type RevokeVoteResult struct {
	VotableID   string
	VotableType models.VotableType
	TotalVotes  int
}

type ReconcileReport struct {
	Backfilled int64 `json:"backfilled"`
	Orphans    int64 `json:"orphans"`
	Questions  int64 `json:"questions"`
	Answers    int64 `json:"answers"`
}

// Ledger owns the vote rows and keeps every tally equal to the sum of the
// votes targeting it. Locks are always taken entity first, then vote row.
type Ledger struct {
	db       database.Service
	votes    *repository.VoteRepository
	registry *Registry
}

func NewLedger(db database.Service, registry *Registry) *Ledger {
	return &Ledger{
		db:       db,
		votes:    repository.NewVoteRepository(db.GetDB()),
		registry: registry,
	}
}

func (in CastVoteInput) validate() error {
	if in.Direction != Up && in.Direction != Down {
		return apperrors.Validation("vote_type must be 1 or -1")
	}
	if !in.VotableType.Valid() {
		return apperrors.Validation("votable_type must be 'question' or 'answer'")
	}
	if !models.IsID(in.VotableID) {
		return apperrors.Validation("votable_id is invalid")
	}
	if in.VoterID == "" {
		return apperrors.Unauthorized("voter is required")
	}
	return nil
}

// CastVote records the voter's stance on the target. Repeating the current
// direction withdraws the vote; the opposite direction flips it.
func (l *Ledger) CastVote(ctx context.Context, in CastVoteInput) (*CastVoteResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var (
		result  CastVoteResult
		outcome string
	)
	err := l.db.Transact(ctx, func(tx *gorm.DB) error {
		target, err := l.registry.Lock(ctx, tx, in.VotableType, in.VotableID)
		if err != nil {
			return err
		}

		votes := l.votes.WithTx(tx)
		existing, err := votes.FindForUpdate(ctx, in.VoterID, in.VotableID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.Internal("load vote", err)
		}

		var delta, stance int
		switch {
		case existing == nil:
			vote := &models.Vote{
				VoterID:     in.VoterID,
				VotableType: in.VotableType,
				VotableID:   in.VotableID,
				VoteType:    in.Direction,
			}
			if err := votes.Create(ctx, vote); err != nil {
				return apperrors.FromStore(err, "")
			}
			delta, stance, outcome = in.Direction, in.Direction, metrics.OutcomeCreated
		case existing.VoteType == in.Direction:
			if err := votes.Delete(ctx, existing.ID); err != nil {
				return apperrors.FromStore(err, "")
			}
			delta, stance, outcome = -existing.VoteType, 0, metrics.OutcomeToggled
		default:
			if err := votes.UpdateDirection(ctx, existing.ID, in.Direction, in.VotableType); err != nil {
				return apperrors.FromStore(err, "")
			}
			delta, stance, outcome = in.Direction-existing.VoteType, in.Direction, metrics.OutcomeFlipped
		}

		total, err := l.registry.ApplyDelta(ctx, tx, target, delta)
		if err != nil {
			return err
		}
		result = CastVoteResult{VotableID: in.VotableID, NewVoteType: stance, TotalVotes: total}
		return nil
	})
	if err != nil {
		return nil, apperrors.FromStore(err, "")
	}

	metrics.VoteCast(string(in.VotableType), outcome)
	return &result, nil
}

// RevokeVote deletes one vote by id on behalf of its owner.
func (l *Ledger) RevokeVote(ctx context.Context, voteID, requesterID string) (*RevokeVoteResult, error) {
	if !models.IsID(voteID) {
		return nil, apperrors.Validation("vote id is invalid")
	}

	var result RevokeVoteResult
	err := l.db.Transact(ctx, func(tx *gorm.DB) error {
		votes := l.votes.WithTx(tx)

		// Read the vote unlocked to learn its target, lock the target, then
		// lock and re-check the vote.
		var vote models.Vote
		if err := tx.WithContext(ctx).Where("id = ?", voteID).First(&vote).Error; err != nil {
			return apperrors.FromStore(err, "vote not found")
		}
		if vote.VoterID != requesterID {
			return apperrors.Forbidden("you can only revoke your own vote")
		}

		target, err := l.lockTarget(ctx, tx, &vote)
		if err != nil {
			return err
		}

		locked, err := votes.FindByIDForUpdate(ctx, voteID)
		if err != nil {
			return apperrors.FromStore(err, "vote not found")
		}
		if err := votes.Delete(ctx, locked.ID); err != nil {
			return apperrors.FromStore(err, "")
		}

		total, err := l.registry.ApplyDelta(ctx, tx, target, -locked.VoteType)
		if err != nil {
			return err
		}
		result = RevokeVoteResult{VotableID: target.ID, VotableType: target.Kind, TotalVotes: total}
		return nil
	})
	if err != nil {
		return nil, apperrors.FromStore(err, "")
	}

	metrics.VoteCast(string(result.VotableType), metrics.OutcomeRevoked)
	return &result, nil
}

func (l *Ledger) lockTarget(ctx context.Context, tx *gorm.DB, vote *models.Vote) (Votable, error) {
	kind := vote.VotableType
	if !kind.Valid() {
		probed, err := l.registry.Probe(ctx, tx, vote.VotableID)
		if err != nil {
			return Votable{}, err
		}
		kind = probed.Kind
	}
	target, err := l.registry.Lock(ctx, tx, kind, vote.VotableID)
	if apperrors.KindOf(err) == apperrors.KindNotFound {
		return Votable{}, apperrors.NotFound("voted entity no longer exists")
	}
	return target, err
}

// DeleteVotesFor removes every vote on the given entities inside tx. It is
// the cascade step of question and answer deletion.
func (l *Ledger) DeleteVotesFor(ctx context.Context, tx *gorm.DB, votableIDs ...string) (int64, error) {
	n, err := l.votes.WithTx(tx).DeleteForTargets(ctx, votableIDs)
	if err != nil {
		return 0, apperrors.Internal("delete votes", err)
	}
	return n, nil
}

// Reconcile backfills missing kinds, drops votes whose target is gone and
// recomputes every tally from the vote rows.
func (l *Ledger) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	var report ReconcileReport
	err := l.db.Transact(ctx, func(tx *gorm.DB) error {
		db := tx.WithContext(ctx)

		for kind, table := range l.registry.tables {
			res := db.Exec(
				"UPDATE votes SET votable_type = ? WHERE votable_type = '' AND votable_id IN (SELECT id FROM "+table+")",
				string(kind),
			)
			if res.Error != nil {
				return res.Error
			}
			report.Backfilled += res.RowsAffected
		}

		res := db.Exec("DELETE FROM votes WHERE votable_id NOT IN (SELECT id FROM questions) AND votable_id NOT IN (SELECT id FROM answers)")
		if res.Error != nil {
			return res.Error
		}
		report.Orphans = res.RowsAffected

		for kind, table := range l.registry.tables {
			sum := "COALESCE((SELECT SUM(v.vote_type) FROM votes v WHERE v.votable_id = " + table + ".id), 0)"
			res := db.Exec("UPDATE " + table + " SET votes = " + sum + " WHERE votes <> " + sum)
			if res.Error != nil {
				return res.Error
			}
			switch kind {
			case models.VotableQuestion:
				report.Questions = res.RowsAffected
			case models.VotableAnswer:
				report.Answers = res.RowsAffected
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Internal("reconcile tallies", err)
	}

	logger.L.Info("tallies reconciled",
		zap.Int64("backfilled", report.Backfilled),
		zap.Int64("orphans", report.Orphans),
		zap.Int64("questions", report.Questions),
		zap.Int64("answers", report.Answers),
	)
	return &report, nil
}
