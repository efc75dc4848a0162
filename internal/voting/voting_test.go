package voting

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/emilythestrangee/qa-forum/backend/internal/apperrors"
	"github.com/emilythestrangee/qa-forum/backend/internal/database"
	"github.com/emilythestrangee/qa-forum/backend/internal/models"
	"github.com/emilythestrangee/qa-forum/backend/internal/testutil"
)

type fixture struct {
	svc        database.Service
	db         *gorm.DB
	ledger     *Ledger
	acceptance *Acceptance
	author     *models.User
	alice      *models.User
	bob        *models.User
	question   *models.Question
	answer     *models.Answer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	svc := testutil.SetupTestDB(t)
	db := svc.GetDB()
	author := testutil.CreateUser(t, db, "author")
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	q := testutil.CreateQuestion(t, db, author)

	return &fixture{
		svc:        svc,
		db:         db,
		ledger:     NewLedger(svc, NewRegistry()),
		acceptance: NewAcceptance(svc),
		author:     author,
		alice:      alice,
		bob:        bob,
		question:   q,
		answer:     testutil.CreateAnswer(t, db, alice, q),
	}
}

func (f *fixture) cast(t *testing.T, voter *models.User, kind models.VotableType, id string, dir int) *CastVoteResult {
	t.Helper()

	res, err := f.ledger.CastVote(context.Background(), CastVoteInput{
		VoterID:     voter.ID,
		VotableID:   id,
		VotableType: kind,
		Direction:   dir,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) assertInvariant(t *testing.T) {
	t.Helper()

	assert.Equal(t, testutil.VoteSum(t, f.db, f.question.ID), testutil.Tally(t, f.db, "questions", f.question.ID), "question tally drifted")
	assert.Equal(t, testutil.VoteSum(t, f.db, f.answer.ID), testutil.Tally(t, f.db, "answers", f.answer.ID), "answer tally drifted")
}

func (f *fixture) voteOf(t *testing.T, voter *models.User, id string) *models.Vote {
	t.Helper()

	var votes []models.Vote
	require.NoError(t, f.db.Where("voter_id = ? AND votable_id = ?", voter.ID, id).Find(&votes).Error)
	require.LessOrEqual(t, len(votes), 1)
	if len(votes) == 0 {
		return nil
	}
	return &votes[0]
}

func TestCastVoteScenario(t *testing.T) {
	f := newFixture(t)

	res := f.cast(t, f.alice, models.VotableQuestion, f.question.ID, Up)
	assert.Equal(t, 1, res.TotalVotes)
	assert.Equal(t, 1, res.NewVoteType)
	assert.Equal(t, f.question.ID, res.VotableID)

	res = f.cast(t, f.bob, models.VotableQuestion, f.question.ID, Down)
	assert.Equal(t, 0, res.TotalVotes)

	aliceVote := f.voteOf(t, f.alice, f.question.ID)
	require.NotNil(t, aliceVote)
	assert.Equal(t, models.VotableQuestion, aliceVote.VotableType)

	revoked, err := f.ledger.RevokeVote(context.Background(), aliceVote.ID, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, -1, revoked.TotalVotes)
	assert.Equal(t, models.VotableQuestion, revoked.VotableType)

	f.assertInvariant(t)
}

func TestCastVoteToggle(t *testing.T) {
	f := newFixture(t)

	res := f.cast(t, f.bob, models.VotableAnswer, f.answer.ID, Up)
	assert.Equal(t, 1, res.TotalVotes)

	res = f.cast(t, f.bob, models.VotableAnswer, f.answer.ID, Up)
	assert.Equal(t, 0, res.TotalVotes)
	assert.Equal(t, 0, res.NewVoteType)
	assert.Nil(t, f.voteOf(t, f.bob, f.answer.ID))

	f.assertInvariant(t)
}

func TestCastVoteFlip(t *testing.T) {
	f := newFixture(t)

	first := f.cast(t, f.bob, models.VotableQuestion, f.question.ID, Up)
	second := f.cast(t, f.bob, models.VotableQuestion, f.question.ID, Down)

	assert.Equal(t, first.TotalVotes-2, second.TotalVotes)
	assert.Equal(t, Down, second.NewVoteType)

	vote := f.voteOf(t, f.bob, f.question.ID)
	require.NotNil(t, vote)
	assert.Equal(t, Down, vote.VoteType)

	f.assertInvariant(t)
}

func TestCastVoteValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		in   CastVoteInput
		kind apperrors.Kind
	}{
		{"zero direction", CastVoteInput{VoterID: f.bob.ID, VotableID: f.question.ID, VotableType: models.VotableQuestion, Direction: 0}, apperrors.KindValidation},
		{"stacked direction", CastVoteInput{VoterID: f.bob.ID, VotableID: f.question.ID, VotableType: models.VotableQuestion, Direction: 2}, apperrors.KindValidation},
		{"unknown kind", CastVoteInput{VoterID: f.bob.ID, VotableID: f.question.ID, VotableType: "comment", Direction: Up}, apperrors.KindValidation},
		{"malformed id", CastVoteInput{VoterID: f.bob.ID, VotableID: "42", VotableType: models.VotableQuestion, Direction: Up}, apperrors.KindValidation},
		{"missing question", CastVoteInput{VoterID: f.bob.ID, VotableID: models.NewID(), VotableType: models.VotableQuestion, Direction: Up}, apperrors.KindNotFound},
		{"question id as answer", CastVoteInput{VoterID: f.bob.ID, VotableID: f.question.ID, VotableType: models.VotableAnswer, Direction: Up}, apperrors.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.CastVote(context.Background(), tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&models.Vote{}).Count(&count).Error)
	assert.Zero(t, count)
	f.assertInvariant(t)
}

func TestRevokeVoteErrors(t *testing.T) {
	f := newFixture(t)
	f.cast(t, f.bob, models.VotableAnswer, f.answer.ID, Down)
	vote := f.voteOf(t, f.bob, f.answer.ID)
	require.NotNil(t, vote)

	_, err := f.ledger.RevokeVote(context.Background(), vote.ID, f.alice.ID)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	_, err = f.ledger.RevokeVote(context.Background(), models.NewID(), f.bob.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	_, err = f.ledger.RevokeVote(context.Background(), "nope", f.bob.ID)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	assert.Equal(t, -1, testutil.Tally(t, f.db, "answers", f.answer.ID))
	f.assertInvariant(t)
}

func TestRevokeVoteProbesLegacyRow(t *testing.T) {
	f := newFixture(t)

	legacy := &models.Vote{VoterID: f.bob.ID, VotableID: f.answer.ID, VoteType: Up}
	require.NoError(t, f.db.Create(legacy).Error)
	require.NoError(t, f.db.Model(&models.Answer{}).Where("id = ?", f.answer.ID).
		UpdateColumn("votes", gorm.Expr("votes + ?", 1)).Error)

	stored := f.voteOf(t, f.bob, f.answer.ID)
	require.NotNil(t, stored)
	assert.Equal(t, models.VotableType(""), stored.VotableType)

	res, err := f.ledger.RevokeVote(context.Background(), legacy.ID, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VotableAnswer, res.VotableType)
	assert.Equal(t, 0, res.TotalVotes)

	f.assertInvariant(t)
}

func TestRegistryProbe(t *testing.T) {
	f := newFixture(t)
	r := NewRegistry()
	ctx := context.Background()

	v, err := r.Probe(ctx, f.db, f.question.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VotableQuestion, v.Kind)
	assert.Equal(t, f.author.ID, v.AuthorID)

	v, err = r.Probe(ctx, f.db, f.answer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VotableAnswer, v.Kind)

	_, err = r.Probe(ctx, f.db, models.NewID())
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	_, err = r.Table("comment")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestDeleteVotesForKeepsInvariant(t *testing.T) {
	f := newFixture(t)
	f.cast(t, f.bob, models.VotableAnswer, f.answer.ID, Up)
	f.cast(t, f.author, models.VotableAnswer, f.answer.ID, Up)
	f.cast(t, f.bob, models.VotableQuestion, f.question.ID, Up)

	err := f.svc.Transact(context.Background(), func(tx *gorm.DB) error {
		n, err := f.ledger.DeleteVotesFor(context.Background(), tx, f.answer.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(2), n)
		return tx.Where("id = ?", f.answer.ID).Delete(&models.Answer{}).Error
	})
	require.NoError(t, err)

	assert.Zero(t, testutil.VoteSum(t, f.db, f.answer.ID))
	assert.Equal(t, 1, testutil.Tally(t, f.db, "questions", f.question.ID))
}

func TestReconcile(t *testing.T) {
	f := newFixture(t)
	f.cast(t, f.bob, models.VotableQuestion, f.question.ID, Up)
	f.cast(t, f.alice, models.VotableQuestion, f.question.ID, Up)

	// Drift the cached tally, leave an orphan and a row without kind.
	require.NoError(t, f.db.Model(&models.Question{}).Where("id = ?", f.question.ID).UpdateColumn("votes", 7).Error)
	require.NoError(t, f.db.Create(&models.Vote{VoterID: f.bob.ID, VotableID: models.NewID(), VotableType: models.VotableAnswer, VoteType: Up}).Error)
	require.NoError(t, f.db.Create(&models.Vote{VoterID: f.author.ID, VotableID: f.answer.ID, VoteType: Down}).Error)

	report, err := f.ledger.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Backfilled)
	assert.Equal(t, int64(1), report.Orphans)
	assert.Equal(t, int64(1), report.Questions)
	assert.Equal(t, int64(1), report.Answers)

	assert.Equal(t, 2, testutil.Tally(t, f.db, "questions", f.question.ID))
	assert.Equal(t, -1, testutil.Tally(t, f.db, "answers", f.answer.ID))
	assert.Equal(t, models.VotableAnswer, f.voteOf(t, f.author, f.answer.ID).VotableType)
	f.assertInvariant(t)

	again, err := f.ledger.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{}, *again)
}

func TestRandomSequenceKeepsInvariant(t *testing.T) {
	f := newFixture(t)
	rng := rand.New(rand.NewSource(42))
	voters := []*models.User{f.author, f.alice, f.bob}
	targets := []struct {
		kind models.VotableType
		id   string
	}{
		{models.VotableQuestion, f.question.ID},
		{models.VotableAnswer, f.answer.ID},
	}

	for i := 0; i < 200; i++ {
		voter := voters[rng.Intn(len(voters))]
		target := targets[rng.Intn(len(targets))]

		if rng.Intn(5) == 0 {
			if v := f.voteOf(t, voter, target.id); v != nil {
				_, err := f.ledger.RevokeVote(context.Background(), v.ID, voter.ID)
				require.NoError(t, err)
			}
		} else {
			dir := Up
			if rng.Intn(2) == 0 {
				dir = Down
			}
			before := f.voteOf(t, voter, target.id)
			res := f.cast(t, voter, target.kind, target.id, dir)

			after := f.voteOf(t, voter, target.id)
			switch {
			case before != nil && before.VoteType == dir:
				assert.Nil(t, after, "step %d: repeat must withdraw", i)
				assert.Zero(t, res.NewVoteType)
			default:
				require.NotNil(t, after, "step %d", i)
				assert.Equal(t, dir, after.VoteType)
			}
		}
		f.assertInvariant(t)
	}
}

func TestConcurrentVotes(t *testing.T) {
	f := newFixture(t)

	voters := make([]*models.User, 20)
	for i := range voters {
		voters[i] = testutil.CreateUser(t, f.db, fmt.Sprintf("voter%d", i))
	}

	var wg conc.WaitGroup
	for _, v := range voters {
		v := v
		wg.Go(func() {
			_, err := f.ledger.CastVote(context.Background(), CastVoteInput{
				VoterID: v.ID, VotableID: f.question.ID, VotableType: models.VotableQuestion, Direction: Up,
			})
			assert.NoError(t, err)
		})
	}
	// The same voter racing with itself ends up with at most one row.
	for i := 0; i < 9; i++ {
		wg.Go(func() {
			_, err := f.ledger.CastVote(context.Background(), CastVoteInput{
				VoterID: f.bob.ID, VotableID: f.answer.ID, VotableType: models.VotableAnswer, Direction: Up,
			})
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	assert.Equal(t, 20, testutil.Tally(t, f.db, "questions", f.question.ID))
	assert.Equal(t, 1, testutil.Tally(t, f.db, "answers", f.answer.ID), "nine toggles leave one vote")
	f.assertInvariant(t)
}

var errInjected = errors.New("injected update failure")

// failUpdate makes UPDATEs against table fail: every one when nth is 0,
// otherwise only the nth.
func failUpdate(t *testing.T, db *gorm.DB, table string, nth int) {
	t.Helper()

	calls := 0
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("test:fail_update", func(tx *gorm.DB) {
		if tx.Statement.Table != table {
			return
		}
		calls++
		if nth == 0 || calls == nth {
			_ = tx.AddError(errInjected)
		}
	}))
}

func TestCastVoteRollsBackOnTallyFailure(t *testing.T) {
	f := newFixture(t)
	f.cast(t, f.bob, models.VotableQuestion, f.question.ID, Up)

	failUpdate(t, f.db, "questions", 0)

	_, err := f.ledger.CastVote(context.Background(), CastVoteInput{
		VoterID: f.alice.ID, VotableID: f.question.ID, VotableType: models.VotableQuestion, Direction: Up,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
	assert.Nil(t, f.voteOf(t, f.alice, f.question.ID), "inserted vote is rolled back")

	_, err = f.ledger.CastVote(context.Background(), CastVoteInput{
		VoterID: f.bob.ID, VotableID: f.question.ID, VotableType: models.VotableQuestion, Direction: Down,
	})
	require.Error(t, err)

	bobVote := f.voteOf(t, f.bob, f.question.ID)
	require.NotNil(t, bobVote)
	assert.Equal(t, Up, bobVote.VoteType, "flip is rolled back")

	_, err = f.ledger.RevokeVote(context.Background(), bobVote.ID, f.bob.ID)
	require.Error(t, err)
	assert.NotNil(t, f.voteOf(t, f.bob, f.question.ID), "revoke is rolled back")

	assert.Equal(t, 1, testutil.Tally(t, f.db, "questions", f.question.ID))
	f.assertInvariant(t)
}
