//go:build integration

package voting

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/emilythestrangee/qa-forum/backend/internal/config"
	"github.com/emilythestrangee/qa-forum/backend/internal/database"
	"github.com/emilythestrangee/qa-forum/backend/internal/models"
	"github.com/emilythestrangee/qa-forum/backend/internal/testutil"
)

func setupPostgres(t *testing.T) database.Service {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("qa_test"),
		postgres.WithUsername("qa"),
		postgres.WithPassword("qa"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	svc, err := database.New(config.DatabaseConfig{
		Driver:          "postgres",
		DSN:             dsn,
		Name:            "qa_test",
		MaxIdleConns:    10,
		MaxOpenConns:    20,
		ConnMaxLifetime: time.Minute,
	}, false)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(svc.GetDB()))
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestLedgerUnderRowLocks(t *testing.T) {
	svc := setupPostgres(t)
	db := svc.GetDB()
	ledger := NewLedger(svc, NewRegistry())
	acceptance := NewAcceptance(svc)

	author := testutil.CreateUser(t, db, "author")
	q := testutil.CreateQuestion(t, db, author)
	answers := []*models.Answer{
		testutil.CreateAnswer(t, db, author, q),
		testutil.CreateAnswer(t, db, author, q),
		testutil.CreateAnswer(t, db, author, q),
	}

	voters := make([]*models.User, 30)
	for i := range voters {
		voters[i] = testutil.CreateUser(t, db, fmt.Sprintf("voter%d", i))
	}

	var wg conc.WaitGroup
	for i, v := range voters {
		v := v
		dir := Up
		if i%3 == 0 {
			dir = Down
		}
		wg.Go(func() {
			_, err := ledger.CastVote(context.Background(), CastVoteInput{
				VoterID: v.ID, VotableID: q.ID, VotableType: models.VotableQuestion, Direction: dir,
			})
			assert.NoError(t, err)
		})
		wg.Go(func() {
			_, err := ledger.CastVote(context.Background(), CastVoteInput{
				VoterID: v.ID, VotableID: answers[0].ID, VotableType: models.VotableAnswer, Direction: -dir,
			})
			assert.NoError(t, err)
		})
	}
	for _, a := range answers {
		a := a
		wg.Go(func() {
			_, err := acceptance.Accept(context.Background(), a.ID, author.ID)
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	assert.Equal(t, 10, testutil.Tally(t, db, "questions", q.ID))
	assert.Equal(t, testutil.VoteSum(t, db, q.ID), testutil.Tally(t, db, "questions", q.ID))
	assert.Equal(t, -10, testutil.Tally(t, db, "answers", answers[0].ID))

	var accepted int64
	require.NoError(t, db.Model(&models.Answer{}).Where("question_id = ? AND is_accepted", q.ID).Count(&accepted).Error)
	assert.Equal(t, int64(1), accepted)
}

func TestSameVoterRacesItself(t *testing.T) {
	svc := setupPostgres(t)
	db := svc.GetDB()
	ledger := NewLedger(svc, NewRegistry())

	author := testutil.CreateUser(t, db, "author")
	voter := testutil.CreateUser(t, db, "voter")
	q := testutil.CreateQuestion(t, db, author)
	a := testutil.CreateAnswer(t, db, author, q)

	targets := []struct {
		kind  models.VotableType
		id    string
		table string
	}{
		{models.VotableQuestion, q.ID, "questions"},
		{models.VotableAnswer, a.ID, "answers"},
	}

	var wg conc.WaitGroup
	for _, target := range targets {
		target := target
		for i := 0; i < 20; i++ {
			dir := Up
			if i%2 == 1 {
				dir = Down
			}
			wg.Go(func() {
				_, err := ledger.CastVote(context.Background(), CastVoteInput{
					VoterID: voter.ID, VotableID: target.id, VotableType: target.kind, Direction: dir,
				})
				assert.NoError(t, err)
			})
		}
	}
	wg.Wait()

	for _, target := range targets {
		var rows int64
		require.NoError(t, db.Model(&models.Vote{}).Where("voter_id = ? AND votable_id = ?", voter.ID, target.id).Count(&rows).Error)
		assert.LessOrEqual(t, rows, int64(1), "%s has duplicate votes", target.kind)
		assert.Equal(t, testutil.VoteSum(t, db, target.id), testutil.Tally(t, db, target.table, target.id), "%s tally drifted", target.kind)
	}
}

func TestVoteConstraints(t *testing.T) {
	svc := setupPostgres(t)
	db := svc.GetDB()
	voter := testutil.CreateUser(t, db, "voter")
	q := testutil.CreateQuestion(t, db, voter)

	err := db.Create(&models.Vote{VoterID: voter.ID, VotableID: q.ID, VotableType: models.VotableQuestion, VoteType: 3}).Error
	assert.Error(t, err, "check constraint rejects direction 3")

	require.NoError(t, db.Create(&models.Vote{VoterID: voter.ID, VotableID: q.ID, VotableType: models.VotableQuestion, VoteType: 1}).Error)
	err = db.Create(&models.Vote{VoterID: voter.ID, VotableID: q.ID, VotableType: models.VotableQuestion, VoteType: -1}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}
