package voting

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/qa-forum/backend/internal/apperrors"
	"github.com/emilythestrangee/qa-forum/backend/internal/models"
	"github.com/emilythestrangee/qa-forum/backend/internal/testutil"
)

func acceptedIDs(t *testing.T, f *fixture, questionID string) []string {
	t.Helper()

	var ids []string
	require.NoError(t, f.db.Model(&models.Answer{}).
		Where("question_id = ? AND is_accepted = ?", questionID, true).
		Pluck("id", &ids).Error)
	return ids
}

func TestAcceptSupersedes(t *testing.T) {
	f := newFixture(t)
	x := f.answer
	y := testutil.CreateAnswer(t, f.db, f.bob, f.question)
	ctx := context.Background()

	got, err := f.acceptance.Accept(ctx, x.ID, f.author.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAccepted)
	assert.NotNil(t, got.AcceptedAt)
	assert.Equal(t, f.alice.Username, got.Author.Username)
	assert.Equal(t, []string{x.ID}, acceptedIDs(t, f, f.question.ID))

	got, err = f.acceptance.Accept(ctx, y.ID, f.author.ID)
	require.NoError(t, err)
	assert.Equal(t, y.ID, got.ID)
	assert.Equal(t, []string{y.ID}, acceptedIDs(t, f, f.question.ID))

	var prev models.Answer
	require.NoError(t, f.db.Where("id = ?", x.ID).First(&prev).Error)
	assert.False(t, prev.IsAccepted)
	assert.Nil(t, prev.AcceptedAt)
}

func TestAcceptTwiceIsStable(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 2; i++ {
		_, err := f.acceptance.Accept(context.Background(), f.answer.ID, f.author.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{f.answer.ID}, acceptedIDs(t, f, f.question.ID))
}

func TestAcceptRejectsNonAuthor(t *testing.T) {
	f := newFixture(t)
	other := testutil.CreateAnswer(t, f.db, f.bob, f.question)

	_, err := f.acceptance.Accept(context.Background(), f.answer.ID, f.author.ID)
	require.NoError(t, err)

	_, err = f.acceptance.Accept(context.Background(), other.ID, f.alice.ID)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	assert.Equal(t, []string{f.answer.ID}, acceptedIDs(t, f, f.question.ID))
}

func TestAcceptMissingAnswer(t *testing.T) {
	f := newFixture(t)

	_, err := f.acceptance.Accept(context.Background(), models.NewID(), f.author.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	_, err = f.acceptance.Accept(context.Background(), "bad", f.author.ID)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestAcceptKeepsOtherQuestionsUntouched(t *testing.T) {
	f := newFixture(t)
	q2 := testutil.CreateQuestion(t, f.db, f.author)
	a2 := testutil.CreateAnswer(t, f.db, f.bob, q2)

	_, err := f.acceptance.Accept(context.Background(), a2.ID, f.author.ID)
	require.NoError(t, err)
	_, err = f.acceptance.Accept(context.Background(), f.answer.ID, f.author.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{a2.ID}, acceptedIDs(t, f, q2.ID))
	assert.Equal(t, []string{f.answer.ID}, acceptedIDs(t, f, f.question.ID))
}

func TestAcceptRollsBackResetWhenSetFails(t *testing.T) {
	f := newFixture(t)
	other := testutil.CreateAnswer(t, f.db, f.bob, f.question)

	_, err := f.acceptance.Accept(context.Background(), f.answer.ID, f.author.ID)
	require.NoError(t, err)

	// The reset is the first answers update of Accept, the set the second.
	failUpdate(t, f.db, "answers", 2)

	_, err = f.acceptance.Accept(context.Background(), other.ID, f.author.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
	assert.Equal(t, []string{f.answer.ID}, acceptedIDs(t, f, f.question.ID))

	var prev models.Answer
	require.NoError(t, f.db.First(&prev, "id = ?", f.answer.ID).Error)
	assert.NotNil(t, prev.AcceptedAt)
}
