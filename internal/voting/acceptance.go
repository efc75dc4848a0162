package voting

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emilythestrangee/qa-forum/backend/internal/apperrors"
	"github.com/emilythestrangee/qa-forum/backend/internal/database"
	"github.com/emilythestrangee/qa-forum/backend/internal/logger"
	"github.com/emilythestrangee/qa-forum/backend/internal/metrics"
	"github.com/emilythestrangee/qa-forum/backend/internal/models"
	"github.com/emilythestrangee/qa-forum/backend/internal/repository"
)

// Acceptance marks at most one answer per question as accepted.
type Acceptance struct {
	db        database.Service
	questions *repository.QuestionRepository
	answers   *repository.AnswerRepository
	now       func() time.Time
}

func NewAcceptance(db database.Service) *Acceptance {
	return &Acceptance{
		db:        db,
		questions: repository.NewQuestionRepository(db.GetDB()),
		answers:   repository.NewAnswerRepository(db.GetDB()),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Accept makes answerID the accepted answer of its question. Only the
// question author may do so. Any previously accepted answer is reset in the
// same transaction.
func (a *Acceptance) Accept(ctx context.Context, answerID, requesterID string) (*models.Answer, error) {
	if !models.IsID(answerID) {
		return nil, apperrors.Validation("answer id is invalid")
	}

	var accepted *models.Answer
	err := a.db.Transact(ctx, func(tx *gorm.DB) error {
		answers := a.answers.WithTx(tx)
		questions := a.questions.WithTx(tx)

		answer, err := answers.FindByID(ctx, answerID)
		if err != nil {
			return apperrors.FromStore(err, "answer not found")
		}

		question, err := questions.FindForUpdate(ctx, answer.QuestionID)
		if err != nil {
			return apperrors.FromStore(err, "question not found")
		}
		if question.AuthorID != requesterID {
			return apperrors.Forbidden("only the question author can accept an answer")
		}

		if err := answers.ResetAccepted(ctx, question.ID); err != nil {
			return apperrors.FromStore(err, "")
		}
		n, err := answers.MarkAccepted(ctx, answerID, question.ID, a.now())
		if err != nil {
			return apperrors.FromStore(err, "")
		}
		if n == 0 {
			return apperrors.NotFound("answer not found")
		}

		accepted, err = answers.FindByID(ctx, answerID)
		return apperrors.FromStore(err, "answer not found")
	})
	if err != nil {
		return nil, err
	}

	metrics.AnswerAccepted()
	logger.L.Info("answer accepted",
		zap.String("answer_id", accepted.ID),
		zap.String("question_id", accepted.QuestionID),
	)
	return accepted, nil
}
