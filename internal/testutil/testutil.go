package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/qa-forum/backend/internal/config"
	"github.com/emilythestrangee/qa-forum/backend/internal/database"
	"github.com/emilythestrangee/qa-forum/backend/internal/models"
)

const (
	TestJWTSecret = "test-secret-key-for-testing-only-0123456789"
	TestPassword  = "password123"
)

// SetupTestDB opens a private in-memory SQLite database with the full schema.
// A single connection keeps every statement on the same in-memory store, so
// code running inside a transaction must only use the transaction handle.
func SetupTestDB(t *testing.T) database.Service {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver:       "sqlite",
		Name:         "test",
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString()),
		MaxIdleConns: 1,
		MaxOpenConns: 1,
	}
	svc, err := database.New(cfg, false)
	require.NoError(t, err, "open test database")
	require.NoError(t, database.Migrate(svc.GetDB()), "migrate test database")

	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func GetTestConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Port: "0", Mode: "test", NodeID: 1},
		Database:  config.DatabaseConfig{Driver: "sqlite"},
		JWT:       config.JWTConfig{Secret: TestJWTSecret, Expire: time.Hour},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"*"}},
		RateLimit: config.RateLimitConfig{VotesPerSecond: 1000, Burst: 1000},
	}
}

func CreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	require.NoError(t, err)

	u := &models.User{Username: username, Email: username + "@example.com", PasswordHash: string(hash)}
	require.NoError(t, db.Create(u).Error)
	return u
}

func CreateTag(t *testing.T, db *gorm.DB, name string) *models.Tag {
	t.Helper()

	tag := &models.Tag{Name: name, Color: "blue"}
	require.NoError(t, db.Create(tag).Error)
	return tag
}

func CreateQuestion(t *testing.T, db *gorm.DB, author *models.User, tags ...*models.Tag) *models.Question {
	t.Helper()

	q := &models.Question{Title: "How do I test?", Content: "Details here", AuthorID: author.ID}
	require.NoError(t, db.Omit(clause.Associations).Create(q).Error)
	for _, tag := range tags {
		require.NoError(t, db.Create(&models.QuestionTag{QuestionID: q.ID, TagID: tag.ID}).Error)
	}
	return q
}

func CreateAnswer(t *testing.T, db *gorm.DB, author *models.User, q *models.Question) *models.Answer {
	t.Helper()

	a := &models.Answer{Content: "Write tests.", QuestionID: q.ID, AuthorID: author.ID}
	require.NoError(t, db.Omit(clause.Associations).Create(a).Error)
	return a
}

// VoteSum is the ledger total for one entity.
func VoteSum(t *testing.T, db *gorm.DB, votableID string) int {
	t.Helper()

	var sum int
	require.NoError(t, db.Model(&models.Vote{}).
		Where("votable_id = ?", votableID).
		Select("COALESCE(SUM(vote_type), 0)").
		Scan(&sum).Error)
	return sum
}

// Tally reads the cached votes column of a question or answer.
func Tally(t *testing.T, db *gorm.DB, table, id string) int {
	t.Helper()

	var votes int
	require.NoError(t, db.Table(table).Where("id = ?", id).Select("votes").Scan(&votes).Error)
	return votes
}
