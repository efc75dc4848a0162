package service

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emilythestrangee/qa-forum/backend/internal/apperrors"
	"github.com/emilythestrangee/qa-forum/backend/internal/auth"
	"github.com/emilythestrangee/qa-forum/backend/internal/database"
	"github.com/emilythestrangee/qa-forum/backend/internal/logger"
	"github.com/emilythestrangee/qa-forum/backend/internal/models"
	"github.com/emilythestrangee/qa-forum/backend/internal/repository"
)

type AuthService struct {
	users         *repository.UserRepository
	authenticator *auth.Authenticator
}

func NewAuthService(db database.Service, authenticator *auth.Authenticator) *AuthService {
	return &AuthService{
		users:         repository.NewUserRepository(db.GetDB()),
		authenticator: authenticator,
	}
}

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := binding.Validator.ValidateStruct(&req); err != nil {
		return nil, registerValidation(err)
	}
	username, email := req.Username, req.Email

	taken, err := s.users.Taken(ctx, username, email)
	if err != nil {
		return nil, apperrors.Internal("check user", err)
	}
	if taken {
		return nil, apperrors.Conflict("username or email already exists", nil)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.Internal("hash password", err)
	}

	user := &models.User{Username: username, Email: email, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.Conflict("username or email already exists", err)
		}
		return nil, apperrors.FromStore(err, "")
	}

	token, err := s.authenticator.Issue(user.ID, user.Username)
	if err != nil {
		return nil, apperrors.Internal("issue token", err)
	}

	logger.L.Info("user registered", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return &models.AuthResponse{Message: "User registered successfully", Token: token, User: *user}, nil
}

// registerValidation reports the first rule the request broke, using the same
// binding tags gin checks on the HTTP path.
func registerValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.Validation("invalid registration request")
	}
	fe := verrs[0]
	switch {
	case fe.Tag() == "required":
		return apperrors.Validation("username, email and password are required")
	case fe.Field() == "Email":
		return apperrors.Validation("email is invalid")
	case fe.Field() == "Password":
		return apperrors.Validation("password must be at least 6 characters")
	default:
		return apperrors.Validation("username must be between 2 and 50 characters")
	}
}

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Unauthorized("invalid credentials")
	}
	if err != nil {
		return nil, apperrors.Internal("find user", err)
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, apperrors.Unauthorized("invalid credentials")
	}

	token, err := s.authenticator.Issue(user.ID, user.Username)
	if err != nil {
		return nil, apperrors.Internal("issue token", err)
	}
	return &models.AuthResponse{Message: "Login successful", Token: token, User: *user}, nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, apperrors.FromStore(err, "user not found")
	}
	return user, nil
}

// Authenticate resolves a bearer token to a user that still exists.
func (s *AuthService) Authenticate(ctx context.Context, token string) (string, error) {
	userID, err := s.authenticator.Resolve(token)
	if err != nil {
		return "", apperrors.Unauthorized("invalid or expired token")
	}

	ok, err := s.users.Exists(ctx, userID)
	if err != nil {
		return "", apperrors.Internal("check user", err)
	}
	if !ok {
		return "", apperrors.Unauthorized("user no longer exists")
	}
	return userID, nil
}
