package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mapdr-ai/platform/pkg/auth"
	"github.com/mapdr-ai/platform/pkg/common/models"
	"golang.org/x/crypto/bcrypt"
)

const defaultRole = "clinician"

var ErrInvalidCredentials = errors.New("invalid credentials")

// UserStore is the persistence surface of the identity service;
// *Repository is the gorm implementation.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type Service struct {
	repo UserStore
	jwt  *auth.JWTManager
}

func NewService(repo UserStore, jwt *auth.JWTManager) *Service {
	return &Service{repo: repo, jwt: jwt}
}

func (s *Service) CreateUser(ctx context.Context, email, name, role, password string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return models.User{}, fmt.Errorf("email and password required")
	}
	if role == "" {
		role = defaultRole
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hashing password: %w", err)
	}

	user := models.User{
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: string(hash),
	}
	if err := s.repo.CreateUser(ctx, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *Service) Login(ctx context.Context, req models.LoginRequest) (models.LoginResponse, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, ErrUserNotFound) {
		return models.LoginResponse{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.LoginResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return models.LoginResponse{}, ErrInvalidCredentials
	}

	token, err := s.jwt.IssueToken(*user)
	if err != nil {
		return models.LoginResponse{}, fmt.Errorf("issuing token: %w", err)
	}

	return models.LoginResponse{Token: token, User: *user}, nil
}

// GetUser resolves the account behind a set of verified claims.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}
