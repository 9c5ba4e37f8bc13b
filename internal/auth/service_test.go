package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tsheringp/pharmstock-backend/internal/users"
	pkgauth "github.com/tsheringp/pharmstock-backend/pkg/auth"
	"github.com/tsheringp/pharmstock-backend/pkg/config"
	"github.com/tsheringp/pharmstock-backend/pkg/db/models"
	"github.com/tsheringp/pharmstock-backend/pkg/enums"
	pkgerrors "github.com/tsheringp/pharmstock-backend/pkg/errors"
	"github.com/tsheringp/pharmstock-backend/pkg/security"
)

type stubUsersRepo struct {
	byEmail map[string]*models.User
}

func (s *stubUsersRepo) WithTx(tx *gorm.DB) users.Repository { return s }

func (s *stubUsersRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	s.byEmail[user.Email] = user
	return user, nil
}

func (s *stubUsersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	for _, user := range s.byEmail {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUsersRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := s.byEmail[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "test-secret", Issuer: "pharmstock", ExpirationMinutes: 30}
}

func seedUser(t *testing.T, repo *stubUsersRepo, email, password string) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Name:         "Test Pharmacy",
		Role:         enums.UserRolePharmacy,
		IsActive:     true,
	}
	repo.byEmail[email] = user
	return user
}

func TestLoginIssuesParsableToken(t *testing.T) {
	repo := &stubUsersRepo{byEmail: map[string]*models.User{}}
	user := seedUser(t, repo, "pharmacy@example.com", "correct horse")

	svc, err := NewService(repo, testJWTConfig())
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	result, err := svc.Login(context.Background(), LoginInput{
		Email:    "pharmacy@example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if result.User.ID != user.ID {
		t.Fatalf("unexpected user %v", result.User.ID)
	}
	if !result.ExpiresAt.After(time.Now()) {
		t.Fatalf("token already expired")
	}

	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), result.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != enums.UserRolePharmacy {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	repo := &stubUsersRepo{byEmail: map[string]*models.User{}}
	seedUser(t, repo, "pharmacy@example.com", "correct horse")

	svc, _ := NewService(repo, testJWTConfig())

	_, err := svc.Login(context.Background(), LoginInput{
		Email:    "pharmacy@example.com",
		Password: "wrong horse",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized got %v", err)
	}
}

func TestLoginUnknownUserAndInactiveUserLookTheSame(t *testing.T) {
	repo := &stubUsersRepo{byEmail: map[string]*models.User{}}
	inactive := seedUser(t, repo, "closed@example.com", "pw")
	inactive.IsActive = false

	svc, _ := NewService(repo, testJWTConfig())

	for _, email := range []string{"nobody@example.com", "closed@example.com"} {
		_, err := svc.Login(context.Background(), LoginInput{Email: email, Password: "pw"})
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
			t.Fatalf("expected unauthorized for %s got %v", email, err)
		}
	}
}
