package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/placement-cell/internship-portal-api/internal/models"
	appErrors "github.com/placement-cell/internship-portal-api/pkg/errors"
)

type authRepoStub struct {
	users   map[string]*models.User
	byEmail map[string]string
	tokens  map[string]*models.RefreshToken
	audits  []models.AuditLog
}

func newAuthRepoStub() *authRepoStub {
	return &authRepoStub{
		users:   map[string]*models.User{},
		byEmail: map[string]string{},
		tokens:  map[string]*models.RefreshToken{},
	}
}

func (r *authRepoStub) addUser(user *models.User, password string) {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user.PasswordHash = string(hash)
	r.users[user.ID] = user
	r.byEmail[user.Email] = user.ID
}

func (r *authRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	id, ok := r.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return r.users[id], nil
}

func (r *authRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (r *authRepoStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (r *authRepoStub) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	r.tokens[token.Token] = token
	return nil
}

func (r *authRepoStub) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	stored, ok := r.tokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return stored, nil
}

func (r *authRepoStub) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range r.tokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (r *authRepoStub) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	for _, token := range r.tokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

func (r *authRepoStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.audits = append(r.audits, *log)
	return nil
}

func newAuthServiceForTest(t *testing.T) (*AuthService, *authRepoStub) {
	t.Helper()
	repo := newAuthRepoStub()
	svc := NewAuthService(repo, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "internship-portal-api",
	})
	return svc, repo
}

func TestAuthLoginIssuesTokensWithDepartmentClaim(t *testing.T) {
	svc, repo := newAuthServiceForTest(t)
	repo.addUser(&models.User{
		ID:         "hod-1",
		Email:      "hod.cse@example.edu",
		FullName:   "Dr. Latha Subramani",
		Role:       models.RoleHOD,
		Department: deptPtr(models.DeptComputer),
		Active:     true,
	}, "secret123")

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "hod.cse@example.edu", Password: "secret123"})
	require.NoError(t, err)
	require.NotEmpty(t, res.AccessToken)
	require.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, models.RoleHOD, res.User.Role)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "hod-1", claims.UserID)
	assert.Equal(t, models.RoleHOD, claims.Role)
	require.NotNil(t, claims.Department)
	assert.Equal(t, models.DeptComputer, *claims.Department)

	require.Len(t, repo.audits, 1)
	assert.Equal(t, models.AuditActionLogin, repo.audits[0].Action)
}

func TestAuthLoginRejectsBadCredentials(t *testing.T) {
	svc, repo := newAuthServiceForTest(t)
	repo.addUser(&models.User{ID: "u-1", Email: "user@example.edu", Role: models.RoleStudent, Active: true}, "correct")

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.edu", Password: "wrong"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, errCode(t, err))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.edu", Password: "any"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, errCode(t, err))
}

func TestAuthLoginRejectsInactiveAccount(t *testing.T) {
	svc, repo := newAuthServiceForTest(t)
	repo.addUser(&models.User{ID: "u-1", Email: "left@example.edu", Role: models.RoleStudent, Active: false}, "secret123")

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "left@example.edu", Password: "secret123"})
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, errCode(t, err))
}

func TestAuthRefreshRotatesToken(t *testing.T) {
	svc, repo := newAuthServiceForTest(t)
	repo.addUser(&models.User{ID: "u-1", Email: "user@example.edu", Role: models.RoleStudent, Active: true}, "secret123")

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.edu", Password: "secret123"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The used token is revoked and cannot be replayed.
	_, err = svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	assert.Equal(t, appErrors.ErrUnauthorized.Code, errCode(t, err))
}

func TestAuthRefreshRejectsExpiredToken(t *testing.T) {
	svc, repo := newAuthServiceForTest(t)
	repo.addUser(&models.User{ID: "u-1", Email: "user@example.edu", Role: models.RoleStudent, Active: true}, "secret123")
	repo.tokens["stale"] = &models.RefreshToken{
		ID:        "rt-1",
		UserID:    "u-1",
		Token:     "stale",
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}

	_, err := svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	assert.Equal(t, appErrors.ErrUnauthorized.Code, errCode(t, err))
}

func TestAuthLogoutRevokesAllSessions(t *testing.T) {
	svc, repo := newAuthServiceForTest(t)
	repo.addUser(&models.User{ID: "u-1", Email: "user@example.edu", Role: models.RoleStudent, Active: true}, "secret123")

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.edu", Password: "secret123"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), "u-1"))

	_, err = svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	assert.Equal(t, appErrors.ErrUnauthorized.Code, errCode(t, err))
}

func TestAuthValidateTokenRejectsTampered(t *testing.T) {
	svc, repo := newAuthServiceForTest(t)
	repo.addUser(&models.User{ID: "u-1", Email: "user@example.edu", Role: models.RoleStudent, Active: true}, "secret123")

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.edu", Password: "secret123"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(login.AccessToken + "x")
	assert.Equal(t, appErrors.ErrUnauthorized.Code, errCode(t, err))
}
