package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"procure/internal/config"
	"procure/internal/middleware"
	"procure/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type mockUserRepo struct {
	users  map[uuid.UUID]*model.User
	tokens map[string]*model.RefreshToken
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users:  make(map[uuid.UUID]*model.User),
		tokens: make(map[string]*model.RefreshToken),
	}
}

func (r *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	r.users[user.ID] = user
	return nil
}

func (r *mockUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, gorm.ErrRecordNotFound
	}
	user, ok := r.users[uid]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (r *mockUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockUserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockUserRepo) List(ctx context.Context, role string, page, limit int) ([]model.User, int64, error) {
	var out []model.User
	for _, u := range r.users {
		if role == "" || u.Role == role {
			out = append(out, *u)
		}
	}
	return out, int64(len(out)), nil
}

func (r *mockUserRepo) Update(ctx context.Context, user *model.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *mockUserRepo) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return gorm.ErrRecordNotFound
	}
	delete(r.users, uid)
	return nil
}

func (r *mockUserRepo) SaveRefreshToken(ctx context.Context, token *model.RefreshToken) error {
	if user, ok := r.users[token.UserID]; ok {
		token.User = *user
	}
	r.tokens[token.Token] = token
	return nil
}

func (r *mockUserRepo) GetRefreshToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	stored, ok := r.tokens[token]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return stored, nil
}

func (r *mockUserRepo) DeleteRefreshToken(ctx context.Context, token string) error {
	delete(r.tokens, token)
	return nil
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}
}

func seedUser(t *testing.T, repo *mockUserRepo, email, password, role string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &model.User{
		ID:       uuid.New(),
		Username: email,
		Email:    email,
		Password: string(hash),
		Role:     role,
	}
	repo.users[user.ID] = user
	return user
}

func TestCreateUser(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, testAuthConfig())

	t.Run("creates user with hashed password", func(t *testing.T) {
		resp, err := svc.CreateUser(context.Background(), CreateUserRequest{
			Username:   "jdoe",
			Email:      "jdoe@example.com",
			Password:   "secret123",
			Role:       model.RoleApproverL1,
			Department: "Finance",
		})
		require.NoError(t, err)
		assert.Equal(t, model.RoleApproverL1, resp.Role)

		stored, err := repo.GetByEmail(context.Background(), "jdoe@example.com")
		require.NoError(t, err)
		assert.NotEqual(t, "secret123", stored.Password)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		_, err := svc.CreateUser(context.Background(), CreateUserRequest{
			Username: "bad",
			Email:    "bad@example.com",
			Password: "secret123",
			Role:     "superuser",
		})
		assert.Error(t, err)
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		_, err := svc.CreateUser(context.Background(), CreateUserRequest{
			Username: "other",
			Email:    "jdoe@example.com",
			Password: "secret123",
			Role:     model.RoleStaff,
		})
		assert.Error(t, err)
	})
}

func TestLogin(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, testAuthConfig())
	seedUser(t, repo, "staff@example.com", "secret123", model.RoleStaff)

	t.Run("issues token pair", func(t *testing.T) {
		resp, err := svc.Login(context.Background(), LoginUserRequest{
			Email:    "staff@example.com",
			Password: "secret123",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.AccessToken)
		assert.NotEmpty(t, resp.RefreshToken)
		assert.Equal(t, int64(3600), resp.ExpiresIn)

		_, err = repo.GetRefreshToken(context.Background(), resp.RefreshToken)
		assert.NoError(t, err)
	})

	t.Run("rejects wrong password", func(t *testing.T) {
		_, err := svc.Login(context.Background(), LoginUserRequest{
			Email:    "staff@example.com",
			Password: "wrong",
		})
		assert.Error(t, err)
	})

	t.Run("rejects unknown email", func(t *testing.T) {
		_, err := svc.Login(context.Background(), LoginUserRequest{
			Email:    "ghost@example.com",
			Password: "secret123",
		})
		assert.Error(t, err)
	})
}

func TestRefresh(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, testAuthConfig())
	user := seedUser(t, repo, "staff@example.com", "secret123", model.RoleStaff)

	login, err := svc.Login(context.Background(), LoginUserRequest{
		Email:    "staff@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	t.Run("rotates the token", func(t *testing.T) {
		resp, err := svc.Refresh(context.Background(), login.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, login.RefreshToken, resp.RefreshToken)

		// old token is gone
		_, err = svc.Refresh(context.Background(), login.RefreshToken)
		assert.Error(t, err)
	})

	t.Run("rejects expired token", func(t *testing.T) {
		expired := &model.RefreshToken{
			UserID:    user.ID,
			Token:     "expired-token",
			ExpiresAt: time.Now().Add(-time.Minute),
		}
		require.NoError(t, repo.SaveRefreshToken(context.Background(), expired))

		_, err := svc.Refresh(context.Background(), "expired-token")
		assert.Error(t, err)
	})
}

// A token issued by Login must verify at the auth middleware with nothing
// configured: both sides have to resolve the same signing secret.
func TestLoginTokenVerifiesAtMiddleware(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("GIN_MODE", "")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Auth.JWTSecret)

	repo := newMockUserRepo()
	seedUser(t, repo, "staff@example.com", "secret123", model.RoleStaff)
	svc := NewUserService(repo, cfg.Auth)

	tokens, err := svc.Login(context.Background(), LoginUserRequest{
		Email:    "staff@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/me", middleware.Authenticated(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListUsersRoleFilter(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, testAuthConfig())
	seedUser(t, repo, "a@example.com", "x12345", model.RoleStaff)
	seedUser(t, repo, "b@example.com", "x12345", model.RoleApproverL1)

	all, total, err := svc.ListUsers(context.Background(), "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	approvers, _, err := svc.ListUsers(context.Background(), model.RoleApproverL1, 1, 10)
	require.NoError(t, err)
	require.Len(t, approvers, 1)
	assert.Equal(t, model.RoleApproverL1, approvers[0].Role)

	_, _, err = svc.ListUsers(context.Background(), "bogus", 1, 10)
	assert.Error(t, err)
}
