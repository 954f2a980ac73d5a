package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/abdoElHodaky/smartfixapi/internal/models"
	"github.com/abdoElHodaky/smartfixapi/internal/pkg/apperror"
	"github.com/abdoElHodaky/smartfixapi/internal/repository"
)

// mockAuthRepository реализует AuthRepository для тестов.
type mockAuthRepository struct {
	usersByEmail map[string]*models.User
	usersByID    map[uuid.UUID]*models.User
}

func newMockAuthRepository() *mockAuthRepository {
	return &mockAuthRepository{
		usersByEmail: make(map[string]*models.User),
		usersByID:    make(map[uuid.UUID]*models.User),
	}
}

func (m *mockAuthRepository) Create(ctx context.Context, user *models.User) error {
	user.ID = uuid.New()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.IsActive = true
	m.usersByEmail[user.Email] = user
	m.usersByID[user.ID] = user
	return nil
}

func (m *mockAuthRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := m.usersByEmail[email]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := m.usersByID[id]; ok {
		return user, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockAuthRepository) UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error {
	if user, ok := m.usersByID[userID]; ok {
		now := time.Now()
		user.LastLoginAt = &now
	}
	return nil
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	repo := newMockAuthRepository()
	tokenManager := NewTokenManager("access", "refresh", time.Minute, time.Hour)
	service := NewAuthService(repo, tokenManager)

	ctx := context.Background()
	res, err := service.Register(ctx, RegisterInput{
		Email:    "Test@Example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}

	if res.User.ID == uuid.Nil {
		t.Fatalf("user ID должен быть установлен")
	}
	if res.User.Email != "test@example.com" {
		t.Fatalf("email должен быть нормализован, получили %q", res.User.Email)
	}
	if res.User.Username != "test" {
		t.Fatalf("имя по умолчанию берётся из почты, получили %q", res.User.Username)
	}
	if res.User.Role != models.RoleCustomer {
		t.Fatalf("роль по умолчанию customer, получили %q", res.User.Role)
	}
	if res.TokenPair.AccessToken == "" || res.TokenPair.RefreshToken == "" {
		t.Fatalf("ожидалась пара токенов")
	}

	if _, err := service.Register(ctx, RegisterInput{
		Email:    "test@example.com",
		Password: "password123",
	}); err == nil {
		t.Fatalf("повторная регистрация на тот же email должна отклоняться")
	}

	loginRes, err := service.Login(ctx, "test@example.com", "password123")
	if err != nil {
		t.Fatalf("login returned error: %v", err)
	}
	if loginRes.TokenPair.AccessToken == "" {
		t.Fatalf("ожидался access токен")
	}
	if loginRes.User.LastLoginAt == nil {
		t.Fatalf("время входа должно обновляться")
	}

	if _, err := service.Login(ctx, "test@example.com", "wrong-password"); err != apperror.ErrInvalidCredentials {
		t.Fatalf("неверный пароль: ожидали ErrInvalidCredentials, получили %v", err)
	}
	if _, err := service.Login(ctx, "nobody@example.com", "password123"); err != apperror.ErrInvalidCredentials {
		t.Fatalf("неизвестный email: ожидали ErrInvalidCredentials, получили %v", err)
	}
}

func TestAuthService_RegisterRejectsAdminRole(t *testing.T) {
	service := NewAuthService(newMockAuthRepository(), NewTokenManager("a", "r", time.Minute, time.Hour))

	_, err := service.Register(context.Background(), RegisterInput{
		Email:    "root@example.com",
		Password: "password123",
		Role:     models.RoleAdmin,
	})
	if !apperror.IsValidation(err) {
		t.Fatalf("роль admin при регистрации должна отклоняться, получили %v", err)
	}
}

func TestAuthService_LoginInactiveUser(t *testing.T) {
	repo := newMockAuthRepository()
	service := NewAuthService(repo, NewTokenManager("a", "r", time.Minute, time.Hour))

	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	user := &models.User{
		ID:           uuid.New(),
		Email:        "banned@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleCustomer,
		IsActive:     false,
	}
	repo.usersByEmail[user.Email] = user
	repo.usersByID[user.ID] = user

	_, err := service.Login(context.Background(), "banned@example.com", "password123")
	if !apperror.IsForbidden(err) {
		t.Fatalf("отключённая учётная запись: ожидали forbidden, получили %v", err)
	}
}

func TestAuthService_Refresh(t *testing.T) {
	repo := newMockAuthRepository()
	tokenManager := NewTokenManager("access-secret", "refresh-secret", time.Minute, time.Hour)
	service := NewAuthService(repo, tokenManager)

	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	user := &models.User{
		ID:           uuid.New(),
		Email:        "user@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleProvider,
		IsActive:     true,
	}
	repo.usersByEmail[user.Email] = user
	repo.usersByID[user.ID] = user

	tokenPair, err := tokenManager.GeneratePair(user)
	if err != nil {
		t.Fatalf("не удалось сгенерировать токены: %v", err)
	}

	newPair, err := service.Refresh(ctx, tokenPair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh вернул ошибку: %v", err)
	}
	if newPair.TokenPair.RefreshToken == tokenPair.RefreshToken {
		t.Fatalf("ожидался новый refresh токен")
	}

	if _, err := service.Refresh(ctx, tokenPair.AccessToken); err != apperror.ErrInvalidCredentials {
		t.Fatalf("access токен вместо refresh: ожидали ErrInvalidCredentials, получили %v", err)
	}
	if _, err := service.Refresh(ctx, "not-a-token"); err != apperror.ErrInvalidCredentials {
		t.Fatalf("мусорный токен: ожидали ErrInvalidCredentials, получили %v", err)
	}
}

func TestTokenManager_ParseAccess(t *testing.T) {
	tokenManager := NewTokenManager("access-secret", "refresh-secret", time.Minute, time.Hour)
	user := &models.User{ID: uuid.New(), Role: models.RoleProvider}

	pair, err := tokenManager.GeneratePair(user)
	if err != nil {
		t.Fatalf("не удалось сгенерировать токены: %v", err)
	}

	userID, role, err := tokenManager.ParseAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("parse access вернул ошибку: %v", err)
	}
	if userID != user.ID {
		t.Fatalf("ожидали userID %s, получили %s", user.ID, userID)
	}
	if role != models.RoleProvider {
		t.Fatalf("ожидали роль provider, получили %q", role)
	}

	other := NewTokenManager("other-secret", "refresh-secret", time.Minute, time.Hour)
	if _, _, err := other.ParseAccess(pair.AccessToken); err == nil {
		t.Fatalf("токен с чужой подписью должен отклоняться")
	}
}
