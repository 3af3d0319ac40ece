package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/chatrelay/internal/anthropic"
	"github.com/hitoshi/chatrelay/internal/model"
)

// --- モック ---

type mockValidator struct {
	validateFunc func(ctx context.Context, bearer string) (*anthropic.ExternalIdentity, error)
}

func (m *mockValidator) ValidateCredential(ctx context.Context, bearer string) (*anthropic.ExternalIdentity, error) {
	return m.validateFunc(ctx, bearer)
}

type mockUserRepo struct {
	findByIDFunc         func(ctx context.Context, id string) (*model.User, error)
	findByExternalIDFunc func(ctx context.Context, externalID string) (*model.User, error)
	createFunc           func(ctx context.Context, user *model.User) error
	touchLastLoginFunc   func(ctx context.Context, id string, at time.Time) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.findByIDFunc(ctx, id)
}

func (m *mockUserRepo) FindByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	return m.findByExternalIDFunc(ctx, externalID)
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	return m.createFunc(ctx, user)
}

func (m *mockUserRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return m.touchLastLoginFunc(ctx, id, at)
}

type mockSessionStore struct {
	createFunc func(userID, bearerCredential string) (*model.Session, error)
	deleteFunc func(token string) bool
}

func (m *mockSessionStore) Create(userID, bearerCredential string) (*model.Session, error) {
	return m.createFunc(userID, bearerCredential)
}

func (m *mockSessionStore) Delete(token string) bool {
	return m.deleteFunc(token)
}

type mockRecorder struct {
	loginSuccesses int
	loginFailures  int
}

func (m *mockRecorder) RecordLoginSuccess()               { m.loginSuccesses++ }
func (m *mockRecorder) RecordLoginFailure()               { m.loginFailures++ }
func (m *mockRecorder) RecordSessionsSwept(count int)     {}
func (m *mockRecorder) SetActiveSessions(count int)       {}
func (m *mockRecorder) RecordChatLatency(d time.Duration) {}
func (m *mockRecorder) RecordChatFailure(code string)     {}

func validIdentity(bearer string) *anthropic.ExternalIdentity {
	return &anthropic.ExternalIdentity{
		ID: anthropic.DeriveExternalID(bearer, anthropic.ClassifyCredential(bearer)),
	}
}

// --- Login のテスト ---

func TestLogin_EmptyBearer_ReturnsTokenRequired(t *testing.T) {
	svc := NewService(&mockValidator{}, &mockUserRepo{}, &mockSessionStore{}, &mockRecorder{})

	_, _, err := svc.Login(context.Background(), "")
	if err == nil {
		t.Fatal("expected error for empty bearer")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeTokenRequired {
		t.Errorf("error = %v, want TOKEN_REQUIRED", err)
	}
}

func TestLogin_InvalidCredential_ReturnsErrorAndRecordsFailure(t *testing.T) {
	recorder := &mockRecorder{}
	validator := &mockValidator{
		validateFunc: func(ctx context.Context, bearer string) (*anthropic.ExternalIdentity, error) {
			return nil, nil // 検証失敗
		},
	}
	svc := NewService(validator, &mockUserRepo{}, &mockSessionStore{}, recorder)

	_, _, err := svc.Login(context.Background(), "sk-ant-api03-invalid")
	if err == nil {
		t.Fatal("expected error for invalid credential")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidCredential {
		t.Errorf("error = %v, want INVALID_CREDENTIAL", err)
	}
	if recorder.loginFailures != 1 {
		t.Errorf("loginFailures = %d, want 1", recorder.loginFailures)
	}
	if recorder.loginSuccesses != 0 {
		t.Errorf("loginSuccesses = %d, want 0", recorder.loginSuccesses)
	}
}

func TestLogin_NewUser_CreatesUserAndSession(t *testing.T) {
	bearer := "sk-ant-api03-valid"
	recorder := &mockRecorder{}

	var createdUser *model.User
	var touchedID string

	validator := &mockValidator{
		validateFunc: func(ctx context.Context, b string) (*anthropic.ExternalIdentity, error) {
			return validIdentity(b), nil
		},
	}
	userRepo := &mockUserRepo{
		findByExternalIDFunc: func(ctx context.Context, externalID string) (*model.User, error) {
			return nil, nil // 未登録
		},
		createFunc: func(ctx context.Context, user *model.User) error {
			createdUser = user
			return nil
		},
		touchLastLoginFunc: func(ctx context.Context, id string, at time.Time) error {
			touchedID = id
			return nil
		},
	}
	sessions := &mockSessionStore{
		createFunc: func(userID, bearerCredential string) (*model.Session, error) {
			return &model.Session{Token: "session-token", UserID: userID, BearerCredential: bearerCredential}, nil
		},
	}

	svc := NewService(validator, userRepo, sessions, recorder)

	sess, user, err := svc.Login(context.Background(), bearer)
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}

	if createdUser == nil {
		t.Fatal("new user should be created on first login")
	}
	if createdUser.ExternalID != validIdentity(bearer).ID {
		t.Errorf("ExternalID = %q, want derived external ID", createdUser.ExternalID)
	}
	if touchedID != createdUser.ID {
		t.Errorf("TouchLastLogin called with %q, want %q", touchedID, createdUser.ID)
	}
	if user.LastLoginAt == nil {
		t.Error("LastLoginAt should be set after login")
	}

	if sess.Token != "session-token" {
		t.Errorf("session token = %q, want %q", sess.Token, "session-token")
	}
	if sess.UserID != user.ID {
		t.Errorf("session UserID = %q, want %q", sess.UserID, user.ID)
	}
	if sess.BearerCredential != bearer {
		t.Errorf("session BearerCredential = %q, want the original bearer", sess.BearerCredential)
	}

	if recorder.loginSuccesses != 1 {
		t.Errorf("loginSuccesses = %d, want 1", recorder.loginSuccesses)
	}
}

// 同じクレデンシャルでの再ログインはユーザーを再利用する。
func TestLogin_ExistingUser_ReusesUser(t *testing.T) {
	bearer := "sk-ant-api03-valid"
	existing := &model.User{
		ID:         "existing-user-id",
		ExternalID: validIdentity(bearer).ID,
		CreatedAt:  time.Now().Add(-48 * time.Hour),
	}

	createCalled := false

	validator := &mockValidator{
		validateFunc: func(ctx context.Context, b string) (*anthropic.ExternalIdentity, error) {
			return validIdentity(b), nil
		},
	}
	userRepo := &mockUserRepo{
		findByExternalIDFunc: func(ctx context.Context, externalID string) (*model.User, error) {
			return existing, nil
		},
		createFunc: func(ctx context.Context, user *model.User) error {
			createCalled = true
			return nil
		},
		touchLastLoginFunc: func(ctx context.Context, id string, at time.Time) error {
			return nil
		},
	}
	sessions := &mockSessionStore{
		createFunc: func(userID, bearerCredential string) (*model.Session, error) {
			return &model.Session{Token: "new-token", UserID: userID}, nil
		},
	}

	svc := NewService(validator, userRepo, sessions, &mockRecorder{})

	_, user, err := svc.Login(context.Background(), bearer)
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}

	if createCalled {
		t.Error("existing user should not be recreated")
	}
	if user.ID != "existing-user-id" {
		t.Errorf("user.ID = %q, want %q", user.ID, "existing-user-id")
	}
}

func TestLogin_ValidatorError_ReturnsError(t *testing.T) {
	validator := &mockValidator{
		validateFunc: func(ctx context.Context, bearer string) (*anthropic.ExternalIdentity, error) {
			return nil, errors.New("request build failed")
		},
	}
	svc := NewService(validator, &mockUserRepo{}, &mockSessionStore{}, &mockRecorder{})

	_, _, err := svc.Login(context.Background(), "sk-ant-api03-x")
	if err == nil {
		t.Fatal("expected error when validator fails")
	}
}

func TestLogin_SessionCreateError_ReturnsError(t *testing.T) {
	bearer := "sk-ant-api03-valid"

	validator := &mockValidator{
		validateFunc: func(ctx context.Context, b string) (*anthropic.ExternalIdentity, error) {
			return validIdentity(b), nil
		},
	}
	userRepo := &mockUserRepo{
		findByExternalIDFunc: func(ctx context.Context, externalID string) (*model.User, error) {
			return &model.User{ID: "user-1", ExternalID: externalID}, nil
		},
		touchLastLoginFunc: func(ctx context.Context, id string, at time.Time) error {
			return nil
		},
	}
	sessions := &mockSessionStore{
		createFunc: func(userID, bearerCredential string) (*model.Session, error) {
			return nil, errors.New("token generation failed")
		},
	}

	svc := NewService(validator, userRepo, sessions, &mockRecorder{})

	_, _, err := svc.Login(context.Background(), bearer)
	if err == nil {
		t.Fatal("expected error when session creation fails")
	}
}

// --- Logout のテスト ---

func TestLogout_DeletesSession(t *testing.T) {
	deletedToken := ""
	sessions := &mockSessionStore{
		deleteFunc: func(token string) bool {
			deletedToken = token
			return true
		},
	}
	svc := NewService(&mockValidator{}, &mockUserRepo{}, sessions, &mockRecorder{})

	svc.Logout("some-token")

	if deletedToken != "some-token" {
		t.Errorf("deleted token = %q, want %q", deletedToken, "some-token")
	}
}

func TestLogout_UnknownToken_NoPanic(t *testing.T) {
	sessions := &mockSessionStore{
		deleteFunc: func(token string) bool { return false },
	}
	svc := NewService(&mockValidator{}, &mockUserRepo{}, sessions, &mockRecorder{})

	// 存在しないトークンでもエラーにならない（冪等）
	svc.Logout("unknown-token")
}
