// Package auth はクレデンシャル検証、ユーザー解決、セッション発行を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/chatrelay/internal/anthropic"
	"github.com/hitoshi/chatrelay/internal/metrics"
	"github.com/hitoshi/chatrelay/internal/model"
	"github.com/hitoshi/chatrelay/internal/repository"
)

// CredentialValidator はベアラークレデンシャルの検証インターフェース。
// anthropic.Clientの部分集合として定義する。
type CredentialValidator interface {
	// ValidateCredential はクレデンシャルを検証する。無効な場合はnilを返す。
	ValidateCredential(ctx context.Context, bearer string) (*anthropic.ExternalIdentity, error)
}

// SessionStore は認証サービスが必要とするセッションストアのインターフェース。
type SessionStore interface {
	Create(userID, bearerCredential string) (*model.Session, error)
	Delete(token string) bool
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	validator CredentialValidator
	userRepo  repository.UserRepository
	sessions  SessionStore
	metrics   metrics.Recorder
}

// NewService はServiceを生成する。
func NewService(
	validator CredentialValidator,
	userRepo repository.UserRepository,
	sessions SessionStore,
	recorder metrics.Recorder,
) *Service {
	return &Service{
		validator: validator,
		userRepo:  userRepo,
		sessions:  sessions,
		metrics:   recorder,
	}
}

// Login はベアラークレデンシャルを検証し、ユーザーを解決してセッションを発行する。
// 初回ログイン時はusersレコードを自動作成する。
// 成功・失敗を問わず、検証のためのリモートプローブはこの呼び出し内で最大2回までで、
// リトライは行わない（呼び出し側が明示的に再ログインする）。
func (s *Service) Login(ctx context.Context, bearer string) (*model.Session, *model.User, error) {
	if bearer == "" {
		return nil, nil, model.NewTokenRequiredError()
	}

	// 1. クレデンシャルをAnthropic APIで検証
	identity, err := s.validator.ValidateCredential(ctx, bearer)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to validate credential: %w", err)
	}
	if identity == nil {
		s.metrics.RecordLoginFailure()
		return nil, nil, model.NewInvalidCredentialError()
	}

	// 2. 外部アイデンティティをローカルユーザーに解決
	user, err := s.resolveUser(ctx, identity)
	if err != nil {
		return nil, nil, err
	}

	// 3. セッションを発行
	sess, err := s.sessions.Create(user.ID, bearer)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.metrics.RecordLoginSuccess()
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("credential_kind", anthropic.ClassifyCredential(bearer).String()),
	)

	return sess, user, nil
}

// Logout はセッションを破棄する。
// セッションが既に存在しない場合もエラーにはしない（冪等）。
func (s *Service) Logout(token string) {
	if s.sessions.Delete(token) {
		slog.Info("user logged out")
	}
}

// resolveUser は外部アイデンティティをローカルユーザーに解決する。
// 未登録の場合はusersレコードを作成し、いずれの場合も最終ログイン日時を更新する。
// 認証サブシステムからの唯一のユーザー書き込み経路。
func (s *Service) resolveUser(ctx context.Context, identity *anthropic.ExternalIdentity) (*model.User, error) {
	user, err := s.userRepo.FindByExternalID(ctx, identity.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil {
		user = &model.User{
			ID:         uuid.New().String(),
			ExternalID: identity.ID,
			Email:      identity.Email,
			Name:       identity.Name,
			CreatedAt:  time.Now(),
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		slog.Info("new user created", slog.String("user_id", user.ID))
	}

	now := time.Now()
	if err := s.userRepo.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("failed to touch last login: %w", err)
	}
	user.LastLoginAt = &now

	return user, nil
}
