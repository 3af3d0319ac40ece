// Package conversation は会話のCRUDと所有権チェックを提供する。
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/chatrelay/internal/model"
	"github.com/hitoshi/chatrelay/internal/repository"
)

const (
	// listLimit は会話一覧の最大取得件数。
	listLimit = 50
	// defaultTitle はタイトル未指定時の会話タイトル。
	defaultTitle = "新しい会話"
)

// Service は会話に関するビジネスロジックを提供する。
type Service struct {
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository
}

// NewService はServiceを生成する。
func NewService(convRepo repository.ConversationRepository, msgRepo repository.MessageRepository) *Service {
	return &Service{
		convRepo: convRepo,
		msgRepo:  msgRepo,
	}
}

// List はユーザーの会話一覧を更新日時の新しい順で返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Conversation, error) {
	conversations, err := s.convRepo.ListByUserID(ctx, userID, listLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return conversations, nil
}

// Create は新しい会話を作成する。タイトルが空の場合はデフォルトタイトルを使う。
func (s *Service) Create(ctx context.Context, userID, title string) (*model.Conversation, error) {
	if title == "" {
		title = defaultTitle
	}

	now := time.Now()
	conv := &model.Conversation{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.convRepo.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	slog.Info("conversation created",
		slog.String("conversation_id", conv.ID),
		slog.String("user_id", userID),
	)

	return conv, nil
}

// Get は会話とその全メッセージを返す。
// 他ユーザーの会話にはアクセスできない。
func (s *Service) Get(ctx context.Context, userID, conversationID string) (*model.Conversation, []*model.Message, error) {
	conv, err := s.findOwned(ctx, userID, conversationID)
	if err != nil {
		return nil, nil, err
	}

	messages, err := s.msgRepo.ListByConversationID(ctx, conversationID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return conv, messages, nil
}

// Rename は会話のタイトルを変更する。
func (s *Service) Rename(ctx context.Context, userID, conversationID, title string) (*model.Conversation, error) {
	conv, err := s.findOwned(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.convRepo.UpdateTitle(ctx, conversationID, title, now); err != nil {
		return nil, fmt.Errorf("failed to update title: %w", err)
	}

	conv.Title = title
	conv.UpdatedAt = now
	return conv, nil
}

// Delete は会話と関連する全メッセージを削除する。
func (s *Service) Delete(ctx context.Context, userID, conversationID string) error {
	if _, err := s.findOwned(ctx, userID, conversationID); err != nil {
		return err
	}

	if err := s.convRepo.Delete(ctx, conversationID); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	slog.Info("conversation deleted",
		slog.String("conversation_id", conversationID),
		slog.String("user_id", userID),
	)

	return nil
}

// findOwned は会話を取得し、指定ユーザーの所有であることを確認する。
func (s *Service) findOwned(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	conv, err := s.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to find conversation: %w", err)
	}
	if conv == nil {
		return nil, model.NewConversationNotFoundError(conversationID)
	}
	if conv.UserID != userID {
		return nil, model.NewAccessDeniedError()
	}
	return conv, nil
}
