package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/chatrelay/internal/anthropic"
	"github.com/hitoshi/chatrelay/internal/metrics"
	"github.com/hitoshi/chatrelay/internal/model"
	"github.com/hitoshi/chatrelay/internal/repository"
)

// titleMaxRunes は先頭メッセージから自動生成する会話タイトルの最大長。
const titleMaxRunes = 50

// Result はチャット実行の結果。
type Result struct {
	ConversationID string
	Response       string
}

// Service はチャット実行のビジネスロジックを提供する。
// 会話履歴を復元してプロンプトを組み立て、セッションに保持された
// クレデンシャルを引き渡してClaude CLIを実行し、往復のメッセージを永続化する。
type Service struct {
	runner       Runner
	convRepo     repository.ConversationRepository
	msgRepo      repository.MessageRepository
	metrics      metrics.Recorder
	systemPrompt string
}

// NewService はServiceを生成する。
func NewService(
	runner Runner,
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	recorder metrics.Recorder,
	systemPrompt string,
) *Service {
	return &Service{
		runner:       runner,
		convRepo:     convRepo,
		msgRepo:      msgRepo,
		metrics:      recorder,
		systemPrompt: systemPrompt,
	}
}

// Send はユーザーメッセージを処理し、アシスタントの応答を返す。
// conversationIDが空の場合はメッセージ先頭から命名した新しい会話を作成する。
// 応答生成に失敗した場合もユーザーメッセージは保存済みのまま残る。
func (s *Service) Send(ctx context.Context, userID string, sess *model.Session, conversationID, message string) (*Result, error) {
	if message == "" {
		return nil, model.NewMessageRequiredError()
	}

	conv, err := s.resolveConversation(ctx, userID, conversationID, message)
	if err != nil {
		return nil, err
	}

	// 1. 会話履歴を復元してプロンプトを構築
	history, err := s.msgRepo.ListByConversationID(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	prompt := s.buildPrompt(history, message)

	// 2. ユーザーメッセージを保存
	if err := s.saveMessage(ctx, conv.ID, model.RoleUser, message); err != nil {
		return nil, err
	}

	// 3. Claude CLIで応答を生成
	start := time.Now()
	response, err := s.runner.Run(ctx, prompt, credentialEnv(sess.BearerCredential))
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			s.metrics.RecordChatFailure(apiErr.Code)
		}
		return nil, err
	}
	s.metrics.RecordChatLatency(time.Since(start))

	// 4. アシスタント応答を保存し、会話を更新
	if err := s.saveMessage(ctx, conv.ID, model.RoleAssistant, response); err != nil {
		return nil, err
	}
	if err := s.convRepo.Touch(ctx, conv.ID, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to touch conversation: %w", err)
	}

	slog.Info("chat completed",
		slog.String("conversation_id", conv.ID),
		slog.String("user_id", userID),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return &Result{
		ConversationID: conv.ID,
		Response:       response,
	}, nil
}

// resolveConversation は指定された会話を所有権チェック付きで取得する。
// IDが空の場合はメッセージ先頭から命名した新しい会話を作成する。
func (s *Service) resolveConversation(ctx context.Context, userID, conversationID, message string) (*model.Conversation, error) {
	if conversationID != "" {
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

	now := time.Now()
	conv := &model.Conversation{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     titleFromMessage(message),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.convRepo.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// buildPrompt はシステムプロンプト、会話履歴、新規メッセージからプロンプトを組み立てる。
func (s *Service) buildPrompt(history []*model.Message, message string) string {
	var b strings.Builder
	b.WriteString(s.systemPrompt)
	b.WriteString("\n\n")

	if len(history) > 0 {
		b.WriteString("Previous conversation:\n")
		for _, msg := range history {
			role := "User"
			if msg.Role == model.RoleAssistant {
				role = "Assistant"
			}
			b.WriteString(fmt.Sprintf("%s: %s\n\n", role, msg.Content))
		}
	}

	b.WriteString("User: ")
	b.WriteString(message)
	return b.String()
}

// saveMessage はメッセージを永続化する。
func (s *Service) saveMessage(ctx context.Context, conversationID string, role model.MessageRole, content string) error {
	msg := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now(),
	}
	if err := s.msgRepo.Create(ctx, msg); err != nil {
		return fmt.Errorf("failed to save %s message: %w", role, err)
	}
	return nil
}

// titleFromMessage はメッセージ先頭から会話タイトルを生成する。
// 50文字を超える場合は切り詰めて"..."を付与する。
func titleFromMessage(message string) string {
	runes := []rune(message)
	if len(runes) <= titleMaxRunes {
		return message
	}
	return string(runes[:titleMaxRunes]) + "..."
}

// credentialEnv はクレデンシャル種別に応じてClaude CLIへ渡す環境変数を返す。
// OAuthトークンはCLAUDE_CODE_OAUTH_TOKEN、それ以外はANTHROPIC_API_KEYとして渡す。
func credentialEnv(bearer string) []string {
	if anthropic.ClassifyCredential(bearer) == anthropic.KindOAuth {
		return []string{"CLAUDE_CODE_OAUTH_TOKEN=" + bearer}
	}
	return []string{"ANTHROPIC_API_KEY=" + bearer}
}
