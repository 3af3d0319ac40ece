// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/chatrelay/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// 認証サブシステムからの唯一のユーザー書き込み経路。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByExternalID は外部IDでユーザーを検索する。見つからない場合はnilを返す。
	FindByExternalID(ctx context.Context, externalID string) (*model.User, error)

	// Create はユーザーを作成する。external_idはユニーク制約を持つ。
	Create(ctx context.Context, user *model.User) error

	// TouchLastLogin は最終ログイン日時を更新する。
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// ConversationRepository は会話データの永続化インターフェース。
type ConversationRepository interface {
	// FindByID は指定IDの会話を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Conversation, error)

	// ListByUserID はユーザーの会話一覧をupdated_at降順で返す。
	ListByUserID(ctx context.Context, userID string, limit int) ([]*model.Conversation, error)

	// Create は会話を作成する。
	Create(ctx context.Context, conversation *model.Conversation) error

	// UpdateTitle は会話のタイトルとupdated_atを更新する。
	UpdateTitle(ctx context.Context, id, title string, updatedAt time.Time) error

	// Touch は会話のupdated_atのみを更新する。
	Touch(ctx context.Context, id string, updatedAt time.Time) error

	// Delete は会話を削除する。関連するmessagesはCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// MessageRepository はメッセージデータの永続化インターフェース。
type MessageRepository interface {
	// Create はメッセージを作成する。
	Create(ctx context.Context, message *model.Message) error

	// ListByConversationID は会話内の全メッセージをcreated_at昇順で返す。
	ListByConversationID(ctx context.Context, conversationID string) ([]*model.Message, error)
}
