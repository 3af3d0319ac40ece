package model

import "time"

// Conversation はユーザーごとのチャット会話を表す。
type Conversation struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MessageRole はメッセージの発話者を表す。
type MessageRole string

const (
	// RoleUser はユーザーの発話を示す。
	RoleUser MessageRole = "user"
	// RoleAssistant はアシスタントの応答を示す。
	RoleAssistant MessageRole = "assistant"
)

// Message は会話内の個々のメッセージを表す。
type Message struct {
	ID             string
	ConversationID string
	Role           MessageRole
	Content        string
	CreatedAt      time.Time
}
