// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, chat, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeTokenRequired        = "TOKEN_REQUIRED"
	ErrCodeInvalidCredential    = "INVALID_CREDENTIAL"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeSessionExpired       = "SESSION_EXPIRED"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeConversationNotFound = "CONVERSATION_NOT_FOUND"
	ErrCodeAccessDenied         = "ACCESS_DENIED"
	ErrCodeMessageRequired      = "MESSAGE_REQUIRED"
	ErrCodeClaudeTimeout        = "CLAUDE_TIMEOUT"
	ErrCodeClaudeUnavailable    = "CLAUDE_UNAVAILABLE"
	ErrCodeClaudeFailed         = "CLAUDE_FAILED"
)

// NewTokenRequiredError はトークン未指定エラーを生成する。
func NewTokenRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenRequired,
		Message:  "トークンが指定されていません。",
		Category: "validation",
		Action:   "AnthropicのAPIキーまたはOAuthトークンを入力してください。",
	}
}

// NewInvalidCredentialError はクレデンシャル検証失敗エラーを生成する。
// リモート検証の失敗（ネットワークエラー・タイムアウト含む）はすべてこのエラーに畳み込む。
func NewInvalidCredentialError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredential,
		Message:  "トークンの検証に失敗しました。",
		Category: "auth",
		Action:   "トークンが正しいか確認し、再度ログインしてください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewSessionExpiredError はセッション無効・期限切れエラーを生成する。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionExpired,
		Message:  "セッションが無効または期限切れです。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewConversationNotFoundError は会話未検出エラーを生成する。
func NewConversationNotFoundError(conversationID string) *APIError {
	return &APIError{
		Code:     ErrCodeConversationNotFound,
		Message:  fmt.Sprintf("指定された会話が見つかりません: %s", conversationID),
		Category: "chat",
		Action:   "会話IDを確認してください。",
	}
}

// NewAccessDeniedError は他ユーザーの会話へのアクセスエラーを生成する。
func NewAccessDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccessDenied,
		Message:  "この会話へのアクセス権がありません。",
		Category: "auth",
		Action:   "自分の会話のみ操作できます。",
	}
}

// NewMessageRequiredError はメッセージ未指定エラーを生成する。
func NewMessageRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeMessageRequired,
		Message:  "メッセージが指定されていません。",
		Category: "validation",
		Action:   "メッセージを入力してください。",
	}
}

// NewClaudeTimeoutError はClaude CLI実行のタイムアウトエラーを生成する。
func NewClaudeTimeoutError() *APIError {
	return &APIError{
		Code:     ErrCodeClaudeTimeout,
		Message:  "応答の生成がタイムアウトしました。",
		Category: "chat",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewClaudeUnavailableError はClaude CLIが見つからない場合のエラーを生成する。
func NewClaudeUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeClaudeUnavailable,
		Message:  "Claude CLIが利用できません。",
		Category: "system",
		Action:   "サーバーにClaude CLIがインストールされているか確認してください。",
	}
}

// NewClaudeFailedError はClaude CLI実行の失敗エラーを生成する。
func NewClaudeFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeClaudeFailed,
		Message:  fmt.Sprintf("応答の生成に失敗しました: %s", reason),
		Category: "chat",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
