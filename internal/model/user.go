// Package model はドメインモデルを定義する。
package model

import "time"

// User はAnthropicクレデンシャルで認証されたサービス利用ユーザーを表す。
// ExternalIDはクレデンシャルから決定的に導出される外部識別子で、
// 同一クレデンシャルによるログインは常に同一ユーザーに解決される。
type User struct {
	ID          string
	ExternalID  string
	Email       string
	Name        string
	CreatedAt   time.Time
	LastLoginAt *time.Time
}

// Session はログイン成功時に発行されるインメモリセッションを表す。
// BearerCredentialにはログイン時のAnthropicクレデンシャルをそのまま保持し、
// チャット実行時に下流のClaude CLIへ引き渡す。
type Session struct {
	Token            string
	UserID           string
	BearerCredential string
	CreatedAt        time.Time
	ExpiresAt        time.Time
}
