// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/chatrelay/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
// ハンドラー側のCookie発行と共有する。
const SessionCookieName = "session_token"

// bearerPrefix はAuthorizationヘッダーのスキーム部分。
const bearerPrefix = "Bearer "

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// authContextKey はリクエストコンテキストに認証情報を格納するためのキー。
var authContextKey = contextKey("auth")

// AuthInfo は認証ミドルウェアを通過したリクエストに付与される認証情報。
type AuthInfo struct {
	User    *model.User
	Session *model.Session
	Token   string
}

// SessionGetter はセッションの取得に必要なインターフェース。
// session.Storeの部分集合として定義する。
type SessionGetter interface {
	Get(token string) *model.Session
}

// UserFinder はユーザーの取得に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// NewAuthMiddleware はセッショントークンを検証する必須認証ミドルウェアを返す。
/// トークンはAuthorization: Bearerヘッダーを優先し、なければCookieから読む。
// トークン欠如・セッション無効・ユーザー不整合はいずれも401で終端する。
// 成功時は認証情報をリクエストコンテキストに注入する。
func NewAuthMiddleware(sessions SessionGetter, users UserFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			info, err := resolveAuth(r.Context(), sessions, users, token)
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewSessionExpiredError())
				return
			}

			ctx := context.WithValue(r.Context(), authContextKey, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewOptionalAuthMiddleware は任意認証ミドルウェアを返す。
// トークンが有効な場合のみ認証情報をコンテキストに注入し、
// それ以外の場合は拒否せず未認証のまま後続ハンドラーを呼び出す。
func NewOptionalAuthMiddleware(sessions SessionGetter, users UserFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := ExtractToken(r); token != "" {
				if info, err := resolveAuth(r.Context(), sessions, users, token); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), authContextKey, info))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resolveAuth はトークンをセッションとユーザーに解決する。
// セッション参照がユーザーに解決できない不整合はセッション無効として扱う。
func resolveAuth(ctx context.Context, sessions SessionGetter, users UserFinder, token string) (*AuthInfo, error) {
	sess := sessions.Get(token)
	if sess == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := users.FindByID(ctx, sess.UserID)
	if err != nil {
		slog.Error("failed to find session user",
			slog.String("user_id", sess.UserID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		slog.Warn("session references unknown user", slog.String("user_id", sess.UserID))
		return nil, fmt.Errorf("user not found")
	}

	return &AuthInfo{User: user, Session: sess, Token: token}, nil
}

// ExtractToken はリクエストからセッショントークンを取り出す。
// Authorization: Bearerヘッダーが存在すればCookieより優先する。
func ExtractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, bearerPrefix) {
		return strings.TrimPrefix(header, bearerPrefix)
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// AuthFromContext はリクエストコンテキストから認証情報を取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func AuthFromContext(ctx context.Context) (*AuthInfo, error) {
	info, ok := ctx.Value(authContextKey).(*AuthInfo)
	if !ok || info == nil {
		return nil, fmt.Errorf("auth info not found in context")
	}
	return info, nil
}

// ContextWithAuth はコンテキストに認証情報を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithAuth(ctx context.Context, info *AuthInfo) context.Context {
	return context.WithValue(ctx, authContextKey, info)
}
