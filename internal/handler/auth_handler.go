package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hitoshi/chatrelay/internal/middleware"
	"github.com/hitoshi/chatrelay/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, bearer string) (*model.Session, *model.User, error)
	Logout(token string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）。セッション有効期間と一致させる。
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Token string `json:"token"`
}

// loginResponse はログイン成功時のレスポンス。
// トークンはレスポンスボディとHTTP Only Cookieの両方で返す。
type loginResponse struct {
	Success      bool         `json:"success"`
	User         userResponse `json:"user"`
	SessionToken string       `json:"session_token"`
}

// Login はAnthropicクレデンシャルでログインしセッションを発行する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewTokenRequiredError())
		return
	}

	sess, user, err := h.service.Login(r.Context(), strings.TrimSpace(req.Token))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, loginResponse{
		Success:      true,
		User:         toUserResponse(user),
		SessionToken: sess.Token,
	})
}

// Logout はセッションを破棄しCookieをクリアする。
// POST /api/auth/logout（必須認証）
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	info, err := middleware.AuthFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	h.service.Logout(info.Token)

	// セッションCookieをクリア
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Verify は現在のセッションを検証しユーザー情報を返す。
// GET /api/auth/verify（必須認証）
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	info, err := middleware.AuthFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    toUserResponse(info.User),
	})
}

// Me は認証済みの場合のみユーザー情報を返す。
// GET /api/auth/me（任意認証）
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	info, err := middleware.AuthFromContext(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          toUserResponse(info.User),
	})
}
