package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/chatrelay/internal/metrics"
	"github.com/hitoshi/chatrelay/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Sessions          middleware.SessionGetter
	Users             middleware.UserFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 会話
	ConversationService ConversationServiceInterface

	// チャット
	ChatService ChatServiceInterface

	// 運用
	DB       DBPinger
	Sweeper  SessionSweeper
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → CORS → SecurityHeaders
//
// 認証が必要なルートにはさらに Auth → RateLimit(General) を重ねる。
// チャット実行にはチャット専用のレート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルート共通のミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	convHandler := NewConversationHandler(deps.ConversationService)
	chatHandler := NewChatHandler(deps.ChatService)

	requireAuth := middleware.NewAuthMiddleware(deps.Sessions, deps.Users)
	optionalAuth := middleware.NewOptionalAuthMiddleware(deps.Sessions, deps.Users)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.DB, deps.Sweeper))
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.With(requireAuth).Post("/logout", authHandler.Logout)
		r.With(requireAuth).Get("/verify", authHandler.Verify)

		// /me は未認証でも200を返す（任意認証）
		r.With(optionalAuth).Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 会話管理
		r.Route("/api/conversations", func(r chi.Router) {
			r.Get("/", convHandler.List)
			r.Post("/", convHandler.Create)

			r.Route("/{conversationID}", func(r chi.Router) {
				r.Get("/", convHandler.Get)
				r.Patch("/", convHandler.Rename)
				r.Delete("/", convHandler.Delete)
			})
		})

		// チャット実行（専用レート制限を追加）
		r.With(deps.RateLimiter.ChatMiddleware()).Post("/api/chat", chatHandler.Send)
	})

	return r
}
