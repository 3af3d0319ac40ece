package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// dbPingTimeout はヘルスチェック時のDB疎通確認タイムアウト。
const dbPingTimeout = 2 * time.Second

// DBPinger はDBの疎通確認に必要なインターフェース。
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// SessionSweeper は期限切れセッションの掃除に必要なインターフェース。
// session.Storeの部分集合として定義する。
type SessionSweeper interface {
	Sweep() int
}

// NewHealthHandler はヘルスチェックハンドラーを返す。
// 呼び出しのたびに期限切れセッションを掃除し、DBの疎通を確認する。
// GET /health
func NewHealthHandler(db DBPinger, sweeper SessionSweeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if removed := sweeper.Sweep(); removed > 0 {
			slog.Info("expired sessions swept", slog.Int("removed", removed))
		}

		ctx, cancel := context.WithTimeout(r.Context(), dbPingTimeout)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}
