package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/chatrelay/internal/model"
)

func newLimitedRequest(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	info := &AuthInfo{User: &model.User{ID: userID}, Token: "tok"}
	return req.WithContext(ContextWithAuth(req.Context(), info))
}

func TestRateLimiter_AllowsRequestsWithinBurst(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     2,
		GeneralBurst:    5,
		ChatRate:        1,
		ChatBurst:       10,
		CleanupInterval: time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.GeneralMiddleware()

	handlerCallCount := 0
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCallCount++
		w.WriteHeader(http.StatusOK)
	}))

	// バースト内の5リクエストは全て通る
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newLimitedRequest("user-1"))

		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	if handlerCallCount != 5 {
		t.Errorf("handler call count = %d, want 5", handlerCallCount)
	}
}

func TestRateLimiter_Returns429WhenLimitExceeded(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     rate.Limit(0.001), // 補充をほぼ止める
		GeneralBurst:    2,
		ChatRate:        1,
		ChatBurst:       10,
		CleanupInterval: time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.GeneralMiddleware()
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// バースト分（2回）は通る
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newLimitedRequest("user-429"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	// 3回目は429
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newLimitedRequest("user-429"))

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("429 response should carry a Retry-After header")
	}
}

// ユーザーごとに独立したリミッターを持つ。
func TestRateLimiter_PerUserIsolation(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     rate.Limit(0.001),
		GeneralBurst:    1,
		ChatRate:        1,
		ChatBurst:       10,
		CleanupInterval: time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.GeneralMiddleware()
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// user-aがバーストを使い切る
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newLimitedRequest("user-a"))
	if w.Code != http.StatusOK {
		t.Fatalf("user-a first request: status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, newLimitedRequest("user-a"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("user-a second request: status = %d, want 429", w.Code)
	}

	// user-bは影響を受けない
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, newLimitedRequest("user-b"))
	if w.Code != http.StatusOK {
		t.Errorf("user-b request: status = %d, want 200", w.Code)
	}
}

// チャット制限とAPI全般の制限は独立している。
func TestRateLimiter_ChatAndGeneralAreIndependent(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     rate.Limit(0.001),
		GeneralBurst:    1,
		ChatRate:        rate.Limit(0.001),
		ChatBurst:       1,
		CleanupInterval: time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	generalHandler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	chatHandler := rl.ChatMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// general側のバーストを使い切る
	w := httptest.NewRecorder()
	generalHandler.ServeHTTP(w, newLimitedRequest("user-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("general request: status = %d, want 200", w.Code)
	}

	// chat側はまだ通る
	w = httptest.NewRecorder()
	chatHandler.ServeHTTP(w, newLimitedRequest("user-1"))
	if w.Code != http.StatusOK {
		t.Errorf("chat request: status = %d, want 200", w.Code)
	}
}

func TestRateLimiter_NoAuthInfo_Returns401(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRateLimiter_LimiterCount(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()

	if rl.LimiterCount() != 0 {
		t.Fatalf("initial LimiterCount() = %d, want 0", rl.LimiterCount())
	}

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), newLimitedRequest("user-1"))
	handler.ServeHTTP(httptest.NewRecorder(), newLimitedRequest("user-2"))
	handler.ServeHTTP(httptest.NewRecorder(), newLimitedRequest("user-1"))

	if rl.LimiterCount() != 2 {
		t.Errorf("LimiterCount() = %d, want 2", rl.LimiterCount())
	}
}

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if cfg.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", cfg.GeneralBurst)
	}
	if cfg.ChatBurst != 20 {
		t.Errorf("ChatBurst = %d, want 20", cfg.ChatBurst)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("CleanupInterval = %v, want 5m", cfg.CleanupInterval)
	}
}
