package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/chatrelay/internal/middleware"
	"github.com/hitoshi/chatrelay/internal/model"
)

// ConversationServiceInterface は会話ハンドラーが必要とするサービスインターフェース。
type ConversationServiceInterface interface {
	List(ctx context.Context, userID string) ([]*model.Conversation, error)
	Create(ctx context.Context, userID, title string) (*model.Conversation, error)
	Get(ctx context.Context, userID, conversationID string) (*model.Conversation, []*model.Message, error)
	Rename(ctx context.Context, userID, conversationID, title string) (*model.Conversation, error)
	Delete(ctx context.Context, userID, conversationID string) error
}

// ConversationHandler は会話関連のHTTPハンドラー。
type ConversationHandler struct {
	service ConversationServiceInterface
}

// NewConversationHandler はConversationHandlerを生成する。
func NewConversationHandler(service ConversationServiceInterface) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// conversationResponse は会話のAPIレスポンス。
type conversationResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// messageResponse はメッセージのAPIレスポンス。
type messageResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

func toConversationResponse(conv *model.Conversation) conversationResponse {
	return conversationResponse{
		ID:        conv.ID,
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt.Format(time.RFC3339),
		UpdatedAt: conv.UpdatedAt.Format(time.RFC3339),
	}
}

func toMessageResponses(messages []*model.Message) []messageResponse {
	out := make([]messageResponse, 0, len(messages))
	for _, msg := range messages {
		out = append(out, messageResponse{
			ID:        msg.ID,
			Role:      string(msg.Role),
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}

// conversationRequest は会話作成・更新リクエストのボディ。
type conversationRequest struct {
	Title string `json:"title"`
}

// List はユーザーの会話一覧を返す。
// GET /api/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	info, err := middleware.AuthFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	conversations, err := h.service.List(r.Context(), info.User.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]conversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		out = append(out, toConversationResponse(conv))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"conversations": out,
	})
}

// Create は新しい会話を作成する。
// POST /api/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	info, err := middleware.AuthFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	// ボディは省略可（タイトル未指定の場合はデフォルトタイトル）
	var req conversationRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	conv, err := h.service.Create(r.Context(), info.User.ID, strings.TrimSpace(req.Title))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":      true,
		"conversation": toConversationResponse(conv),
	})
}

// Get は会話とその全メッセージを返す。
// GET /api/conversations/{conversationID}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	info, err := middleware.AuthFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	conversationID := chi.URLParam(r, "conversationID")
	conv, messages, err := h.service.Get(r.Context(), info.User.ID, conversationID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"conversation": toConversationResponse(conv),
		"messages":     toMessageResponses(messages),
	})
}

// Rename は会話のタイトルを変更する。
// PATCH /api/conversations/{conversationID}
func (h *ConversationHandler) Rename(w http.ResponseWriter, r *http.Request) {
	info, err := middleware.AuthFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req conversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "TITLE_REQUIRED",
			Message:  "タイトルが指定されていません。",
			Category: "validation",
			Action:   "新しいタイトルを入力してください。",
		})
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "TITLE_REQUIRED",
			Message:  "タイトルが指定されていません。",
			Category: "validation",
			Action:   "新しいタイトルを入力してください。",
		})
		return
	}

	conversationID := chi.URLParam(r, "conversationID")
	conv, err := h.service.Rename(r.Context(), info.User.ID, conversationID, title)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"conversation": toConversationResponse(conv),
	})
}

// Delete は会話と関連する全メッセージを削除する。
// DELETE /api/conversations/{conversationID}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	info, err := middleware.AuthFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	conversationID := chi.URLParam(r, "conversationID")
	if err := h.service.Delete(r.Context(), info.User.ID, conversationID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
