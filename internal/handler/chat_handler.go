package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/chatrelay/internal/chat"
	"github.com/hitoshi/chatrelay/internal/middleware"
	"github.com/hitoshi/chatrelay/internal/model"
)

// ChatServiceInterface はチャットハンドラーが必要とするサービスインターフェース。
type ChatServiceInterface interface {
	Send(ctx context.Context, userID string, sess *model.Session, conversationID, message string) (*chat.Result, error)
}

// ChatHandler はチャット実行のHTTPハンドラー。
type ChatHandler struct {
	service ChatServiceInterface
}

// NewChatHandler はChatHandlerを生成する。
func NewChatHandler(service ChatServiceInterface) *ChatHandler {
	return &ChatHandler{service: service}
}

// chatRequest はチャットリクエストのボディ。
// conversation_idが空の場合は新しい会話が作成される。
type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

// chatResponse はチャット成功時のレスポンス。
type chatResponse struct {
	Success        bool   `json:"success"`
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
}

// Send はユーザーメッセージを処理しアシスタントの応答を返す。
// POST /api/chat（必須認証）
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	info, err := middleware.AuthFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMessageRequiredError())
		return
	}

	result, err := h.service.Send(r.Context(), info.User.ID, info.Session, req.ConversationID, req.Message)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Success:        true,
		Response:       result.Response,
		ConversationID: result.ConversationID,
	})
}
