package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/unihub/chat-service/internal/domain"
	"github.com/unihub/chat-service/internal/service"
	httpmw "github.com/unihub/chat-service/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	chatSvc *service.ChatService
}

func NewHandler(chat *service.ChatService) *Handler {
	return &Handler{chatSvc: chat}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError единообразно отображает доменные ошибки в HTTP-статусы.
// Отказ в доступе и "не найдено" для бесед/сообщений отвечают одинаковым 403,
// чтобы по ответу нельзя было перебором выяснить существование чужих данных.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "user not found"})
	case errors.Is(err, domain.ErrNotAuthorized),
		errors.Is(err, domain.ErrConversationNotFound),
		errors.Is(err, domain.ErrMessageNotFound):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "not authorized"})
	default:
		slog.Error("handler."+op+":", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

// POST /conversations
func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("handler.CreateConversation.Decode:", slog.Any("err", err))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	view, err := h.chatSvc.CreateConversation(r.Context(), userID, service.CreateConversationInput{
		ParticipantIDs: req.ParticipantIDs,
		IsGroup:        req.IsGroup,
		GroupName:      req.GroupName,
	})
	if err != nil {
		writeServiceError(w, "CreateConversation", err)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

// GET /conversations
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}

	views, err := h.chatSvc.ListConversations(r.Context(), userID)
	if err != nil {
		writeServiceError(w, "ListConversations", err)
		return
	}

	writeJSON(w, http.StatusOK, ConversationsResponse{Items: views})
}

// GET /conversations/{id}
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}
	conversationID := chi.URLParam(r, "id")

	view, err := h.chatSvc.GetConversation(r.Context(), userID, conversationID)
	if err != nil {
		writeServiceError(w, "GetConversation", err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// DELETE /conversations/{id}
func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}
	conversationID := chi.URLParam(r, "id")

	if err := h.chatSvc.DeleteConversationForUser(r.Context(), userID, conversationID); err != nil {
		writeServiceError(w, "DeleteConversation", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "hidden"})
}

// POST /conversations/{id}/messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}
	conversationID := chi.URLParam(r, "id")

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("handler.SendMessage.Decode:", slog.Any("err", err))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	msgType, err := domain.ParseMessageType(req.Type)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	view, err := h.chatSvc.SendMessage(r.Context(), userID, service.SendMessageInput{
		ConversationID: conversationID,
		Content:        req.Content,
		Type:           msgType,
		FileURL:        req.FileURL,
		FileName:       req.FileName,
		FileSize:       req.FileSize,
		ReplyToID:      req.ReplyToID,
	})
	if err != nil {
		writeServiceError(w, "SendMessage", err)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

// GET /conversations/{id}/messages?page=&size=
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}
	conversationID := chi.URLParam(r, "id")

	page := 0
	if s := r.URL.Query().Get("page"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			page = n
		}
	}
	size := 0
	if s := r.URL.Query().Get("size"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			size = n
		}
	}

	views, err := h.chatSvc.GetMessages(r.Context(), userID, conversationID, page, size)
	if err != nil {
		writeServiceError(w, "GetMessages", err)
		return
	}

	writeJSON(w, http.StatusOK, MessagesResponse{Items: views, Page: page, Count: len(views)})
}

// GET /conversations/{id}/search?query=
func (h *Handler) SearchMessages(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}
	conversationID := chi.URLParam(r, "id")

	query := r.URL.Query().Get("query")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "query is required"})
		return
	}

	views, err := h.chatSvc.SearchMessages(r.Context(), userID, conversationID, query)
	if err != nil {
		writeServiceError(w, "SearchMessages", err)
		return
	}

	writeJSON(w, http.StatusOK, MessagesResponse{Items: views})
}

// POST /conversations/{id}/read
func (h *Handler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}
	conversationID := chi.URLParam(r, "id")

	if err := h.chatSvc.MarkAsRead(r.Context(), userID, conversationID); err != nil {
		writeServiceError(w, "MarkAsRead", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// POST /conversations/{id}/typing
func (h *Handler) Typing(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}
	conversationID := chi.URLParam(r, "id")

	var req TypingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("handler.Typing.Decode:", slog.Any("err", err))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	if err := h.chatSvc.Typing(r.Context(), userID, conversationID, req.IsTyping); err != nil {
		writeServiceError(w, "Typing", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PUT /messages/{id}
func (h *Handler) EditMessage(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}
	messageID := chi.URLParam(r, "id")

	var req EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("handler.EditMessage.Decode:", slog.Any("err", err))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	view, err := h.chatSvc.EditMessage(r.Context(), userID, messageID, req.Content)
	if err != nil {
		writeServiceError(w, "EditMessage", err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// DELETE /messages/{id}
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}
	messageID := chi.URLParam(r, "id")

	if err := h.chatSvc.DeleteMessage(r.Context(), userID, messageID); err != nil {
		writeServiceError(w, "DeleteMessage", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// POST /messages/{id}/read
func (h *Handler) MarkMessageRead(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}
	messageID := chi.URLParam(r, "id")

	if err := h.chatSvc.MarkMessageRead(r.Context(), userID, messageID); err != nil {
		writeServiceError(w, "MarkMessageRead", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// POST /messages/{id}/reactions?emoji=
func (h *Handler) ToggleReaction(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}
	messageID := chi.URLParam(r, "id")
	emoji := r.URL.Query().Get("emoji")

	view, err := h.chatSvc.ToggleReaction(r.Context(), userID, messageID, emoji)
	if err != nil {
		writeServiceError(w, "ToggleReaction", err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}
