package http

import "github.com/unihub/chat-service/internal/service"

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateConversationRequest struct {
	ParticipantIDs []int64 `json:"participant_ids"`
	IsGroup        bool    `json:"is_group"`
	GroupName      string  `json:"group_name"`
}

type SendMessageRequest struct {
	Content   string  `json:"content"`
	Type      string  `json:"type,omitempty"`
	FileURL   *string `json:"file_url,omitempty"`
	FileName  *string `json:"file_name,omitempty"`
	FileSize  *int64  `json:"file_size,omitempty"`
	ReplyToID *string `json:"reply_to,omitempty"`
}

type EditMessageRequest struct {
	Content string `json:"content"`
}

type TypingRequest struct {
	IsTyping bool `json:"is_typing"`
}

type ConversationsResponse struct {
	Items []*service.ConversationView `json:"items"`
}

type MessagesResponse struct {
	Items []*service.MessageView `json:"items"`
	Page  int                    `json:"page,omitempty"`
	// Count — сколько сообщений вернулось на этой странице, не размер страницы.
	Count int `json:"count,omitempty"`
}
