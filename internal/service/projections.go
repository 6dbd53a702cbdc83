package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/unihub/chat-service/internal/domain"
)

type UserSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type ParticipantInfo struct {
	UserSummary
	IsAdmin    bool       `json:"is_admin"`
	LastReadAt *time.Time `json:"last_read_at"`
}

type ReplySummary struct {
	ID      string      `json:"id"`
	Content *string     `json:"content"`
	Sender  UserSummary `json:"sender"`
}

type MessageView struct {
	ID             string                   `json:"id"`
	ConversationID string                   `json:"conversation_id"`
	Sender         UserSummary              `json:"sender"`
	Content        *string                  `json:"content"`
	Type           domain.MessageType       `json:"type"`
	FileURL        *string                  `json:"file_url,omitempty"`
	FileName       *string                  `json:"file_name,omitempty"`
	FileSize       *int64                   `json:"file_size,omitempty"`
	ReplyTo        *ReplySummary            `json:"reply_to,omitempty"`
	IsEdited       bool                     `json:"is_edited"`
	IsDeleted      bool                     `json:"is_deleted"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
	Reactions      map[string][]UserSummary `json:"reactions"`
	ReadBy         []UserSummary            `json:"read_by"`
}

type ConversationView struct {
	ID           string            `json:"id"`
	IsGroup      bool              `json:"is_group"`
	GroupName    *string           `json:"group_name"`
	GroupAvatar  *string           `json:"group_avatar"`
	Participants []ParticipantInfo `json:"participants"`
	LastMessage  *MessageView      `json:"last_message,omitempty"`
	UnreadCount  int64             `json:"unread_count"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Событийные payload-ы для подтопиков.

type ReadEvent struct {
	ConversationID string    `json:"conversation_id"`
	UserID         int64     `json:"user_id"`
	ReadAt         time.Time `json:"read_at"`
}

type MessageReadEvent struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	UserID         int64  `json:"user_id"`
}

type DeleteEvent struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

type TypingEvent struct {
	ConversationID string `json:"conversation_id"`
	UserID         int64  `json:"user_id"`
	UserName       string `json:"user_name"`
	IsTyping       bool   `json:"is_typing"`
}

func summary(u *domain.User) UserSummary {
	return UserSummary{ID: u.ID, Name: u.DisplayName, Email: u.Email}
}

func (s *ChatService) userSummary(ctx context.Context, id int64) (UserSummary, error) {
	u, err := s.users.Resolve(ctx, id)
	if err != nil {
		return UserSummary{}, err
	}
	return summary(u), nil
}

func (s *ChatService) buildMessageView(ctx context.Context, m *domain.Message) (*MessageView, error) {
	sender, err := s.userSummary(ctx, m.SenderID)
	if err != nil {
		return nil, err
	}

	view := &MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sender:         sender,
		Content:        m.Content,
		Type:           m.Type,
		FileURL:        m.FileURL,
		FileName:       m.FileName,
		FileSize:       m.FileSize,
		IsEdited:       m.IsEdited,
		IsDeleted:      m.IsDeleted,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		Reactions:      map[string][]UserSummary{},
		ReadBy:         []UserSummary{},
	}

	// Reply резолвится best-effort: битая ссылка не валит ответ.
	if m.ReplyToID != nil {
		if replyTo, err := s.messages.Get(ctx, *m.ReplyToID); err == nil {
			if rs, err := s.userSummary(ctx, replyTo.SenderID); err == nil {
				view.ReplyTo = &ReplySummary{
					ID:      replyTo.ID,
					Content: replyTo.Content,
					Sender:  rs,
				}
			}
		}
	}

	reactions, err := s.reactions.ListByMessage(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	for emoji, rs := range lo.GroupBy(reactions, func(r domain.Reaction) string { return r.Emoji }) {
		users := make([]UserSummary, 0, len(rs))
		for _, r := range rs {
			u, err := s.userSummary(ctx, r.UserID)
			if err != nil {
				return nil, err
			}
			users = append(users, u)
		}
		view.Reactions[emoji] = users
	}

	receipts, err := s.receipts.ListByMessage(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	for _, r := range receipts {
		u, err := s.userSummary(ctx, r.UserID)
		if err != nil {
			return nil, err
		}
		view.ReadBy = append(view.ReadBy, u)
	}

	return view, nil
}

// buildConversationView всегда возвращает проекцию: если агрегаты (участники,
// последнее сообщение, счётчик непрочитанных) не собрались, подставляются
// пустые значения — один сломанный диалог не валит весь листинг.
func (s *ChatService) buildConversationView(ctx context.Context, conv *domain.Conversation, viewerID int64) *ConversationView {
	view := &ConversationView{
		ID:           conv.ID,
		IsGroup:      conv.IsGroup,
		GroupName:    conv.GroupName,
		GroupAvatar:  conv.GroupAvatar,
		Participants: []ParticipantInfo{},
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
	}

	if err := s.fillAggregates(ctx, conv, viewerID, view); err != nil {
		slog.Warn("conversation projection degraded", "conversation", conv.ID, "err", err)
		view.Participants = []ParticipantInfo{}
		view.LastMessage = nil
		view.UnreadCount = 0
	}
	return view
}

func (s *ChatService) fillAggregates(ctx context.Context, conv *domain.Conversation, viewerID int64, view *ConversationView) error {
	parts, err := s.participants.ListByConversation(ctx, conv.ID)
	if err != nil {
		return err
	}
	infos := make([]ParticipantInfo, 0, len(parts))
	for _, p := range parts {
		u, err := s.userSummary(ctx, p.UserID)
		if err != nil {
			return err
		}
		infos = append(infos, ParticipantInfo{
			UserSummary: u,
			IsAdmin:     p.IsAdmin,
			LastReadAt:  p.LastReadAt,
		})
	}
	view.Participants = infos

	last, err := s.messages.Page(ctx, conv.ID, 0, 1)
	if err != nil {
		return err
	}
	if len(last) > 0 {
		lm, err := s.buildMessageView(ctx, &last[0])
		if err != nil {
			return err
		}
		view.LastMessage = lm
	}

	unread, err := s.participants.CountUnread(ctx, conv.ID, viewerID)
	if err != nil {
		return err
	}
	view.UnreadCount = unread
	return nil
}
