package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/unihub/chat-service/internal/domain"
	"github.com/unihub/chat-service/internal/metrics"
)

const maxContentLen = 4000

// ChatService — оркестратор поверх хранилищ: проверяет участие на каждой
// операции, собирает проекции и публикует события в Broadcaster.
type ChatService struct {
	conversations ConversationStore
	participants  ParticipantStore
	messages      MessageStore
	reactions     ReactionStore
	receipts      ReceiptStore
	users         UserDirectory
	bcast         Broadcaster

	now func() time.Time
}

func NewChatService(
	conversations ConversationStore,
	participants ParticipantStore,
	messages MessageStore,
	reactions ReactionStore,
	receipts ReceiptStore,
	users UserDirectory,
	bcast Broadcaster,
) *ChatService {
	if bcast == nil {
		bcast = NopBroadcaster{}
	}
	return &ChatService{
		conversations: conversations,
		participants:  participants,
		messages:      messages,
		reactions:     reactions,
		receipts:      receipts,
		users:         users,
		bcast:         bcast,
		now:           time.Now,
	}
}

type CreateConversationInput struct {
	ParticipantIDs []int64
	IsGroup        bool
	GroupName      string
}

type SendMessageInput struct {
	ConversationID string
	Content        string
	Type           domain.MessageType
	FileURL        *string
	FileName       *string
	FileSize       *int64
	ReplyToID      *string
}

// requireParticipant возвращает строку участия или ErrNotAuthorized.
// Скрытое участие не лишает прав: пользователь остаётся отправителем и
// читателем, пока его явно не удалили.
func (s *ChatService) requireParticipant(ctx context.Context, conversationID string, userID int64) (*domain.Participant, error) {
	p, err := s.participants.Find(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotAuthorized
	}
	return p, nil
}

func (s *ChatService) CreateConversation(ctx context.Context, creatorID int64, in CreateConversationInput) (*ConversationView, error) {
	others := lo.Uniq(lo.Filter(in.ParticipantIDs, func(id int64, _ int) bool { return id != creatorID }))
	if len(others) == 0 {
		return nil, fmt.Errorf("%w: participant list is empty", domain.ErrValidation)
	}

	if _, err := s.users.Resolve(ctx, creatorID); err != nil {
		return nil, err
	}

	var conv *domain.Conversation
	if !in.IsGroup {
		if len(others) != 1 {
			return nil, fmt.Errorf("%w: direct conversation needs exactly one other participant", domain.ErrValidation)
		}
		if _, err := s.users.Resolve(ctx, others[0]); err != nil {
			return nil, err
		}
		c, err := s.conversations.CreateDirect(ctx, creatorID, others[0])
		if err != nil {
			return nil, err
		}
		conv = c
	} else {
		name := strings.TrimSpace(in.GroupName)
		if name == "" {
			name = domain.DefaultGroupName
		}
		for _, id := range others {
			if _, err := s.users.Resolve(ctx, id); err != nil {
				return nil, err
			}
		}
		now := s.now()
		conv = &domain.Conversation{
			IsGroup:   true,
			GroupName: &name,
			CreatedBy: creatorID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		parts := make([]domain.Participant, 0, len(others)+1)
		parts = append(parts, domain.Participant{UserID: creatorID, IsAdmin: true, JoinedAt: now})
		for _, id := range others {
			parts = append(parts, domain.Participant{UserID: id, JoinedAt: now})
		}
		if err := s.conversations.CreateGroup(ctx, conv, parts); err != nil {
			return nil, err
		}
	}

	view := s.buildConversationView(ctx, conv, creatorID)
	s.bcast.Publish(ConversationTopic(conv.ID), view)
	return view, nil
}

func (s *ChatService) ListConversations(ctx context.Context, userID int64) ([]*ConversationView, error) {
	convs, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]*ConversationView, 0, len(convs))
	for i := range convs {
		views = append(views, s.buildConversationView(ctx, &convs[i], userID))
	}
	return views, nil
}

func (s *ChatService) GetConversation(ctx context.Context, userID int64, conversationID string) (*ConversationView, error) {
	if _, err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	conv, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return s.buildConversationView(ctx, conv, userID), nil
}

func (s *ChatService) SendMessage(ctx context.Context, senderID int64, in SendMessageInput) (*MessageView, error) {
	if _, err := s.users.Resolve(ctx, senderID); err != nil {
		return nil, err
	}
	if _, err := s.conversations.Get(ctx, in.ConversationID); err != nil {
		return nil, err
	}
	if _, err := s.requireParticipant(ctx, in.ConversationID, senderID); err != nil {
		return nil, err
	}

	msgType := in.Type
	if msgType == "" {
		msgType = domain.MessageText
	}

	content := strings.TrimSpace(in.Content)
	if msgType == domain.MessageText && content == "" {
		return nil, fmt.Errorf("%w: empty message", domain.ErrValidation)
	}
	if len(content) > maxContentLen {
		return nil, fmt.Errorf("%w: message too long", domain.ErrValidation)
	}

	// Reply резолвится best-effort: битый reply_to не валит отправку.
	replyTo := in.ReplyToID
	if replyTo != nil {
		if _, err := s.messages.Get(ctx, *replyTo); err != nil {
			replyTo = nil
		}
	}

	// У файлов и медиа без подписи content хранится как NULL, не пустая строка.
	var contentPtr *string
	if content != "" {
		contentPtr = &content
	}

	now := s.now()
	msg := &domain.Message{
		ConversationID: in.ConversationID,
		SenderID:       senderID,
		Content:        contentPtr,
		Type:           msgType,
		FileURL:        in.FileURL,
		FileName:       in.FileName,
		FileSize:       in.FileSize,
		ReplyToID:      replyTo,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, err
	}
	metrics.MessagesSent.Inc()

	view, err := s.buildMessageView(ctx, msg)
	if err != nil {
		return nil, err
	}
	s.bcast.Publish(ConversationTopic(msg.ConversationID), view)
	return view, nil
}

func (s *ChatService) GetMessages(ctx context.Context, userID int64, conversationID string, page, size int) ([]*MessageView, error) {
	if _, err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if page < 0 {
		page = 0
	}
	size = clampPageSize(size)

	msgs, err := s.messages.Page(ctx, conversationID, page*size, size)
	if err != nil {
		return nil, err
	}
	return s.buildMessageViews(ctx, msgs)
}

func (s *ChatService) SearchMessages(ctx context.Context, userID int64, conversationID, query string) ([]*MessageView, error) {
	if _, err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.Search(ctx, conversationID, query)
	if err != nil {
		return nil, err
	}
	return s.buildMessageViews(ctx, msgs)
}

func (s *ChatService) buildMessageViews(ctx context.Context, msgs []domain.Message) ([]*MessageView, error) {
	views := make([]*MessageView, 0, len(msgs))
	for i := range msgs {
		v, err := s.buildMessageView(ctx, &msgs[i])
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *ChatService) MarkAsRead(ctx context.Context, userID int64, conversationID string) error {
	if _, err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	readAt, err := s.participants.SetLastRead(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	s.bcast.Publish(SubTopic(conversationID, KindRead), ReadEvent{
		ConversationID: conversationID,
		UserID:         userID,
		ReadAt:         readAt,
	})
	return nil
}

// MarkMessageRead — поштучная отметка просмотра, питает список read_by в
// проекции сообщения. Не влияет на счётчик непрочитанных.
func (s *ChatService) MarkMessageRead(ctx context.Context, userID int64, messageID string) error {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if _, err := s.requireParticipant(ctx, msg.ConversationID, userID); err != nil {
		return err
	}
	if err := s.receipts.Record(ctx, messageID, userID, s.now()); err != nil {
		return err
	}
	s.bcast.Publish(SubTopic(msg.ConversationID, KindRead), MessageReadEvent{
		ConversationID: msg.ConversationID,
		MessageID:      messageID,
		UserID:         userID,
	})
	return nil
}

func (s *ChatService) EditMessage(ctx context.Context, userID int64, messageID, content string) (*MessageView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty message", domain.ErrValidation)
	}
	if len(content) > maxContentLen {
		return nil, fmt.Errorf("%w: message too long", domain.ErrValidation)
	}

	msg, err := s.messages.Edit(ctx, messageID, userID, content)
	if err != nil {
		return nil, err
	}
	view, err := s.buildMessageView(ctx, msg)
	if err != nil {
		return nil, err
	}
	s.bcast.Publish(SubTopic(msg.ConversationID, KindEdit), view)
	return view, nil
}

func (s *ChatService) DeleteMessage(ctx context.Context, userID int64, messageID string) error {
	msg, err := s.messages.SoftDelete(ctx, messageID, userID)
	if err != nil {
		return err
	}
	s.bcast.Publish(SubTopic(msg.ConversationID, KindDelete), DeleteEvent{
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
	})
	return nil
}

func (s *ChatService) ToggleReaction(ctx context.Context, userID int64, messageID, emoji string) (*MessageView, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, fmt.Errorf("%w: emoji is required", domain.ErrValidation)
	}

	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireParticipant(ctx, msg.ConversationID, userID); err != nil {
		return nil, err
	}
	if _, err := s.users.Resolve(ctx, userID); err != nil {
		return nil, err
	}

	if _, err := s.reactions.Toggle(ctx, messageID, userID, emoji); err != nil {
		return nil, err
	}

	view, err := s.buildMessageView(ctx, msg)
	if err != nil {
		return nil, err
	}
	s.bcast.Publish(SubTopic(msg.ConversationID, KindReaction), view)
	return view, nil
}

// DeleteConversationForUser скрывает диалог только для самого пользователя,
// событие не публикуется: для остальных участников ничего не изменилось.
func (s *ChatService) DeleteConversationForUser(ctx context.Context, userID int64, conversationID string) error {
	if _, err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	return s.participants.SetHidden(ctx, conversationID, userID, true)
}

// Typing — эфемерный индикатор, нигде не сохраняется.
func (s *ChatService) Typing(ctx context.Context, userID int64, conversationID string, isTyping bool) error {
	if _, err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	u, err := s.users.Resolve(ctx, userID)
	if err != nil {
		return err
	}
	s.bcast.Publish(SubTopic(conversationID, KindTyping), TypingEvent{
		ConversationID: conversationID,
		UserID:         userID,
		UserName:       u.DisplayName,
		IsTyping:       isTyping,
	})
	return nil
}

func clampPageSize(size int) int {
	if size <= 0 {
		return 50
	}
	if size > 100 {
		return 100
	}
	return size
}
