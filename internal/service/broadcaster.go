package service

// Broadcaster — внешний fan-out. Publish строго best-effort: потеря доставки
// никогда не откатывает зафиксированную мутацию и не возвращается ошибкой.
type Broadcaster interface {
	Publish(topic string, payload any)
}

// Виды событий внутри топика диалога.
const (
	KindMessage  = "message"
	KindTyping   = "typing"
	KindRead     = "read"
	KindEdit     = "edit"
	KindDelete   = "delete"
	KindReaction = "reaction"
)

// ConversationTopic — базовый топик диалога: conversation/{id}.
// Событийные подтопики: conversation/{id}/{kind}.
func ConversationTopic(conversationID string) string {
	return "conversation/" + conversationID
}

func SubTopic(conversationID, kind string) string {
	return ConversationTopic(conversationID) + "/" + kind
}

// NopBroadcaster — заглушка для тестов и офлайн-режима.
type NopBroadcaster struct{}

func (NopBroadcaster) Publish(string, any) {}
