package ws

// Входящие типы кадров от клиента.
const (
	TypeSend   = "chat.send"   // отправка сообщения через realtime-канал
	TypeTyping = "chat.typing" // эфемерный индикатор набора
)

// Исходящие служебные типы; событийные типы (message/read/edit/delete/
// reaction/typing) приходят из топиков Broadcaster-а как есть.
const (
	TypeState = "state"    // снапшот диалога при подключении
	TypeAck   = "chat.ack" // подтверждение только отправителю
)

type Message struct {
	Type    string `json:"type"`
	Topic   string `json:"topic,omitempty"`
	Payload any    `json:"payload"`
}

type SendPayload struct {
	Content   string  `json:"content"`
	Type      string  `json:"type,omitempty"`
	FileURL   *string `json:"file_url,omitempty"`
	FileName  *string `json:"file_name,omitempty"`
	FileSize  *int64  `json:"file_size,omitempty"`
	ReplyToID *string `json:"reply_to,omitempty"`
}

type TypingPayload struct {
	IsTyping bool `json:"is_typing"`
}

type AckPayload struct {
	MessageID string `json:"message_id"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}
