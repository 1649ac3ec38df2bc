package events

import (
	"time"

	"github.com/google/uuid"
)

const TypeChatExchangeCompleted = "chat.exchange_completed"

// ChatExchangeCompleted is emitted after both sides of an exchange are
// durably recorded, including partial replies from interrupted streams.
type ChatExchangeCompleted struct {
	ChatId          uuid.UUID
	UserMessageId   uuid.UUID
	AssistantId     uuid.UUID
	TranscriptBytes int
	Complete        bool
	OccurredAt      time.Time
}

func (e ChatExchangeCompleted) EventType() string {
	return TypeChatExchangeCompleted
}

func (e ChatExchangeCompleted) Payload() map[string]interface{} {
	return map[string]interface{}{
		"chat_id":          e.ChatId.String(),
		"user_message_id":  e.UserMessageId.String(),
		"assistant_id":     e.AssistantId.String(),
		"transcript_bytes": e.TranscriptBytes,
		"complete":         e.Complete,
		"occurred_at":      e.OccurredAt,
	}
}

func (e ChatExchangeCompleted) Timestamp() time.Time {
	return e.OccurredAt
}
