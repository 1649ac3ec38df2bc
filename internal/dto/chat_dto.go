package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateChatRequest struct {
	FirstMessage string `json:"firstMessage"`
}

type ChatResponse struct {
	Id        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type MessageResponse struct {
	Id        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

type RenameChatRequest struct {
	Title string `json:"title" validate:"required"`
}

// ExchangeCompletedMessage is the payload published on the in-process bus
// after an exchange has been committed.
type ExchangeCompletedMessage struct {
	ChatId          uuid.UUID `json:"chat_id"`
	UserMessageId   uuid.UUID `json:"user_message_id"`
	AssistantId     uuid.UUID `json:"assistant_id"`
	TranscriptBytes int       `json:"transcript_bytes"`
	Complete        bool      `json:"complete"`
}
