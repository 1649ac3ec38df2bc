package unitofwork

import (
	"context"

	"ollama-chat-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ChatRepository() contract.ChatRepository
	ChatMessageRepository() contract.ChatMessageRepository
}
