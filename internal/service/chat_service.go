package service

import (
	"context"
	"fmt"
	"time"

	"ollama-chat-be/internal/constant"
	"ollama-chat-be/internal/dto"
	"ollama-chat-be/internal/entity"
	"ollama-chat-be/internal/pkg/logger"
	"ollama-chat-be/internal/pkg/serverutils"
	"ollama-chat-be/internal/repository/cache"
	"ollama-chat-be/internal/repository/memory"
	"ollama-chat-be/internal/repository/specification"
	"ollama-chat-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// IChatService covers chat CRUD plus the persistence gateway used by the
// relay: the two message writes are independent single-row inserts, never
// wrapped in one transaction, so a crash mid-exchange still leaves the user
// message durably recorded.
type IChatService interface {
	CreateChat(ctx context.Context, req *dto.CreateChatRequest) (*dto.ChatResponse, error)
	GetAllChats(ctx context.Context) ([]*dto.ChatResponse, error)
	GetChatHistory(ctx context.Context, chatId uuid.UUID) ([]*dto.MessageResponse, error)
	RenameChat(ctx context.Context, chatId uuid.UUID, title string) (*dto.ChatResponse, error)

	RecordUserMessage(ctx context.Context, chatId uuid.UUID, content string) (*entity.ChatMessage, error)
	RecordAssistantMessage(ctx context.Context, chatId uuid.UUID, content string) (uuid.UUID, error)

	BackfillTitle(ctx context.Context, chatId uuid.UUID) error
}

var ErrChatNotFound = serverutils.NewNotFoundError("Chat not found")

type chatService struct {
	uowFactory   unitofwork.RepositoryFactory
	chatCache    *memory.ChatCache
	historyCache *cache.HistoryCache
	log          logger.ILogger
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	chatCache *memory.ChatCache,
	historyCache *cache.HistoryCache,
	log logger.ILogger,
) IChatService {
	return &chatService{
		uowFactory:   uowFactory,
		chatCache:    chatCache,
		historyCache: historyCache,
		log:          log,
	}
}

func (cs *chatService) CreateChat(ctx context.Context, req *dto.CreateChatRequest) (*dto.ChatResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	title := constant.DefaultChatTitle
	if req.FirstMessage != "" {
		title = deriveTitle(req.FirstMessage)
	}

	chat := entity.Chat{
		Id:        uuid.New(),
		Title:     title,
		CreatedAt: time.Now(),
	}
	if err := uow.ChatRepository().Create(ctx, &chat); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	cs.chatCache.MarkExists(chat.Id)

	if req.FirstMessage != "" {
		if _, err := cs.RecordUserMessage(ctx, chat.Id, req.FirstMessage); err != nil {
			return nil, err
		}
	}

	return &dto.ChatResponse{
		Id:        chat.Id,
		Title:     chat.Title,
		CreatedAt: chat.CreatedAt,
	}, nil
}

func (cs *chatService) GetAllChats(ctx context.Context) ([]*dto.ChatResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	chats, err := uow.ChatRepository().FindAll(ctx, specification.OrderBy{Field: "created_at", Desc: true})
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	res := make([]*dto.ChatResponse, len(chats))
	for i, c := range chats {
		res[i] = &dto.ChatResponse{
			Id:        c.Id,
			Title:     c.Title,
			CreatedAt: c.CreatedAt,
		}
	}
	return res, nil
}

func (cs *chatService) GetChatHistory(ctx context.Context, chatId uuid.UUID) ([]*dto.MessageResponse, error) {
	if err := cs.ensureChatExists(ctx, chatId); err != nil {
		return nil, err
	}

	messages, err := cs.loadHistory(ctx, chatId)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.MessageResponse, len(messages))
	for i, m := range messages {
		res[i] = &dto.MessageResponse{
			Id:        m.Id,
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		}
	}
	return res, nil
}

func (cs *chatService) RenameChat(ctx context.Context, chatId uuid.UUID, title string) (*dto.ChatResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	chat, err := uow.ChatRepository().FindOne(ctx, specification.ByID{ID: chatId})
	if err != nil {
		return nil, fmt.Errorf("find chat: %w", err)
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}

	chat.Title = title
	if err := uow.ChatRepository().Update(ctx, chat); err != nil {
		return nil, fmt.Errorf("rename chat: %w", err)
	}

	return &dto.ChatResponse{
		Id:        chat.Id,
		Title:     chat.Title,
		CreatedAt: chat.CreatedAt,
	}, nil
}

// RecordUserMessage is the first half of the persistence gateway. The chat
// must exist; the inference backend is never invoked for a message that
// couldn't be recorded.
func (cs *chatService) RecordUserMessage(ctx context.Context, chatId uuid.UUID, content string) (*entity.ChatMessage, error) {
	if err := cs.ensureChatExists(ctx, chatId); err != nil {
		return nil, err
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	msg := entity.ChatMessage{
		Id:        uuid.New(),
		ChatId:    chatId,
		Role:      constant.ChatMessageRoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := uow.ChatMessageRepository().Create(ctx, &msg); err != nil {
		return nil, fmt.Errorf("insert user message: %w", err)
	}

	cs.invalidateHistory(ctx, chatId)
	return &msg, nil
}

// RecordAssistantMessage is the second half of the gateway. Empty content is
// allowed: an interrupted stream still commits whatever was accumulated.
func (cs *chatService) RecordAssistantMessage(ctx context.Context, chatId uuid.UUID, content string) (uuid.UUID, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	msg := entity.ChatMessage{
		Id:        uuid.New(),
		ChatId:    chatId,
		Role:      constant.ChatMessageRoleAssistant,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := uow.ChatMessageRepository().Create(ctx, &msg); err != nil {
		return uuid.Nil, fmt.Errorf("insert assistant message: %w", err)
	}

	cs.invalidateHistory(ctx, chatId)
	return msg.Id, nil
}

// BackfillTitle renames a chat still carrying the default title using its
// first user message. Runs off the request path, from the event consumer,
// so a chat created empty picks up a real title after its first exchange.
func (cs *chatService) BackfillTitle(ctx context.Context, chatId uuid.UUID) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	chat, err := uow.ChatRepository().FindOne(ctx, specification.ByID{ID: chatId})
	if err != nil {
		return fmt.Errorf("find chat: %w", err)
	}
	if chat == nil {
		return ErrChatNotFound
	}
	if chat.Title != constant.DefaultChatTitle {
		return nil
	}

	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatID{ChatID: chatId},
		specification.ByRole{Role: constant.ChatMessageRoleUser},
		specification.OrderBy{Field: "created_at"},
		specification.Limit{N: 1},
	)
	if err != nil {
		return fmt.Errorf("find first user message: %w", err)
	}
	if len(messages) == 0 || messages[0].Content == "" {
		return nil
	}

	chat.Title = deriveTitle(messages[0].Content)
	if err := uow.ChatRepository().Update(ctx, chat); err != nil {
		return fmt.Errorf("backfill title: %w", err)
	}
	return nil
}

func (cs *chatService) ensureChatExists(ctx context.Context, chatId uuid.UUID) error {
	if cs.chatCache.Exists(chatId) {
		return nil
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	chat, err := uow.ChatRepository().FindOne(ctx, specification.ByID{ID: chatId})
	if err != nil {
		return fmt.Errorf("find chat: %w", err)
	}
	if chat == nil {
		return ErrChatNotFound
	}

	cs.chatCache.MarkExists(chatId)
	return nil
}

func (cs *chatService) loadHistory(ctx context.Context, chatId uuid.UUID) ([]*entity.ChatMessage, error) {
	if cs.historyCache != nil {
		if cached, err := cs.historyCache.GetHistory(ctx, chatId); err == nil {
			return cached, nil
		}
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatID{ChatID: chatId},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	if cs.historyCache != nil {
		if err := cs.historyCache.SetHistory(ctx, chatId, messages); err != nil {
			cs.log.Warn("chat", "failed to cache history", map[string]interface{}{
				"chat_id": chatId.String(),
				"error":   err.Error(),
			})
		}
	}
	return messages, nil
}

func (cs *chatService) invalidateHistory(ctx context.Context, chatId uuid.UUID) {
	if cs.historyCache == nil {
		return
	}
	if err := cs.historyCache.Invalidate(ctx, chatId); err != nil {
		cs.log.Warn("chat", "failed to invalidate history cache", map[string]interface{}{
			"chat_id": chatId.String(),
			"error":   err.Error(),
		})
	}
}

func deriveTitle(firstMessage string) string {
	runes := []rune(firstMessage)
	if len(runes) > constant.ChatTitleMaxLen {
		return string(runes[:constant.ChatTitleMaxLen])
	}
	return firstMessage
}
