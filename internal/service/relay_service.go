package service

import (
	"context"
	"encoding/json"
	"strings"

	"ollama-chat-be/internal/constant"
	"ollama-chat-be/internal/dto"
	"ollama-chat-be/internal/pkg/logger"
	"ollama-chat-be/internal/pkg/serverutils"
	"ollama-chat-be/pkg/llm"
	"ollama-chat-be/pkg/relay"

	"github.com/google/uuid"
)

// IRelayService is the per-request orchestrator for message submissions:
// validate, serialize on the chat, record the user message, open the
// backend stream. Streaming itself happens through the returned Exchange
// once the caller has switched the response to text/event-stream.
type IRelayService interface {
	// OpenExchange performs every step that can still fail with a JSON
	// error response. On success exactly one of Exchange.Stream or
	// Exchange.Abort must be called; both release the per-chat lock.
	OpenExchange(ctx context.Context, chatId uuid.UUID, content string) (*Exchange, error)
}

type relayService struct {
	chats     IChatService
	provider  llm.StreamProvider
	relay     *relay.Relay
	locks     *relay.ChatLocker
	publisher IPublisherService
	log       logger.ILogger
}

func NewRelayService(
	chats IChatService,
	provider llm.StreamProvider,
	locks *relay.ChatLocker,
	publisher IPublisherService,
	log logger.ILogger,
) IRelayService {
	return &relayService{
		chats:     chats,
		provider:  provider,
		relay:     relay.NewRelay(chats, log),
		locks:     locks,
		publisher: publisher,
		log:       log,
	}
}

func (rs *relayService) OpenExchange(ctx context.Context, chatId uuid.UUID, content string) (*Exchange, error) {
	if strings.TrimSpace(content) == "" {
		return nil, serverutils.NewValidationError("Message content is required")
	}

	// Held until the assistant message is committed, so concurrent
	// submissions to one chat never interleave their rows.
	unlock := rs.locks.Lock(chatId)
	opened := false
	defer func() {
		if !opened {
			unlock()
		}
	}()

	userMsg, err := rs.chats.RecordUserMessage(ctx, chatId, content)
	if err != nil {
		return nil, err
	}

	stream, err := rs.provider.OpenStream(ctx, []llm.Message{
		{Role: constant.ChatMessageRoleUser, Content: content},
	})
	if err != nil {
		// The user message stays recorded; only the reply is missing.
		rs.log.Error("relay", "failed to open backend stream", map[string]interface{}{
			"chat_id": chatId.String(),
			"error":   err.Error(),
		})
		return nil, serverutils.NewUnavailableError("Failed to reach inference backend", err)
	}

	opened = true
	return &Exchange{
		svc:           rs,
		chatId:        chatId,
		userMessageId: userMsg.Id,
		stream:        stream,
		unlock:        unlock,
	}, nil
}

// Exchange is one in-flight user/assistant turn with the chat lock held.
type Exchange struct {
	svc           *relayService
	chatId        uuid.UUID
	userMessageId uuid.UUID
	stream        llm.FragmentStream
	unlock        func()
}

// Stream relays the backend fragments into the sink, commits the
// transcript and publishes the completion event.
func (e *Exchange) Stream(ctx context.Context, sink relay.Sink) relay.Outcome {
	defer e.unlock()

	outcome := e.svc.relay.Run(ctx, e.chatId, e.stream, sink)

	if outcome.Err != nil {
		e.svc.log.Warn("relay", "stream ended early", map[string]interface{}{
			"chat_id": e.chatId.String(),
			"reason":  outcome.Err.Error(),
			"partial": len(outcome.Transcript),
		})
	}

	e.svc.publishExchangeCompleted(ctx, e, outcome)
	return outcome
}

// Abort releases the lock and the backend connection without streaming.
func (e *Exchange) Abort() {
	e.stream.Close()
	e.unlock()
}

func (rs *relayService) publishExchangeCompleted(ctx context.Context, e *Exchange, outcome relay.Outcome) {
	if rs.publisher == nil || outcome.AssistantId == uuid.Nil {
		return
	}

	payload, err := json.Marshal(dto.ExchangeCompletedMessage{
		ChatId:          e.chatId,
		UserMessageId:   e.userMessageId,
		AssistantId:     outcome.AssistantId,
		TranscriptBytes: len(outcome.Transcript),
		Complete:        outcome.Completed,
	})
	if err != nil {
		return
	}

	// Auxiliary: a publish failure never fails the exchange.
	if err := rs.publisher.Publish(context.WithoutCancel(ctx), payload); err != nil {
		rs.log.Warn("relay", "failed to publish exchange event", map[string]interface{}{
			"chat_id": e.chatId.String(),
			"error":   err.Error(),
		})
	}
}
