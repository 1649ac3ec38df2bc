package service

import (
	"context"
	"encoding/json"
	"time"

	"ollama-chat-be/internal/dto"
	"ollama-chat-be/internal/pkg/logger"
	"ollama-chat-be/pkg/events"
	pktNats "ollama-chat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains exchange-completed messages off the in-process
// bus, forwards them to NATS for downstream consumers and backfills titles
// for chats still carrying the default one. Runs in the background;
// nothing on the request path waits for it.
type consumerService struct {
	pubSub         *gochannel.GoChannel
	topicName      string
	eventPublisher *pktNats.Publisher
	chats          IChatService
	log            logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	eventPublisher *pktNats.Publisher,
	chats IChatService,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:         pubSub,
		topicName:      topicName,
		eventPublisher: eventPublisher,
		chats:          chats,
		log:            log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.ExchangeCompletedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.log.Error("consumer", "failed to unmarshal exchange message", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // invalid payloads would retry forever otherwise
		return
	}

	if err := cs.chats.BackfillTitle(ctx, payload.ChatId); err != nil {
		cs.log.Warn("consumer", "failed to backfill chat title", map[string]interface{}{
			"chat_id": payload.ChatId.String(),
			"error":   err.Error(),
		})
	}

	if cs.eventPublisher != nil {
		evt := events.ChatExchangeCompleted{
			ChatId:          payload.ChatId,
			UserMessageId:   payload.UserMessageId,
			AssistantId:     payload.AssistantId,
			TranscriptBytes: payload.TranscriptBytes,
			Complete:        payload.Complete,
			OccurredAt:      time.Now(),
		}
		if err := cs.eventPublisher.Publish(ctx, evt); err != nil {
			cs.log.Warn("consumer", "failed to forward exchange event to NATS", map[string]interface{}{
				"chat_id": payload.ChatId.String(),
				"error":   err.Error(),
			})
		}
	}

	msg.Ack()
}
