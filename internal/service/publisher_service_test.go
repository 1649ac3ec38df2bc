package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ollama-chat-be/internal/dto"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherDeliversToSubscriber(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 1}, watermill.NopLogger{})
	defer pubSub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, "TEST_TOPIC")
	require.NoError(t, err)

	publisher := NewPublisherService(pubSub, "TEST_TOPIC")

	want := dto.ExchangeCompletedMessage{
		ChatId:          uuid.New(),
		UserMessageId:   uuid.New(),
		AssistantId:     uuid.New(),
		TranscriptBytes: 42,
		Complete:        true,
	}
	payload, err := json.Marshal(want)
	require.NoError(t, err)
	require.NoError(t, publisher.Publish(ctx, payload))

	select {
	case msg := <-messages:
		var got dto.ExchangeCompletedMessage
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, want, got)
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("message never delivered")
	}
}
