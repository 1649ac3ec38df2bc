package relay

import (
	"context"
	"errors"
	"io"
	"strings"

	"ollama-chat-be/internal/pkg/logger"
	"ollama-chat-be/pkg/llm"

	"github.com/google/uuid"
)

// ErrClientDisconnected means the downstream connection closed mid-stream.
// It is a cancellation signal, not a backend failure.
var ErrClientDisconnected = errors.New("client disconnected")

// Sink is the downstream client connection, one event frame per Send.
type Sink interface {
	Send(content string) error
	Close() error
}

// TranscriptStore commits the accumulated assistant reply. Implemented by
// the chat service on top of the message repository.
type TranscriptStore interface {
	RecordAssistantMessage(ctx context.Context, chatId uuid.UUID, content string) (uuid.UUID, error)
}

// Outcome reports how a relay run ended. Err is nil when the fragment
// sequence was exhausted cleanly; a failed assistant-message commit does not
// flip Completed because the client already received every token.
type Outcome struct {
	Completed   bool
	Transcript  string
	AssistantId uuid.UUID
	Err         error
}

type Relay struct {
	store TranscriptStore
	log   logger.ILogger
}

func NewRelay(store TranscriptStore, log logger.ILogger) *Relay {
	return &Relay{store: store, log: log}
}

// Run pumps fragments from the upstream stream to the sink in arrival
// order, accumulating the transcript, then commits whatever was
// accumulated. The commit also happens after a mid-stream failure or
// client disconnect, so a partial assistant turn is never silently
// dropped.
func (r *Relay) Run(ctx context.Context, chatId uuid.UUID, stream llm.FragmentStream, sink Sink) Outcome {
	defer stream.Close()

	var transcript strings.Builder
	var streamErr error
	clientGone := false

	for {
		frag, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			streamErr = err
			break
		}

		if frag.Content != "" {
			transcript.WriteString(frag.Content)
			if werr := sink.Send(frag.Content); werr != nil {
				// Client went away. Stop consuming; the backend observes
				// a dropped connection when the stream is closed.
				clientGone = true
				r.log.Info("relay", "client disconnected mid-stream", map[string]interface{}{
					"chat_id": chatId.String(),
					"written": transcript.Len(),
				})
				break
			}
		}

		if frag.Final {
			break
		}
	}

	content := transcript.String()

	// The request context may already be cancelled when the client is gone;
	// the commit still has to happen.
	assistantId, perr := r.store.RecordAssistantMessage(context.WithoutCancel(ctx), chatId, content)
	if perr != nil {
		r.log.Error("relay", "failed to persist assistant message", map[string]interface{}{
			"chat_id": chatId.String(),
			"error":   perr.Error(),
			"length":  len(content),
		})
	}

	if cerr := sink.Close(); cerr != nil && !clientGone {
		r.log.Warn("relay", "failed to close client sink", map[string]interface{}{
			"chat_id": chatId.String(),
			"error":   cerr.Error(),
		})
	}

	switch {
	case streamErr != nil:
		return Outcome{Transcript: content, AssistantId: assistantId, Err: streamErr}
	case clientGone:
		return Outcome{Transcript: content, AssistantId: assistantId, Err: ErrClientDisconnected}
	default:
		return Outcome{Completed: true, Transcript: content, AssistantId: assistantId}
	}
}
