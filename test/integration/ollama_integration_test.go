package integration

import (
	"context"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"ollama-chat-be/internal/constant"
	"ollama-chat-be/internal/pkg/logger"
	"ollama-chat-be/pkg/llm"
	"ollama-chat-be/pkg/llm/ollama"
)

func ollamaBaseURL(t *testing.T) string {
	t.Helper()

	baseURL := os.Getenv("OLLAMA_BASE_URL")
	if baseURL == "" {
		baseURL = constant.OllamaDefaultBaseURL
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL, nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Skipf("Skipping integration test: Ollama not running at %s: %v", baseURL, err)
	}
	res.Body.Close()
	return baseURL
}

// TestOllamaStreamingExchange runs one real streamed exchange against a
// local Ollama server and verifies the fragment contract end to end.
func TestOllamaStreamingExchange(t *testing.T) {
	baseURL := ollamaBaseURL(t)

	model := os.Getenv("OLLAMA_MODEL")
	if model == "" {
		model = constant.OllamaDefaultModel
	}

	provider := ollama.NewOllamaProvider(baseURL, model, 60*time.Second, logger.NewNopLogger())

	// Generous deadline: the first request may load the model from disk.
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	stream, err := provider.OpenStream(ctx, []llm.Message{
		{Role: constant.ChatMessageRoleUser, Content: "Say 'hello' in one short sentence."},
	})
	if err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}
	defer stream.Close()

	var transcript string
	fragments := 0
	sawFinal := false

	for {
		frag, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed after %d fragments: %v", fragments, err)
		}
		fragments++
		transcript += frag.Content
		if frag.Final {
			sawFinal = true
			break
		}
	}

	t.Logf("Received %d fragments, %d bytes", fragments, len(transcript))
	t.Logf("Response: %s", transcript)

	if !sawFinal {
		t.Error("stream ended without a final fragment")
	}
	if transcript == "" {
		t.Error("transcript should not be empty")
	}
}
