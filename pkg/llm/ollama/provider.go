package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"ollama-chat-be/internal/constant"
	"ollama-chat-be/internal/pkg/logger"
	"ollama-chat-be/pkg/llm"
)

type OllamaProvider struct {
	BaseURL     string
	ModelName   string
	IdleTimeout time.Duration
	Client      *http.Client
	log         logger.ILogger
}

// Ensure OllamaProvider implements StreamProvider
var _ llm.StreamProvider = &OllamaProvider{}

func NewOllamaProvider(baseURL, modelName string, idleTimeout time.Duration, log logger.ILogger) *OllamaProvider {
	return &OllamaProvider{
		BaseURL:     baseURL,
		ModelName:   modelName,
		IdleTimeout: idleTimeout,
		// No global timeout: the response body stays open for the whole
		// generation. Responsiveness is enforced by the idle timer instead.
		Client: &http.Client{},
		log:    log,
	}
}

// --- Request/Response structs (Internal to this package) ---

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// --- Interface Implementation ---

// OpenStream opens a streaming chat request against Ollama and exposes the
// newline-delimited JSON response as a FragmentStream. The idle timer starts
// before the request is sent, so a backend that never answers surfaces as
// ErrBackendUnavailable rather than hanging the caller.
func (o *OllamaProvider) OpenStream(ctx context.Context, history []llm.Message) (llm.FragmentStream, error) {
	ollamaMessages := make([]ollamaMessage, len(history))
	for i, msg := range history {
		role := msg.Role
		if role == "model" {
			role = constant.ChatMessageRoleAssistant
		}
		ollamaMessages[i] = ollamaMessage{
			Role:    role,
			Content: msg.Content,
		}
	}

	reqPayload := ollamaChatRequest{
		Model:    o.ModelName,
		Messages: ollamaMessages,
		Stream:   true,
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)

	s := &fragmentStream{
		idle:   o.IdleTimeout,
		cancel: cancel,
		log:    o.log,
	}
	s.timer = time.AfterFunc(o.IdleTimeout, func() {
		s.timedOut.Store(true)
		cancel()
	})

	url := o.BaseURL + constant.OllamaChatEndpoint
	req, err := http.NewRequestWithContext(streamCtx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("connect to ollama: %w: %v", llm.ErrBackendUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		s.Close()
		return nil, fmt.Errorf("ollama status %d, body: %s: %w", resp.StatusCode, string(bodyBytes), llm.ErrBackendUnavailable)
	}

	s.body = resp.Body
	s.scanner = bufio.NewScanner(resp.Body)
	s.scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return s, nil
}

// fragmentStream reads NDJSON frames off the open response body. The idle
// timer is reset on each received frame and cancels the request context
// when it fires.
type fragmentStream struct {
	body      io.ReadCloser
	scanner   *bufio.Scanner
	idle      time.Duration
	timer     *time.Timer
	cancel    context.CancelFunc
	timedOut  atomic.Bool
	closeOnce sync.Once
	log       logger.ILogger
}

func (s *fragmentStream) Next() (llm.Fragment, error) {
	for s.scanner.Scan() {
		s.timer.Reset(s.idle)

		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk ollamaChatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			// Malformed frame: skip it, keep the stream alive.
			if s.log != nil {
				s.log.Warn("ollama", "skipping malformed stream frame", map[string]interface{}{
					"error": err.Error(),
					"frame": string(line),
				})
			}
			continue
		}

		return llm.Fragment{Content: chunk.Message.Content, Final: chunk.Done}, nil
	}

	if err := s.scanner.Err(); err != nil {
		if s.timedOut.Load() {
			return llm.Fragment{}, fmt.Errorf("no data for %s: %w", s.idle, llm.ErrBackendTimeout)
		}
		return llm.Fragment{}, fmt.Errorf("read stream: %w: %v", llm.ErrBackendUnavailable, err)
	}

	return llm.Fragment{}, io.EOF
}

func (s *fragmentStream) Close() error {
	s.closeOnce.Do(func() {
		s.timer.Stop()
		s.cancel()
		if s.body != nil {
			s.body.Close()
		}
	})
	return nil
}
