package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ollama-chat-be/internal/dto"
	"ollama-chat-be/internal/entity"
	"ollama-chat-be/internal/pkg/logger"
	"ollama-chat-be/internal/pkg/serverutils"
	"ollama-chat-be/internal/service"
	"ollama-chat-be/pkg/llm"
	"ollama-chat-be/pkg/relay"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Fakes ---

type stubChatService struct {
	chats        []*dto.ChatResponse
	history      []*dto.MessageResponse
	createRes    *dto.ChatResponse
	renameRes    *dto.ChatResponse
	err          error
	userMessages []string
}

func (s *stubChatService) CreateChat(ctx context.Context, req *dto.CreateChatRequest) (*dto.ChatResponse, error) {
	return s.createRes, s.err
}

func (s *stubChatService) GetAllChats(ctx context.Context) ([]*dto.ChatResponse, error) {
	return s.chats, s.err
}

func (s *stubChatService) GetChatHistory(ctx context.Context, chatId uuid.UUID) ([]*dto.MessageResponse, error) {
	return s.history, s.err
}

func (s *stubChatService) RenameChat(ctx context.Context, chatId uuid.UUID, title string) (*dto.ChatResponse, error) {
	return s.renameRes, s.err
}

func (s *stubChatService) RecordUserMessage(ctx context.Context, chatId uuid.UUID, content string) (*entity.ChatMessage, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.userMessages = append(s.userMessages, content)
	return &entity.ChatMessage{Id: uuid.New(), ChatId: chatId, Role: "user", Content: content}, nil
}

func (s *stubChatService) RecordAssistantMessage(ctx context.Context, chatId uuid.UUID, content string) (uuid.UUID, error) {
	if s.err != nil {
		return uuid.Nil, s.err
	}
	return uuid.New(), nil
}

func (s *stubChatService) BackfillTitle(ctx context.Context, chatId uuid.UUID) error {
	return s.err
}

type stubStream struct {
	fragments []llm.Fragment
	pos       int
}

func (s *stubStream) Next() (llm.Fragment, error) {
	if s.pos >= len(s.fragments) {
		return llm.Fragment{}, io.EOF
	}
	f := s.fragments[s.pos]
	s.pos++
	return f, nil
}

func (s *stubStream) Close() error { return nil }

type stubProvider struct {
	stream  *stubStream
	openErr error
}

func (p *stubProvider) OpenStream(ctx context.Context, history []llm.Message) (llm.FragmentStream, error) {
	if p.openErr != nil {
		return nil, p.openErr
	}
	return p.stream, nil
}

func newTestApp(chats service.IChatService, provider llm.StreamProvider) *fiber.App {
	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware(logger.NewNopLogger()))

	relaySvc := service.NewRelayService(chats, provider, relay.NewChatLocker(), nil, logger.NewNopLogger())
	ctrl := NewChatController(chats, relaySvc)
	ctrl.RegisterRoutes(app.Group("/api"))
	return app
}

func decodeErrorBody(t *testing.T, body io.Reader) serverutils.ErrorBody {
	t.Helper()
	var eb serverutils.ErrorBody
	require.NoError(t, json.NewDecoder(body).Decode(&eb))
	return eb
}

// --- Tests ---

func TestGetAllChatsReturnsList(t *testing.T) {
	chats := &stubChatService{chats: []*dto.ChatResponse{
		{Id: uuid.New(), Title: "Trip planning", CreatedAt: time.Now()},
	}}
	app := newTestApp(chats, &stubProvider{})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/chats", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got []dto.ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "Trip planning", got[0].Title)
}

func TestCreateChatReturns201(t *testing.T) {
	created := &dto.ChatResponse{Id: uuid.New(), Title: "What is Go?", CreatedAt: time.Now()}
	app := newTestApp(&stubChatService{createRes: created}, &stubProvider{})

	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(`{"firstMessage":"What is Go?"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var got dto.ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, created.Id, got.Id)
}

func TestGetChatHistoryInvalidId(t *testing.T) {
	app := newTestApp(&stubChatService{}, &stubProvider{})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/chat/not-a-uuid", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid chat id", decodeErrorBody(t, resp.Body).Error)
}

func TestGetChatHistoryUnknownChat(t *testing.T) {
	app := newTestApp(&stubChatService{err: service.ErrChatNotFound}, &stubProvider{})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/chat/"+uuid.NewString(), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Chat not found", decodeErrorBody(t, resp.Body).Error)
}

func TestRenameChatRequiresTitle(t *testing.T) {
	app := newTestApp(&stubChatService{}, &stubProvider{})

	req := httptest.NewRequest("PATCH", "/api/chat/"+uuid.NewString(), strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body := decodeErrorBody(t, resp.Body)
	assert.Contains(t, body.Error, "Title")
	assert.Contains(t, body.Error, "required")
}

func TestRenameChatSuccess(t *testing.T) {
	renamed := &dto.ChatResponse{Id: uuid.New(), Title: "New title"}
	app := newTestApp(&stubChatService{renameRes: renamed}, &stubProvider{})

	req := httptest.NewRequest("PATCH", "/api/chat/"+uuid.NewString(), strings.NewReader(`{"title":"New title"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got dto.ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "New title", got.Title)
}

func TestSendMessageEmptyContent(t *testing.T) {
	app := newTestApp(&stubChatService{}, &stubProvider{})

	req := httptest.NewRequest("POST", "/api/chat/"+uuid.NewString()+"/message", strings.NewReader(`{"content":""}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body := decodeErrorBody(t, resp.Body)
	assert.Contains(t, body.Error, "Content")
	assert.Contains(t, body.Error, "required")
}

func TestSendMessageWhitespaceContent(t *testing.T) {
	// Non-empty but blank content passes tag validation and is rejected by
	// the orchestrator before anything is written.
	chats := &stubChatService{}
	app := newTestApp(chats, &stubProvider{})

	req := httptest.NewRequest("POST", "/api/chat/"+uuid.NewString()+"/message", strings.NewReader(`{"content":"   "}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Message content is required", decodeErrorBody(t, resp.Body).Error)
	assert.Empty(t, chats.userMessages)
}

func TestSendMessageUnknownChat(t *testing.T) {
	app := newTestApp(&stubChatService{err: service.ErrChatNotFound}, &stubProvider{})

	req := httptest.NewRequest("POST", "/api/chat/"+uuid.NewString()+"/message", strings.NewReader(`{"content":"hi"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestSendMessageBackendDown(t *testing.T) {
	app := newTestApp(&stubChatService{}, &stubProvider{openErr: llm.ErrBackendUnavailable})

	req := httptest.NewRequest("POST", "/api/chat/"+uuid.NewString()+"/message", strings.NewReader(`{"content":"hi"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "Failed to reach inference backend", decodeErrorBody(t, resp.Body).Error)
}

func TestSendMessageStreamsSSE(t *testing.T) {
	chats := &stubChatService{}
	provider := &stubProvider{stream: &stubStream{fragments: []llm.Fragment{
		{Content: "Hel"},
		{Content: "lo"},
		{Content: "", Final: true},
	}}}
	app := newTestApp(chats, provider)

	req := httptest.NewRequest("POST", "/api/chat/"+uuid.NewString()+"/message", strings.NewReader(`{"content":"hi"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 2000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get(fiber.HeaderContentType))
	assert.Equal(t, "no-cache", resp.Header.Get(fiber.HeaderCacheControl))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "data: {\"content\":\"Hel\"}\n\ndata: {\"content\":\"lo\"}\n\n", string(body))

	assert.Equal(t, []string{"hi"}, chats.userMessages)
}

func TestSendMessageMalformedBody(t *testing.T) {
	app := newTestApp(&stubChatService{}, &stubProvider{})

	req := httptest.NewRequest("POST", "/api/chat/"+uuid.NewString()+"/message", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
