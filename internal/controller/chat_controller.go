package controller

import (
	"bufio"

	"ollama-chat-be/internal/dto"
	"ollama-chat-be/internal/pkg/serverutils"
	"ollama-chat-be/internal/service"
	"ollama-chat-be/pkg/relay"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	GetAllChats(ctx *fiber.Ctx) error
	CreateChat(ctx *fiber.Ctx) error
	GetChatHistory(ctx *fiber.Ctx) error
	RenameChat(ctx *fiber.Ctx) error
	SendMessage(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService  service.IChatService
	relayService service.IRelayService
}

func NewChatController(chatService service.IChatService, relayService service.IRelayService) IChatController {
	return &chatController{
		chatService:  chatService,
		relayService: relayService,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	r.Get("/chats", c.GetAllChats)
	r.Post("/chat", c.CreateChat)
	r.Get("/chat/:chatId", c.GetChatHistory)
	r.Patch("/chat/:chatId", c.RenameChat)
	r.Post("/chat/:chatId/message", c.SendMessage)
}

func (c *chatController) GetAllChats(ctx *fiber.Ctx) error {
	res, err := c.chatService.GetAllChats(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}

func (c *chatController) CreateChat(ctx *fiber.Ctx) error {
	var req dto.CreateChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewValidationError("Invalid request body")
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return err
	}

	res, err := c.chatService.CreateChat(ctx.Context(), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(res)
}

func (c *chatController) GetChatHistory(ctx *fiber.Ctx) error {
	chatId, err := parseChatId(ctx)
	if err != nil {
		return err
	}

	res, err := c.chatService.GetChatHistory(ctx.Context(), chatId)
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}

func (c *chatController) RenameChat(ctx *fiber.Ctx) error {
	chatId, err := parseChatId(ctx)
	if err != nil {
		return err
	}

	var req dto.RenameChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewValidationError("Invalid request body")
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return err
	}

	res, err := c.chatService.RenameChat(ctx.Context(), chatId, req.Title)
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}

// SendMessage is the streaming endpoint. Everything that can still fail
// with a JSON error happens before the response is switched to an event
// stream; after that, failures only terminate the stream early.
func (c *chatController) SendMessage(ctx *fiber.Ctx) error {
	chatId, err := parseChatId(ctx)
	if err != nil {
		return err
	}

	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewValidationError("Message content is required")
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return err
	}

	exchange, err := c.relayService.OpenExchange(ctx.Context(), chatId, req.Content)
	if err != nil {
		return err
	}

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")

	// The writer runs after this handler returns; the fasthttp request
	// context stays valid for the lifetime of the body stream.
	reqCtx := ctx.Context()
	reqCtx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		exchange.Stream(reqCtx, relay.NewSSESink(w))
	}))

	return nil
}

func parseChatId(ctx *fiber.Ctx) (uuid.UUID, error) {
	chatId, err := uuid.Parse(ctx.Params("chatId"))
	if err != nil {
		return uuid.Nil, serverutils.NewValidationError("Invalid chat id")
	}
	return chatId, nil
}
