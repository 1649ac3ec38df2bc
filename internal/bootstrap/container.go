package bootstrap

import (
	"context"
	"log"

	"ollama-chat-be/internal/config"
	"ollama-chat-be/internal/constant"
	"ollama-chat-be/internal/controller"
	"ollama-chat-be/internal/pkg/logger"
	"ollama-chat-be/internal/repository/cache"
	"ollama-chat-be/internal/repository/memory"
	"ollama-chat-be/internal/repository/unitofwork"
	"ollama-chat-be/internal/service"
	"ollama-chat-be/pkg/llm/ollama"
	pktNats "ollama-chat-be/pkg/nats"
	"ollama-chat-be/pkg/relay"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController controller.IChatController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// Shared infrastructure, torn down on shutdown
	Logger        logger.ILogger
	NatsPublisher *pktNats.Publisher
	Redis         *redis.Client
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	// Buffered so a slow event consumer never stalls the request path.
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermillLogger,
	)

	// 3. Infrastructure
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)

	var historyCache *cache.HistoryCache
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v (history cache disabled)", err)
	} else {
		historyCache = cache.NewHistoryCache(rdb)
	}

	chatCache := memory.NewChatCache()

	// 4. LLM Provider
	llmProvider := ollama.NewOllamaProvider(
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.OllamaModel,
		cfg.Ai.StreamIdleTimeout,
		sysLogger,
	)
	log.Printf("[INFO] Using LLM Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)

	// 5. Services
	chatService := service.NewChatService(uowFactory, chatCache, historyCache, sysLogger)
	publisherService := service.NewPublisherService(pubSub, constant.ExchangeCompletedTopic)
	relayService := service.NewRelayService(
		chatService,
		llmProvider,
		relay.NewChatLocker(),
		publisherService,
		sysLogger,
	)
	consumerService := service.NewConsumerService(pubSub, constant.ExchangeCompletedTopic, natsPub, chatService, sysLogger)

	// 6. Controllers
	chatController := controller.NewChatController(chatService, relayService)

	return &Container{
		ChatController:  chatController,
		ConsumerService: consumerService,
		Logger:          sysLogger,
		NatsPublisher:   natsPub,
		Redis:           rdb,
	}
}

// Shutdown drains shared resources; safe to call once at process exit.
func (c *Container) Shutdown() {
	if c.NatsPublisher != nil {
		c.NatsPublisher.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}
