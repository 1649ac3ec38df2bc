package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"

	// DefaultChatTitle is used when a chat is created without a first message.
	DefaultChatTitle = "New Chat"

	// ChatTitleMaxLen caps the title derived from the first user message.
	ChatTitleMaxLen = 50

	OllamaDefaultBaseURL = "http://localhost:11434"
	OllamaDefaultModel   = "gemma:2b"
	OllamaChatEndpoint   = "/api/chat"

	// ExchangeCompletedTopic is the in-process topic the relay publishes to
	// after both sides of an exchange are durably recorded.
	ExchangeCompletedTopic = "CHAT_EXCHANGE_COMPLETED"
)
