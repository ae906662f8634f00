package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"presales/internal/config"
	"presales/internal/models"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// ErrCompletion marks any failure of the completion capability.
var ErrCompletion = errors.New("completion failed")

// Completer turns an ordered message list into the next assistant reply.
type Completer interface {
	Complete(ctx context.Context, messages []models.Message, temperature float32, maxTokens int) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, messages []models.Message, temperature float32, maxTokens int) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, messages []models.Message, temperature float32, maxTokens int) (string, error) {
	return f(ctx, messages, temperature, maxTokens)
}

// Client is a Completer backed by an eino chat model.
type Client struct {
	chatModel model.BaseChatModel
	provider  string
}

// NewClient wraps an existing chat model.
func NewClient(chatModel model.BaseChatModel, provider string) *Client {
	return &Client{chatModel: chatModel, provider: provider}
}

// NewFromConfig builds the chat model for the configured provider.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Client, error) {
	provider := cfg.Chat.Provider
	provCfg, ok := cfg.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", provider)
	}
	if provCfg.APIKey == "" {
		return nil, fmt.Errorf("provider %s: api_key is required", provider)
	}

	var (
		chatModel model.BaseChatModel
		err       error
	)
	switch provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   provCfg.Model,
			APIKey:  provCfg.APIKey,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: provCfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  provCfg.Model,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     provCfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: cfg.Chat.MaxTokens,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", provider, err)
	}
	return NewClient(chatModel, provider), nil
}

// Complete sends the messages to the chat model and returns the reply text.
// Every failure is wrapped in ErrCompletion.
func (c *Client) Complete(ctx context.Context, messages []models.Message, temperature float32, maxTokens int) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("%w: no messages", ErrCompletion)
	}
	opts := []model.Option{model.WithTemperature(temperature)}
	if maxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(maxTokens))
	}
	out, err := c.chatModel.Generate(ctx, ConvertMessages(messages), opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %s generate: %v", ErrCompletion, c.provider, err)
	}
	if out == nil {
		return "", fmt.Errorf("%w: %s returned no message", ErrCompletion, c.provider)
	}
	return strings.TrimSpace(out.Content), nil
}

// ConvertMessages maps conversation messages onto eino schema messages.
func ConvertMessages(history []models.Message) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		var role schema.RoleType
		switch msg.Role {
		case models.RoleUser:
			role = schema.User
		case models.RoleAssistant:
			role = schema.Assistant
		case models.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}

		messages = append(messages, &schema.Message{
			Role:    role,
			Content: msg.Content,
		})
	}
	return messages
}
