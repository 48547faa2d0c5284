package modelgw

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ent0n29/claudegram/internal/session"
)

// OpenAI drives the Chat Completions API for users who authenticate with an
// OpenAI key instead of an Anthropic one.
type OpenAI struct {
	model      openai.ChatModel
	httpClient *http.Client
}

func NewOpenAI(model string) *OpenAI {
	return &OpenAI{
		model:      openai.ChatModel(model),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

func (g *OpenAI) Provider() string { return ProviderOpenAI }

func (g *OpenAI) Complete(ctx context.Context, credential string, req Request) (string, error) {
	client := g.client(credential)

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Turns)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, turn := range req.Turns {
		switch turn.Role {
		case session.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		default:
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               g.model,
		Messages:            messages,
		Temperature:         openai.Float(req.Temperature),
		MaxCompletionTokens: openai.Int(req.MaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errors.New("openai api returned no text content")
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *OpenAI) Validate(ctx context.Context, credential string) error {
	client := g.client(credential)

	_, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               g.model,
		Messages:            []openai.ChatCompletionMessageParamUnion{openai.UserMessage("Hi")},
		MaxCompletionTokens: openai.Int(10),
	})
	if err != nil {
		return fmt.Errorf("openai credential probe: %w", err)
	}
	return nil
}

func (g *OpenAI) client(credential string) *openai.Client {
	client := openai.NewClient(
		option.WithAPIKey(credential),
		option.WithHTTPClient(g.httpClient),
	)
	return &client
}
