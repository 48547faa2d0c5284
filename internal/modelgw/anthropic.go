package modelgw

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ent0n29/claudegram/internal/session"
)

// probe settings mirror the minimal call the service has always used to test
// a key: one tiny haiku completion.
const (
	anthropicProbeModel     = "claude-3-haiku-20240307"
	anthropicProbeMaxTokens = 10
)

// Anthropic drives the Messages API. Clients are built per call because the
// credential belongs to the user's session, not to the process.
type Anthropic struct {
	model      anthropic.Model
	httpClient *http.Client
}

func NewAnthropic(model string) *Anthropic {
	return &Anthropic{
		model:      anthropic.Model(model),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

func (g *Anthropic) Provider() string { return ProviderAnthropic }

func (g *Anthropic) Complete(ctx context.Context, credential string, req Request) (string, error) {
	client := g.client(credential)

	params := anthropic.MessageNewParams{
		Model:       g.model,
		MaxTokens:   req.MaxTokens,
		Temperature: anthropic.Float(req.Temperature),
		Messages:    buildAnthropicMessages(req.Turns),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("anthropic api returned no text content")
	}
	return sb.String(), nil
}

func (g *Anthropic) Validate(ctx context.Context, credential string) error {
	client := g.client(credential)

	_, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(anthropicProbeModel),
		MaxTokens: anthropicProbeMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("Hi")),
		},
	})
	if err != nil {
		return fmt.Errorf("anthropic credential probe: %w", err)
	}
	return nil
}

func (g *Anthropic) client(credential string) *anthropic.Client {
	client := anthropic.NewClient(
		option.WithAPIKey(credential),
		option.WithHTTPClient(g.httpClient),
	)
	return &client
}

func buildAnthropicMessages(turns []session.Turn) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, turn := range turns {
		block := anthropic.NewTextBlock(turn.Content)
		switch turn.Role {
		case session.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(block))
		default:
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	return messages
}
