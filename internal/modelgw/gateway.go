// Package modelgw adapts hosted language-model APIs behind a single Gateway
// interface so the relay core never branches on provider SDKs.
package modelgw

import (
	"context"
	"fmt"
	"strings"

	"github.com/ent0n29/claudegram/internal/session"
)

// Provider identifiers. The anthropic prefix check must run before the openai
// one: every Anthropic key also carries the bare "sk-" prefix.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"

	anthropicKeyPrefix = "sk-ant-"
	openAIKeyPrefix    = "sk-"
)

// Request carries everything a completion call needs besides the credential.
type Request struct {
	System      string
	Turns       []session.Turn
	MaxTokens   int64
	Temperature float64
}

// Gateway is the minimal surface the relay core drives.
type Gateway interface {
	// Complete returns the assistant reply for the bounded history.
	Complete(ctx context.Context, credential string, req Request) (string, error)
	// Validate performs a minimal live call proving the credential works.
	Validate(ctx context.Context, credential string) error
	Provider() string
}

// CredentialProvider reports which provider a raw credential belongs to, or
// "" when the text does not look like an API key at all.
func CredentialProvider(text string) string {
	switch {
	case strings.HasPrefix(text, anthropicKeyPrefix):
		return ProviderAnthropic
	case strings.HasPrefix(text, openAIKeyPrefix):
		return ProviderOpenAI
	default:
		return ""
	}
}

// Registry resolves gateways by provider name.
type Registry struct {
	gateways map[string]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway, len(gateways))}
	for _, gw := range gateways {
		r.gateways[gw.Provider()] = gw
	}
	return r
}

func (r *Registry) ForProvider(provider string) (Gateway, error) {
	gw, ok := r.gateways[provider]
	if !ok {
		return nil, fmt.Errorf("no gateway for provider %q", provider)
	}
	return gw, nil
}
