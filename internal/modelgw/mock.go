package modelgw

import (
	"context"
	"fmt"
	"sync"
)

// Mock provides deterministic local replies for tests and offline runs.
type Mock struct {
	ProviderName string

	mu          sync.Mutex
	Reply       string
	CompleteErr error
	ValidateErr error

	CompleteCalls []Request
	Credentials   []string
	Validated     []string
}

func NewMock(provider string) *Mock {
	return &Mock{ProviderName: provider}
}

func (m *Mock) Provider() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

func (m *Mock) Complete(ctx context.Context, credential string, req Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteCalls = append(m.CompleteCalls, req)
	m.Credentials = append(m.Credentials, credential)
	if m.CompleteErr != nil {
		return "", m.CompleteErr
	}
	if m.Reply != "" {
		return m.Reply, nil
	}
	if len(req.Turns) == 0 {
		return "I am listening.", nil
	}
	return fmt.Sprintf("I heard you: %s", req.Turns[len(req.Turns)-1].Content), nil
}

func (m *Mock) Validate(_ context.Context, credential string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Validated = append(m.Validated, credential)
	return m.ValidateErr
}
