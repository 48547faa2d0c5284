package session

import (
	"context"
	"strings"
)

// NewStore selects the backing store: postgres when a database URL is
// configured, a JSON snapshot file when a state path is configured, otherwise
// in-memory.
func NewStore(ctx context.Context, databaseURL, stateFile string) (Store, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresStore(ctx, databaseURL)
	}
	if strings.TrimSpace(stateFile) != "" {
		return NewFileStore(stateFile)
	}
	return NewMemoryStore(), nil
}
