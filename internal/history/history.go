// Package history provides conversation history for follow-up queries.
// It ships a SQLite-backed store; remote conversation services satisfy the
// same Provider interface.
package history

import (
	"context"

	"github.com/normanking/glance/pkg/types"
)

// Provider is the conversation-history collaborator.
type Provider interface {
	// Recent returns up to limit messages for a session, oldest first.
	Recent(ctx context.Context, sessionID string, limit int) ([]types.Message, error)
}

// Recorder accepts new conversation turns.
type Recorder interface {
	Append(ctx context.Context, sessionID string, msg types.Message) error
}

// Func adapts a closure to the Provider interface.
type Func func(ctx context.Context, sessionID string, limit int) ([]types.Message, error)

// Recent implements Provider.
func (f Func) Recent(ctx context.Context, sessionID string, limit int) ([]types.Message, error) {
	return f(ctx, sessionID, limit)
}
