// Package store provides durable persistence for chat sessions and messages.
package store

import (
	"context"
	"errors"

	"github.com/banterlabs/banter/pkg/types"
)

// ErrSessionNotFound is returned when a session ID has no stored record.
var ErrSessionNotFound = errors.New("session not found")

// Store persists the session list and per-session message logs. Values are
// saved wholesale: SaveSessions replaces the entire session list and
// SaveMessages replaces a session's entire log, matching the app's
// write-behind model where in-memory state is the source of truth.
type Store interface {
	// GetSessions loads all stored sessions in their saved order.
	GetSessions(ctx context.Context) ([]*types.Session, error)

	// SaveSessions replaces the stored session list.
	SaveSessions(ctx context.Context, sessions []*types.Session) error

	// GetMessages loads a session's message log in append order. A session
	// with no stored messages yields an empty slice, not an error.
	GetMessages(ctx context.Context, sessionID string) ([]*types.Message, error)

	// SaveMessages replaces a session's message log.
	SaveMessages(ctx context.Context, sessionID string, messages []*types.Message) error

	// DeleteSession removes a session record and its entire message log.
	DeleteSession(ctx context.Context, sessionID string) error

	// Close releases underlying resources.
	Close() error
}
