package store

import (
	"context"
	"time"

	"github.com/nhle/mail-agent/internal/agent"
)

// ActionFilter narrows an action journal query.
type ActionFilter struct {
	SessionID string // empty matches every session
	Kind      string // kind name such as "ReadMail", empty matches every kind
	Limit     int    // 0 means DefaultActionLimit
}

// DefaultActionLimit caps ListActions when no limit is given.
const DefaultActionLimit = 50

// ActionRecord is one journaled tool call.
type ActionRecord struct {
	ID         string    `db:"id" json:"id"`
	SessionID  string    `db:"session_id" json:"sessionId"`
	Kind       string    `db:"kind" json:"kind"`
	Target     string    `db:"target" json:"target,omitempty"`
	OK         bool      `db:"ok" json:"ok"`
	Outcome    string    `db:"outcome" json:"outcome"`
	DurationMS int64     `db:"duration_ms" json:"durationMs"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Store is the audit journal of dispatched mailbox actions.
type Store interface {
	agent.Journal

	ListActions(ctx context.Context, filter ActionFilter) ([]ActionRecord, error)
	PruneActions(ctx context.Context, before time.Time) (int64, error)
	Close() error
}
