// Package mailbox defines the operations the agent performs against a
// mail provider and the helpers shared by every backend.
package mailbox

import (
	"context"

	"github.com/nhle/mail-agent/internal/model"
)

// DefaultListSize is the page size used when a caller asks for zero or
// fewer messages.
const DefaultListSize = 15

// MaxListSize caps a single listing.
const MaxListSize = 100

// Client performs list/read/send/trash against a mail provider. Every
// method returns an *AuthError when the provider rejects the current
// credentials.
type Client interface {
	ListRecent(ctx context.Context, maxResults int) ([]model.MessageSummary, error)
	Read(ctx context.Context, id string) (*model.Message, error)
	Send(ctx context.Context, draft model.Draft) (*model.SendReceipt, error)
	Trash(ctx context.Context, id string) (*model.TrashReceipt, error)
}

// ClampListSize applies the default and the upper bound to a requested
// page size.
func ClampListSize(n int) int {
	switch {
	case n <= 0:
		return DefaultListSize
	case n > MaxListSize:
		return MaxListSize
	default:
		return n
	}
}
