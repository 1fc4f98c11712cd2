// Package bodystore defines the pluggable message-body persistence contract
// the queue runtime consults; concrete backends live under
// internal/adapters/bodystore.
package bodystore

import (
	"context"

	"github.com/riverbus/envelope/internal/esb/message"
	"github.com/riverbus/envelope/internal/esb/transaction"
)

// Provider persists and reloads message bodies keyed by message id. A bus
// may run with no provider at all, in which case AllowMessagePersistence
// always reports false and messages carry their own body inline.
type Provider interface {
	SaveToStorage(ctx context.Context, msgs []*message.Message, tx *transaction.Controller) error
	LoadFromStorage(ctx context.Context, msg *message.Message, tx *transaction.Controller) ([]byte, error)
	SaveReplyToStorage(ctx context.Context, messageID string, reply []byte, tx *transaction.Controller) error
}

// AllowMessagePersistence implements invariant 7: body persistence is
// attempted iff a provider exists and this returns true.
func AllowMessagePersistence(provider Provider, disabled bool, msg *message.Message) bool {
	if provider == nil {
		return false
	}
	if disabled || msg.DisabledMessagePersistence {
		return false
	}
	return msg.ContainsContent && !msg.HasSelfContent
}
