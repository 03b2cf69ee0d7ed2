// Package idempotency makes at-least-once delivery safe. Every stage claims
// its deterministic message ID before doing work; a second delivery of the
// same message finds the claim and is absorbed without side effects.
package idempotency

import (
	"context"
	"time"
)

// DefaultTTL bounds how long a claim suppresses redelivery.
const DefaultTTL = 24 * time.Hour

// Guard is a keyed duplicate-suppression store with expiry.
type Guard interface {
	// TryClaim atomically records messageID if no live claim exists.
	// It returns true when this call performed the insert (caller proceeds)
	// and false when a non-expired claim was already present (caller skips).
	TryClaim(ctx context.Context, messageID string) (bool, error)

	// Release drops a claim so broker redelivery can reprocess the message.
	// Called only when handling failed with a transport-level error; semantic
	// failures keep their claim.
	Release(ctx context.Context, messageID string) error
}
