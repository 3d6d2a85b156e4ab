// Package sessions defines the trivial contract a stateless deployment
// needs to survive across process instances: a TTL-keyed "is this session
// initialized" flag. It replaces the dispatcher's default in-process
// monotonic boolean when a server runs behind a load balancer that may
// route a session's requests to a different process than the one that
// handled its initialize call.
package sessions

import (
	"context"
	"time"
)

// Store tracks per-session initialization state with a bounded lifetime.
type Store interface {
	// IsInitialized reports whether sessionID completed initialize and has
	// not yet expired.
	IsInitialized(ctx context.Context, sessionID string) (bool, error)
	// MarkInitialized records that sessionID completed initialize, valid
	// for ttl.
	MarkInitialized(ctx context.Context, sessionID string, ttl time.Duration) error
}
