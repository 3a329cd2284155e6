package repository

import (
	"context"
	"time"
)

// ThrottleRepository counts issuance attempts inside a fixed window. The
// resend cooldown is a security control and lives server-side, keyed by
// subject and purpose, independent of any client state.
type ThrottleRepository interface {
	// Allow increments the counter for key and reports whether the count is
	// still within limit for the window. The first hit in a window arms its
	// expiry.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
