package ratelimit

import "context"

// RateLimiter paces outbound message delivery per scope.
type RateLimiter interface {
	Allow(ctx context.Context, scope string) (bool, error)
	Wait(ctx context.Context, scope string) error
}
