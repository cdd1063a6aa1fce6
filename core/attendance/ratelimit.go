package attendance

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

// RateLimiter throttles calls with a sliding window reconstructed from
// logged entries keyed by (identifier, endpoint).
//
// The count-then-insert pair is not atomic: two concurrent calls can both
// observe count < limit and both be admitted, so up to limit+1 calls may
// pass in the worst case. That is acceptable for coarse abuse control;
// attendance integrity is guaranteed separately by the check-in ledger's
// conditional insert.
type RateLimiter struct {
	repo ThrottleRepository
	log  core.Logger
}

func NewRateLimiter(repo ThrottleRepository, log core.Logger) *RateLimiter {
	return &RateLimiter{repo: repo, log: log}
}

// Allow reports whether the caller may proceed and, if so, logs the call so
// it counts against subsequent windows. Rejected attempts are not logged.
//
// Store failures fail open: attendance availability wins over strict
// throttling on this non-critical path, but the failure is reported.
func (rl *RateLimiter) Allow(ctx context.Context, identifier, endpoint string, limit int, window time.Duration) bool {
	now := nowFunc().UTC()

	count, err := rl.repo.CountCallsSince(ctx, identifier, endpoint, now.Add(-window))
	if err != nil {
		rl.log.Error("rate limiter failing open", errors.Wrap(err, "counting throttle entries"))
		return true
	}
	if count >= limit {
		return false
	}

	entry := ThrottleEntry{Identifier: identifier, Endpoint: endpoint, CreatedAt: now}
	if err := rl.repo.LogCall(ctx, entry); err != nil {
		rl.log.Error("rate limiter failing open", errors.Wrap(err, "logging throttle entry"))
	}
	return true
}
