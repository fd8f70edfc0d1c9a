package usecase

import (
	"context"
	"time"

	apikeyDomain "github.com/allisson/agentauth/internal/apikey/domain"
	apperrors "github.com/allisson/agentauth/internal/errors"
)

// slidingWindowRateLimiter enforces per-key ceilings by counting the key's
// usage log rows inside a trailing window. Counting rows instead of keeping
// counters in memory makes the limiter correct across replicas and restarts:
// the audit trail is the source of truth.
type slidingWindowRateLimiter struct {
	usageLogRepo UsageLogRepository
	nowFunc      func() time.Time
}

// CheckAndAdmit rejects the call with ErrRateLimited when admitting it would
// meet or exceed either configured ceiling. A key with no ceilings is always
// admitted. The minute window is checked first since it is the cheaper count.
func (s *slidingWindowRateLimiter) CheckAndAdmit(
	ctx context.Context,
	key *apikeyDomain.APIKey,
) error {
	now := s.nowFunc()

	// A key that cannot authenticate is never admitted, whatever its
	// counters say.
	if !key.Usable(now) {
		return apikeyDomain.ErrInvalidKey
	}

	if key.RateLimitPerMinute != nil {
		count, err := s.usageLogRepo.CountAdmittedSince(ctx, key.ID, now.Add(-time.Minute))
		if err != nil {
			return err
		}
		if count >= *key.RateLimitPerMinute {
			return apperrors.Wrapf(apperrors.ErrRateLimited, "per-minute limit of %d reached", *key.RateLimitPerMinute)
		}
	}

	if key.RateLimitPerHour != nil {
		count, err := s.usageLogRepo.CountAdmittedSince(ctx, key.ID, now.Add(-time.Hour))
		if err != nil {
			return err
		}
		if count >= *key.RateLimitPerHour {
			return apperrors.Wrapf(apperrors.ErrRateLimited, "per-hour limit of %d reached", *key.RateLimitPerHour)
		}
	}

	return nil
}

// NewSlidingWindowRateLimiter creates a RateLimiter backed by usage log rows.
func NewSlidingWindowRateLimiter(usageLogRepo UsageLogRepository) RateLimiter {
	return &slidingWindowRateLimiter{
		usageLogRepo: usageLogRepo,
		nowFunc:      func() time.Time { return time.Now().UTC() },
	}
}
