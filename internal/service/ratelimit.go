package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/domain"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/log"
)

// limits returns the per-minute and per-day quota of a tier. Unknown tiers
// get the free quota.
func (s *Service) limits(tier domain.RateLimitTier) (rpm, rpd int, limited bool) {
	switch tier {
	case domain.RateLimitTierUnlimited:
		return 0, 0, false
	case domain.RateLimitTierPro:
		return s.config.ProTierRPM, s.config.ProTierRPD, true
	default:
		return s.config.FreeTierRPM, s.config.FreeTierRPD, true
	}
}

// CheckRateLimit returns a *RateLimitError when user has used up the
// minute or day quota of its tier.
func (s *Service) CheckRateLimit(ctx context.Context, user *domain.User) error {
	rpm, rpd, limited := s.limits(user.RateLimitTier)
	if !limited {
		return nil
	}
	now := s.now()

	count, err := s.store.CountUsageSince(ctx, user.ID, now.Add(-time.Minute))
	if err != nil {
		return fmt.Errorf("failed to count usage: %w", err)
	}
	if count >= rpm {
		return &RateLimitError{Limit: rpm, Window: "minute"}
	}

	count, err = s.store.CountUsageSince(ctx, user.ID, now.Add(-24*time.Hour))
	if err != nil {
		return fmt.Errorf("failed to count usage: %w", err)
	}
	if count >= rpd {
		return &RateLimitError{Limit: rpd, Window: "day"}
	}
	return nil
}

// LogUsage appends a usage row. Failures are logged only.
func (s *Service) LogUsage(ctx context.Context, userID, action string, tokens *int, cost *float64) {
	if _, err := s.store.CreateUsageLog(ctx, userID, action, tokens, cost); err != nil {
		log.Errorf("failed to log usage %s for %s: %v", action, userID, err)
	}
}
