package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	redisclient "github.com/matchahq/matcha-backend/internal/clients/redis"
	"github.com/matchahq/matcha-backend/internal/logger"
	"github.com/matchahq/matcha-backend/internal/repos"
	"github.com/matchahq/matcha-backend/internal/types"
)

const (
	// FreeTierMonthlyMessages is the FREE tier chat quota per calendar month.
	FreeTierMonthlyMessages = 50
	// FreeTierMonthlyAnalyses is the independent one-shot analysis quota.
	FreeTierMonthlyAnalyses = 3

	usageCacheTTL = 60 * time.Second
)

// UsageService tracks and enforces the rolling monthly quotas. It is
// tier-agnostic counting logic; callers gate PRO before calling the
// consume methods.
type UsageService interface {
	// CheckAndConsumeChat is the authoritative admission gate for a chat
	// message: lazily creates the counter row, resets it if the month
	// boundary passed, then atomically increments-if-below-limit.
	CheckAndConsumeChat(ctx context.Context, userID string) (bool, error)

	// CheckAndConsumeAnalysis is the same gate for the one-shot analysis
	// feature (separate counter, separate limit).
	CheckAndConsumeAnalysis(ctx context.Context, userID string) (bool, error)

	// RemainingMessages is advisory/display-only: nil for PRO (unlimited),
	// otherwise max(0, limit-count). Cached briefly; staleness is fine
	// because CheckAndConsumeChat is the authoritative check.
	RemainingMessages(ctx context.Context, userID string, tier types.Tier) (*int, error)
}

type usageService struct {
	db    *gorm.DB
	log   *logger.Logger
	repo  repos.UsageLimitRepo
	cache redisclient.CacheService

	now func() time.Time
}

func NewUsageService(db *gorm.DB, baseLog *logger.Logger, repo repos.UsageLimitRepo, cache redisclient.CacheService) UsageService {
	return &usageService{
		db:    db,
		log:   baseLog.With("service", "UsageService"),
		repo:  repo,
		cache: cache,
		now:   time.Now,
	}
}

// nextMonthReset is the first instant of the calendar month after `now`,
// server-local time.
func nextMonthReset(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, now.Location())
}

func (us *usageService) ensureFresh(ctx context.Context, userID string) (*types.UsageLimit, error) {
	now := us.now()

	row, err := us.repo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("load usage limit: %w", err)
	}
	if row == nil {
		row, err = us.repo.Create(ctx, nil, &types.UsageLimit{
			UserID:       userID,
			MonthResetAt: nextMonthReset(now),
		})
		if err != nil {
			return nil, fmt.Errorf("create usage limit: %w", err)
		}
		return row, nil
	}

	if !now.Before(row.MonthResetAt) {
		if err := us.repo.ResetIfDue(ctx, nil, userID, now, nextMonthReset(now)); err != nil {
			return nil, fmt.Errorf("reset usage limit: %w", err)
		}
		row, err = us.repo.GetByUserID(ctx, nil, userID)
		if err != nil || row == nil {
			return nil, fmt.Errorf("reload usage limit after reset: %w", err)
		}
	}
	return row, nil
}

func (us *usageService) CheckAndConsumeChat(ctx context.Context, userID string) (bool, error) {
	row, err := us.ensureFresh(ctx, userID)
	if err != nil {
		return false, err
	}
	if row.ChatMessagesThisMonth >= FreeTierMonthlyMessages {
		return false, nil
	}

	allowed, err := us.repo.IncrementChatIfBelow(ctx, nil, userID, FreeTierMonthlyMessages)
	if err != nil {
		return false, fmt.Errorf("increment chat usage: %w", err)
	}
	if allowed {
		us.invalidateCache(ctx, userID)
	}
	return allowed, nil
}

func (us *usageService) CheckAndConsumeAnalysis(ctx context.Context, userID string) (bool, error) {
	row, err := us.ensureFresh(ctx, userID)
	if err != nil {
		return false, err
	}
	if row.AnalysesThisMonth >= FreeTierMonthlyAnalyses {
		return false, nil
	}
	if err := us.repo.IncrementAnalyses(ctx, nil, userID, nextMonthReset(us.now())); err != nil {
		return false, fmt.Errorf("increment analysis usage: %w", err)
	}
	return true, nil
}

func (us *usageService) RemainingMessages(ctx context.Context, userID string, tier types.Tier) (*int, error) {
	if tier == types.TierPro {
		return nil, nil
	}

	cacheKey := us.cacheKey(userID)
	if us.cache != nil {
		var cached int
		if hit, _ := us.cache.Get(ctx, cacheKey, &cached); hit {
			return &cached, nil
		}
	}

	row, err := us.repo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("load usage limit: %w", err)
	}

	remaining := FreeTierMonthlyMessages
	if row != nil && us.now().Before(row.MonthResetAt) {
		remaining = FreeTierMonthlyMessages - row.ChatMessagesThisMonth
		if remaining < 0 {
			remaining = 0
		}
	}

	if us.cache != nil {
		_ = us.cache.Set(ctx, cacheKey, remaining, usageCacheTTL)
	}
	return &remaining, nil
}

func (us *usageService) cacheKey(userID string) string {
	if us.cache != nil {
		return us.cache.GenerateKey("usage", userID, "remaining")
	}
	return "usage:" + userID + ":remaining"
}

func (us *usageService) invalidateCache(ctx context.Context, userID string) {
	if us.cache != nil {
		_ = us.cache.Del(ctx, us.cacheKey(userID))
	}
}
