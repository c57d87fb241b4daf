package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/matchahq/matcha-backend/internal/logger"
	"github.com/matchahq/matcha-backend/internal/types"
)

type UsageLimitRepo interface {
	GetByUserID(ctx context.Context, tx *gorm.DB, userID string) (*types.UsageLimit, error)
	Create(ctx context.Context, tx *gorm.DB, row *types.UsageLimit) (*types.UsageLimit, error)
	// ResetIfDue zeroes both counters and advances month_reset_at, but only
	// when the stored boundary is still in the past. The guard makes the
	// reset idempotent under concurrent callers (never double-resets).
	ResetIfDue(ctx context.Context, tx *gorm.DB, userID string, now, nextReset time.Time) error
	// IncrementChatIfBelow is the atomic admission gate: one conditional
	// UPDATE whose rows-affected count says whether the message was
	// admitted. Concurrent calls can never both pass the limit.
	IncrementChatIfBelow(ctx context.Context, tx *gorm.DB, userID string, limit int) (bool, error)
	// IncrementAnalyses upserts the row and bumps the analysis counter.
	IncrementAnalyses(ctx context.Context, tx *gorm.DB, userID string, nextReset time.Time) error
}

type usageLimitRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUsageLimitRepo(db *gorm.DB, baseLog *logger.Logger) UsageLimitRepo {
	return &usageLimitRepo{db: db, log: baseLog.With("repo", "UsageLimitRepo")}
}

func (ul *usageLimitRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return ul.db
}

func (ul *usageLimitRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID string) (*types.UsageLimit, error) {
	var row types.UsageLimit
	err := ul.conn(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (ul *usageLimitRepo) Create(ctx context.Context, tx *gorm.DB, row *types.UsageLimit) (*types.UsageLimit, error) {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	// Another request may have created the row between our read and this
	// insert; ON CONFLICT DO NOTHING keeps the one-row-per-user invariant.
	if err := ul.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(row).Error; err != nil {
		return nil, err
	}
	return ul.GetByUserID(ctx, tx, row.UserID)
}

func (ul *usageLimitRepo) ResetIfDue(ctx context.Context, tx *gorm.DB, userID string, now, nextReset time.Time) error {
	return ul.conn(tx).WithContext(ctx).
		Model(&types.UsageLimit{}).
		Where("user_id = ? AND month_reset_at <= ?", userID, now).
		Updates(map[string]any{
			"chat_messages_this_month": 0,
			"analyses_this_month":      0,
			"month_reset_at":           nextReset,
			"updated_at":               now,
		}).Error
}

func (ul *usageLimitRepo) IncrementChatIfBelow(ctx context.Context, tx *gorm.DB, userID string, limit int) (bool, error) {
	res := ul.conn(tx).WithContext(ctx).
		Model(&types.UsageLimit{}).
		Where("user_id = ? AND chat_messages_this_month < ?", userID, limit).
		UpdateColumn("chat_messages_this_month", gorm.Expr("chat_messages_this_month + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (ul *usageLimitRepo) IncrementAnalyses(ctx context.Context, tx *gorm.DB, userID string, nextReset time.Time) error {
	res := ul.conn(tx).WithContext(ctx).
		Model(&types.UsageLimit{}).
		Where("user_id = ?", userID).
		UpdateColumn("analyses_this_month", gorm.Expr("analyses_this_month + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	_, err := ul.Create(ctx, tx, &types.UsageLimit{
		UserID:            userID,
		AnalysesThisMonth: 1,
		MonthResetAt:      nextReset,
	})
	return err
}
