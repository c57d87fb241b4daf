package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/matchahq/matcha-backend/internal/logger"
	"github.com/matchahq/matcha-backend/internal/types"
)

// AnalysisResult holds the JSON columns written when the worker finishes.
type AnalysisResult struct {
	Biases         datatypes.JSON
	Patterns       datatypes.JSON
	Insights       datatypes.JSON
	EmotionalState datatypes.JSON
}

type AnalysisRepo interface {
	Create(ctx context.Context, tx *gorm.DB, a *types.Analysis) (*types.Analysis, error)
	GetByIDForUser(ctx context.Context, tx *gorm.DB, id uuid.UUID, userID string) (*types.Analysis, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID string, offset, limit int) ([]*types.Analysis, error)
	CountByUser(ctx context.Context, tx *gorm.DB, userID string) (int64, error)
	ListCompletedByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*types.Analysis, error)
	MarkProcessing(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	MarkCompleted(ctx context.Context, tx *gorm.DB, id uuid.UUID, result AnalysisResult, processingTime time.Duration) error
	MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, errMsg string) error
}

type analysisRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnalysisRepo(db *gorm.DB, baseLog *logger.Logger) AnalysisRepo {
	return &analysisRepo{db: db, log: baseLog.With("repo", "AnalysisRepo")}
}

func (ar *analysisRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return ar.db
}

func (ar *analysisRepo) Create(ctx context.Context, tx *gorm.DB, a *types.Analysis) (*types.Analysis, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if err := ar.conn(tx).WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

func (ar *analysisRepo) GetByIDForUser(ctx context.Context, tx *gorm.DB, id uuid.UUID, userID string) (*types.Analysis, error) {
	var a types.Analysis
	err := ar.conn(tx).WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (ar *analysisRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID string, offset, limit int) ([]*types.Analysis, error) {
	var rows []*types.Analysis
	err := ar.conn(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (ar *analysisRepo) CountByUser(ctx context.Context, tx *gorm.DB, userID string) (int64, error) {
	var count int64
	err := ar.conn(tx).WithContext(ctx).
		Model(&types.Analysis{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

func (ar *analysisRepo) ListCompletedByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*types.Analysis, error) {
	var rows []*types.Analysis
	err := ar.conn(tx).WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, types.AnalysisCompleted).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (ar *analysisRepo) MarkProcessing(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return ar.conn(tx).WithContext(ctx).
		Model(&types.Analysis{}).
		Where("id = ?", id).
		Update("status", types.AnalysisProcessing).Error
}

func (ar *analysisRepo) MarkCompleted(ctx context.Context, tx *gorm.DB, id uuid.UUID, result AnalysisResult, processingTime time.Duration) error {
	now := time.Now().UTC()
	ms := processingTime.Milliseconds()
	return ar.conn(tx).WithContext(ctx).
		Model(&types.Analysis{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":             types.AnalysisCompleted,
			"biases":             result.Biases,
			"patterns":           result.Patterns,
			"insights":           result.Insights,
			"emotional_state":    result.EmotionalState,
			"processing_time_ms": ms,
			"completed_at":       now,
			"updated_at":         now,
		}).Error
}

func (ar *analysisRepo) MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, errMsg string) error {
	return ar.conn(tx).WithContext(ctx).
		Model(&types.Analysis{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        types.AnalysisFailed,
			"error_message": errMsg,
			"updated_at":    time.Now().UTC(),
		}).Error
}
