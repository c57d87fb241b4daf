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

// AnalysisSnapshot is the set of JSON columns replaced on a conversation
// after a completed turn. Nil fields are left untouched.
type AnalysisSnapshot struct {
	EmotionalState datatypes.JSON
	Biases         datatypes.JSON
	Patterns       datatypes.JSON
	Insights       datatypes.JSON
}

type ConversationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, conv *types.Conversation) (*types.Conversation, error)
	GetByIDForUser(ctx context.Context, tx *gorm.DB, id uuid.UUID, userID string) (*types.Conversation, error)
	GetByIDForUserWithMessages(ctx context.Context, tx *gorm.DB, id uuid.UUID, userID string) (*types.Conversation, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID string, offset, limit int) ([]*types.Conversation, error)
	CountByUser(ctx context.Context, tx *gorm.DB, userID string) (int64, error)
	UpdateTitle(ctx context.Context, tx *gorm.DB, id uuid.UUID, title string) (*types.Conversation, error)
	UpdateAnalysis(ctx context.Context, tx *gorm.DB, id uuid.UUID, snap AnalysisSnapshot, at time.Time) error
	UpdateEmotionalState(ctx context.Context, tx *gorm.DB, id uuid.UUID, state datatypes.JSON, at time.Time) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type conversationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
	return &conversationRepo{db: db, log: baseLog.With("repo", "ConversationRepo")}
}

func (cr *conversationRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return cr.db
}

func (cr *conversationRepo) Create(ctx context.Context, tx *gorm.DB, conv *types.Conversation) (*types.Conversation, error) {
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	if err := cr.conn(tx).WithContext(ctx).Create(conv).Error; err != nil {
		return nil, err
	}
	return conv, nil
}

func (cr *conversationRepo) GetByIDForUser(ctx context.Context, tx *gorm.DB, id uuid.UUID, userID string) (*types.Conversation, error) {
	var conv types.Conversation
	err := cr.conn(tx).WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (cr *conversationRepo) GetByIDForUserWithMessages(ctx context.Context, tx *gorm.DB, id uuid.UUID, userID string) (*types.Conversation, error) {
	var conv types.Conversation
	err := cr.conn(tx).WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ? AND user_id = ?", id, userID).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (cr *conversationRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID string, offset, limit int) ([]*types.Conversation, error) {
	var convs []*types.Conversation
	err := cr.conn(tx).WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC").Limit(1)
		}).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}

func (cr *conversationRepo) CountByUser(ctx context.Context, tx *gorm.DB, userID string) (int64, error) {
	var count int64
	err := cr.conn(tx).WithContext(ctx).
		Model(&types.Conversation{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

func (cr *conversationRepo) UpdateTitle(ctx context.Context, tx *gorm.DB, id uuid.UUID, title string) (*types.Conversation, error) {
	if err := cr.conn(tx).WithContext(ctx).
		Model(&types.Conversation{}).
		Where("id = ?", id).
		Update("title", title).Error; err != nil {
		return nil, err
	}
	var conv types.Conversation
	if err := cr.conn(tx).WithContext(ctx).Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (cr *conversationRepo) UpdateAnalysis(ctx context.Context, tx *gorm.DB, id uuid.UUID, snap AnalysisSnapshot, at time.Time) error {
	updates := map[string]any{
		"updated_at":          at,
		"analysis_updated_at": at,
	}
	if snap.EmotionalState != nil {
		updates["emotional_state"] = snap.EmotionalState
	}
	if snap.Biases != nil {
		updates["biases"] = snap.Biases
	}
	if snap.Patterns != nil {
		updates["patterns"] = snap.Patterns
	}
	if snap.Insights != nil {
		updates["insights"] = snap.Insights
	}
	return cr.conn(tx).WithContext(ctx).
		Model(&types.Conversation{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (cr *conversationRepo) UpdateEmotionalState(ctx context.Context, tx *gorm.DB, id uuid.UUID, state datatypes.JSON, at time.Time) error {
	return cr.conn(tx).WithContext(ctx).
		Model(&types.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"emotional_state": state,
			"updated_at":      at,
		}).Error
}

func (cr *conversationRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	// Messages go with the conversation via ON DELETE CASCADE.
	return cr.conn(tx).WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.Conversation{}).Error
}
