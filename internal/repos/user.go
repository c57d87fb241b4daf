package repos

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/matchahq/matcha-backend/internal/logger"
	"github.com/matchahq/matcha-backend/internal/types"
)

type UserRepo interface {
	Create(ctx context.Context, tx *gorm.DB, user *types.User) (*types.User, error)
	GetByID(ctx context.Context, tx *gorm.DB, userID string) (*types.User, error)
	GetByIDWithUsage(ctx context.Context, tx *gorm.DB, userID string) (*types.User, error)
	UpdateFirstName(ctx context.Context, tx *gorm.DB, userID string, firstName *string) (*types.User, error)
	UpdateTier(ctx context.Context, tx *gorm.DB, userID string, tier types.Tier) error
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (ur *userRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return ur.db
}

func (ur *userRepo) Create(ctx context.Context, tx *gorm.DB, user *types.User) (*types.User, error) {
	if err := ur.conn(tx).WithContext(ctx).Create(user).Error; err != nil {
		// Two first-authenticated requests can race on the same subject;
		// the loser reads the row the winner inserted.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			ur.log.Debug("User already exists, reading existing row", "user_id", user.ID)
			return ur.GetByID(ctx, tx, user.ID)
		}
		return nil, err
	}
	return user, nil
}

func (ur *userRepo) GetByID(ctx context.Context, tx *gorm.DB, userID string) (*types.User, error) {
	var user types.User
	err := ur.conn(tx).WithContext(ctx).
		Where("id = ?", userID).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (ur *userRepo) GetByIDWithUsage(ctx context.Context, tx *gorm.DB, userID string) (*types.User, error) {
	var user types.User
	err := ur.conn(tx).WithContext(ctx).
		Preload("UsageLimit").
		Where("id = ?", userID).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (ur *userRepo) UpdateFirstName(ctx context.Context, tx *gorm.DB, userID string, firstName *string) (*types.User, error) {
	if err := ur.conn(tx).WithContext(ctx).
		Model(&types.User{}).
		Where("id = ?", userID).
		Update("first_name", firstName).Error; err != nil {
		return nil, err
	}
	return ur.GetByIDWithUsage(ctx, tx, userID)
}

func (ur *userRepo) UpdateTier(ctx context.Context, tx *gorm.DB, userID string, tier types.Tier) error {
	return ur.conn(tx).WithContext(ctx).
		Model(&types.User{}).
		Where("id = ?", userID).
		Update("tier", tier).Error
}
