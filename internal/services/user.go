package services

import (
	"context"
	"time"

	"github.com/matchahq/matcha-backend/internal/logger"
	"github.com/matchahq/matcha-backend/internal/repos"
	"github.com/matchahq/matcha-backend/internal/types"
)

// UserProfile is the outward shape of a user, usage block included.
type UserProfile struct {
	ID        string       `json:"id"`
	Email     string       `json:"email"`
	FirstName *string      `json:"first_name"`
	Tier      types.Tier   `json:"tier"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Usage     ProfileUsage `json:"usage"`
}

type ProfileUsage struct {
	AnalysesThisMonth int  `json:"analysesThisMonth"`
	AnalysesRemaining *int `json:"analysesRemaining"` // nil = unlimited
}

type UserService interface {
	GetMe(ctx context.Context, userID string) (*UserProfile, error)
	UpdateFirstName(ctx context.Context, userID string, firstName *string) (*UserProfile, error)
}

type userService struct {
	log   *logger.Logger
	users repos.UserRepo
	now   func() time.Time
}

func NewUserService(baseLog *logger.Logger, userRepo repos.UserRepo) UserService {
	return &userService{
		log:   baseLog.With("service", "UserService"),
		users: userRepo,
		now:   time.Now,
	}
}

func (s *userService) GetMe(ctx context.Context, userID string) (*UserProfile, error) {
	user, err := s.users.GetByIDWithUsage(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, types.ErrNotFound("User")
	}
	return s.formatUser(user), nil
}

func (s *userService) UpdateFirstName(ctx context.Context, userID string, firstName *string) (*UserProfile, error) {
	user, err := s.users.UpdateFirstName(ctx, nil, userID, firstName)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, types.ErrNotFound("User")
	}
	return s.formatUser(user), nil
}

func (s *userService) formatUser(user *types.User) *UserProfile {
	now := s.now()

	// A reset boundary in the past means the stored count belongs to a
	// finished month; report it as zero without mutating the row.
	analysesThisMonth := 0
	if user.UsageLimit != nil && now.Before(user.UsageLimit.MonthResetAt) {
		analysesThisMonth = user.UsageLimit.AnalysesThisMonth
	}

	var analysesRemaining *int
	if user.Tier != types.TierPro {
		remaining := FreeTierMonthlyAnalyses - analysesThisMonth
		if remaining < 0 {
			remaining = 0
		}
		analysesRemaining = &remaining
	}

	return &UserProfile{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		Tier:      user.Tier,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
		Usage: ProfileUsage{
			AnalysesThisMonth: analysesThisMonth,
			AnalysesRemaining: analysesRemaining,
		},
	}
}
