package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/matchahq/matcha-backend/internal/logger"
	"github.com/matchahq/matcha-backend/internal/repos"
	"github.com/matchahq/matcha-backend/internal/requestdata"
	"github.com/matchahq/matcha-backend/internal/types"
	"github.com/matchahq/matcha-backend/internal/utils"
)

// VerifiedIdentity is what the identity provider asserts about a token.
type VerifiedIdentity struct {
	UserID    string
	Email     string
	FirstName *string
}

// TokenVerifier validates a bearer credential. The production
// implementation checks Clerk-issued RS256 session JWTs; tests substitute
// a fake.
type TokenVerifier interface {
	Verify(tokenString string) (*VerifiedIdentity, error)
}

type AuthService interface {
	// SetContextFromToken verifies the token, resolves (or creates) the
	// local user, and attaches {id, email, tier} to the context.
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type authService struct {
	db       *gorm.DB
	log      *logger.Logger
	userRepo repos.UserRepo
	verifier TokenVerifier
}

func NewAuthService(db *gorm.DB, baseLog *logger.Logger, userRepo repos.UserRepo, verifier TokenVerifier) AuthService {
	return &authService{
		db:       db,
		log:      baseLog.With("service", "AuthService"),
		userRepo: userRepo,
		verifier: verifier,
	}
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	identity, err := as.verifier.Verify(tokenString)
	if err != nil {
		return ctx, types.ErrUnauthorized("invalid or expired token")
	}

	user, err := as.userRepo.GetByID(ctx, nil, identity.UserID)
	if err != nil {
		return ctx, fmt.Errorf("resolve user: %w", err)
	}
	if user == nil {
		// First authenticated request for this identity.
		as.log.Info("Creating new user", "user_id", identity.UserID)
		user, err = as.userRepo.Create(ctx, nil, &types.User{
			ID:        identity.UserID,
			Email:     identity.Email,
			FirstName: identity.FirstName,
			Tier:      types.TierFree,
		})
		if err != nil {
			return ctx, fmt.Errorf("create user: %w", err)
		}
	}

	return requestdata.WithRequestData(ctx, &requestdata.RequestData{
		UserID: user.ID,
		Email:  user.Email,
		Tier:   user.Tier,
	}), nil
}

// clerkVerifier validates Clerk session JWTs against the instance's PEM
// public key (RS256).
type clerkVerifier struct {
	log       *logger.Logger
	publicKey any
	issuer    string
}

type clerkClaims struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	jwt.RegisteredClaims
}

func NewClerkVerifier(log *logger.Logger) (TokenVerifier, error) {
	pem := utils.GetEnv("CLERK_PEM_PUBLIC_KEY", "", log)
	if pem == "" {
		return nil, fmt.Errorf("missing CLERK_PEM_PUBLIC_KEY")
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
	if err != nil {
		return nil, fmt.Errorf("parse CLERK_PEM_PUBLIC_KEY: %w", err)
	}
	return &clerkVerifier{
		log:       log.With("service", "ClerkVerifier"),
		publicKey: key,
		issuer:    utils.GetEnv("CLERK_ISSUER", "", log),
	}, nil
}

func (cv *clerkVerifier) Verify(tokenString string) (*VerifiedIdentity, error) {
	claims := &clerkClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithLeeway(10 * time.Second),
	}
	if cv.issuer != "" {
		opts = append(opts, jwt.WithIssuer(cv.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return cv.publicKey, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	if !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("token missing subject")
	}

	var firstName *string
	if claims.FirstName != "" {
		firstName = &claims.FirstName
	}
	return &VerifiedIdentity{
		UserID:    claims.Subject,
		Email:     claims.Email,
		FirstName: firstName,
	}, nil
}
