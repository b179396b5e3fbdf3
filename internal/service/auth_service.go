package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fractional-bonds/internal/core/domain"
	"fractional-bonds/internal/core/ports"
	"fractional-bonds/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	userRepo        ports.UserRepository
	walletRepo      ports.WalletRepository
	transactor      ports.DBTransactor
	hashSvc         ports.HashService
	tokenSvc        ports.TokenService
	startingBalance decimal.Decimal
	log             zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl. Every registered user gets a
// wallet funded with startingBalance.
func NewAuthService(
	userRepo ports.UserRepository,
	walletRepo ports.WalletRepository,
	transactor ports.DBTransactor,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	startingBalance decimal.Decimal,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		userRepo:        userRepo,
		walletRepo:      walletRepo,
		transactor:      transactor,
		hashSvc:         hashSvc,
		tokenSvc:        tokenSvc,
		startingBalance: startingBalance,
		log:             log,
	}
}

// Register creates the user and its wallet in one transaction and signs a token.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*ports.AuthResult, error) {
	email := domain.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, apperror.Validation("email and password are required")
	}

	// Check email uniqueness
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check email: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrEmailExists()
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return nil, apperror.Validation(fmt.Sprintf("password must be at most %d bytes", MaxPasswordBytes))
		}
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         req.Name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}
	wallet := &domain.Wallet{
		UserID:    user.ID,
		Balance:   s.startingBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.userRepo.Create(ctx, dbTx, user); err != nil {
		// Lost a race with a concurrent registration of the same email.
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, apperror.ErrEmailExists()
		}
		return nil, apperror.InternalError(fmt.Errorf("create user: %w", err))
	}

	if err := s.walletRepo.Create(ctx, dbTx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("starting_balance", s.startingBalance.String()).
		Msg("user registered")

	return s.issue(user)
}

// Login validates credentials and returns a JWT token.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return nil, apperror.ErrInvalidCredentials()
	}

	return s.issue(user)
}

func (s *AuthServiceImpl) issue(user *domain.User) (*ports.AuthResult, error) {
	token, expiresAt, err := s.tokenSvc.Generate(user.ID, user.Email)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}
	return &ports.AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}
