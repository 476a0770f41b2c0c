package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/trongdv/bookstore/pkg/errors"

	"github.com/trongdv/bookstore/internal/api/auth"
	"github.com/trongdv/bookstore/internal/api/domain"
	"github.com/trongdv/bookstore/internal/api/email"
	"github.com/trongdv/bookstore/internal/api/event"
	"github.com/trongdv/bookstore/internal/api/repository"
)

// bcryptCost is the cost factor for bcrypt password hashing.
const bcryptCost = 12

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// AuthConfig holds the token lifetimes for the single-use flows.
type AuthConfig struct {
	EmailConfirmTokenTTL  time.Duration
	PasswordResetTokenTTL time.Duration
}

// AuthService implements account and session business logic.
type AuthService struct {
	userRepo   repository.UserRepository
	tokenRepo  repository.TokenRepository
	jwtManager *auth.JWTManager
	sender     email.Sender
	producer   *event.Producer
	cfg        AuthConfig
	logger     *slog.Logger

	// now is overridable in tests.
	now func() time.Time
}

// NewAuthService creates a new auth service.
func NewAuthService(
	userRepo repository.UserRepository,
	tokenRepo repository.TokenRepository,
	jwtManager *auth.JWTManager,
	sender email.Sender,
	producer *event.Producer,
	cfg AuthConfig,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		tokenRepo:  tokenRepo,
		jwtManager: jwtManager,
		sender:     sender,
		producer:   producer,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Successful  bool   `json:"successful"`
	AccessToken string `json:"accessToken"`
}

// Login authenticates with email and password and returns a signed access
// token. Unknown email and wrong password produce the same error, so callers
// cannot enumerate accounts. An unconfirmed account is reported distinctly.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (*LoginResult, error) {
	if emailAddr == "" || password == "" {
		return nil, apperrors.Unauthorized("invalid email or password")
	}

	user, err := s.userRepo.GetByEmail(ctx, emailAddr)
	if err != nil {
		// Burn a bcrypt comparison so the timing matches the wrong-password path.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$12$invalidsaltinvalidsaltinvalidsaltinvalidsaltinvalid"), []byte(password))
		return nil, apperrors.Unauthorized("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.Unauthorized("invalid email or password")
	}

	if !user.IsActive() {
		return nil, apperrors.AccountInactive()
	}

	token, err := s.jwtManager.Generate(user.ID, user.Email, user.Roles)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
	)

	return &LoginResult{Successful: true, AccessToken: token}, nil
}

// Register creates a new account and emails a confirmation link built from
// clientURL. The account stays inactive until the link is used.
func (s *AuthService) Register(ctx context.Context, emailAddr, password, clientURL string) (*domain.User, error) {
	if emailAddr == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if clientURL == "" {
		return nil, apperrors.InvalidInput("client url is required")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        emailAddr,
		PasswordHash: string(hashedPassword),
		Roles:        []string{domain.RoleUser},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.sendTokenEmail(ctx, user, domain.TokenPurposeEmailConfirm, clientURL); err != nil {
		return nil, err
	}

	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
	)

	return user, nil
}

// ConfirmEmail consumes a confirmation token and activates the account. The
// token is single-use: a replay fails like a wrong token.
func (s *AuthService) ConfirmEmail(ctx context.Context, userID, code string) error {
	if userID == "" || code == "" {
		return apperrors.InvalidInput("user id and code are required")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return apperrors.InvalidInput("invalid confirmation link")
	}

	err = s.tokenRepo.Consume(ctx, userID, domain.TokenPurposeEmailConfirm, auth.HashToken(code), s.now())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.InvalidInput("invalid confirmation link")
		}
		return fmt.Errorf("consume confirmation token: %w", err)
	}

	if err := s.userRepo.SetEmailConfirmed(ctx, userID); err != nil {
		return fmt.Errorf("confirm email: %w", err)
	}

	if err := s.producer.PublishUserEmailConfirmed(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.email_confirmed event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "email confirmed",
		slog.String("user_id", userID),
	)
	return nil
}

// ForgotPassword issues a reset token and emails the link. Reset tokens only
// exist for confirmed accounts; unknown and unconfirmed emails both return
// success without sending anything, so the endpoint leaks nothing.
func (s *AuthService) ForgotPassword(ctx context.Context, emailAddr, clientURL string) error {
	if emailAddr == "" || clientURL == "" {
		return apperrors.InvalidInput("email and client url are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.InfoContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("look up user: %w", err)
	}

	if !user.IsActive() {
		s.logger.InfoContext(ctx, "password reset requested for unconfirmed account",
			slog.String("user_id", user.ID),
		)
		return nil
	}

	return s.sendTokenEmail(ctx, user, domain.TokenPurposePasswordReset, clientURL)
}

// ResetPassword consumes a reset token and sets the new password.
func (s *AuthService) ResetPassword(ctx context.Context, userID, code, newPassword string) error {
	if userID == "" || code == "" {
		return apperrors.InvalidInput("user id and code are required")
	}
	if len(newPassword) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	err := s.tokenRepo.Consume(ctx, userID, domain.TokenPurposePasswordReset, auth.HashToken(code), s.now())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.InvalidInput("invalid reset link")
		}
		return fmt.Errorf("consume reset token: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, string(hashedPassword)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.logger.InfoContext(ctx, "password reset",
		slog.String("user_id", userID),
	)
	return nil
}

// ValidateToken verifies a bearer token and re-resolves its subject against
// the user store, so a deleted account is rejected even while its token is
// otherwise valid. Returns the principal on success.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*domain.Principal, error) {
	claims, err := s.jwtManager.Validate(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, auth.ErrUnknownUser
		}
		return nil, fmt.Errorf("resolve token subject: %w", err)
	}

	return &domain.Principal{
		UserID: user.ID,
		Email:  user.Email,
		Roles:  user.Roles,
	}, nil
}

// sendTokenEmail issues a fresh single-use token and mails the resulting link.
func (s *AuthService) sendTokenEmail(ctx context.Context, user *domain.User, purpose domain.TokenPurpose, clientURL string) error {
	raw, hash, err := auth.NewSingleUseToken()
	if err != nil {
		return err
	}

	ttl := s.cfg.EmailConfirmTokenTTL
	if purpose == domain.TokenPurposePasswordReset {
		ttl = s.cfg.PasswordResetTokenTTL
	}

	now := s.now().UTC()
	token := &domain.UserToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Purpose:   purpose,
		TokenHash: hash,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.tokenRepo.Create(ctx, token); err != nil {
		return fmt.Errorf("store %s token: %w", purpose, err)
	}

	link := fmt.Sprintf("%s?userId=%s&code=%s",
		clientURL, url.QueryEscape(user.ID), url.QueryEscape(raw))

	msg := email.Message{To: user.Email}
	switch purpose {
	case domain.TokenPurposePasswordReset:
		msg.Subject = "Reset your password"
		msg.Body = "To reset your password, open the link below:\r\n\r\n" + link
	default:
		msg.Subject = "Confirm your email"
		msg.Body = "Welcome to the bookstore! Confirm your email by opening the link below:\r\n\r\n" + link
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		return apperrors.ExternalCall(err)
	}
	return nil
}
