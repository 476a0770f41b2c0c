package service

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/trongdv/bookstore/pkg/errors"
	pkgkafka "github.com/trongdv/bookstore/pkg/kafka"

	"github.com/trongdv/bookstore/internal/api/auth"
	"github.com/trongdv/bookstore/internal/api/domain"
	"github.com/trongdv/bookstore/internal/api/email"
	"github.com/trongdv/bookstore/internal/api/event"
)

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) SetEmailConfirmed(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

// --- Mock Token Repository ---

type mockTokenRepository struct {
	mock.Mock
}

func (m *mockTokenRepository) Create(ctx context.Context, token *domain.UserToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockTokenRepository) Consume(ctx context.Context, userID string, purpose domain.TokenPurpose, tokenHash string, now time.Time) error {
	args := m.Called(ctx, userID, purpose, tokenHash, now)
	return args.Error(0)
}

func (m *mockTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// --- Mock Email Sender ---

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg email.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestJWTManager() *auth.JWTManager {
	return auth.NewJWTManager("test-secret-key-for-testing", "bookstore-api", "bookstore-clients", time.Hour)
}

func newTestEventProducer() *event.Producer {
	logger := newTestLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	return event.NewProducer(pkgkafka.NewProducer(kafkaCfg, logger), logger)
}

func newTestAuthService(userRepo *mockUserRepository, tokenRepo *mockTokenRepository, sender *mockSender) *AuthService {
	return NewAuthService(userRepo, tokenRepo, newTestJWTManager(), sender, newTestEventProducer(),
		AuthConfig{
			EmailConfirmTokenTTL:  72 * time.Hour,
			PasswordResetTokenTTL: 2 * time.Hour,
		}, newTestLogger())
}

// bcrypt.MinCost keeps the hashing fast in tests.
func hashFor(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func activeUser(t *testing.T) *domain.User {
	return &domain.User{
		ID:             "user-123",
		Email:          "alice@example.com",
		PasswordHash:   hashFor(t, "correct-password"),
		Roles:          []string{domain.RoleUser},
		EmailConfirmed: true,
	}
}

// --- Login ---

func TestLoginSuccess(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestAuthService(userRepo, new(mockTokenRepository), new(mockSender))

	userRepo.On("GetByEmail", mock.Anything, "alice@example.com").Return(activeUser(t), nil)

	result, err := svc.Login(context.Background(), "alice@example.com", "correct-password")
	require.NoError(t, err)
	assert.True(t, result.Successful)
	assert.NotEmpty(t, result.AccessToken)

	claims, err := newTestJWTManager().Validate(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, []string{domain.RoleUser}, claims.Roles)
}

func TestLoginUnknownEmail(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestAuthService(userRepo, new(mockTokenRepository), new(mockSender))

	userRepo.On("GetByEmail", mock.Anything, "nobody@example.com").
		Return(nil, apperrors.NotFound("user", "nobody@example.com"))

	_, err := svc.Login(context.Background(), "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestLoginWrongPassword(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestAuthService(userRepo, new(mockTokenRepository), new(mockSender))

	userRepo.On("GetByEmail", mock.Anything, "alice@example.com").Return(activeUser(t), nil)

	_, err := svc.Login(context.Background(), "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestLoginErrorsDoNotDistinguishUnknownEmailFromWrongPassword(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestAuthService(userRepo, new(mockTokenRepository), new(mockSender))

	userRepo.On("GetByEmail", mock.Anything, "alice@example.com").Return(activeUser(t), nil)
	userRepo.On("GetByEmail", mock.Anything, "nobody@example.com").
		Return(nil, apperrors.NotFound("user", "nobody@example.com"))

	_, errUnknown := svc.Login(context.Background(), "nobody@example.com", "whatever")
	_, errWrongPw := svc.Login(context.Background(), "alice@example.com", "wrong-password")

	assert.Equal(t, errUnknown.Error(), errWrongPw.Error())
}

func TestLoginUnconfirmedAccount(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestAuthService(userRepo, new(mockTokenRepository), new(mockSender))

	user := activeUser(t)
	user.EmailConfirmed = false
	userRepo.On("GetByEmail", mock.Anything, "alice@example.com").Return(user, nil)

	_, err := svc.Login(context.Background(), "alice@example.com", "correct-password")
	require.ErrorIs(t, err, apperrors.ErrAccountInactive)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Your account is inactive", appErr.Message)
}

func TestLoginUnconfirmedAccountWrongPasswordStaysGeneric(t *testing.T) {
	// The inactive hint must not leak before the password has been proven.
	userRepo := new(mockUserRepository)
	svc := newTestAuthService(userRepo, new(mockTokenRepository), new(mockSender))

	user := activeUser(t)
	user.EmailConfirmed = false
	userRepo.On("GetByEmail", mock.Anything, "alice@example.com").Return(user, nil)

	_, err := svc.Login(context.Background(), "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

// --- Register ---

func TestRegisterSendsConfirmationLink(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockTokenRepository)
	sender := new(mockSender)
	svc := newTestAuthService(userRepo, tokenRepo, sender)

	var storedToken *domain.UserToken
	userRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	tokenRepo.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			storedToken = args.Get(1).(*domain.UserToken)
		}).Return(nil)

	var sentLink string
	sender.On("Send", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			msg := args.Get(1).(email.Message)
			assert.Equal(t, "bob@example.com", msg.To)
			idx := strings.Index(msg.Body, "http://")
			require.GreaterOrEqual(t, idx, 0)
			sentLink = strings.TrimSpace(msg.Body[idx:])
		}).Return(nil)

	user, err := svc.Register(context.Background(), "bob@example.com", "password123", "http://localhost:8081/confirm-email")
	require.NoError(t, err)
	assert.Equal(t, []string{domain.RoleUser}, user.Roles)
	assert.False(t, user.EmailConfirmed)

	require.NotNil(t, storedToken)
	assert.Equal(t, domain.TokenPurposeEmailConfirm, storedToken.Purpose)
	assert.Equal(t, user.ID, storedToken.UserID)

	// The emailed code hashes to the stored value; the raw token never
	// touches the store.
	require.Contains(t, sentLink, "code=")
	code := sentLink[strings.Index(sentLink, "code=")+len("code="):]
	assert.Equal(t, storedToken.TokenHash, auth.HashToken(code))
	assert.NotContains(t, sentLink, storedToken.TokenHash)
}

func TestRegisterShortPassword(t *testing.T) {
	svc := newTestAuthService(new(mockUserRepository), new(mockTokenRepository), new(mockSender))

	_, err := svc.Register(context.Background(), "bob@example.com", "short", "http://localhost:8081/confirm-email")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestAuthService(userRepo, new(mockTokenRepository), new(mockSender))

	userRepo.On("Create", mock.Anything, mock.Anything).
		Return(apperrors.AlreadyExists("user", "email", "bob@example.com"))

	_, err := svc.Register(context.Background(), "bob@example.com", "password123", "http://localhost:8081/confirm-email")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

// --- Confirm Email ---

func TestConfirmEmail(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockTokenRepository)
	svc := newTestAuthService(userRepo, tokenRepo, new(mockSender))

	userRepo.On("GetByID", mock.Anything, "user-123").Return(activeUser(t), nil)
	tokenRepo.On("Consume", mock.Anything, "user-123", domain.TokenPurposeEmailConfirm, auth.HashToken("the-code"), mock.Anything).
		Return(nil)
	userRepo.On("SetEmailConfirmed", mock.Anything, "user-123").Return(nil)

	err := svc.ConfirmEmail(context.Background(), "user-123", "the-code")
	require.NoError(t, err)
	userRepo.AssertCalled(t, "SetEmailConfirmed", mock.Anything, "user-123")
}

func TestConfirmEmailReplayFails(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockTokenRepository)
	svc := newTestAuthService(userRepo, tokenRepo, new(mockSender))

	userRepo.On("GetByID", mock.Anything, "user-123").Return(activeUser(t), nil)
	// A consumed token matches no rows, exactly like a wrong one.
	tokenRepo.On("Consume", mock.Anything, "user-123", domain.TokenPurposeEmailConfirm, mock.Anything, mock.Anything).
		Return(apperrors.NotFound("token", "xxxx"))

	err := svc.ConfirmEmail(context.Background(), "user-123", "already-used-code")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	userRepo.AssertNotCalled(t, "SetEmailConfirmed", mock.Anything, mock.Anything)
}

// --- Forgot / Reset Password ---

func TestForgotPasswordUnknownEmailLeaksNothing(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockTokenRepository)
	sender := new(mockSender)
	svc := newTestAuthService(userRepo, tokenRepo, sender)

	userRepo.On("GetByEmail", mock.Anything, "nobody@example.com").
		Return(nil, apperrors.NotFound("user", "nobody@example.com"))

	err := svc.ForgotPassword(context.Background(), "nobody@example.com", "http://localhost:8081/reset-password")
	assert.NoError(t, err)
	tokenRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestForgotPasswordUnconfirmedAccountLeaksNothing(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockTokenRepository)
	sender := new(mockSender)
	svc := newTestAuthService(userRepo, tokenRepo, sender)

	user := activeUser(t)
	user.EmailConfirmed = false
	userRepo.On("GetByEmail", mock.Anything, "alice@example.com").Return(user, nil)

	// Same silent success as an unknown email: no token, no mail.
	err := svc.ForgotPassword(context.Background(), "alice@example.com", "http://localhost:8081/reset-password")
	assert.NoError(t, err)
	tokenRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestForgotPasswordKnownEmail(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockTokenRepository)
	sender := new(mockSender)
	svc := newTestAuthService(userRepo, tokenRepo, sender)

	userRepo.On("GetByEmail", mock.Anything, "alice@example.com").Return(activeUser(t), nil)
	tokenRepo.On("Create", mock.Anything, mock.MatchedBy(func(tok *domain.UserToken) bool {
		return tok.Purpose == domain.TokenPurposePasswordReset && tok.UserID == "user-123"
	})).Return(nil)
	sender.On("Send", mock.Anything, mock.Anything).Return(nil)

	err := svc.ForgotPassword(context.Background(), "alice@example.com", "http://localhost:8081/reset-password")
	require.NoError(t, err)
	sender.AssertNumberOfCalls(t, "Send", 1)
}

func TestResetPassword(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockTokenRepository)
	svc := newTestAuthService(userRepo, tokenRepo, new(mockSender))

	tokenRepo.On("Consume", mock.Anything, "user-123", domain.TokenPurposePasswordReset, auth.HashToken("reset-code"), mock.Anything).
		Return(nil)

	var newHash string
	userRepo.On("UpdatePassword", mock.Anything, "user-123", mock.Anything).
		Run(func(args mock.Arguments) {
			newHash = args.Get(2).(string)
		}).Return(nil)

	err := svc.ResetPassword(context.Background(), "user-123", "reset-code", "brand-new-password")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(newHash), []byte("brand-new-password")))
}

func TestResetPasswordInvalidToken(t *testing.T) {
	userRepo := new(mockUserRepository)
	tokenRepo := new(mockTokenRepository)
	svc := newTestAuthService(userRepo, tokenRepo, new(mockSender))

	tokenRepo.On("Consume", mock.Anything, "user-123", domain.TokenPurposePasswordReset, mock.Anything, mock.Anything).
		Return(apperrors.NotFound("token", "xxxx"))

	err := svc.ResetPassword(context.Background(), "user-123", "bad-code", "brand-new-password")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	userRepo.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
}

// --- ValidateToken ---

func TestValidateTokenResolvesLiveUser(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestAuthService(userRepo, new(mockTokenRepository), new(mockSender))

	token, err := newTestJWTManager().Generate("user-123", "alice@example.com", []string{domain.RoleUser})
	require.NoError(t, err)

	userRepo.On("GetByID", mock.Anything, "user-123").Return(activeUser(t), nil)

	principal, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", principal.UserID)
	assert.Equal(t, "alice@example.com", principal.Email)
}

func TestValidateTokenDeletedUser(t *testing.T) {
	userRepo := new(mockUserRepository)
	svc := newTestAuthService(userRepo, new(mockTokenRepository), new(mockSender))

	token, err := newTestJWTManager().Generate("user-gone", "ghost@example.com", []string{domain.RoleUser})
	require.NoError(t, err)

	userRepo.On("GetByID", mock.Anything, "user-gone").
		Return(nil, apperrors.NotFound("user", "user-gone"))

	_, err = svc.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrUnknownUser)
}

func TestValidateTokenRolesComeFromStore(t *testing.T) {
	// Roles granted after token issuance take effect immediately because the
	// principal is rebuilt from the live user record.
	userRepo := new(mockUserRepository)
	svc := newTestAuthService(userRepo, new(mockTokenRepository), new(mockSender))

	token, err := newTestJWTManager().Generate("user-123", "alice@example.com", []string{domain.RoleUser})
	require.NoError(t, err)

	user := activeUser(t)
	user.Roles = []string{domain.RoleAdmin, domain.RoleUser}
	userRepo.On("GetByID", mock.Anything, "user-123").Return(user, nil)

	principal, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, principal.HasRole(domain.RoleAdmin))
}
