package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nkiryanov/userauth/internal/apperrors"
	"github.com/nkiryanov/userauth/internal/logger"
	"github.com/nkiryanov/userauth/internal/models"
	"github.com/nkiryanov/userauth/internal/repository"
)

const (
	defaultTimeout = 5 * time.Second
	tracerName     = "github.com/nkiryanov/userauth/internal/service/auth"

	// Compared against when email is unknown, so login takes the same time either way
	dummyPassword = "userauth-dummy-password"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(ctx context.Context, password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must return apperrors.ErrPasswordMismatch if password is wrong
	Compare(ctx context.Context, hashedPassword string, password string) error
}

// Issue and validate signed access and refresh tokens
type TokenManager interface {
	IssuePair(userID uuid.UUID) (models.TokenPair, error)
	ParseAccess(token string) (uuid.UUID, error)
	ParseRefresh(token string) (uuid.UUID, error)
}

type Config struct {
	// Hasher to use during user registration or login process
	// BcryptHasher with default cost if not set
	Hasher PasswordHasher

	// NoOp logger if not set
	Logger logger.Logger

	// Upper bound for every operation, including hashing
	Timeout time.Duration
}

type AuthService struct {
	hasher  PasswordHasher
	tokens  TokenManager
	storage repository.Storage
	logger  logger.Logger
	tracer  trace.Tracer
	timeout time.Duration

	// Verifier of dummyPassword, compared for unknown emails
	dummyHash string
}

func NewService(cfg Config, tokens TokenManager, storage repository.Storage) (*AuthService, error) {
	if tokens == nil || storage == nil {
		return nil, errors.New("token manager and storage must not be nil")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	l := cfg.Logger
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	dummyHash, err := hasher.Hash(ctx, dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("can't prepare dummy hash. Err: %w", err)
	}

	return &AuthService{
		hasher:  hasher,
		tokens:  tokens,
		storage: storage,
		logger:  l.With("service", "auth"),
		tracer:  otel.Tracer(tracerName),
		timeout: timeout,

		dummyHash: dummyHash,
	}, nil
}

// Normalize email the way it is stored: trimmed and lower-cased
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register new user and issue token pair right away
func (s *AuthService) Register(ctx context.Context, email string, password string) (models.User, models.TokenPair, error) {
	ctx, span, cancel := s.start(ctx, "Register")
	defer cancel()

	user, pair, err := s.register(ctx, NormalizeEmail(email), password)
	s.end(span, err)
	return user, pair, err
}

func (s *AuthService) register(ctx context.Context, email string, password string) (models.User, models.TokenPair, error) {
	_, err := s.storage.User().GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return models.User{}, models.TokenPair{}, apperrors.ErrUserAlreadyExists
	case !errors.Is(err, apperrors.ErrUserNotFound):
		return models.User{}, models.TokenPair{}, fmt.Errorf("can't check user exists. Err: %w", err)
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return models.User{}, models.TokenPair{}, fmt.Errorf("can't use this as password. Err: %w", err)
	}

	var (
		user models.User
		pair models.TokenPair
	)
	err = s.storage.InTx(ctx, func(storage repository.Storage) error {
		var err error

		// Someone may register the same email after the check above
		user, err = storage.User().CreateUser(ctx, email, hash)
		if err != nil {
			return err
		}

		pair, err = s.tokens.IssuePair(user.ID)
		if err != nil {
			return fmt.Errorf("token could not be generated. Err: %w", err)
		}

		return storage.User().SetRefreshToken(ctx, user.ID, refreshDigest(pair.Refresh.Value))
	})
	if err != nil {
		return models.User{}, models.TokenPair{}, fmt.Errorf("can't register user. Err: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return user, pair, nil
}

// Login user by email and password
// Issued refresh token replaces any previous one
func (s *AuthService) Login(ctx context.Context, email string, password string) (models.User, models.TokenPair, error) {
	ctx, span, cancel := s.start(ctx, "Login")
	defer cancel()

	user, pair, err := s.login(ctx, NormalizeEmail(email), password)
	s.end(span, err)
	return user, pair, err
}

func (s *AuthService) login(ctx context.Context, email string, password string) (models.User, models.TokenPair, error) {
	user, err := s.storage.User().GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.User{}, models.TokenPair{}, s.compareDummy(ctx, password)
	case err != nil:
		return models.User{}, models.TokenPair{}, fmt.Errorf("can't get user. Err: %w", err)
	}

	err = s.hasher.Compare(ctx, user.PasswordHash, password)
	switch {
	case errors.Is(err, apperrors.ErrPasswordMismatch):
		return models.User{}, models.TokenPair{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return models.User{}, models.TokenPair{}, fmt.Errorf("can't verify password. Err: %w", err)
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return models.User{}, models.TokenPair{}, fmt.Errorf("token could not be generated. Err: %w", err)
	}

	err = s.storage.User().SetRefreshToken(ctx, user.ID, refreshDigest(pair.Refresh.Value))
	if err != nil {
		return models.User{}, models.TokenPair{}, fmt.Errorf("can't store refresh token. Err: %w", err)
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return user, pair, nil
}

// Spend the same time as for existing user and always fail
func (s *AuthService) compareDummy(ctx context.Context, password string) error {
	err := s.hasher.Compare(ctx, s.dummyHash, password)
	if err != nil && !errors.Is(err, apperrors.ErrPasswordMismatch) {
		return fmt.Errorf("can't verify password. Err: %w", err)
	}
	return apperrors.ErrInvalidCredentials
}

// Exchange refresh token for a new pair
// Presented token must be the one stored for the user: it is replaced atomically, so it works only once
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.TokenPair, error) {
	ctx, span, cancel := s.start(ctx, "Refresh")
	defer cancel()

	pair, err := s.refresh(ctx, refresh)
	s.end(span, err)
	return pair, err
}

func (s *AuthService) refresh(ctx context.Context, refresh string) (models.TokenPair, error) {
	if refresh == "" {
		return models.TokenPair{}, fmt.Errorf("%w: refresh token is empty", apperrors.ErrUnauthorized)
	}

	userID, err := s.tokens.ParseRefresh(refresh)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, err)
	}

	user, err := s.storage.User().GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.TokenPair{}, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, err)
	case err != nil:
		return models.TokenPair{}, fmt.Errorf("can't get user. Err: %w", err)
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not be generated. Err: %w", err)
	}

	err = s.storage.User().RotateRefreshToken(ctx, user.ID, refreshDigest(refresh), refreshDigest(pair.Refresh.Value))
	switch {
	case errors.Is(err, apperrors.ErrRefreshTokenMismatch):
		s.logger.Warn("refresh token is not the current one, may be replayed", "user_id", user.ID)
		return models.TokenPair{}, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, err)
	case err != nil:
		return models.TokenPair{}, fmt.Errorf("can't rotate refresh token. Err: %w", err)
	}

	s.logger.Info("tokens refreshed", "user_id", user.ID)
	return pair, nil
}

// Forget user refresh token
// Access tokens issued already remain valid until expired
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	ctx, span, cancel := s.start(ctx, "Logout")
	defer cancel()

	err := s.storage.User().ClearRefreshToken(ctx, userID)
	if err != nil {
		err = fmt.Errorf("can't logout user. Err: %w", err)
	} else {
		s.logger.Info("user logged out", "user_id", userID)
	}

	s.end(span, err)
	return err
}

func (s *AuthService) Profile(ctx context.Context, userID uuid.UUID) (models.Profile, error) {
	ctx, span, cancel := s.start(ctx, "Profile")
	defer cancel()

	user, err := s.storage.User().GetUserByID(ctx, userID)
	if err != nil {
		err = fmt.Errorf("can't get user profile. Err: %w", err)
	}

	s.end(span, err)
	return models.ProfileOf(user), err
}

// Resolve access token to the profile of existing user
// Token errors are apperrors.ErrTokenExpired, ErrTokenMalformed or ErrTokenWrongClass,
// apperrors.ErrUserNotFound if user gone since token issued
func (s *AuthService) Authenticate(ctx context.Context, access string) (models.Profile, error) {
	ctx, span, cancel := s.start(ctx, "Authenticate")
	defer cancel()

	profile, err := s.authenticate(ctx, access)
	s.end(span, err)
	return profile, err
}

func (s *AuthService) authenticate(ctx context.Context, access string) (models.Profile, error) {
	userID, err := s.tokens.ParseAccess(access)
	if err != nil {
		return models.Profile{}, err
	}

	user, err := s.storage.User().GetUserByID(ctx, userID)
	if err != nil {
		return models.Profile{}, fmt.Errorf("can't get token user. Err: %w", err)
	}

	return models.ProfileOf(user), nil
}

func (s *AuthService) start(ctx context.Context, op string) (context.Context, trace.Span, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	ctx, span := s.tracer.Start(ctx, "auth."+op)
	return ctx, span, cancel
}

// Client errors are not span failures
func (s *AuthService) end(span trace.Span, err error) {
	defer span.End()

	if err == nil || isClientError(err) {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.Bool("internal", true))
}

func isClientError(err error) bool {
	for _, target := range []error{
		apperrors.ErrUserAlreadyExists,
		apperrors.ErrUserNotFound,
		apperrors.ErrInvalidCredentials,
		apperrors.ErrUnauthorized,
		apperrors.ErrTokenExpired,
		apperrors.ErrTokenMalformed,
		apperrors.ErrTokenWrongClass,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Storage keeps sha256 hex digest of refresh token, never the token itself
func refreshDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
