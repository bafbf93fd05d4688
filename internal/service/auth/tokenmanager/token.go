package tokenmanager

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/userauth/internal/apperrors"
	"github.com/nkiryanov/userauth/internal/models"
)

const (
	defaultAccessTokenTTL  = 5 * time.Minute
	defaultSigningMethod   = "HS256"
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Token class, every class is signed with its own key
type Class string

const (
	Access  Class = "access"
	Refresh Class = "refresh"
)

type Claims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID `json:"uid"`
	Class  Class     `json:"type"`
}

// Token manager with sensible default
type Config struct {
	// Secret keys to sign access and refresh tokens
	// Both required and must differ: leak of one key must not allow to forge the other class
	AccessSecretKey  string
	RefreshSecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenManager struct {
	keys map[Class][]byte
	ttls map[Class]time.Duration

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	now func() time.Time
}

func New(cfg Config) (*TokenManager, error) {
	if cfg.AccessSecretKey == "" || cfg.RefreshSecretKey == "" {
		return nil, errors.New("access and refresh secret keys must not be empty")
	}
	if cfg.AccessSecretKey == cfg.RefreshSecretKey {
		return nil, errors.New("access and refresh secret keys must differ")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg, ok := jwt.GetSigningMethod(cfg.Alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("signing method %q is not supported, use one of HS256, HS384, HS512", cfg.Alg)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	return &TokenManager{
		keys: map[Class][]byte{
			Access:  []byte(cfg.AccessSecretKey),
			Refresh: []byte(cfg.RefreshSecretKey),
		},
		ttls: map[Class]time.Duration{
			Access:  cfg.AccessTTL,
			Refresh: cfg.RefreshTTL,
		},
		alg: alg,
		now: time.Now,
	}, nil
}

// Issue signed token of the class for the user
func (m *TokenManager) Issue(userID uuid.UUID, class Class) (models.IssuedToken, error) {
	key, ok := m.keys[class]
	if !ok {
		return models.IssuedToken{}, fmt.Errorf("unknown token class %q", class)
	}

	now := m.now().Truncate(time.Second)
	expiresAt := now.Add(m.ttls[class])

	token := jwt.NewWithClaims(
		m.alg,
		Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Subject:   userID.String(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			UserID: userID,
			Class:  class,
		},
	)
	value, err := token.SignedString(key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing %s token. Err: %w", class, err)
	}

	return models.IssuedToken{Value: value, ExpiresAt: expiresAt}, nil
}

// Issue access and refresh tokens for the user
func (m *TokenManager) IssuePair(userID uuid.UUID) (models.TokenPair, error) {
	access, err := m.Issue(userID, Access)
	if err != nil {
		return models.TokenPair{}, err
	}

	refresh, err := m.Issue(userID, Refresh)
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// Parse and validate token of expected class
//
// Signature is checked with the key of the class the token claims to be,
// so a genuine token of another class is reported as apperrors.ErrTokenWrongClass,
// while forged or broken ones are apperrors.ErrTokenMalformed
func (m *TokenManager) Parse(value string, expected Class) (userID uuid.UUID, err error) {
	claims := &Claims{}

	_, err = jwt.ParseWithClaims(
		value,
		claims,
		func(t *jwt.Token) (any, error) {
			key, ok := m.keys[claims.Class]
			if !ok {
				return nil, fmt.Errorf("unknown token class %q", claims.Class)
			}
			return key, nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return uuid.Nil, fmt.Errorf("error while validating token. Err: %w", apperrors.ErrTokenExpired)
	case err != nil:
		return uuid.Nil, fmt.Errorf("%w: %w", apperrors.ErrTokenMalformed, err)
	case claims.Class != expected:
		return uuid.Nil, fmt.Errorf("%w: got %q, want %q", apperrors.ErrTokenWrongClass, claims.Class, expected)
	case claims.UserID == uuid.Nil:
		return uuid.Nil, fmt.Errorf("%w: token has no user", apperrors.ErrTokenMalformed)
	}

	return claims.UserID, nil
}

func (m *TokenManager) ParseAccess(value string) (uuid.UUID, error) {
	return m.Parse(value, Access)
}

func (m *TokenManager) ParseRefresh(value string) (uuid.UUID, error) {
	return m.Parse(value, Refresh)
}
