// Package auth guards the portfolio with an optional 4-digit PIN
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

const (
	pinHashKey = "pin_hash"
	pinLength  = 4
	bcryptCost = 10
	issuer     = "folio-server"
)

var (
	// ErrInvalidPIN is returned when a new PIN is not exactly four digits.
	ErrInvalidPIN = errors.New("PIN must be exactly 4 digits")
	// ErrIncorrectPIN is returned when the supplied current PIN does not match.
	ErrIncorrectPIN = errors.New("incorrect PIN")
	// ErrInvalidToken is returned for missing, expired or forged tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Service implements AuthService
type Service struct {
	kv     interfaces.KeyValueStore
	secret []byte
	expiry time.Duration
	logger *common.Logger
	now    func() time.Time
}

// NewService creates the PIN service. Without a configured secret a random
// one is generated, so issued tokens do not survive a restart.
func NewService(kv interfaces.KeyValueStore, config *common.AuthConfig, logger *common.Logger) (*Service, error) {
	secret := []byte(config.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate token secret: %w", err)
		}
		logger.Warn().Msg("No auth.jwt_secret configured, using an ephemeral secret")
	}
	return &Service{
		kv:     kv,
		secret: secret,
		expiry: config.GetTokenExpiry(),
		logger: logger,
		now:    time.Now,
	}, nil
}

func validPIN(pin string) bool {
	if len(pin) != pinLength {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// storedHash returns the PIN hash, "" when no PIN is set.
func (s *Service) storedHash(ctx context.Context) (string, error) {
	hash, err := s.kv.Get(ctx, pinHashKey)
	if errors.Is(err, interfaces.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read PIN: %w", err)
	}
	return hash, nil
}

func (s *Service) PINSet(ctx context.Context) (bool, error) {
	hash, err := s.storedHash(ctx)
	return hash != "", err
}

// VerifyPIN checks pin. With no PIN set every check succeeds and no token
// is issued.
func (s *Service) VerifyPIN(ctx context.Context, pin string) (*models.PINVerification, error) {
	hash, err := s.storedHash(ctx)
	if err != nil {
		return nil, err
	}
	if hash == "" {
		return &models.PINVerification{Verified: true, PINSet: false}, nil
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) != nil {
		s.logger.Warn().Msg("PIN verification failed")
		return &models.PINVerification{Verified: false, PINSet: true}, nil
	}

	token, expiresAt, err := s.signToken()
	if err != nil {
		return nil, err
	}
	return &models.PINVerification{Verified: true, PINSet: true, Token: token, ExpiresAt: expiresAt}, nil
}

// SetPIN sets or replaces the PIN. Replacing requires the current PIN.
func (s *Service) SetPIN(ctx context.Context, currentPIN, newPIN string) error {
	hash, err := s.storedHash(ctx)
	if err != nil {
		return err
	}
	if hash != "" && bcrypt.CompareHashAndPassword([]byte(hash), []byte(currentPIN)) != nil {
		return ErrIncorrectPIN
	}
	if !validPIN(newPIN) {
		return ErrInvalidPIN
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newPIN), bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash PIN: %w", err)
	}
	if err := s.kv.Set(ctx, pinHashKey, string(newHash)); err != nil {
		return fmt.Errorf("failed to store PIN: %w", err)
	}
	s.logger.Info().Bool("replaced", hash != "").Msg("PIN set")
	return nil
}

// RemovePIN clears the PIN. Removing when none is set is a no-op.
func (s *Service) RemovePIN(ctx context.Context, currentPIN string) error {
	hash, err := s.storedHash(ctx)
	if err != nil || hash == "" {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(currentPIN)) != nil {
		return ErrIncorrectPIN
	}
	if err := s.kv.Delete(ctx, pinHashKey); err != nil {
		return fmt.Errorf("failed to remove PIN: %w", err)
	}
	s.logger.Info().Msg("PIN removed")
	return nil
}

func (s *Service) signToken() (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.expiry)
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "portfolio",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken checks a token issued by VerifyPIN.
func (s *Service) ValidateToken(token string) error {
	if token == "" {
		return ErrInvalidToken
	}
	_, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return nil
}

// Ensure Service implements AuthService
var _ interfaces.AuthService = (*Service)(nil)
