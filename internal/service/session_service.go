package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RodenPaul86/docmatic/internal/models"
	appErrors "github.com/RodenPaul86/docmatic/pkg/errors"
)

type quotaSyncer interface {
	Sync(ctx context.Context) error
}

// SessionConfig configures session tokens.
type SessionConfig struct {
	Secret string
	Issuer string
	Expiry time.Duration
}

// SessionService issues session tokens and forwards lifecycle transitions to the lock gate.
type SessionService struct {
	gate   *LockGate
	quota  quotaSyncer
	config SessionConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(gate *LockGate, quota quotaSyncer, cfg SessionConfig, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = 12 * time.Hour
	}
	return &SessionService{gate: gate, quota: quota, config: cfg, logger: logger, now: time.Now}
}

// Start opens a session with nothing authenticated and resynchronizes the quota from the store.
func (s *SessionService) Start(ctx context.Context) (*models.SessionToken, error) {
	sessionID := uuid.NewString()
	issuedAt := s.now().UTC()
	claims := &models.SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   sessionID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.Expiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign session token")
	}

	s.gate.StartSession(sessionID, issuedAt.Add(s.config.Expiry))
	if s.quota != nil {
		if err := s.quota.Sync(ctx); err != nil {
			s.logger.Warn("quota sync on session start failed", zap.Error(err))
		}
	}

	return &models.SessionToken{
		Token:     signed,
		SessionID: sessionID,
		ExpiresIn: int64(s.config.Expiry.Seconds()),
	}, nil
}

// ValidateToken parses a session token and returns its claims.
func (s *SessionService) ValidateToken(tokenString string) (*models.SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid session token")
	}

	claims, ok := token.Claims.(*models.SessionClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid session claims")
	}
	return claims, nil
}

// End discards all authentication and viewer state for the session.
func (s *SessionService) End(sessionID string) {
	s.gate.EndSession(sessionID)
}

// Background revokes authentication and closes viewers of locked documents.
func (s *SessionService) Background(sessionID string) {
	s.gate.OnBackground(sessionID)
}

// Foreground returns the session to the active state and refreshes the quota count.
func (s *SessionService) Foreground(ctx context.Context, sessionID string) error {
	s.gate.OnForeground(sessionID)
	if s.quota == nil {
		return nil
	}
	return s.quota.Sync(ctx)
}
