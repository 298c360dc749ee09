package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/RodenPaul86/docmatic/internal/models"
	appErrors "github.com/RodenPaul86/docmatic/pkg/errors"
)

// Authenticator performs the possession check guarding locked documents.
type Authenticator interface {
	Authenticate(ctx context.Context, reason, credential string) error
}

// PasscodeAuthenticator checks a device passcode against a bcrypt hash.
type PasscodeAuthenticator struct {
	hash []byte
}

// NewPasscodeAuthenticator constructs the authenticator. An empty hash means the
// authenticator is unavailable.
func NewPasscodeAuthenticator(hash string) *PasscodeAuthenticator {
	return &PasscodeAuthenticator{hash: []byte(hash)}
}

// Authenticate implements Authenticator.
func (a *PasscodeAuthenticator) Authenticate(ctx context.Context, reason, credential string) error {
	if len(a.hash) == 0 {
		return appErrors.ErrBiometricsUnavailable
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(credential)); err != nil {
		return appErrors.ErrAuthenticationFailed
	}
	return nil
}

// defaultSessionTTL bounds sessions the gate learns about without StartSession.
const defaultSessionTTL = 12 * time.Hour

type lockSession struct {
	authenticated map[string]struct{}
	viewers       map[string]struct{}
	expiresAt     time.Time
}

func newLockSession(expiresAt time.Time) *lockSession {
	return &lockSession{
		authenticated: make(map[string]struct{}),
		viewers:       make(map[string]struct{}),
		expiresAt:     expiresAt,
	}
}

// LockGate holds per-session authentication and open viewers. Nothing here is persisted;
// a restart starts every session unauthenticated.
type LockGate struct {
	auth   Authenticator
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*lockSession
	now      func() time.Time
}

// NewLockGate constructs the gate.
func NewLockGate(auth Authenticator, logger *zap.Logger) *LockGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LockGate{auth: auth, logger: logger, sessions: make(map[string]*lockSession), now: time.Now}
}

// StartSession registers a new viewing session that the gate forgets after expiresAt.
// Sessions already past their expiry are dropped at the same time.
func (g *LockGate) StartSession(sessionID string, expiresAt time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if pruned := g.pruneLocked(); pruned > 0 {
		g.logger.Debug("expired lock sessions pruned", zap.Int("count", pruned))
	}
	g.sessions[sessionID] = newLockSession(expiresAt)
}

// PruneExpired drops every expired session and returns how many were removed.
func (g *LockGate) PruneExpired() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pruneLocked()
}

// SessionCount reports the number of tracked sessions.
func (g *LockGate) SessionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

// EndSession forgets everything about the session.
func (g *LockGate) EndSession(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sessions, sessionID)
}

// OnBackground returns every locked document to unauthenticated and closes their viewers.
func (g *LockGate) OnBackground(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.session(sessionID)
	for id := range s.authenticated {
		delete(s.viewers, id)
	}
	s.authenticated = make(map[string]struct{})
}

// OnForeground re-registers the session if it was pruned. Authentication is not restored.
func (g *LockGate) OnForeground(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session(sessionID)
}

// Authenticate runs the challenge for a locked document. On success the document stays
// visible to this session until it backgrounds or ends. The persisted lock flag is not touched.
func (g *LockGate) Authenticate(ctx context.Context, sessionID string, doc *models.Document, credential string) error {
	if doc == nil {
		return appErrors.ErrNotFound
	}
	if !doc.IsLocked {
		return nil
	}
	if g.auth == nil {
		return appErrors.ErrBiometricsUnavailable
	}

	err := g.auth.Authenticate(ctx, fmt.Sprintf("Unlock %q", doc.Name), credential)
	if err != nil {
		switch {
		case appErrors.Is(err, appErrors.ErrBiometricsUnavailable):
			return appErrors.ErrBiometricsUnavailable
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case appErrors.Is(err, appErrors.ErrAuthenticationFailed):
			return appErrors.ErrAuthenticationFailed
		default:
			g.logger.Warn("authenticator error", zap.String("document_id", doc.ID), zap.Error(err))
			return appErrors.Wrap(err, appErrors.ErrAuthenticationFailed.Code, appErrors.ErrAuthenticationFailed.Status, appErrors.ErrAuthenticationFailed.Message)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.session(sessionID).authenticated[doc.ID] = struct{}{}
	return nil
}

// IsAuthenticated reports whether the session passed the challenge for documentID.
func (g *LockGate) IsAuthenticated(sessionID, documentID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[sessionID]
	if !ok || !g.now().Before(s.expiresAt) {
		return false
	}
	_, authed := s.authenticated[documentID]
	return authed
}

// CanView reports whether page content may be shown. Only a locked document in an
// unauthenticated session is hidden.
func (g *LockGate) CanView(sessionID string, doc *models.Document) bool {
	if doc == nil {
		return false
	}
	if !doc.IsLocked {
		return true
	}
	return g.IsAuthenticated(sessionID, doc.ID)
}

// OpenViewer records that the session is displaying doc.
func (g *LockGate) OpenViewer(sessionID string, doc *models.Document) error {
	if !g.CanView(sessionID, doc) {
		return appErrors.ErrDocumentLocked
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session(sessionID).viewers[doc.ID] = struct{}{}
	return nil
}

// CloseViewer records that the session stopped displaying documentID.
func (g *LockGate) CloseViewer(sessionID, documentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.sessions[sessionID]; ok {
		delete(s.viewers, documentID)
	}
}

// IsViewerOpen reports whether the session is displaying documentID.
func (g *LockGate) IsViewerOpen(sessionID, documentID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[sessionID]
	if !ok {
		return false
	}
	_, open := s.viewers[documentID]
	return open
}

// ForceClose closes every viewer of documentID and drops any authentication for it.
// It returns the number of viewers closed.
func (g *LockGate) ForceClose(documentID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	closed := 0
	for _, s := range g.sessions {
		if _, open := s.viewers[documentID]; open {
			delete(s.viewers, documentID)
			closed++
		}
		delete(s.authenticated, documentID)
	}
	return closed
}

func (g *LockGate) session(sessionID string) *lockSession {
	s, ok := g.sessions[sessionID]
	if !ok || !g.now().Before(s.expiresAt) {
		s = newLockSession(g.now().Add(defaultSessionTTL))
		g.sessions[sessionID] = s
	}
	return s
}

func (g *LockGate) pruneLocked() int {
	now := g.now()
	pruned := 0
	for id, s := range g.sessions {
		if !now.Before(s.expiresAt) {
			delete(g.sessions, id)
			pruned++
		}
	}
	return pruned
}
