package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"election_client/pkg/api"
)

// Backend is the slice of the API the session store needs.
type Backend interface {
	Token(ctx context.Context, username, password string) (string, error)
	Me(ctx context.Context) (*api.Identity, error)
	Register(ctx context.Context, username, email, password string) error
}

// Store owns the session: the bearer credential and the authenticated
// identity. All transitions (restore, login, register, logout) go through
// here; other components only read.
type Store struct {
	backend Backend
	creds   *CredentialFile
	logger  *zap.Logger

	mu       sync.RWMutex
	identity *api.Identity
}

// NewStore creates a session store
func NewStore(backend Backend, creds *CredentialFile, logger *zap.Logger) *Store {
	return &Store{
		backend: backend,
		creds:   creds,
		logger:  logger,
	}
}

// Restore validates a persisted credential on startup. It resolves to an
// authenticated session when the credential still works and to an anonymous
// one otherwise; it never returns an error to the caller.
func (s *Store) Restore(ctx context.Context) bool {
	token, ok, err := s.creds.Load()
	if err != nil {
		s.logger.Warn("Failed to load persisted credential", zap.Error(err))
		return false
	}
	if !ok {
		return false
	}

	// Cheap local pre-check: if the token carries an exp claim that has
	// already passed, skip the round trip. The claim is read unverified;
	// the backend remains the authority.
	if err := checkExpiry(token); err != nil {
		s.logger.Info("Persisted credential expired, discarding")
		s.discard()
		return false
	}

	identity, err := s.backend.Me(ctx)
	if err != nil {
		s.logger.Info("Persisted credential rejected, discarding",
			zap.Error(err))
		s.discard()
		return false
	}

	s.mu.Lock()
	s.identity = identity
	s.mu.Unlock()

	s.logger.Info("Session restored", zap.String("username", identity.Username))
	return true
}

// Login exchanges credentials for a bearer token and resolves the identity.
// On failure the prior session is left untouched.
func (s *Store) Login(ctx context.Context, username, password string) error {
	token, err := s.backend.Token(ctx, username, password)
	if err != nil {
		s.logger.Warn("Login failed", zap.String("username", username))
		return fmt.Errorf("%s: %w", api.ErrorMessage(err), api.ErrAuthFailure)
	}

	// The new token must be visible for the identity fetch, but the prior
	// session survives until the login fully succeeds.
	prevToken, hadPrev := s.creds.Credential()

	if err := s.creds.Store(token); err != nil {
		return fmt.Errorf("persisting credential: %w", err)
	}

	identity, err := s.backend.Me(ctx)
	if err != nil {
		// The token worked moments ago; treat a failed identity fetch as a
		// failed login and put the prior credential back.
		s.rollback(prevToken, hadPrev)
		return fmt.Errorf("%s: %w", api.ErrorMessage(err), api.ErrAuthFailure)
	}

	s.mu.Lock()
	s.identity = identity
	s.mu.Unlock()

	s.logger.Info("Login successful",
		zap.String("username", identity.Username),
		zap.Bool("isAdmin", identity.IsAdmin))
	return nil
}

// Register creates an account. The new account is not logged in; the caller
// must follow up with Login.
func (s *Store) Register(ctx context.Context, username, email, password string) error {
	if err := s.backend.Register(ctx, username, email, password); err != nil {
		return fmt.Errorf("registering account: %w", err)
	}

	s.logger.Info("Account registered", zap.String("username", username))
	return nil
}

// Logout clears the credential and identity. Safe to call when already
// logged out.
func (s *Store) Logout() {
	s.discard()
	s.logger.Info("Logged out")
}

// Identity returns the authenticated identity, if any.
func (s *Store) Identity() (*api.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil, false
	}
	identity := *s.identity
	return &identity, true
}

// IsAuthenticated reports whether a user is logged in.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil
}

// IsAdmin reports whether the current user has the admin flag.
func (s *Store) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil && s.identity.IsAdmin
}

func (s *Store) discard() {
	s.mu.Lock()
	s.identity = nil
	s.mu.Unlock()

	if err := s.creds.Clear(); err != nil {
		s.logger.Warn("Failed to clear persisted credential", zap.Error(err))
	}
}

// rollback reinstates the credential that was current before a failed login.
// The identity is untouched; only a successful login replaces it.
func (s *Store) rollback(prevToken string, hadPrev bool) {
	var err error
	if hadPrev {
		err = s.creds.Store(prevToken)
	} else {
		err = s.creds.Clear()
	}
	if err != nil {
		s.logger.Warn("Failed to restore prior credential", zap.Error(err))
	}
}

// checkExpiry returns api.ErrSessionExpired when the bearer token carries an
// exp claim in the past. Unparseable tokens pass; the backend decides.
func checkExpiry(token string) error {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return api.ErrSessionExpired
	}
	return nil
}
