// Package session holds the single source of truth for who is logged in.
//
// A Store is built once per process around a storage.Store and shared by
// everything that needs the bearer token, the current user or the cached
// CSRF token. Only Login, Logout and Rehydrate change who is logged in.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/petshop-dev/petshop/internal/storage"
)

// ErrNotAuthenticated is returned by helpers that need a logged-in user
var ErrNotAuthenticated = errors.New("not authenticated. Please run 'petshop login' first")

// State is the lifecycle position of a Store
type State int

const (
	StateUnknown State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Session is a point-in-time copy of the store's state
type Session struct {
	Token           string       `json:"token"`
	User            *UserSummary `json:"user"`
	IsAuthenticated bool         `json:"isAuthenticated"`
}

// Store owns the session and the cached CSRF token.
type Store struct {
	mu      sync.RWMutex
	storage storage.Store
	log     zerolog.Logger

	state      State
	token      string
	user       *UserSummary
	csrf       string
	csrfCookie string
}

// New creates a store in StateUnknown. Call Rehydrate before use.
func New(store storage.Store, log zerolog.Logger) *Store {
	return &Store{
		storage: store,
		log:     log.With().Str("component", "session").Logger(),
		state:   StateUnknown,
	}
}

// Login records a successful credential exchange. Memory is always
// updated; a storage failure is returned so the caller can warn that the
// session will not survive a restart.
func (s *Store) Login(token string, user UserSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := user
	s.token = token
	s.user = &u
	s.state = StateAuthenticated

	userJSON, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	record, err := json.Marshal(Session{Token: token, User: &u, IsAuthenticated: true})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	var errs []error
	if err := s.storage.Set(storage.KeyToken, token); err != nil {
		errs = append(errs, err)
	}
	if err := s.storage.Set(storage.KeyUser, string(userJSON)); err != nil {
		errs = append(errs, err)
	}
	if err := s.storage.Set(storage.KeyAuthStorage, string(record)); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to persist session: %w", errors.Join(errs...))
	}

	s.log.Debug().Uint("user_id", u.ID).Str("role", u.Role.String()).Msg("Session started")
	return nil
}

// Logout clears the session and the cached CSRF token from memory and
// storage. Calling it while logged out is a no-op with the same end state.
func (s *Store) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.clearLocked()
}

func (s *Store) clearLocked() error {
	s.token = ""
	s.user = nil
	s.csrf = ""
	s.csrfCookie = ""
	s.state = StateAnonymous

	var errs []error
	for _, key := range []string{storage.KeyToken, storage.KeyUser, storage.KeyCSRFToken, storage.KeyCSRFCookie, storage.KeyAuthStorage} {
		if err := s.storage.Remove(key); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to clear session: %w", errors.Join(errs...))
	}
	return nil
}

// Rehydrate restores the session from storage. A token without a valid
// user record, or a user record without a token, is treated as corrupt and
// cleared. A storage read failure is treated the same way: the session is
// cleared and the read error returned.
func (s *Store) Rehydrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, tokenErr := s.storage.Get(storage.KeyToken)
	userStr, userErr := s.storage.Get(storage.KeyUser)

	if err := readError(tokenErr, userErr); err != nil {
		s.log.Warn().Err(err).Msg("Unreadable stored session, clearing")
		if clearErr := s.clearLocked(); clearErr != nil {
			err = errors.Join(err, clearErr)
		}
		return fmt.Errorf("failed to read session: %w", err)
	}

	hasToken := tokenErr == nil && token != ""
	hasUser := userErr == nil && userStr != ""

	if !hasToken && !hasUser {
		s.token, s.user = "", nil
		s.state = StateAnonymous
		s.loadCSRFLocked()
		return nil
	}

	if !hasToken || !hasUser {
		s.log.Warn().Bool("has_token", hasToken).Bool("has_user", hasUser).Msg("Incomplete stored session, clearing")
		return s.clearLocked()
	}

	user, err := ParseUser(userStr)
	if err != nil {
		s.log.Warn().Err(err).Msg("Corrupt stored user, clearing session")
		return s.clearLocked()
	}

	s.token = token
	s.user = user
	s.state = StateAuthenticated
	s.loadCSRFLocked()

	return nil
}

func readError(errs ...error) error {
	for _, err := range errs {
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	return nil
}

func (s *Store) loadCSRFLocked() {
	csrf, err := s.storage.Get(storage.KeyCSRFToken)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn().Err(err).Msg("Failed to read cached CSRF token")
		}
		s.csrf = ""
		return
	}
	s.csrf = csrf

	cookie, err := s.storage.Get(storage.KeyCSRFCookie)
	if err != nil {
		s.csrfCookie = ""
		return
	}
	s.csrfCookie = cookie
}

// State returns the lifecycle state
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Token returns the bearer token, or "" when anonymous
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the current user, or nil when anonymous
func (s *Store) User() *UserSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// IsAuthenticated reports whether a token and user are both held
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateAuthenticated
}

// Snapshot returns a copy of the session
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Session{Token: s.token, IsAuthenticated: s.state == StateAuthenticated}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

// RequireUser returns the current user or ErrNotAuthenticated
func (s *Store) RequireUser() (*UserSummary, error) {
	user := s.User()
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	return user, nil
}

// Claims decodes the held bearer token for display
func (s *Store) Claims() (*TokenClaims, error) {
	token := s.Token()
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	return ParseClaims(token)
}

// CSRFToken returns the cached CSRF token, or "" when none is cached
func (s *Store) CSRFToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.csrf
}

// SetCSRFToken caches token in memory and mirrors it to storage. The
// memory copy is kept even if the storage write fails.
func (s *Store) SetCSRFToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.csrf = token
	if err := s.storage.Set(storage.KeyCSRFToken, token); err != nil {
		return fmt.Errorf("failed to persist CSRF token: %w", err)
	}
	return nil
}

// CSRFCookie returns the serialized double-submit cookie paired with the
// cached CSRF token, or "" when none is held
func (s *Store) CSRFCookie() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.csrfCookie
}

// SetCSRFCookie caches the serialized cookie and mirrors it to storage. An
// empty value removes it.
func (s *Store) SetCSRFCookie(cookie string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.csrfCookie = cookie
	var err error
	if cookie == "" {
		err = s.storage.Remove(storage.KeyCSRFCookie)
	} else {
		err = s.storage.Set(storage.KeyCSRFCookie, cookie)
	}
	if err != nil {
		return fmt.Errorf("failed to persist CSRF cookie: %w", err)
	}
	return nil
}
