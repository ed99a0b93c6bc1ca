// Package session holds the signed-in user and backend token for one
// browser session or one terminal user.
package session

import (
	"context"
	"sync"
	"time"

	"digital-clone/frontend/internal/models"
	"digital-clone/frontend/pkg/errors"
	"digital-clone/frontend/pkg/jwt"
	"digital-clone/frontend/pkg/logger"
)

// State is what a Persister stores
type State struct {
	Token string       `json:"token"`
	User  *models.User `json:"user,omitempty"`
}

// Persister loads and saves one session's state.
// Load returns nil, nil when nothing is stored.
type Persister interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, state *State) error
	Clear(ctx context.Context) error
}

// Authenticator exchanges credentials for a token
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*models.AuthResult, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResult, error)
}

// Store is a scoped session object. Views receive it explicitly;
// there is no process-wide current user.
type Store struct {
	mu        sync.RWMutex
	state     State
	persister Persister
	log       *logger.Logger
	now       func() time.Time
}

// NewStore creates an empty store backed by p
func NewStore(p Persister, log *logger.Logger) *Store {
	if p == nil {
		p = NewMemoryPersister()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Store{persister: p, log: log, now: time.Now}
}

// Hydrate loads persisted state. An expired token is discarded along
// with its persisted copy.
func (s *Store) Hydrate(ctx context.Context) error {
	st, err := s.persister.Load(ctx)
	if err != nil {
		s.log.LogError(err, "Failed to load session")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if st == nil || st.Token == "" {
		s.state = State{}
		return nil
	}
	if jwt.Expired(st.Token, s.now()) {
		s.log.Info("Discarding expired session")
		s.state = State{}
		return s.persister.Clear(ctx)
	}
	s.state = *st
	return nil
}

// Login signs in with the backend and persists the result
func (s *Store) Login(ctx context.Context, auth Authenticator, email, password string) (*models.User, error) {
	res, err := auth.Login(ctx, email, password)
	if err != nil {
		s.log.Warn("Login failed", "kind", string(errors.KindOf(err)))
		return nil, err
	}
	return s.adopt(ctx, res)
}

// Register creates an account, then behaves like Login
func (s *Store) Register(ctx context.Context, auth Authenticator, req models.RegisterRequest) (*models.User, error) {
	res, err := auth.Register(ctx, req)
	if err != nil {
		s.log.Warn("Registration failed", "kind", string(errors.KindOf(err)))
		return nil, err
	}
	return s.adopt(ctx, res)
}

func (s *Store) adopt(ctx context.Context, res *models.AuthResult) (*models.User, error) {
	st := State{Token: res.Token, User: res.User}
	if err := s.persister.Save(ctx, &st); err != nil {
		s.log.LogError(err, "Failed to persist session")
		return nil, err
	}

	s.mu.Lock()
	s.state = st
	s.mu.Unlock()

	if st.User != nil {
		s.log.WithUserID(st.User.ID).Info("Signed in")
	}
	return st.User, nil
}

// Logout clears the in-memory and persisted state
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.state = State{}
	s.mu.Unlock()

	return s.persister.Clear(ctx)
}

// Token returns the bearer token for backend calls
func (s *Store) Token() (string, error) {
	s.mu.RLock()
	token := s.state.Token
	s.mu.RUnlock()

	if token == "" {
		return "", errors.NewUnauthorizedError("TOKEN_MISSING", "sign in to continue")
	}
	if jwt.Expired(token, s.now()) {
		return "", errors.NewUnauthorizedError("TOKEN_EXPIRED", "session expired, sign in again")
	}
	return token, nil
}

// User returns the signed-in user, or nil
func (s *Store) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state.User == nil {
		return nil
	}
	u := *s.state.User
	return &u
}

// Authenticated reports whether Token would succeed
func (s *Store) Authenticated() bool {
	_, err := s.Token()
	return err == nil
}
