package client

import (
	"context"
	"errors"
	"sync"

	"taskflow/internal/model"
)

// ErrLoggedOut is returned by a Session after Logout.
var ErrLoggedOut = errors.New("session logged out")

// Session is an authenticated connection to the API. It is created by Login
// or Register and ends with Logout; Stores built from it are discarded with it.
type Session struct {
	api  *HTTPClient
	user model.User

	mu     sync.Mutex
	closed bool
	stores []*Store
}

func newSession(api *HTTPClient, user model.User) *Session {
	return &Session{api: api, user: user}
}

// User is the account the session was opened for.
func (s *Session) User() model.User {
	return s.user
}

// API exposes the client for calls that bypass the Store, such as Stats.
func (s *Session) API() *HTTPClient {
	return s.api
}

// NewStore creates an empty task collection bound to this session.
func (s *Session) NewStore(opts ...Option) (*Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrLoggedOut
	}
	store := NewStore(s.api, opts...)
	s.stores = append(s.stores, store)
	return store, nil
}

// Logout clears the server cookie and forgets local credentials, even when
// the server cannot be reached.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrLoggedOut
	}
	s.closed = true
	stores := s.stores
	s.stores = nil
	s.mu.Unlock()

	for _, store := range stores {
		store.discard()
	}
	err := s.api.logout(ctx)
	s.api.forgetSession()
	return err
}
