package service

import (
	"sync"

	"github.com/rryowa/storefront/internal/models"
)

// SessionState is the reactive {user, isAuthenticated, loading} readout.
// Subscribers are called synchronously after every change.
type SessionState struct {
	mu      sync.RWMutex
	session models.Session
	next    uint64
	subs    map[uint64]func(models.Session)
}

// NewSessionState starts in the loading state until the startup check runs.
func NewSessionState() *SessionState {
	return &SessionState{
		session: models.Session{Loading: true},
		subs:    make(map[uint64]func(models.Session)),
	}
}

func (s *SessionState) Snapshot() models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

func (s *SessionState) Subscribe(fn func(models.Session)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	id := s.next
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *SessionState) setUser(user *models.User) {
	s.update(func(sess *models.Session) {
		if user != nil {
			sess.User = user
		}
		sess.IsAuthenticated = true
		sess.Loading = false
	})
}

func (s *SessionState) setAnonymous() {
	s.update(func(sess *models.Session) {
		*sess = models.Session{}
	})
}

func (s *SessionState) update(mutate func(*models.Session)) {
	s.mu.Lock()
	mutate(&s.session)
	snapshot := s.session
	subs := make([]func(models.Session), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

// patchUser edits a copy of the cached user so earlier snapshots stay intact.
func (s *SessionState) patchUser(edit func(*models.User)) {
	s.update(func(sess *models.Session) {
		if sess.User == nil {
			return
		}
		u := *sess.User
		edit(&u)
		sess.User = &u
	})
}
