package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rryowa/storefront/internal/models"
)

func TestSessionState_Transitions(t *testing.T) {
	s := NewSessionState()
	assert.Equal(t, models.Session{Loading: true}, s.Snapshot())

	var seen []models.Session
	unsubscribe := s.Subscribe(func(sess models.Session) { seen = append(seen, sess) })

	user := &models.User{ID: "1", Email: "a@b.com"}
	s.setUser(user)
	assert.Equal(t, models.Session{User: user, IsAuthenticated: true}, s.Snapshot())

	// A nil user keeps the cached one.
	s.setUser(nil)
	assert.Same(t, user, s.Snapshot().User)

	s.patchUser(func(u *models.User) { u.FirstName = "Ayse" })
	assert.Equal(t, "Ayse", s.Snapshot().User.FirstName)
	assert.Empty(t, user.FirstName)

	s.setAnonymous()
	assert.Equal(t, models.Session{}, s.Snapshot())
	assert.Len(t, seen, 4)

	unsubscribe()
	s.setUser(user)
	assert.Len(t, seen, 4)
}

func TestSessionState_PatchWithoutUser(t *testing.T) {
	s := NewSessionState()
	s.setAnonymous()

	s.patchUser(func(u *models.User) { u.TwoFactorEnabled = true })
	assert.Nil(t, s.Snapshot().User)
}
