package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medrisk/internal/authz"
	"medrisk/internal/models"
)

func newTestSessionService(t *testing.T) (SessionService, *fakeSessionRepo, *fakeUserRepo) {
	t.Helper()
	users := newFakeUserRepo()
	sessions := newFakeSessionRepo()
	svc := NewSessionService(sessions, users, SessionTTLs{
		User:  24 * time.Hour,
		Admin: 7 * 24 * time.Hour,
		OAuth: 24 * time.Hour,
	})
	return svc, sessions, users
}

func createTestUser(t *testing.T, users *fakeUserRepo, role authz.Role) *models.User {
	t.Helper()
	u := &models.User{
		Email:        "a@b.com",
		Name:         "A",
		PasswordHash: "$2a$10$x",
		Role:         role,
	}
	require.NoError(t, users.Create(u))
	return u
}

func TestSessionCreateAndValidate(t *testing.T) {
	svc, _, users := newTestSessionService(t)
	u := createTestUser(t, users, authz.RoleUser)

	sess, err := svc.CreateFor(u, LoginPathUser)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), sess.ExpiresAt, time.Minute)

	got, err := svc.Validate(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, authz.RoleUser, got.Role)
}

func TestSessionAdminPathGetsLongerTTL(t *testing.T) {
	svc, _, users := newTestSessionService(t)
	u := createTestUser(t, users, authz.RoleAdmin)

	sess, err := svc.CreateFor(u, LoginPathAdmin)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), sess.ExpiresAt, time.Minute)
}

func TestSessionValidateFailsClosed(t *testing.T) {
	svc, sessions, users := newTestSessionService(t)
	u := createTestUser(t, users, authz.RoleUser)

	// мусорный токен
	_, err := svc.Validate("")
	assert.ErrorIs(t, err, ErrSessionInvalid)
	_, err = svc.Validate("no-such-token")
	assert.ErrorIs(t, err, ErrSessionInvalid)

	// только что истёкшая сессия — та же ошибка, не паника
	expired := &models.Session{Token: "tok-expired", UserID: u.ID, ExpiresAt: time.Now().Add(-time.Second)}
	require.NoError(t, sessions.Create(expired))
	_, err = svc.Validate("tok-expired")
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestSessionRefreshRotatesToken(t *testing.T) {
	svc, _, users := newTestSessionService(t)
	u := createTestUser(t, users, authz.RoleUser)

	sess, err := svc.CreateFor(u, LoginPathUser)
	require.NoError(t, err)

	ns, err := svc.Refresh(sess.Token)
	require.NoError(t, err)
	assert.NotEqual(t, sess.Token, ns.Token)

	// старый токен инвалидирован ротацией
	_, err = svc.Validate(sess.Token)
	assert.ErrorIs(t, err, ErrSessionInvalid)

	got, err := svc.Validate(ns.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestSessionRefreshDoesNotResurrect(t *testing.T) {
	svc, sessions, users := newTestSessionService(t)
	u := createTestUser(t, users, authz.RoleUser)

	expired := &models.Session{Token: "tok-expired", UserID: u.ID, ExpiresAt: time.Now().Add(-time.Minute)}
	require.NoError(t, sessions.Create(expired))

	_, err := svc.Refresh("tok-expired")
	assert.ErrorIs(t, err, ErrSessionInvalid)
	// истёкшая сессия осталась единственной строкой — новой не появилось
	assert.Equal(t, 1, sessions.count())

	_, err = svc.Refresh("never-existed")
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestSessionRevokeIdempotent(t *testing.T) {
	svc, _, users := newTestSessionService(t)
	u := createTestUser(t, users, authz.RoleUser)

	sess, err := svc.CreateFor(u, LoginPathUser)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(sess.Token))
	_, err = svc.Validate(sess.Token)
	assert.ErrorIs(t, err, ErrSessionInvalid)

	// повторный revoke того же токена — не ошибка
	require.NoError(t, svc.Revoke(sess.Token))
}

func TestSessionMultiDevice(t *testing.T) {
	svc, _, users := newTestSessionService(t)
	u := createTestUser(t, users, authz.RoleUser)

	s1, err := svc.CreateFor(u, LoginPathUser)
	require.NoError(t, err)
	s2, err := svc.CreateFor(u, LoginPathUser)
	require.NoError(t, err)
	assert.NotEqual(t, s1.Token, s2.Token)

	// отзыв одной сессии не трогает вторую
	require.NoError(t, svc.Revoke(s1.Token))
	_, err = svc.Validate(s2.Token)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAllForUser(u.ID))
	_, err = svc.Validate(s2.Token)
	assert.ErrorIs(t, err, ErrSessionInvalid)
}
