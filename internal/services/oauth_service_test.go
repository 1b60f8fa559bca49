package services

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"medrisk/internal/authz"
	"medrisk/internal/models"
	"medrisk/internal/oauth"
)

// fakeProvider записывает вызовы, чтобы проверять порядок шагов
// (state до обмена) и отсутствие лишних походов к провайдеру.
type fakeProvider struct {
	mu            sync.Mutex
	name          string
	profile       *oauth.Profile
	exchangeErr   error
	profileErr    error
	exchangeCalls int
	profileCalls  int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://provider.example/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchangeCalls++
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return &oauth2.Token{AccessToken: "at-" + code}, nil
}

func (p *fakeProvider) FetchProfile(ctx context.Context, token *oauth2.Token) (*oauth.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profileCalls++
	if p.profileErr != nil {
		return nil, p.profileErr
	}
	cp := *p.profile
	return &cp, nil
}

type oauthFixture struct {
	svc      OAuthService
	provider *fakeProvider
	users    *fakeUserRepo
	fed      *fakeFedRepo
	states   *fakeStateRepo
	sessions *fakeSessionRepo
	sessSvc  SessionService
	auth     AuthService
}

func newOAuthFixture(t *testing.T) *oauthFixture {
	t.Helper()
	users := newFakeUserRepo()
	fed := newFakeFedRepo()
	states := newFakeStateRepo()
	sessions := newFakeSessionRepo()
	auth := NewAuthService()
	sessSvc := NewSessionService(sessions, users, SessionTTLs{User: time.Hour, Admin: time.Hour, OAuth: 30 * time.Minute})
	provider := &fakeProvider{
		name: "google",
		profile: &oauth.Profile{
			Provider:       "google",
			ProviderUserID: "g-12345",
			Name:           "Test User",
			Email:          "OAuth@Example.com",
		},
	}
	svc := NewOAuthService([]oauth.Provider{provider}, states, fed, users, sessSvc, auth, 10*time.Minute)
	return &oauthFixture{svc: svc, provider: provider, users: users, fed: fed, states: states, sessions: sessions, sessSvc: sessSvc, auth: auth}
}

// stateFromURL достаёт выписанный state из URL авторизации.
func stateFromURL(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestOAuthStartUnknownProvider(t *testing.T) {
	f := newOAuthFixture(t)
	_, err := f.svc.Start("facebook")
	assert.Error(t, err)
}

func TestOAuthNewUserCreated(t *testing.T) {
	f := newOAuthFixture(t)

	raw, err := f.svc.Start("google")
	require.NoError(t, err)
	state := stateFromURL(t, raw)
	require.NotEmpty(t, state)

	user, sess, err := f.svc.Callback(context.Background(), "google", "the-code", state)
	require.NoError(t, err)
	require.NotNil(t, user)
	require.NotNil(t, sess)

	// email нормализован, подтверждён провайдером, роль — обычный user
	assert.Equal(t, "oauth@example.com", user.Email)
	assert.True(t, user.EmailVerified)
	assert.Equal(t, authz.RoleUser, user.Role)

	// локальный пароль непригоден для входа
	assert.False(t, f.auth.CheckPassword(user.PasswordHash, ""))

	// сессия живёт по OAuth-TTL и валидна
	got, err := f.sessSvc.Validate(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), sess.ExpiresAt, 5*time.Second)

	// федеративная связь создана
	fi, err := f.fed.GetByProviderID("google", "g-12345")
	require.NoError(t, err)
	require.NotNil(t, fi)
	assert.Equal(t, user.ID, fi.UserID)
}

func TestOAuthLinksExistingEmail(t *testing.T) {
	f := newOAuthFixture(t)
	existing := &models.User{Email: "oauth@example.com", Name: "Local", PasswordHash: "x", Role: authz.RoleUser}
	require.NoError(t, f.users.Create(existing))

	raw, err := f.svc.Start("google")
	require.NoError(t, err)

	user, _, err := f.svc.Callback(context.Background(), "google", "the-code", stateFromURL(t, raw))
	require.NoError(t, err)

	// совпадающий email притягивает существующий аккаунт, дубликата нет
	assert.Equal(t, existing.ID, user.ID)
	count, _ := f.users.GetCount()
	assert.Equal(t, 1, count)
}

func TestOAuthRepeatLoginFindsLink(t *testing.T) {
	f := newOAuthFixture(t)

	raw, err := f.svc.Start("google")
	require.NoError(t, err)
	first, _, err := f.svc.Callback(context.Background(), "google", "c1", stateFromURL(t, raw))
	require.NoError(t, err)

	// второй вход: связь уже есть, новый аккаунт не создаётся даже при
	// смене email в профиле провайдера
	f.provider.profile.Email = "renamed@example.com"
	raw, err = f.svc.Start("google")
	require.NoError(t, err)
	second, _, err := f.svc.Callback(context.Background(), "google", "c2", stateFromURL(t, raw))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	count, _ := f.users.GetCount()
	assert.Equal(t, 1, count)
}

func TestOAuthStateMismatchBeforeExchange(t *testing.T) {
	f := newOAuthFixture(t)

	_, _, err := f.svc.Callback(context.Background(), "google", "the-code", "forged-state")
	assert.ErrorIs(t, err, ErrStateMismatch)

	// к провайдеру не ходили
	assert.Equal(t, 0, f.provider.exchangeCalls)
	assert.Equal(t, 0, f.provider.profileCalls)
}

func TestOAuthStateSingleUse(t *testing.T) {
	f := newOAuthFixture(t)

	raw, err := f.svc.Start("google")
	require.NoError(t, err)
	state := stateFromURL(t, raw)

	_, _, err = f.svc.Callback(context.Background(), "google", "c1", state)
	require.NoError(t, err)

	// повтор того же state отвергается до обмена
	_, _, err = f.svc.Callback(context.Background(), "google", "c2", state)
	assert.ErrorIs(t, err, ErrStateMismatch)
	assert.Equal(t, 1, f.provider.exchangeCalls)
}

func TestOAuthExchangeFailure(t *testing.T) {
	f := newOAuthFixture(t)
	f.provider.exchangeErr = fmt.Errorf("provider says no")

	raw, err := f.svc.Start("google")
	require.NoError(t, err)

	_, _, err = f.svc.Callback(context.Background(), "google", "bad-code", stateFromURL(t, raw))
	assert.ErrorIs(t, err, ErrProviderExchangeFailed)
	assert.Equal(t, 0, f.sessions.count())
}

func TestOAuthIncompleteProfile(t *testing.T) {
	f := newOAuthFixture(t)
	f.provider.profile.Email = ""

	raw, err := f.svc.Start("google")
	require.NoError(t, err)

	_, _, err = f.svc.Callback(context.Background(), "google", "c1", stateFromURL(t, raw))
	assert.ErrorIs(t, err, ErrProviderProfileIncomplete)

	count, _ := f.users.GetCount()
	assert.Equal(t, 0, count)
}

func TestOAuthDanglingIdentityRecovers(t *testing.T) {
	f := newOAuthFixture(t)

	raw, err := f.svc.Start("google")
	require.NoError(t, err)
	first, _, err := f.svc.Callback(context.Background(), "google", "c1", stateFromURL(t, raw))
	require.NoError(t, err)

	// пользователя удалили, связь осталась висеть
	require.NoError(t, f.users.Delete(first.ID))

	raw, err = f.svc.Start("google")
	require.NoError(t, err)
	second, _, err := f.svc.Callback(context.Background(), "google", "c2", stateFromURL(t, raw))
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)
}
