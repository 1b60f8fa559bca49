package services

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"medrisk/internal/authz"
	"medrisk/internal/models"
)

// Фейки хранилища для сервисных тестов. Повторяют семантику SQL-слоя,
// включая условные обновления "check-then-mark-used" под мьютексом.

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: map[int]*models.User{}}
}

func (r *fakeUserRepo) Create(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == strings.ToLower(user.Email) {
			return fmt.Errorf("duplicate email")
		}
	}
	user.ID = r.nextID
	r.nextID++
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = time.Now()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(id int) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) GetByPhone(phone string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Phone != "" && u.Phone == strings.TrimSpace(phone) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) Update(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return fmt.Errorf("no such user")
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) UpdatePassword(userID int, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (r *fakeUserRepo) UpdateRole(userID int, role authz.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.Role = role
	}
	return nil
}

func (r *fakeUserRepo) MarkEmailVerified(userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.EmailVerified = true
	}
	return nil
}

func (r *fakeUserRepo) MarkPhoneVerified(userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.PhoneVerified = true
	}
	return nil
}

func (r *fakeUserRepo) Delete(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) List(limit, offset int) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []*models.User
	for id := 1; id < r.nextID; id++ {
		if u, ok := r.users[id]; ok {
			cp := *u
			res = append(res, &cp)
		}
	}
	if offset >= len(res) {
		return nil, nil
	}
	res = res[offset:]
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (r *fakeUserRepo) GetCount() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]*models.Session{}}
}

func (r *fakeSessionRepo) Create(s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.CreatedAt = time.Now()
	cp := *s
	r.sessions[s.Token] = &cp
	return nil
}

func (r *fakeSessionRepo) GetByToken(token string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSessionRepo) Rotate(oldToken string, ns *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.sessions[oldToken]
	if !ok {
		return sql.ErrNoRows
	}
	if old.UserID != ns.UserID {
		return fmt.Errorf("session rotate: user mismatch")
	}
	delete(r.sessions, oldToken)
	ns.CreatedAt = time.Now()
	cp := *ns
	r.sessions[ns.Token] = &cp
	return nil
}

func (r *fakeSessionRepo) Delete(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
	return nil
}

func (r *fakeSessionRepo) DeleteAllForUser(userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for t, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, t)
		}
	}
	return nil
}

func (r *fakeSessionRepo) DeleteExpired() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	now := time.Now()
	for t, s := range r.sessions {
		if s.ExpiresAt.Before(now) {
			delete(r.sessions, t)
			n++
		}
	}
	return n, nil
}

func (r *fakeSessionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

type fakeResetRepo struct {
	mu     sync.Mutex
	nextID int
	resets map[string]*models.PasswordReset
	users  *fakeUserRepo
}

func newFakeResetRepo(users *fakeUserRepo) *fakeResetRepo {
	return &fakeResetRepo{nextID: 1, resets: map[string]*models.PasswordReset{}, users: users}
}

func (r *fakeResetRepo) Create(userID int, token string, expiresAt time.Time) (*models.PasswordReset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pr := &models.PasswordReset{
		ID:        r.nextID,
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	r.nextID++
	r.resets[token] = pr
	cp := *pr
	return &cp, nil
}

func (r *fakeResetRepo) GetByToken(token string) (*models.PasswordReset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pr, ok := r.resets[token]
	if !ok {
		return nil, nil
	}
	cp := *pr
	return &cp, nil
}

// RedeemAndSetPassword — как в SQL: условный переход used FALSE->TRUE и
// смена пароля атомарно под мьютексом.
func (r *fakeResetRepo) RedeemAndSetPassword(token, passwordHash string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pr, ok := r.resets[token]
	if !ok || pr.Used || time.Now().After(pr.ExpiresAt) {
		return 0, sql.ErrNoRows
	}
	pr.Used = true
	if err := r.users.UpdatePassword(pr.UserID, passwordHash); err != nil {
		return 0, err
	}
	return pr.UserID, nil
}

func (r *fakeResetRepo) DeleteExpired() (int64, error) { return 0, nil }

type fakeVerificationRepo struct {
	mu     sync.Mutex
	nextID int64
	codes  []*models.VerificationCode
}

func newFakeVerificationRepo() *fakeVerificationRepo {
	return &fakeVerificationRepo{nextID: 1}
}

func (r *fakeVerificationRepo) Create(v *models.VerificationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v.ID = r.nextID
	r.nextID++
	v.CreatedAt = time.Now()
	cp := *v
	r.codes = append(r.codes, &cp)
	return nil
}

func (r *fakeVerificationRepo) matches(v *models.VerificationCode, destination string) bool {
	return (v.Email != "" && v.Email == strings.ToLower(destination)) ||
		(v.Phone != "" && v.Phone == destination)
}

func (r *fakeVerificationRepo) GetLatestActiveByDestination(destination string) (*models.VerificationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.codes) - 1; i >= 0; i-- {
		v := r.codes[i]
		if !v.Used && r.matches(v, destination) {
			cp := *v
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeVerificationRepo) GetLatestActiveByUser(userID int, vType models.VerificationType) (*models.VerificationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.codes) - 1; i >= 0; i-- {
		v := r.codes[i]
		if !v.Used && v.Type == vType && v.UserID != nil && *v.UserID == userID {
			cp := *v
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeVerificationRepo) CountRecentSends(destination string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var c int
	for _, v := range r.codes {
		if r.matches(v, destination) && !v.CreatedAt.Before(since) {
			c++
		}
	}
	return c, nil
}

func (r *fakeVerificationRepo) IncrementAttempts(id int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.codes {
		if v.ID == id {
			v.Attempts++
			return v.Attempts, nil
		}
	}
	return 0, sql.ErrNoRows
}

func (r *fakeVerificationRepo) MarkUsed(id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.codes {
		if v.ID == id && !v.Used && v.ExpiresAt.After(time.Now()) {
			v.Used = true
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeVerificationRepo) ExpireNow(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.codes {
		if v.ID == id {
			v.ExpiresAt = time.Now()
		}
	}
	return nil
}

func (r *fakeVerificationRepo) DeleteExpired() (int64, error) { return 0, nil }

// expireLatest — тестовый хук: состаривает последний код для назначения.
func (r *fakeVerificationRepo) expireLatest(destination string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.codes) - 1; i >= 0; i-- {
		if r.matches(r.codes[i], destination) {
			r.codes[i].ExpiresAt = time.Now().Add(-time.Second)
			return
		}
	}
}

type fakeStateRepo struct {
	mu     sync.Mutex
	states map[string]struct {
		provider  string
		expiresAt time.Time
	}
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{states: map[string]struct {
		provider  string
		expiresAt time.Time
	}{}}
}

func (r *fakeStateRepo) Create(state, provider string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state] = struct {
		provider  string
		expiresAt time.Time
	}{provider, expiresAt}
	return nil
}

func (r *fakeStateRepo) Consume(state, provider string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.states[state]
	if !ok || e.provider != provider || time.Now().After(e.expiresAt) {
		return false, nil
	}
	delete(r.states, state)
	return true, nil
}

func (r *fakeStateRepo) DeleteExpired() (int64, error) { return 0, nil }

type fakeFedRepo struct {
	mu    sync.Mutex
	links map[string]*models.FederatedIdentity
}

func newFakeFedRepo() *fakeFedRepo {
	return &fakeFedRepo{links: map[string]*models.FederatedIdentity{}}
}

func fedKey(provider, providerUserID string) string {
	return provider + "/" + providerUserID
}

func (r *fakeFedRepo) GetByProviderID(provider, providerUserID string) (*models.FederatedIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fi, ok := r.links[fedKey(provider, providerUserID)]
	if !ok {
		return nil, nil
	}
	cp := *fi
	return &cp, nil
}

func (r *fakeFedRepo) Link(provider, providerUserID string, userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := fedKey(provider, providerUserID)
	if _, ok := r.links[key]; ok {
		return nil // идемпотентность как у ON CONFLICT DO NOTHING
	}
	r.links[key] = &models.FederatedIdentity{
		ID:             len(r.links) + 1,
		Provider:       provider,
		ProviderUserID: providerUserID,
		UserID:         userID,
		CreatedAt:      time.Now(),
	}
	return nil
}

func (r *fakeFedRepo) ListByUser(userID int) ([]*models.FederatedIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []*models.FederatedIdentity
	for _, fi := range r.links {
		if fi.UserID == userID {
			cp := *fi
			res = append(res, &cp)
		}
	}
	return res, nil
}

type sentMail struct {
	to, kind, payload string
}

type fakeEmailService struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (f *fakeEmailService) record(to, kind, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("smtp unavailable")
	}
	f.sent = append(f.sent, sentMail{to: to, kind: kind, payload: payload})
	return nil
}

func (f *fakeEmailService) SendWelcomeEmail(email, name string) error {
	return f.record(email, "welcome", name)
}

func (f *fakeEmailService) SendPasswordResetEmail(email, token string) error {
	return f.record(email, "reset", token)
}

func (f *fakeEmailService) SendVerificationCodeEmail(email, code string) error {
	return f.record(email, "verify", code)
}

func (f *fakeEmailService) lastPayload() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].payload
}

func (f *fakeEmailService) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeSMSSender struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (f *fakeSMSSender) SendSMS(to, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("sms gateway unavailable")
	}
	f.sent = append(f.sent, sentMail{to: to, kind: "sms", payload: text})
	return nil
}

func (f *fakeSMSSender) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].payload
}
