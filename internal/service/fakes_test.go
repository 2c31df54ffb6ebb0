package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"

	"userhub/api/internal/mail"
	"userhub/api/internal/models"
	"userhub/api/internal/queue"
	"userhub/api/internal/repository"
	"userhub/api/internal/security"
)

// memoryUsers mimics the postgres repository, unique indexes included.
type memoryUsers struct {
	mu    sync.Mutex
	byID  map[string]models.User
	err   error
	skipU bool // simulate a pre-check that missed a concurrent insert
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: map[string]models.User{}}
}

func (m *memoryUsers) Create(ctx context.Context, u models.User) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.User{}, m.err
	}
	u.Email = strings.ToLower(u.Email)
	for _, existing := range m.byID {
		if existing.Username == u.Username {
			return models.User{}, repository.ErrUsernameTaken
		}
		if existing.Email == u.Email {
			return models.User{}, repository.ErrEmailTaken
		}
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.byID[u.ID] = u
	return u, nil
}

func (m *memoryUsers) find(match func(models.User) bool) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.User{}, m.err
	}
	if m.skipU {
		return models.User{}, repository.ErrUserNotFound
	}
	for _, u := range m.byID {
		if match(u) {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (m *memoryUsers) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return m.find(func(u models.User) bool { return u.Username == username })
}

func (m *memoryUsers) FindByEmail(ctx context.Context, email string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return m.find(func(u models.User) bool { return u.Email == email })
}

func (m *memoryUsers) FindByID(ctx context.Context, id string) (models.User, error) {
	return m.find(func(u models.User) bool { return u.ID == id })
}

func (m *memoryUsers) ReplaceFeatures(ctx context.Context, id string, remove, add []string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.User{}, m.err
	}
	u, ok := m.byID[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	for _, r := range remove {
		if !u.HasFeature(r) {
			return models.User{}, repository.ErrFeaturesChanged
		}
	}

	set := map[string]struct{}{}
	for _, f := range append(append([]string{}, u.Features...), add...) {
		set[f] = struct{}{}
	}
	for _, r := range remove {
		delete(set, r)
	}
	features := make([]string, 0, len(set))
	for f := range set {
		features = append(features, f)
	}
	sort.Strings(features)
	u.Features = features
	m.byID[id] = u
	return u, nil
}

func (m *memoryUsers) UpdateProfile(ctx context.Context, id, username, email, passwordHash string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	email = strings.ToLower(email)
	for _, other := range m.byID {
		if other.ID == id {
			continue
		}
		if username != "" && other.Username == username {
			return models.User{}, repository.ErrUsernameTaken
		}
		if email != "" && other.Email == email {
			return models.User{}, repository.ErrEmailTaken
		}
	}
	if username != "" {
		u.Username = username
	}
	if email != "" {
		u.Email = email
	}
	if passwordHash != "" {
		u.PasswordHash = passwordHash
	}
	m.byID[id] = u
	return u, nil
}

func (m *memoryUsers) get(id string) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

type memoryTokens struct {
	mu      sync.Mutex
	byID    map[string]models.ActivationToken
	marked  int
	markErr error
}

func newMemoryTokens() *memoryTokens {
	return &memoryTokens{byID: map[string]models.ActivationToken{}}
}

func (m *memoryTokens) Create(ctx context.Context, id, userID string, expiresAt time.Time) (models.ActivationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := models.ActivationToken{ID: id, UserID: userID, ExpiresAt: expiresAt}
	m.byID[id] = t
	return t, nil
}

func (m *memoryTokens) FindByID(ctx context.Context, id string) (models.ActivationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return models.ActivationToken{}, repository.ErrTokenNotFound
	}
	return t, nil
}

func (m *memoryTokens) FindValidByID(ctx context.Context, id string, now time.Time) (models.ActivationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok || !t.Redeemable(now) {
		return models.ActivationToken{}, repository.ErrTokenNotFound
	}
	return t, nil
}

func (m *memoryTokens) MarkUsed(ctx context.Context, id string) (models.ActivationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return models.ActivationToken{}, m.markErr
	}
	t, ok := m.byID[id]
	if !ok {
		return models.ActivationToken{}, repository.ErrTokenNotFound
	}
	t.Used = true
	m.byID[id] = t
	m.marked++
	return t, nil
}

func (m *memoryTokens) only() models.ActivationToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byID {
		return t
	}
	return models.ActivationToken{}
}

// memoryTx serializes transactions and restores both stores when fn fails.
type memoryTx struct {
	mu     sync.Mutex
	users  *memoryUsers
	tokens *memoryTokens
}

func (m *memoryTx) WithinTx(ctx context.Context, fn func(users UserStore, tokens TokenStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users.mu.Lock()
	users := make(map[string]models.User, len(m.users.byID))
	for k, v := range m.users.byID {
		users[k] = v
	}
	m.users.mu.Unlock()

	m.tokens.mu.Lock()
	tokens := make(map[string]models.ActivationToken, len(m.tokens.byID))
	for k, v := range m.tokens.byID {
		tokens[k] = v
	}
	marked := m.tokens.marked
	m.tokens.mu.Unlock()

	if err := fn(m.users, m.tokens); err != nil {
		m.users.mu.Lock()
		m.users.byID = users
		m.users.mu.Unlock()
		m.tokens.mu.Lock()
		m.tokens.byID = tokens
		m.tokens.marked = marked
		m.tokens.mu.Unlock()
		return err
	}
	return nil
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg mail.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type recordingQueue struct {
	jobs []queue.MailJob
}

func (q *recordingQueue) EnqueueMail(ctx context.Context, job queue.MailJob) error {
	q.jobs = append(q.jobs, job)
	return nil
}

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

type fixture struct {
	users      *memoryUsers
	tokens     *memoryTokens
	sender     *mockSender
	retries    *recordingQueue
	clock      *clock
	hasher     security.PasswordHasher
	issuer     *security.TokenIssuer
	activation *ActivationService
	register   *RegistrationService
	auth       *AuthenticationService
	profile    *ProfileService
}

func newFixture() *fixture {
	f := &fixture{
		users:   newMemoryUsers(),
		tokens:  newMemoryTokens(),
		sender:  &mockSender{},
		retries: &recordingQueue{},
		clock:   &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		hasher:  security.NewPasswordHasher(4),
	}
	f.issuer = security.NewTokenIssuer("test-secret", 24*time.Hour, f.clock.now)
	log := zerolog.Nop()
	tx := &memoryTx{users: f.users, tokens: f.tokens}
	f.activation = NewActivationService(f.tokens, f.users, tx, 15*time.Minute, f.clock.now, log)
	composer := mail.NewActivationComposer(mail.Address{Name: "UserHub", Address: "no-reply@userhub.local"}, "http://localhost:3000/activate")
	f.register = NewRegistrationService(f.users, f.activation, f.hasher, f.sender, composer, f.retries, log)
	f.auth = NewAuthenticationService(f.users, f.hasher, f.issuer, log)
	f.profile = NewProfileService(f.users, f.hasher, log)
	return f
}

func (f *fixture) mailOK() {
	f.sender.On("Send", mock.Anything, mock.Anything).Return(nil)
}

func alice() map[string]any {
	return map[string]any{"username": "alice", "email": "Alice@Ex.com", "password": "longenough1"}
}
