package auth_test

import (
	"context"
	"strings"
	"sync"

	auth "github.com/goliatone/go-auth-providers"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

// memUsers is an in-memory UserRepository enforcing unique identity keys
type memUsers struct {
	mu      sync.Mutex
	records []*auth.User
	// findErr and createErr simulate store faults
	findErr   error
	createErr error
	creates   int
}

var _ auth.UserRepository = (*memUsers)(nil)

func newMemUsers() *memUsers {
	return &memUsers{}
}

func (m *memUsers) FindByField(_ context.Context, field, value string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findErr != nil {
		return nil, m.findErr
	}

	slot, ok := auth.LookupBindingSlot(strings.TrimSuffix(field, "_id"))
	if !ok {
		return nil, auth.ErrInvalidInput.Clone()
	}

	for _, record := range m.records {
		if slot(record).ID == value {
			copied := *record
			return &copied, nil
		}
	}

	return nil, repository.NewRecordNotFound()
}

func (m *memUsers) Create(_ context.Context, record *auth.User, _ ...repository.InsertCriteria) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.creates++

	if m.createErr != nil {
		return nil, m.createErr
	}

	for _, existing := range m.records {
		if sameIdentity(existing.Local, record.Local) || sameIdentity(existing.Federated, record.Federated) {
			return nil, auth.ErrIdentityConflict.Clone()
		}
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Role == "" {
		record.Role = auth.RoleGuest
	}

	copied := *record
	m.records = append(m.records, &copied)
	return record, nil
}

func (m *memUsers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func sameIdentity(a, b auth.Binding) bool {
	return !a.IsZero() && a.ID == b.ID
}

// capturingSink records activity events
type capturingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (c *capturingSink) Record(_ context.Context, evt auth.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) ofType(eventType auth.ActivityEventType) []auth.ActivityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := []auth.ActivityEvent{}
	for _, evt := range c.events {
		if evt.EventType == eventType {
			out = append(out, evt)
		}
	}
	return out
}

type silentLogger struct{}

func (silentLogger) Trace(string, ...any) {}
func (silentLogger) Debug(string, ...any) {}
func (silentLogger) Info(string, ...any)  {}
func (silentLogger) Warn(string, ...any)  {}
func (silentLogger) Error(string, ...any) {}
func (silentLogger) Fatal(string, ...any) {}
func (silentLogger) WithContext(context.Context) auth.Logger {
	return silentLogger{}
}

type silentProvider struct{}

func (silentProvider) GetLogger(string) auth.Logger {
	return silentLogger{}
}

// MockConfig implements auth.Config
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) GetSigningKey() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetContextKey() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetTokenExpiration() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockConfig) GetExtendedTokenDuration() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockConfig) GetIssuer() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetAudience() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

func (m *MockConfig) GetSecureCookies() bool {
	args := m.Called()
	return args.Bool(0)
}

const testSigningKey = "test-signing-key-0123456789"

func newMockConfig() *MockConfig {
	cfg := new(MockConfig)
	cfg.On("GetSigningKey").Return(testSigningKey).Maybe()
	cfg.On("GetContextKey").Return("session").Maybe()
	cfg.On("GetTokenExpiration").Return(24).Maybe()
	cfg.On("GetExtendedTokenDuration").Return(720).Maybe()
	cfg.On("GetIssuer").Return("test-issuer").Maybe()
	cfg.On("GetAudience").Return([]string{"test:audience"}).Maybe()
	cfg.On("GetSecureCookies").Return(true).Maybe()
	return cfg
}

func newTestTokenService(cfg auth.Config) auth.TokenService {
	return auth.NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetTokenExpiration(),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		silentLogger{},
	)
}

// MockSessions implements auth.SessionEstablisher
type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) Establish(c router.Context, provider string, user *auth.User, extended bool) error {
	args := m.Called(c, provider, user, extended)
	return args.Error(0)
}

func (m *MockSessions) Clear(c router.Context) {
	m.Called(c)
}

// MockAuthenticator implements auth.Authenticator
type MockAuthenticator struct {
	mock.Mock
	registry *auth.Registry
}

func (m *MockAuthenticator) Login(ctx context.Context, providerName string, attempt auth.Attempt) (*auth.User, error) {
	args := m.Called(ctx, providerName, attempt)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockAuthenticator) Register(ctx context.Context, providerName string, attempt auth.Attempt) (*auth.User, error) {
	args := m.Called(ctx, providerName, attempt)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockAuthenticator) Logout(ctx context.Context, providerName string, user *auth.User) {
	m.Called(ctx, providerName, user)
}

func (m *MockAuthenticator) Registry() *auth.Registry {
	return m.registry
}

// newLocalProvider returns a local provider with the cheapest bcrypt cost
func newLocalProvider(repo auth.UserRepository) *auth.LocalProvider {
	p, err := auth.NewLocalProvider("User", repo, auth.LocalProviderOptions{
		BcryptCost: bcrypt.MinCost,
	})
	if err != nil {
		panic(err)
	}
	return p.WithLoggerProvider(silentProvider{})
}

type testStack struct {
	repo     *memUsers
	local    *auth.LocalProvider
	registry *auth.Registry
	auther   *auth.Auther
	sink     *capturingSink
}

func newTestStack() *testStack {
	repo := newMemUsers()
	local := newLocalProvider(repo)

	registry, err := auth.NewRegistry(local)
	if err != nil {
		panic(err)
	}

	sink := &capturingSink{}
	auther := auth.NewAuthenticator(registry, repo).
		WithLoggerProvider(silentProvider{}).
		WithActivitySink(sink)

	return &testStack{
		repo:     repo,
		local:    local,
		registry: registry,
		auther:   auther,
		sink:     sink,
	}
}
