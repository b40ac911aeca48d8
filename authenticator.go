package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
)

// Auther runs provider verification and turns outcomes into users. It is
// the only component that writes new records.
type Auther struct {
	registry         *Registry
	repo             UserRepository
	signupOnLogin    bool
	deterministicIDs bool
	activitySink     ActivitySink
	logger           Logger
	loggerProvider   LoggerProvider
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator. Signup on login is enabled
// by default: an unknown identity presenting a valid attempt is created.
func NewAuthenticator(registry *Registry, repo UserRepository) *Auther {
	lp, logger := ResolveLogger("auth", nil, nil)
	return &Auther{
		registry:       registry,
		repo:           repo,
		signupOnLogin:  true,
		activitySink:   noopActivitySink{},
		logger:         logger,
		loggerProvider: lp,
	}
}

// WithLogger sets the logger used by the authenticator
func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithLoggerProvider resolves the "auth" logger from provider
func (s *Auther) WithLoggerProvider(provider LoggerProvider) *Auther {
	s.loggerProvider, s.logger = ResolveLogger("auth", provider, s.logger)
	return s
}

// WithSignupOnLogin toggles implicit account creation on Login. When
// disabled an unknown identity is rejected exactly like a wrong secret.
func (s *Auther) WithSignupOnLogin(enabled bool) *Auther {
	s.signupOnLogin = enabled
	return s
}

// WithDeterministicIDs derives user IDs from provider and identity so
// the same binding always maps to the same ID.
func (s *Auther) WithDeterministicIDs(enabled bool) *Auther {
	s.deterministicIDs = enabled
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// Registry returns the provider registry
func (s *Auther) Registry() *Registry {
	return s.registry
}

// SignupOnLogin reports whether Login creates unknown identities
func (s *Auther) SignupOnLogin() bool {
	return s.signupOnLogin
}

// Login verifies attempt with the named provider and returns the resolved
// user, creating it when the identity is new and signup on login is on.
func (s *Auther) Login(ctx context.Context, providerName string, attempt Attempt) (*User, error) {
	provider, err := s.registry.Get(providerName)
	if err != nil {
		s.logger.Warn("login with unknown provider", "provider", providerName)
		s.emitFailure(ctx, providerName, attempt, err)
		return nil, err
	}

	outcome, err := provider.Verify(ctx, attempt)
	if err != nil {
		s.logVerifyError("login", providerName, err)
		s.emitFailure(ctx, providerName, attempt, err)
		return nil, err
	}

	switch outcome.Kind {
	case OutcomeAuthenticated:
		s.emitAuthEvent(ctx, ActivityEventLoginSuccess, userActor(outcome.User), providerName, outcome.User.ID.String(), map[string]any{
			"identity": attempt.ClaimedIdentity,
		})
		return outcome.User, nil

	case OutcomeNewIdentity:
		if !s.signupOnLogin {
			err := withSource(ErrInvalidCredentials, nil, map[string]any{
				"provider": providerName,
			})
			s.logger.Debug("login for unknown identity with signup disabled", "provider", providerName)
			s.emitFailure(ctx, providerName, attempt, err)
			return nil, err
		}
		return s.persist(ctx, providerName, attempt, outcome.Profile)

	default:
		err := withSource(ErrInvalidCredentials, nil, map[string]any{
			"provider": providerName,
		})
		s.emitFailure(ctx, providerName, attempt, err)
		return nil, err
	}
}

// Register creates a new identity with the named provider. An identity that
// already exists yields ErrIdentityConflict.
func (s *Auther) Register(ctx context.Context, providerName string, attempt Attempt) (*User, error) {
	provider, err := s.registry.Get(providerName)
	if err != nil {
		s.emitFailure(ctx, providerName, attempt, err)
		return nil, err
	}

	if err := attempt.Validate(false); err != nil {
		s.emitFailure(ctx, providerName, attempt, err)
		return nil, err
	}

	fields := provider.Fields()
	existing, err := s.repo.FindByField(ctx, fields.IdentityField, attempt.ClaimedIdentity)
	switch {
	case err == nil && existing != nil:
		return nil, s.conflict(ctx, providerName, attempt, nil)
	case err != nil && !repository.IsRecordNotFound(err):
		err = withSource(ErrRepositoryUnavailable, err, map[string]any{
			"provider": providerName,
		})
		s.logger.Error("register lookup failed", "provider", providerName, "error", err)
		s.emitFailure(ctx, providerName, attempt, err)
		return nil, err
	}

	outcome, err := provider.Verify(ctx, attempt)
	if err != nil {
		s.logVerifyError("register", providerName, err)
		s.emitFailure(ctx, providerName, attempt, err)
		return nil, err
	}

	switch outcome.Kind {
	case OutcomeNewIdentity:
		return s.persist(ctx, providerName, attempt, outcome.Profile)
	case OutcomeAuthenticated:
		// created between the lookup and Verify
		return nil, s.conflict(ctx, providerName, attempt, nil)
	default:
		err := withSource(ErrInvalidCredentials, nil, map[string]any{
			"provider": providerName,
		})
		s.emitFailure(ctx, providerName, attempt, err)
		return nil, err
	}
}

// Logout records the end of a session for user
func (s *Auther) Logout(ctx context.Context, providerName string, user *User) {
	userID := ""
	if user != nil {
		userID = user.ID.String()
	}
	s.emitAuthEvent(ctx, ActivityEventLogout, userActor(user), providerName, userID, nil)
}

// persist creates profile. It runs after derivation so no transaction is
// held while the secret is hashed.
func (s *Auther) persist(ctx context.Context, providerName string, attempt Attempt, profile *User) (*User, error) {
	if profile == nil {
		err := withSource(ErrDerivationFailure, nil, map[string]any{
			"provider": providerName,
			"reason":   "provider returned no profile",
		})
		s.emitFailure(ctx, providerName, attempt, err)
		return nil, err
	}

	if s.deterministicIDs {
		if id, err := hashid.NewUUID(providerName + ":" + attempt.ClaimedIdentity); err == nil {
			profile.ID = id
		} else {
			s.logger.Warn("unable to derive deterministic user id", "provider", providerName, "error", err)
		}
	}

	created, err := s.repo.Create(ctx, profile)
	if err != nil {
		if IsIdentityConflict(err) || isUniqueViolation(err) {
			return nil, s.conflict(ctx, providerName, attempt, err)
		}

		if !IsRepositoryUnavailable(err) {
			err = withSource(ErrRepositoryUnavailable, err, map[string]any{
				"provider": providerName,
			})
		}
		s.logger.Error("unable to persist new identity", "provider", providerName, "error", err)
		s.emitFailure(ctx, providerName, attempt, err)
		return nil, err
	}

	s.logger.Info("created user for new identity", "provider", providerName, "user_id", created.ID.String())
	s.emitAuthEvent(ctx, ActivityEventSignup, userActor(created), providerName, created.ID.String(), map[string]any{
		"identity": attempt.ClaimedIdentity,
	})

	return created, nil
}

func (s *Auther) conflict(ctx context.Context, providerName string, attempt Attempt, source error) error {
	err := source
	if !IsIdentityConflict(source) {
		err = withSource(ErrIdentityConflict, source, map[string]any{
			"provider": providerName,
		})
	}

	s.logger.Info("identity already exists", "provider", providerName)
	s.emitAuthEvent(ctx, ActivityEventSignupConflict, ActorRef{Type: "unknown"}, providerName, "", map[string]any{
		"identity": attempt.ClaimedIdentity,
	})
	return err
}

func (s *Auther) logVerifyError(op, providerName string, err error) {
	switch {
	case IsInvalidCredentials(err), IsInvalidInput(err):
		s.logger.Debug(op+" rejected", "provider", providerName, "error", err)
	default:
		s.logger.Error(op+" verify error", "provider", providerName, "error", err)
	}
}

func (s *Auther) emitFailure(ctx context.Context, providerName string, attempt Attempt, err error) {
	meta := map[string]any{
		"identity": attempt.ClaimedIdentity,
	}
	if rich, ok := asRichError(err); ok {
		meta["code"] = rich.TextCode
	} else if err != nil {
		meta["error"] = err.Error()
	}
	s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, providerName, "", meta)
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, providerName, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType:  eventType,
		Actor:      actor,
		Provider:   providerName,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error", "error", err)
	}
}

func userActor(user *User) ActorRef {
	if user == nil {
		return ActorRef{Type: "unknown"}
	}
	return ActorRef{
		ID:   user.ID.String(),
		Type: "user",
	}
}
