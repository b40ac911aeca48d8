package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is the decoded view of a session token
type Session interface {
	GetUserID() string
	GetUserUUID() (uuid.UUID, error)
	GetProvider() string
	GetIdentities() map[string]string
	GetRole() UserRole
	GetAudience() []string
	GetIssuer() string
	GetIssuedAt() *time.Time
	GetData() map[string]any
}

var _ Session = &SessionObject{}

type SessionObject struct {
	UserID         string            `json:"user_id,omitempty"`
	Provider       string            `json:"provider,omitempty"`
	Role           UserRole          `json:"role,omitempty"`
	Identities     map[string]string `json:"identities,omitempty"`
	Audience       []string          `json:"audience,omitempty"`
	Issuer         string            `json:"issuer,omitempty"`
	IssuedAt       *time.Time        `json:"issued_at,omitempty"`
	ExpirationDate *time.Time        `json:"expiration_date,omitempty"`
	Data           map[string]any    `json:"data,omitempty"`
}

func (s *SessionObject) GetUserID() string {
	return s.UserID
}

func (s *SessionObject) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

func (s *SessionObject) GetProvider() string {
	return s.Provider
}

func (s *SessionObject) GetIdentities() map[string]string {
	return s.Identities
}

// GetRole returns the session role, falling back to guest
func (s *SessionObject) GetRole() UserRole {
	if role, ok := ParseRole(string(s.Role)); ok {
		return role
	}
	return RoleGuest
}

func (s *SessionObject) GetAudience() []string {
	return s.Audience
}

func (s *SessionObject) GetIssuer() string {
	return s.Issuer
}

func (s *SessionObject) GetIssuedAt() *time.Time {
	return s.IssuedAt
}

func (s *SessionObject) GetData() map[string]any {
	return s.Data
}

// IsAtLeast checks if the user's role is at least the minimum required role
func (s *SessionObject) IsAtLeast(minRole UserRole) bool {
	return s.GetRole().IsAtLeast(minRole)
}

func (s SessionObject) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"user=%s provider=%s role=%s aud=%v iss=%s iat=%s",
		s.UserID,
		s.Provider,
		s.Role,
		s.Audience,
		s.Issuer,
		issuedAt,
	)
}

// sessionFromAuthClaims creates a SessionObject from AuthClaims
func sessionFromAuthClaims(claims AuthClaims) (*SessionObject, error) {
	if claims == nil {
		return nil, ErrUnableToDecodeSession
	}

	data := map[string]any{}
	issuer := claims.Subject()
	var audience []string

	if jwtClaims, ok := claims.(*JWTClaims); ok {
		if len(jwtClaims.Metadata) > 0 {
			data["metadata"] = jwtClaims.Metadata
		}
		for _, aud := range jwtClaims.RegisteredClaims.Audience {
			audience = append(audience, aud)
		}
		if jwtClaims.RegisteredClaims.Issuer != "" {
			issuer = jwtClaims.RegisteredClaims.Issuer
		}
	}

	issuedAt := claims.IssuedAt()
	expiresAt := claims.Expires()

	return &SessionObject{
		UserID:         claims.UserID(),
		Provider:       claims.Provider(),
		Role:           UserRole(claims.Role()),
		Identities:     claims.Identities(),
		Audience:       audience,
		Issuer:         issuer,
		Data:           data,
		IssuedAt:       &issuedAt,
		ExpirationDate: &expiresAt,
	}, nil
}

// HasUserUUID reports whether Session.GetUserUUID will succeed.
func HasUserUUID(session Session) bool {
	if session == nil {
		return false
	}
	_, err := session.GetUserUUID()
	return err == nil
}
