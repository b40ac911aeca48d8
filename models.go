package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole string

const (
	// RoleGuest is the role assigned to users created on first login
	RoleGuest UserRole = "guest"
	// RoleMember is a regular member
	RoleMember UserRole = "member"
	// RoleAdmin is an admin role
	RoleAdmin UserRole = "admin"
)

// ProviderData is the provider owned payload stored next to an identity key.
// Its content is opaque to everything but the provider that wrote it.
type ProviderData map[string]any

// String returns the value stored under key, or "" if missing
func (d ProviderData) String(key string) string {
	if d == nil {
		return ""
	}
	if v, ok := d[key].(string); ok {
		return v
	}
	return ""
}

// Without returns a copy of d minus the given keys
func (d ProviderData) Without(keys ...string) ProviderData {
	if d == nil {
		return nil
	}
	out := make(ProviderData, len(d))
	for k, v := range d {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Binding is the provider scoped sub-record of a User: the claimed identity
// for that provider and whatever the provider needs to re-verify it.
type Binding struct {
	ID   string       `bun:"id,nullzero,unique" json:"id,omitempty"`
	Data ProviderData `bun:"data,type:jsonb" json:"data,omitempty"`
}

// IsZero reports whether no identity is bound
func (b Binding) IsZero() bool {
	return b.ID == ""
}

// User is the user model. Each provider owns one embedded Binding whose
// columns are prefixed with the provider name (local_id, local_data, ...).
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role          UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	Local         Binding    `bun:"embed:local_" json:"local,omitempty"`
	Federated     Binding    `bun:"embed:federated_" json:"federated,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// BindingSlot gives typed access to one provider's sub-record on User
type BindingSlot func(u *User) *Binding

// bindingSlots enumerates the sub-records User carries. Registering a
// provider whose name has no slot here fails.
var bindingSlots = map[string]BindingSlot{
	"local":     func(u *User) *Binding { return &u.Local },
	"federated": func(u *User) *Binding { return &u.Federated },
}

// LookupBindingSlot returns the sub-record accessor for a provider name
func LookupBindingSlot(name string) (BindingSlot, bool) {
	slot, ok := bindingSlots[name]
	return slot, ok
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleGuest
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
