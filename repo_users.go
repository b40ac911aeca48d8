package auth

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the bun backed user store
type Users interface {
	UserRepository

	Base() repository.Repository[*User]
	FindByFieldTx(ctx context.Context, tx bun.IDB, field, value string) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users          = (*users)(nil)
	_ UserRepository = (*users)(nil)
)

// Base exposes the generic repository for queries outside the auth flow
func (a *users) Base() repository.Repository[*User] {
	return a.Repository
}

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) FindByField(ctx context.Context, field, value string) (*User, error) {
	return a.FindByFieldTx(ctx, a.db, field, value)
}

// FindByFieldTx looks a user up by one namespaced identity column. Only
// columns backed by a binding slot are accepted.
func (a *users) FindByFieldTx(ctx context.Context, tx bun.IDB, field, value string) (*User, error) {
	if !isIdentityColumn(field) {
		return nil, withSource(ErrInvalidInput, nil, map[string]any{
			"field": field,
		})
	}

	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(field), value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"field": field,
					"value": value,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

// CreateTx inserts record. A unique violation on any identity column is
// reported as ErrIdentityConflict, anything else as ErrRepositoryUnavailable.
func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)

	created, err := a.Repository.CreateTx(ctx, tx, record, criteria...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, withSource(ErrIdentityConflict, err, map[string]any{
				"user_id": record.ID.String(),
			})
		}
		return nil, withSource(ErrRepositoryUnavailable, err, map[string]any{
			"operation": "create",
		})
	}

	return created, nil
}

func isIdentityColumn(field string) bool {
	name, ok := strings.CutSuffix(field, identityFieldSuffix)
	if !ok {
		return false
	}
	_, ok = LookupBindingSlot(name)
	return ok
}
