package auth

import (
	"context"
	"database/sql"
	"log"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
}

type mngr struct {
	db    *bun.DB
	users Users
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:    db,
		users: NewUsersRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository manager requires a database", errors.CategoryInternal).
			WithTextCode(TextCodeRepositoryUnavailable)
	}

	if m.users == nil {
		return errors.New("repository users should be initialized", errors.CategoryInternal).
			WithTextCode(TextCodeRepositoryUnavailable)
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

// ProvisionUser creates user inside a transaction, failing with
// ErrIdentityConflict when any of its bound identities already exists.
// Secrets must be derived before calling.
func ProvisionUser(ctx context.Context, repos RepositoryManager, registry *Registry, user *User) (*User, error) {
	var created *User
	err := repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for name, identity := range registry.Identities(user) {
			fields, err := registry.Fields(name)
			if err != nil {
				return err
			}

			existing, err := repos.Users().FindByFieldTx(ctx, tx, fields.IdentityField, identity)
			if err == nil && existing != nil {
				return withSource(ErrIdentityConflict, nil, map[string]any{
					"provider": name,
				})
			}
			if err != nil && !repository.IsRecordNotFound(err) {
				return withSource(ErrRepositoryUnavailable, err, map[string]any{
					"provider": name,
				})
			}
		}

		var err error
		created, err = repos.Users().CreateTx(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
