package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/spf13/cobra"

	auth "github.com/goliatone/go-auth-providers"
)

func newMigrateCommand() *cobra.Command {
	var rollback bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the user table migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			// migrations run below, not on open
			cfg.Persistence.Migrate = false

			app := &App{config: cfg, logger: newLogger(cfg.Debug)}
			if err := WithPersistence(ctx, app); err != nil {
				return err
			}
			defer app.Close()

			if !rollback {
				return runMigrations(ctx, app)
			}

			group, err := auth.Rollback(ctx, app.db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %s\n", group)
			return nil
		},
	}

	cmd.Flags().BoolVar(&rollback, "rollback", false, "roll back the last migration group")

	return cmd
}

func newDeriveCommand() *cobra.Command {
	var (
		scheme string
		cost   int
	)

	cmd := &cobra.Command{
		Use:   "derive [secret]",
		Short: "Print the derived form of a secret, read from stdin when omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := ""
			if len(args) == 1 {
				secret = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.Wrap(err, errors.CategoryBadInput, "unable to read secret")
				}
				secret = strings.TrimRight(line, "\r\n")
			}

			deriver, err := auth.NewSecretDeriver(scheme, cost, auth.NewArgon2Deriver())
			if err != nil {
				return err
			}

			derived, err := deriver.Derive(secret)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), derived)
			return nil
		},
	}

	cmd.Flags().StringVar(&scheme, "scheme", "bcrypt", "derivation scheme: bcrypt or argon2id")
	cmd.Flags().IntVar(&cost, "cost", 0, "bcrypt cost, 0 for the default")

	return cmd
}

func newUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage local accounts",
	}
	cmd.AddCommand(newUserCreateCommand())
	return cmd
}

func newUserCreateCommand() *cobra.Command {
	var (
		role      string
		withToken bool
	)

	cmd := &cobra.Command{
		Use:   "create <username> [password]",
		Short: "Create a local account, reading the password from stdin when omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			secret := ""
			if len(args) == 2 {
				secret = args[1]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.Wrap(err, errors.CategoryBadInput, "unable to read password")
				}
				secret = strings.TrimRight(line, "\r\n")
			}

			app, err := newApp(ctx, configFile)
			if err != nil {
				return err
			}
			defer app.Close()

			svc, err := buildServices(app, activityLogger(app.GetLogger("auth.activity")))
			if err != nil {
				return err
			}

			provider, err := svc.registry.Get(auth.LocalProviderName)
			if err != nil {
				return err
			}

			local, ok := provider.(*auth.LocalProvider)
			if !ok {
				return errors.New("local provider is not configured", errors.CategoryValidation)
			}

			// derive before opening the transaction
			user, err := local.Provision(args[0], secret, auth.UserRole(role))
			if err != nil {
				return err
			}

			created, err := auth.ProvisionUser(ctx, svc.repos, svc.registry, user)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", created.ID, created.Role)

			if withToken {
				token, err := svc.tokens.Generate(created, auth.LocalProviderName, svc.registry.Identities(created), 0)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", string(auth.RoleMember), "role: guest, member or admin")
	cmd.Flags().BoolVar(&withToken, "token", false, "print a session token for the new user")

	return cmd
}
