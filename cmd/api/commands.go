package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dataportal/internal/models"
	"dataportal/internal/persistence"
	"dataportal/internal/server"
	"dataportal/internal/services"
)

func (a *app) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := server.NewServer(cmd.Context(), a.cfg, a.lggr)
			if err != nil {
				return err
			}
			defer srv.Close()
			return srv.Run(cmd.Context())
		},
	}
}

// withStore runs fn against a store loaded from the configured model files.
func (a *app) withStore(cmd *cobra.Command, fn func(*persistence.Store) error) error {
	store, err := server.LoadStore(cmd.Context(), a.cfg.Model, nil, a.lggr)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			a.lggr.Warnw("Failed to close persistence store", "err", err)
		}
	}()
	return fn(store)
}

func (a *app) newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Read the schemas of every connected database and merge them into the model file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(store *persistence.Store) error {
				return services.NewModelService(store, a.lggr).Sync(cmd.Context())
			})
		},
	}
}

func (a *app) newDDLCmd() *cobra.Command {
	ddlCmd := &cobra.Command{
		Use:   "ddl",
		Short: "Print DDL statements for the model",
	}

	printStatements := func(cmd *cobra.Command, statements []string) {
		out := cmd.OutOrStdout()
		for _, stmt := range statements {
			fmt.Fprintln(out, strings.TrimSuffix(stmt, ";")+";")
		}
	}

	ddlCmd.AddCommand(
		&cobra.Command{
			Use:   "create",
			Short: "Statements creating every table of the model",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withStore(cmd, func(store *persistence.Store) error {
					statements, err := store.DDLCreate()
					if err != nil {
						return err
					}
					printStatements(cmd, statements)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "update",
			Short: "Statements bringing the live databases up to the model",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withStore(cmd, func(store *persistence.Store) error {
					statements, err := store.DDLUpdate(cmd.Context())
					if err != nil {
						return err
					}
					printStatements(cmd, statements)
					return nil
				})
			},
		},
	)
	return ddlCmd
}

func (a *app) newUserCmd() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage portal users",
	}

	var (
		email    string
		password string
		level    string
	)
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user in the system database",
		RunE: func(cmd *cobra.Command, args []string) error {
			accessLevel := models.ParseAccessLevel(level)
			if accessLevel == models.AccessNone {
				return fmt.Errorf("unknown access level %q", level)
			}

			sysDB, err := server.OpenSystemDB(cmd.Context(), a.cfg.SystemDB, a.lggr)
			if err != nil {
				return err
			}
			defer sysDB.Close()

			rdb, err := server.NewRedis(cmd.Context(), a.cfg.Redis, a.lggr)
			if err != nil {
				return err
			}
			defer rdb.Close()

			user, err := server.NewAuthService(sysDB.Pool, rdb, a.cfg.Auth, a.lggr).
				CreateUser(cmd.Context(), email, password, accessLevel)
			if errors.Is(err, services.ErrUserExists) {
				return fmt.Errorf("user %s already exists", email)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) with id %s\n", user.Email, user.AccessLevel, user.ID)
			return nil
		},
	}
	addCmd.Flags().StringVar(&email, "email", "", "User email (required)")
	addCmd.Flags().StringVar(&password, "password", "", "User password (required)")
	addCmd.Flags().StringVar(&level, "level", "view", "Access level: view, edit, develop or admin")
	_ = addCmd.MarkFlagRequired("email")
	_ = addCmd.MarkFlagRequired("password")

	userCmd.AddCommand(addCmd)
	return userCmd
}
