// Package cli implements the recipectl operator commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/recipe-app/recipe-api/internal/shared"
	"github.com/recipe-app/recipe-api/internal/users"
)

// UserAdmin is the user management surface the CLI needs.
type UserAdmin interface {
	CreateSuperuser(ctx context.Context, email, password, name string) (users.User, error)
	SetPassword(ctx context.Context, email, password string) error
}

// Deps supplies lazily opened backends so commands only connect to what they use.
type Deps struct {
	Out       io.Writer
	Migrate   func(ctx context.Context) error
	OpenUsers func(ctx context.Context) (UserAdmin, func(), error)
	OpenJobs  func(ctx context.Context) (*JobsCLI, error)
}

// NewApp builds the root command.
func NewApp(deps Deps) *cli.Command {
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	return &cli.Command{
		Name:   "recipectl",
		Usage:  "Operator tooling for the recipe API",
		Writer: deps.Out,
		Commands: []*cli.Command{
			migrateCmd(deps),
			createSuperuserCmd(deps),
			changePasswordCmd(deps),
			jobsCmd(deps),
		},
	}
}

func migrateCmd(deps Deps) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if deps.Migrate == nil {
				return errors.New("migrate: database not configured")
			}
			if err := deps.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			_, _ = fmt.Fprintln(deps.Out, "Migrations applied.")
			return nil
		},
	}
}

func createSuperuserCmd(deps Deps) *cli.Command {
	return &cli.Command{
		Name:  "createsuperuser",
		Usage: "Create a staff user with superuser rights",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Usage: "login email", Required: true},
			&cli.StringFlag{Name: "password", Usage: "initial password", Required: true, Sources: cli.EnvVars("RECIPECTL_PASSWORD")},
			&cli.StringFlag{Name: "name", Usage: "display name"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			admin, done, err := openUsers(ctx, deps)
			if err != nil {
				return err
			}
			defer done()
			user, err := admin.CreateSuperuser(ctx, cmd.String("email"), cmd.String("password"), cmd.String("name"))
			if err != nil {
				return describe("createsuperuser", err)
			}
			_, _ = fmt.Fprintf(deps.Out, "Superuser created: %s\n", user.Email)
			return nil
		},
	}
}

func changePasswordCmd(deps Deps) *cli.Command {
	return &cli.Command{
		Name:  "changepassword",
		Usage: "Set a new password for an existing user",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Usage: "login email", Required: true},
			&cli.StringFlag{Name: "password", Usage: "new password", Required: true, Sources: cli.EnvVars("RECIPECTL_PASSWORD")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			admin, done, err := openUsers(ctx, deps)
			if err != nil {
				return err
			}
			defer done()
			email := cmd.String("email")
			if err := admin.SetPassword(ctx, email, cmd.String("password")); err != nil {
				return describe("changepassword", err)
			}
			_, _ = fmt.Fprintf(deps.Out, "Password changed successfully for user '%s'\n", users.NormalizeEmail(email))
			return nil
		},
	}
}

func jobsCmd(deps Deps) *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "Inspect the background task queue",
		Commands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Print default queue statistics",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if deps.OpenJobs == nil {
						return errors.New("jobs: redis not configured")
					}
					jobsCLI, err := deps.OpenJobs(ctx)
					if err != nil {
						return err
					}
					defer jobsCLI.Close()
					stats, err := jobsCLI.InspectQueue(ctx)
					if err != nil {
						return fmt.Errorf("jobs: %w", err)
					}
					_, _ = fmt.Fprintf(deps.Out, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
						stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
					return nil
				},
			},
		},
	}
}

func openUsers(ctx context.Context, deps Deps) (UserAdmin, func(), error) {
	if deps.OpenUsers == nil {
		return nil, nil, errors.New("database not configured")
	}
	return deps.OpenUsers(ctx)
}

// describe flattens validation and lookup failures into operator friendly text.
func describe(op string, err error) error {
	if verr, ok := shared.AsValidationError(err); ok {
		return fmt.Errorf("%s: %s", op, verr.Error())
	}
	if errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("%s: user does not exist", op)
	}
	if errors.Is(err, shared.ErrDuplicate) {
		return fmt.Errorf("%s: a user with that email already exists", op)
	}
	return fmt.Errorf("%s: %w", op, err)
}
