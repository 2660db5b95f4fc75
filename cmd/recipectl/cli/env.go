package cli

import (
	"context"

	"github.com/recipe-app/recipe-api/internal/app"
	"github.com/recipe-app/recipe-api/internal/platform/db"
	"github.com/recipe-app/recipe-api/internal/users"
)

// EnvDeps wires commands to the backends named by the environment configuration.
func EnvDeps(cfg *app.Config) Deps {
	return Deps{
		Migrate: func(ctx context.Context) error {
			return db.Migrate(ctx, cfg.PGDSN)
		},
		OpenUsers: func(ctx context.Context) (UserAdmin, func(), error) {
			pool, err := db.New(ctx, cfg.PGDSN)
			if err != nil {
				return nil, nil, err
			}
			svc := users.NewService(users.NewRepository(pool), users.WithLogger(app.NewLogger(cfg)))
			return svc, pool.Close, nil
		},
		OpenJobs: func(ctx context.Context) (*JobsCLI, error) {
			return NewJobsCLI(cfg.RedisAddr), nil
		},
	}
}
