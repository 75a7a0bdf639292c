package cli

import (
	"context"

	"github.com/platinummonkey/tenantgate/pkg/observability"
	"github.com/platinummonkey/tenantgate/pkg/storage/postgres"
)

func newMigrateCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "migrate",
		Description: "Apply pending database migrations",
		Flags:       newFlagSet(env, "migrate"),
	}
	dbURL := dbFlag(cmd.Flags)

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		db, err := env.openDB(ctx, *dbURL)
		if err != nil {
			return err
		}
		defer db.Close()

		logger := observability.NewLogger(observability.ParseLogLevel(env.Logger.GetLevel().String()), env.Logger.Out)
		if err := postgres.RunMigrations(ctx, db, logger); err != nil {
			return err
		}

		env.Logger.Infof("Database is at schema version %d", len(postgres.GetMigrations()))
		return nil
	}
	return cmd
}
