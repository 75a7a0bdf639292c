package cli

import (
	"context"
	"fmt"

	"github.com/platinummonkey/tenantgate/pkg/audit"
	"github.com/platinummonkey/tenantgate/pkg/auth"
	"github.com/platinummonkey/tenantgate/pkg/rbac"
	"github.com/platinummonkey/tenantgate/pkg/subscription"
)

func newShowSubscriptionCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "show-subscription",
		Description: "Print a tenant's effective subscription",
		Flags:       newFlagSet(env, "show-subscription"),
	}
	dbURL := dbFlag(cmd.Flags)
	tenantID := cmd.Flags.String("tenant", "", "Tenant id")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *tenantID == "" {
			return fmt.Errorf("--tenant is required")
		}

		db, err := env.openDB(ctx, *dbURL)
		if err != nil {
			return err
		}
		defer db.Close()

		svc := subscription.NewService(subscription.NewPostgresStore(db, db), subscription.Config{}, nil, nil)
		resolved, err := svc.Get(ctx, *tenantID)
		if err != nil {
			return describe(err)
		}
		return writeJSON(env, resolved)
	}
	return cmd
}

func newSetRoleCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "set-role",
		Description: "Grant a user a role in a tenant",
		Flags:       newFlagSet(env, "set-role"),
	}
	dbURL := dbFlag(cmd.Flags)
	tenantID := cmd.Flags.String("tenant", "", "Tenant id")
	userID := cmd.Flags.String("user", "", "User id")
	roleName := cmd.Flags.String("role", "", "Role (OWNER, ADMIN, EDITOR or VIEWER)")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *tenantID == "" || *userID == "" {
			return fmt.Errorf("--tenant and --user are required")
		}
		role, err := rbac.ParseRole(*roleName)
		if err != nil {
			return err
		}

		db, err := env.openDB(ctx, *dbURL)
		if err != nil {
			return err
		}
		defer db.Close()

		auditLogger, err := audit.NewDBLogger(db)
		if err != nil {
			return err
		}
		store := auth.NewPostgresStore(db)
		members := rbac.NewMemberService(store, rbac.NewStoreResolver(store), auditLogger)

		membership, err := members.SetMemberRole(ctx, *tenantID, *userID, role)
		if err != nil {
			return describe(err)
		}

		env.Logger.WithFields(map[string]interface{}{
			"tenant_id": membership.TenantID,
			"user_id":   membership.UserID,
			"role":      membership.Role,
		}).Info("Membership role set")
		return writeJSON(env, membership)
	}
	return cmd
}
