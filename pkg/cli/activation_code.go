package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/platinummonkey/tenantgate/pkg/apierr"
	"github.com/platinummonkey/tenantgate/pkg/audit"
	"github.com/platinummonkey/tenantgate/pkg/subscription"
)

// activationCodeFlags holds the raw create-activation-code flag values.
// Zero and empty values mean "not set".
type activationCodeFlags struct {
	plan            string
	targetTenant    string
	durationDays    int
	redeemLimit     int
	maxImages       int64
	maxStorageBytes int64
	maxShares       int64
	expiresAt       string
}

func (f *activationCodeFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.plan, "plan", "", "Plan granted by the code (FREE, BASIC or PRO)")
	fs.StringVar(&f.targetTenant, "target-tenant", "", "Restrict the code to one tenant id")
	fs.IntVar(&f.durationDays, "duration-days", 0, "Days added to the subscription on redeem (0 means no expiry)")
	fs.IntVar(&f.redeemLimit, "redeem-limit", 1, "Number of times the code can be redeemed")
	fs.Int64Var(&f.maxImages, "max-images", 0, "Image count quota (0 means unlimited)")
	fs.Int64Var(&f.maxStorageBytes, "max-storage-bytes", 0, "Stored image bytes quota (0 means unlimited)")
	fs.Int64Var(&f.maxShares, "max-shares", 0, "Public share quota (0 means unlimited)")
	fs.StringVar(&f.expiresAt, "expires-at", "", "RFC 3339 time after which the code can no longer be redeemed")
}

// params converts the flags into service parameters
func (f *activationCodeFlags) params() (subscription.CreateCodeParams, error) {
	plan, ok := subscription.ParsePlan(f.plan)
	if !ok {
		return subscription.CreateCodeParams{}, fmt.Errorf("--plan must be one of FREE, BASIC, PRO")
	}

	params := subscription.CreateCodeParams{Plan: plan, RedeemLimit: &f.redeemLimit}
	if f.targetTenant != "" {
		params.TargetTenantID = &f.targetTenant
	}
	if f.durationDays > 0 {
		params.DurationDays = &f.durationDays
	}
	if f.maxImages > 0 {
		params.MaxImages = &f.maxImages
	}
	if f.maxStorageBytes > 0 {
		params.MaxStorageBytes = &f.maxStorageBytes
	}
	if f.maxShares > 0 {
		params.MaxShares = &f.maxShares
	}
	if f.expiresAt != "" {
		t, err := time.Parse(time.RFC3339, f.expiresAt)
		if err != nil {
			return subscription.CreateCodeParams{}, fmt.Errorf("--expires-at: %w", err)
		}
		params.ExpiresAt = &t
	}
	return params, nil
}

func codePepper() string {
	if pepper := os.Getenv("TENANTGATE_ACTIVATION_CODE_PEPPER"); pepper != "" {
		return pepper
	}
	return os.Getenv("TENANTGATE_AUTH_CODE_PEPPER")
}

func newCreateActivationCodeCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "create-activation-code",
		Description: "Issue a subscription activation code",
		Flags:       newFlagSet(env, "create-activation-code"),
	}
	dbURL := dbFlag(cmd.Flags)
	pepper := cmd.Flags.String("pepper", codePepper(), "Activation code pepper; must match the server")
	var flags activationCodeFlags
	flags.register(cmd.Flags)

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		params, err := flags.params()
		if err != nil {
			return err
		}
		if *pepper == "" {
			return fmt.Errorf("--pepper or TENANTGATE_ACTIVATION_CODE_PEPPER is required")
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
		svc := subscription.NewService(subscription.NewPostgresStore(db, db),
			subscription.Config{CodePepper: *pepper}, auditLogger, nil)

		created, err := svc.CreateActivationCode(ctx, "", params)
		if err != nil {
			return describe(err)
		}

		env.Logger.WithFields(map[string]interface{}{
			"id":    created.Record.ID,
			"label": created.Record.CodeLabel,
			"plan":  created.Record.Plan,
		}).Info("Activation code created")
		return writeJSON(env, created)
	}
	return cmd
}

// describe flattens service errors into a single CLI message
func describe(err error) error {
	if apiErr, ok := apierr.As(err); ok {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	return err
}

func writeJSON(env *Env, v interface{}) error {
	enc := json.NewEncoder(env.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
