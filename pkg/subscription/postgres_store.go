package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/tenantgate/pkg/storage/postgres"
)

const subscriptionColumns = `tenant_id, plan, starts_at, expires_at, disabled_at, disabled_reason,
	max_images, max_storage_bytes, max_shares, created_at, updated_at`

const activationCodeColumns = `id, code_digest, code_label, target_tenant_id, plan, duration_days,
	max_images, max_storage_bytes, max_shares, redeem_limit, redeemed_count,
	expires_at, disabled_at, created_by_user_id, created_at`

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// PostgresStore implements Store on PostgreSQL. Usage counts may be served
// by a read replica; subscription reads and all writes use the primary.
type PostgresStore struct {
	db      *sql.DB
	replica *sql.DB
}

// NewPostgresStore creates a store. A nil replica reads usage from db.
func NewPostgresStore(db, replica *sql.DB) *PostgresStore {
	if replica == nil {
		replica = db
	}
	return &PostgresStore{db: db, replica: replica}
}

// GetSubscription implements Store
func (s *PostgresStore) GetSubscription(ctx context.Context, tenantID string) (*Subscription, error) {
	if _, err := uuid.Parse(tenantID); err != nil {
		return nil, ErrNotFound
	}
	return getSubscription(ctx, s.db, tenantID, false)
}

// CountShares implements Store
func (s *PostgresStore) CountShares(ctx context.Context, tenantID string) (int64, error) {
	return s.count(ctx, "share count",
		`SELECT COUNT(*) FROM public_shares WHERE tenant_id = $1`, tenantID)
}

// CountImages implements Store
func (s *PostgresStore) CountImages(ctx context.Context, tenantID string) (int64, error) {
	return s.count(ctx, "image count",
		`SELECT COUNT(*) FROM product_images WHERE tenant_id = $1`, tenantID)
}

// SumImageBytes implements Store
func (s *PostgresStore) SumImageBytes(ctx context.Context, tenantID string) (int64, error) {
	return s.count(ctx, "image storage",
		`SELECT COALESCE(SUM(size_bytes), 0)::BIGINT FROM product_images WHERE tenant_id = $1`, tenantID)
}

func (s *PostgresStore) count(ctx context.Context, what, query, tenantID string) (int64, error) {
	if _, err := uuid.Parse(tenantID); err != nil {
		return 0, nil
	}
	var n int64
	if err := s.replica.QueryRowContext(ctx, query, tenantID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to read tenant %s: %w", what, err)
	}
	return n, nil
}

// TenantExists implements Store
func (s *PostgresStore) TenantExists(ctx context.Context, tenantID string) (bool, error) {
	if _, err := uuid.Parse(tenantID); err != nil {
		return false, nil
	}
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tenants WHERE id = $1)`, tenantID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check tenant: %w", err)
	}
	return exists, nil
}

// CreateActivationCode implements Store
func (s *PostgresStore) CreateActivationCode(ctx context.Context, code *ActivationCode) error {
	if code.ID == "" {
		code.ID = uuid.NewString()
	}

	query := `
		INSERT INTO subscription_activation_codes (
			id, code_digest, code_label, target_tenant_id, plan, duration_days,
			max_images, max_storage_bytes, max_shares, redeem_limit, redeemed_count,
			expires_at, created_by_user_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, $12, $13, $13)
	`
	_, err := s.db.ExecContext(ctx, query,
		code.ID, code.CodeDigest, code.CodeLabel, nullString(code.TargetTenantID), string(code.Plan),
		nullInt(code.DurationDays), nullInt64(code.MaxImages), nullInt64(code.MaxStorageBytes),
		nullInt64(code.MaxShares), code.RedeemLimit, nullTime(code.ExpiresAt),
		nullString(code.CreatedByUserID), code.CreatedAt)
	switch {
	case err == nil:
		return nil
	case postgres.IsUniqueViolation(err):
		return ErrConflict
	case postgres.IsForeignKeyViolation(err):
		return ErrTenantNotFound
	default:
		return fmt.Errorf("failed to create activation code: %w", err)
	}
}

// WithTx implements Store
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&postgresTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type postgresTx struct {
	tx *sql.Tx
}

// GetSubscriptionForUpdate takes a transaction-scoped advisory lock on the
// tenant before reading. FOR UPDATE alone locks nothing while the tenant has
// no row yet, so two first-time writers would both see an empty row.
func (t *postgresTx) GetSubscriptionForUpdate(ctx context.Context, tenantID string) (*Subscription, error) {
	if _, err := uuid.Parse(tenantID); err != nil {
		return nil, ErrNotFound
	}
	if _, err := t.tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext('tenant_subscriptions:' || $1))`, tenantID); err != nil {
		return nil, fmt.Errorf("failed to lock tenant subscription: %w", err)
	}
	return getSubscription(ctx, t.tx, tenantID, true)
}

func (t *postgresTx) SaveSubscription(ctx context.Context, sub *Subscription) (*Subscription, error) {
	if _, err := uuid.Parse(sub.TenantID); err != nil {
		return nil, ErrTenantNotFound
	}

	query := `
		INSERT INTO tenant_subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (tenant_id) DO UPDATE SET
			plan = EXCLUDED.plan,
			starts_at = EXCLUDED.starts_at,
			expires_at = EXCLUDED.expires_at,
			disabled_at = EXCLUDED.disabled_at,
			disabled_reason = EXCLUDED.disabled_reason,
			max_images = EXCLUDED.max_images,
			max_storage_bytes = EXCLUDED.max_storage_bytes,
			max_shares = EXCLUDED.max_shares,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + subscriptionColumns

	saved, err := scanSubscription(t.tx.QueryRowContext(ctx, query,
		sub.TenantID, string(sub.Plan), sub.StartsAt, nullTime(sub.ExpiresAt), nullTime(sub.DisabledAt),
		nullString(sub.DisabledReason), nullInt64(sub.MaxImages), nullInt64(sub.MaxStorageBytes),
		nullInt64(sub.MaxShares), sub.CreatedAt, sub.UpdatedAt))
	if postgres.IsForeignKeyViolation(err) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}
	return saved, nil
}

func (t *postgresTx) FindActivationCode(ctx context.Context, digest string) (*ActivationCode, error) {
	code, err := scanActivationCode(t.tx.QueryRowContext(ctx,
		`SELECT `+activationCodeColumns+` FROM subscription_activation_codes WHERE code_digest = $1`, digest))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activation code: %w", err)
	}
	return code, nil
}

func (t *postgresTx) IncrementRedeemedCount(ctx context.Context, codeID string) (bool, error) {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE subscription_activation_codes
		SET redeemed_count = redeemed_count + 1, updated_at = NOW()
		WHERE id = $1 AND redeemed_count < redeem_limit
	`, codeID)
	if err != nil {
		return false, fmt.Errorf("failed to increment redeemed count: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to increment redeemed count: %w", err)
	}
	return affected == 1, nil
}

func (t *postgresTx) RecordRedemption(ctx context.Context, redemption *Redemption) error {
	if redemption.ID == "" {
		redemption.ID = uuid.NewString()
	}
	var actor sql.NullString
	if _, err := uuid.Parse(redemption.RedeemedByUserID); err == nil {
		actor = sql.NullString{String: redemption.RedeemedByUserID, Valid: true}
	}

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO subscription_activation_redemptions
			(id, activation_code_id, tenant_id, redeemed_by_user_id, redeemed_at)
		VALUES ($1, $2, $3, $4, $5)
	`, redemption.ID, redemption.ActivationCodeID, redemption.TenantID, actor, redemption.RedeemedAt)
	if err != nil {
		return fmt.Errorf("failed to record redemption: %w", err)
	}
	return nil
}

func getSubscription(ctx context.Context, q queryer, tenantID string, forUpdate bool) (*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM tenant_subscriptions WHERE tenant_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	sub, err := scanSubscription(q.QueryRowContext(ctx, query, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

func scanSubscription(row *sql.Row) (*Subscription, error) {
	var (
		sub                                   Subscription
		plan                                  string
		expiresAt, disabledAt                 sql.NullTime
		disabledReason                        sql.NullString
		maxImages, maxStorageBytes, maxShares sql.NullInt64
	)
	err := row.Scan(&sub.TenantID, &plan, &sub.StartsAt, &expiresAt, &disabledAt, &disabledReason,
		&maxImages, &maxStorageBytes, &maxShares, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sub.Plan = Plan(plan)
	sub.ExpiresAt = timePtr(expiresAt)
	sub.DisabledAt = timePtr(disabledAt)
	sub.DisabledReason = stringPtr(disabledReason)
	sub.MaxImages = int64Ptr(maxImages)
	sub.MaxStorageBytes = int64Ptr(maxStorageBytes)
	sub.MaxShares = int64Ptr(maxShares)
	return &sub, nil
}

func scanActivationCode(row *sql.Row) (*ActivationCode, error) {
	var (
		code                                  ActivationCode
		plan                                  string
		targetTenantID, createdBy             sql.NullString
		durationDays                          sql.NullInt64
		maxImages, maxStorageBytes, maxShares sql.NullInt64
		expiresAt, disabledAt                 sql.NullTime
	)
	err := row.Scan(&code.ID, &code.CodeDigest, &code.CodeLabel, &targetTenantID, &plan, &durationDays,
		&maxImages, &maxStorageBytes, &maxShares, &code.RedeemLimit, &code.RedeemedCount,
		&expiresAt, &disabledAt, &createdBy, &code.CreatedAt)
	if err != nil {
		return nil, err
	}
	code.Plan = Plan(plan)
	code.TargetTenantID = stringPtr(targetTenantID)
	code.CreatedByUserID = stringPtr(createdBy)
	if durationDays.Valid {
		days := int(durationDays.Int64)
		code.DurationDays = &days
	}
	code.MaxImages = int64Ptr(maxImages)
	code.MaxStorageBytes = int64Ptr(maxStorageBytes)
	code.MaxShares = int64Ptr(maxShares)
	code.ExpiresAt = timePtr(expiresAt)
	code.DisabledAt = timePtr(disabledAt)
	return &code, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
