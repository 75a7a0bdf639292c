package auth

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/tenantgate/pkg/apierr"
	"github.com/platinummonkey/tenantgate/pkg/audit"
	"github.com/platinummonkey/tenantgate/pkg/observability"
	"github.com/platinummonkey/tenantgate/pkg/token"
)

// Config holds the session issuer settings
type Config struct {
	TokenTTL       time.Duration
	CodeTTL        time.Duration
	CodePepper     string
	PasswordPepper string

	// DevCodes echoes login codes in RequestCode responses. It only takes
	// effect when Development is also set.
	Development bool
	DevCodes    bool
}

func (c Config) exposeDevCode() bool {
	return c.Development && c.DevCodes
}

// Service issues login codes and session tokens and authenticates bearer
// tokens
type Service struct {
	store   Store
	codec   *token.Codec
	config  Config
	audit   audit.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService creates a session issuer. auditLogger and metrics may be nil.
func NewService(store Store, codec *token.Codec, config Config, auditLogger audit.Logger, metrics *observability.Metrics) *Service {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	if config.PasswordPepper == "" {
		config.PasswordPepper = config.CodePepper
	}
	return &Service{
		store:   store,
		codec:   codec,
		config:  config,
		audit:   auditLogger,
		metrics: metrics,
		now:     time.Now,
	}
}

func errInvalidCode() error { return apierr.New(apierr.CodeInvalidCode, "Code is invalid.") }

func errExpiredCode() error { return apierr.New(apierr.CodeExpiredCode, "Code is expired.") }

func errInvalidCredentials() error { return apierr.Unauthorized("Email or password is incorrect.") }

func errInvalidToken() error { return apierr.Unauthorized("Invalid access token.") }

// RequestCode issues a new login code for email
func (s *Service) RequestCode(ctx context.Context, email string) (*CodeRequest, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, apierr.InvalidRequest("Email is required.")
	}

	code, err := GenerateCode()
	if err != nil {
		return nil, apierr.Internal(err)
	}
	salt, err := GenerateSalt()
	if err != nil {
		return nil, apierr.Internal(err)
	}

	now := s.now().UTC()
	record := &LoginCode{
		Email:     email,
		CodeHash:  HashCode(code, salt, s.config.CodePepper),
		Salt:      salt,
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.CodeTTL),
	}
	if err := s.store.CreateCode(ctx, record); err != nil {
		return nil, apierr.Internal(err)
	}

	s.metrics.RecordCodeRequested()
	event := audit.NewEvent(ctx, audit.EventTypeAuthCodeRequested, audit.EventStatusSuccess)
	event.Message = "Login code requested"
	event.WithMetadata("email", email)
	audit.Emit(ctx, s.audit, event)

	resp := &CodeRequest{OK: true, ExpiresAt: record.ExpiresAt}
	if s.config.exposeDevCode() {
		observability.FromContext(ctx).WithFields(map[string]interface{}{
			"email":      email,
			"dev_code":   code,
			"expires_at": record.ExpiresAt,
		}).Info("Development login code issued")
		resp.DevCode = code
	}
	return resp, nil
}

// VerifyCode consumes the latest unconsumed code for email and returns a
// session token with no tenant scope. A non-empty password is stored as
// the user's new password.
func (s *Service) VerifyCode(ctx context.Context, email, code, password string) (session *Session, err error) {
	ctx, span := observability.StartSpan(ctx, "auth.verify_code")
	defer func() { observability.EndSpan(span, err) }()

	email = NormalizeEmail(email)
	defer func() {
		if err != nil {
			s.recordLoginFailure(ctx, email, "code", err)
		}
	}()

	if !IsValidCodeFormat(code) {
		return nil, errInvalidCode()
	}

	latest, err := s.store.LatestUnconsumedCode(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, errInvalidCode()
	}
	if err != nil {
		return nil, apierr.Internal(err)
	}

	now := s.now().UTC()
	if !now.Before(latest.ExpiresAt) {
		return nil, errExpiredCode()
	}

	if !hashesEqual(HashCode(code, latest.Salt, s.config.CodePepper), latest.CodeHash) {
		return nil, errInvalidCode()
	}

	var passwordHash string
	if password != "" {
		passwordHash, err = HashPassword(password, s.config.PasswordPepper)
		if err != nil {
			return nil, apierr.Internal(err)
		}
	}

	user, err := s.store.ConsumeCodeAndUpsertUser(ctx, latest.ID, email, passwordHash, now)
	if errors.Is(err, ErrAlreadyConsumed) {
		return nil, errInvalidCode()
	}
	if err != nil {
		return nil, apierr.Internal(err)
	}

	// minted only after the consume has committed
	return s.issue(ctx, user, "code")
}

// PasswordLogin authenticates with email and password
func (s *Service) PasswordLogin(ctx context.Context, email, password string) (session *Session, err error) {
	email = NormalizeEmail(email)
	defer func() {
		if err != nil {
			s.recordLoginFailure(ctx, email, "password", err)
		}
	}()

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, errInvalidCredentials()
	}
	if err != nil {
		return nil, apierr.Internal(err)
	}

	if user.PasswordHash == "" || !VerifyPassword(password, s.config.PasswordPepper, user.PasswordHash) {
		return nil, errInvalidCredentials()
	}

	return s.issue(ctx, user, "password")
}

func (s *Service) issue(ctx context.Context, user *User, method string) (*Session, error) {
	accessToken, err := s.codec.Sign(user.ID, user.Email, "", s.config.TokenTTL)
	if err != nil {
		return nil, apierr.Internal(err)
	}

	s.metrics.RecordSessionIssued(method)
	event := audit.NewEvent(ctx, audit.EventTypeAuthLogin, audit.EventStatusSuccess)
	event.UserID = user.ID
	event.ResourceType = audit.ResourceTypeUser
	event.ResourceID = user.ID
	event.Message = "User logged in"
	event.WithMetadata("method", method)
	audit.Emit(ctx, s.audit, event)

	return &Session{AccessToken: accessToken, User: user}, nil
}

func (s *Service) recordLoginFailure(ctx context.Context, email, method string, err error) {
	event := audit.NewEvent(ctx, audit.EventTypeAuthLoginFailed, audit.EventStatusFailure)
	event.Message = "Login failed"
	event.WithMetadata("email", email).
		WithMetadata("method", method).
		WithMetadata("reason", string(apierr.CodeOf(err)))
	audit.Emit(ctx, s.audit, event)
}

// SwitchTenant re-scopes the caller's session to a tenant they belong to.
// Memberships are never modified.
func (s *Service) SwitchTenant(ctx context.Context, user *User, ref TenantRef) (*TenantSession, error) {
	if user == nil {
		return nil, errInvalidToken()
	}
	if ref.ID == "" && ref.Slug == "" {
		return nil, apierr.InvalidRequest("tenantId or slug is required.")
	}

	tenant, err := s.store.FindTenant(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return nil, apierr.New(apierr.CodeTenantNotFound, "Tenant not found.")
	}
	if err != nil {
		return nil, apierr.Internal(err)
	}

	membership, err := s.store.GetMembership(ctx, tenant.ID, user.ID)
	if errors.Is(err, ErrNotFound) {
		return nil, apierr.New(apierr.CodeNotTenantMember, "User is not a member of this tenant.")
	}
	if err != nil {
		return nil, apierr.Internal(err)
	}

	accessToken, err := s.codec.Sign(user.ID, user.Email, tenant.ID, s.config.TokenTTL)
	if err != nil {
		return nil, apierr.Internal(err)
	}

	s.metrics.RecordSessionIssued("switch_tenant")
	event := audit.NewEvent(ctx, audit.EventTypeAuthSwitchTenant, audit.EventStatusSuccess)
	event.UserID = user.ID
	event.TenantID = tenant.ID
	event.ResourceType = audit.ResourceTypeTenant
	event.ResourceID = tenant.ID
	event.Message = "Session switched tenant"
	event.WithMetadata("role", membership.Role)
	audit.Emit(ctx, s.audit, event)

	return &TenantSession{AccessToken: accessToken, Tenant: tenant, Role: membership.Role}, nil
}

// Authenticate verifies a bearer token and re-reads the user it points
// to. Every token failure yields the same UNAUTHORIZED error.
func (s *Service) Authenticate(ctx context.Context, raw string) (*AuthContext, error) {
	claims, err := s.codec.Verify(raw)
	if err != nil {
		return nil, errInvalidToken()
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID())
	if errors.Is(err, ErrNotFound) {
		return nil, errInvalidToken()
	}
	if err != nil {
		return nil, apierr.Internal(err)
	}

	return &AuthContext{User: user, TenantID: claims.TenantID, Claims: claims}, nil
}

// Me returns the current profile of userID
func (s *Service) Me(ctx context.Context, userID string) (*User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, apierr.Unauthorized("User not found.")
	}
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return user, nil
}

// ListTenants lists the tenants userID is a member of
func (s *Service) ListTenants(ctx context.Context, userID string) ([]TenantMembership, error) {
	ctx, span := observability.StartSpan(ctx, "auth.list_tenants", attribute.String("user.id", userID))
	defer span.End()

	memberships, err := s.store.ListMemberships(ctx, userID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return memberships, nil
}
