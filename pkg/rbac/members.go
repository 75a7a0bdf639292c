package rbac

import (
	"context"
	"errors"

	"github.com/platinummonkey/tenantgate/pkg/apierr"
	"github.com/platinummonkey/tenantgate/pkg/audit"
	"github.com/platinummonkey/tenantgate/pkg/auth"
)

// MembershipWriter creates or updates membership rows
type MembershipWriter interface {
	SetMembershipRole(ctx context.Context, tenantID, userID, role string) (*auth.Membership, error)
}

// invalidator is implemented by resolvers that cache roles
type invalidator interface {
	Invalidate(tenantID, userID string)
}

// MemberService changes membership roles and keeps the resolver cache
// consistent
type MemberService struct {
	writer   MembershipWriter
	resolver Resolver
	audit    audit.Logger
}

// NewMemberService creates a member service
func NewMemberService(writer MembershipWriter, resolver Resolver, auditLogger audit.Logger) *MemberService {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &MemberService{writer: writer, resolver: resolver, audit: auditLogger}
}

// SetMemberRole grants userID the given role in tenantID
func (s *MemberService) SetMemberRole(ctx context.Context, tenantID, userID string, role Role) (*auth.Membership, error) {
	if !role.Valid() {
		return nil, apierr.InvalidRequest("role must be one of OWNER, ADMIN, EDITOR, VIEWER.")
	}

	m, err := s.writer.SetMembershipRole(ctx, tenantID, userID, string(role))
	if errors.Is(err, auth.ErrNotFound) {
		return nil, apierr.New(apierr.CodeResourceNotFound, "Tenant or user not found.")
	}
	if err != nil {
		return nil, apierr.Internal(err)
	}

	if inv, ok := s.resolver.(invalidator); ok {
		inv.Invalidate(tenantID, userID)
	}

	event := audit.NewEvent(ctx, audit.EventTypeMembershipRoleChange, audit.EventStatusSuccess)
	event.TenantID = tenantID
	event.ResourceType = audit.ResourceTypeMembership
	event.ResourceID = userID
	event.Message = "Membership role changed"
	event.WithMetadata("role", string(role))
	audit.Emit(ctx, s.audit, event)

	return m, nil
}
