package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/tenantgate/pkg/apierr"
	"github.com/platinummonkey/tenantgate/pkg/audit"
	"github.com/platinummonkey/tenantgate/pkg/auth"
)

func TestMemberService_EscalationIsVisibleThroughCache(t *testing.T) {
	ctx := context.Background()
	store := auth.NewMemoryStore()
	tenant := store.AddTenant("acme", "Acme")

	authSvc := auth.NewService(store, mustCodec(t), auth.Config{
		TokenTTL: time.Hour, CodeTTL: time.Minute, Development: true, DevCodes: true,
	}, nil, nil)
	resp, err := authSvc.RequestCode(ctx, "e@example.com")
	require.NoError(t, err)
	session, err := authSvc.VerifyCode(ctx, "e@example.com", resp.DevCode, "")
	require.NoError(t, err)
	userID := session.User.ID

	resolver := NewCachedResolver(NewStoreResolver(store), 100, time.Hour, nil)
	rec := &recordingAudit{}
	members := NewMemberService(store, resolver, rec)
	gate := NewGate(resolver, nil, nil, nil)
	authCtx := &auth.AuthContext{User: session.User, TenantID: tenant.ID}

	_, err = members.SetMemberRole(ctx, tenant.ID, userID, RoleEditor)
	require.NoError(t, err)

	_, err = gate.Admit(ctx, authCtx, RoleAdmin)
	assert.Equal(t, apierr.CodeForbidden, apierr.CodeOf(err))

	_, err = members.SetMemberRole(ctx, tenant.ID, userID, RoleAdmin)
	require.NoError(t, err)

	role, err := gate.Admit(ctx, authCtx, RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	require.Equal(t, 2, rec.count())
	assert.Equal(t, audit.EventTypeMembershipRoleChange, rec.events[1].EventType)
}

func TestMemberService_Errors(t *testing.T) {
	ctx := context.Background()
	store := auth.NewMemoryStore()
	members := NewMemberService(store, NewStoreResolver(store), nil)

	_, err := members.SetMemberRole(ctx, "t1", "u1", Role("ROOT"))
	assert.Equal(t, apierr.CodeInvalidRequest, apierr.CodeOf(err))

	_, err = members.SetMemberRole(ctx, "t1", "u1", RoleViewer)
	assert.Equal(t, apierr.CodeResourceNotFound, apierr.CodeOf(err))
}
