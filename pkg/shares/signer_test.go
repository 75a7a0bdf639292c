package shares

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/tenantgate/pkg/apierr"
)

const (
	testTenant  = "7f1c1d4e-2f7b-4d59-9a57-3c1e3e0f8a01"
	otherTenant = "9a0b7e61-4c2d-4b8e-8f3a-5d6c7b8a9e02"
	testShareID = "4c8e2a10-6b3f-4e7d-9c1a-2f5b8d0e7a33"
)

func testSigner(t *testing.T, now time.Time) *Signer {
	t.Helper()
	signer, err := NewSigner(SignerConfig{
		Secret:     "test-signing-secret",
		TTL:        5 * time.Minute,
		APIBaseURL: "https://api.example.test/",
		WebBaseURL: "https://shop.example.test",
	})
	require.NoError(t, err)
	return signer.WithClock(func() time.Time { return now })
}

func testShare() *Share {
	return &Share{
		ID:           testShareID,
		TenantID:     testTenant,
		ResourceType: ResourceProduct,
		ResourceID:   "a3d9c6b2-1e4f-4a7b-8c5d-6e7f8a9b0c1d",
		ShareToken:   "shr_abcdefghijklmnopqrstuvwx",
	}
}

func paramsOf(g Grant) GrantParams {
	return GrantParams{
		TenantID:     g.TenantID,
		ResourceType: string(g.ResourceType),
		ResourceID:   g.ResourceID,
		Exp:          g.Exp,
		Sig:          g.Sig,
	}
}

func messageOf(err error) string {
	if apiErr, ok := apierr.As(err); ok {
		return apiErr.Message
	}
	return ""
}

func TestNewSigner(t *testing.T) {
	_, err := NewSigner(SignerConfig{Secret: "   "})
	require.Error(t, err)

	signer, err := NewSigner(SignerConfig{Secret: "s"})
	require.NoError(t, err)
	assert.Equal(t, defaultSignedURLTTL, signer.ttl)
}

func TestSigner_MintAndVerify(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	signer := testSigner(t, now)

	grant, expiresAt := signer.Mint(testShare())
	assert.Equal(t, now.Add(5*time.Minute), expiresAt)
	assert.Equal(t, "1777629900", grant.Exp)
	assert.Len(t, grant.Sig, 64)

	verified, verifiedExp, err := signer.Verify(testShareID, paramsOf(grant))
	require.NoError(t, err)
	assert.Equal(t, grant, verified)
	assert.True(t, verifiedExp.Equal(expiresAt))
}

func TestSigner_VerifyRejectsTampering(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	signer := testSigner(t, now)
	grant, _ := signer.Mint(testShare())

	tests := []struct {
		name    string
		shareID string
		mutate  func(p *GrantParams)
	}{
		{"share id", "0e1d2c3b-4a59-4687-a5b4-c3d2e1f0a9b8", func(p *GrantParams) {}},
		{"tenant id", testShareID, func(p *GrantParams) { p.TenantID = otherTenant }},
		{"resource type", testShareID, func(p *GrantParams) { p.ResourceType = string(ResourceTenantFeed) }},
		{"resource id", testShareID, func(p *GrantParams) { p.ResourceID = testTenant }},
		{"later expiry", testShareID, func(p *GrantParams) { p.Exp = "1777630500" }},
		{"signature", testShareID, func(p *GrantParams) { p.Sig = strings.Repeat("0", 64) }},
		{"short signature", testShareID, func(p *GrantParams) { p.Sig = p.Sig[:10] }},
		{"missing signature", testShareID, func(p *GrantParams) { p.Sig = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := paramsOf(grant)
			tt.mutate(&params)
			_, _, err := signer.Verify(tt.shareID, params)
			require.Error(t, err)
			assert.Equal(t, apierr.CodeShareSignatureInvalid, apierr.CodeOf(err))
			assert.Equal(t, "Invalid share signature.", messageOf(err))
		})
	}
}

func TestSigner_VerifyExpiry(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	grant, expiresAt := testSigner(t, now).Mint(testShare())

	t.Run("one second before expiry", func(t *testing.T) {
		_, _, err := testSigner(t, expiresAt.Add(-time.Second)).Verify(testShareID, paramsOf(grant))
		assert.NoError(t, err)
	})

	t.Run("at expiry", func(t *testing.T) {
		_, _, err := testSigner(t, expiresAt).Verify(testShareID, paramsOf(grant))
		assert.Equal(t, apierr.CodeShareSignatureExpired, apierr.CodeOf(err))
	})

	t.Run("expiry checked before signature", func(t *testing.T) {
		params := paramsOf(grant)
		params.Sig = "forged"
		_, _, err := testSigner(t, expiresAt.Add(time.Hour)).Verify(testShareID, params)
		assert.Equal(t, apierr.CodeShareSignatureExpired, apierr.CodeOf(err))
	})

	for _, exp := range []string{"", "soon", "12.5", "-10", "0"} {
		t.Run("malformed exp "+exp, func(t *testing.T) {
			params := paramsOf(grant)
			params.Exp = exp
			_, _, err := testSigner(t, now).Verify(testShareID, params)
			assert.Equal(t, apierr.CodeShareSignatureInvalid, apierr.CodeOf(err))
			assert.Equal(t, "Invalid share signature expiry.", messageOf(err))
		})
	}
}

func TestSigner_URLs(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	signer := testSigner(t, now)
	share := testShare()
	grant, _ := signer.Mint(share)

	assert.Equal(t, "https://api.example.test/s/shr_abcdefghijklmnopqrstuvwx", signer.EntryURL(share.ShareToken))

	redirect, err := url.Parse(signer.RedirectURL(share.ShareToken, grant))
	require.NoError(t, err)
	assert.Equal(t, "shop.example.test", redirect.Host)
	assert.Equal(t, "/public/s/shr_abcdefghijklmnopqrstuvwx", redirect.Path)
	q := redirect.Query()
	assert.Equal(t, testShareID, q.Get("sid"))
	assert.Equal(t, paramsOf(grant), ParseGrantParams(q))

	asset, err := url.Parse(signer.AssetURL(grant, testTenant+"/products/p/i.png"))
	require.NoError(t, err)
	assert.Equal(t, "/shares/"+testShareID+"/public/assets", asset.Path)
	assert.Equal(t, testTenant+"/products/p/i.png", asset.Query().Get("key"))
	assert.Equal(t, paramsOf(grant), ParseGrantParams(asset.Query()))
}

func TestNewShareToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := NewShareToken()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(token, "shr_"))
		assert.Len(t, token, 28)
		assert.False(t, seen[token])
		seen[token] = true
	}
}
