package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/tenantgate/pkg/auth"
	"github.com/platinummonkey/tenantgate/pkg/catalog"
	"github.com/platinummonkey/tenantgate/pkg/observability"
	"github.com/platinummonkey/tenantgate/pkg/ratelimit"
	"github.com/platinummonkey/tenantgate/pkg/rbac"
	"github.com/platinummonkey/tenantgate/pkg/shares"
	"github.com/platinummonkey/tenantgate/pkg/storage"
	"github.com/platinummonkey/tenantgate/pkg/subscription"
	"github.com/platinummonkey/tenantgate/pkg/superadmin"
	"github.com/platinummonkey/tenantgate/pkg/token"
)

const superAdminEmail = "ops@tenantgate.test"

type testEnv struct {
	server *Server
	users  *auth.MemoryStore
	subs   *subscription.MemoryStore
	tenant *auth.Tenant
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := auth.NewMemoryStore()
	tenant := users.AddTenant("acme", "Acme")

	codec, err := token.NewCodec("test-session-secret")
	require.NoError(t, err)
	authSvc := auth.NewService(users, codec, auth.Config{
		TokenTTL:    time.Hour,
		CodeTTL:     10 * time.Minute,
		CodePepper:  "test-pepper",
		Development: true,
		DevCodes:    true,
	}, nil, nil)

	resolver := rbac.NewStoreResolver(users)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	subs := subscription.NewMemoryStore()
	subs.AddTenant(tenant.ID)
	subSvc := subscription.NewService(subs, subscription.Config{CodePepper: "test-pepper"}, nil, metrics)

	blobs, err := storage.NewFileSystemStorage(t.TempDir())
	require.NoError(t, err)
	products := catalog.NewMemoryStore()
	catalogSvc := catalog.NewService(products, blobs, subSvc)

	signer, err := shares.NewSigner(shares.SignerConfig{
		Secret:     "test-share-secret",
		APIBaseURL: "https://api.example.test",
		WebBaseURL: "https://shop.example.test",
	})
	require.NoError(t, err)
	shareStore := shares.NewMemoryStore()
	shareStore.AddTenant(shares.TenantInfo{ID: tenant.ID, Slug: tenant.Slug, Name: tenant.Name})
	shareSvc := shares.NewService(shares.Options{
		Store:   shareStore,
		Signer:  signer,
		Gate:    subSvc,
		Limiter: ratelimit.NewSlidingWindow(ratelimit.DefaultConfig()),
		Assets:  blobs,
		Resources: map[shares.ResourceType]shares.Resource{
			shares.ResourceTenantFeed: shares.NewTenantFeed(products),
			shares.ResourceProduct:    shares.NewProductResource(products),
		},
		Metrics: metrics,
	})

	server := NewServer(Dependencies{
		Auth:          authSvc,
		Members:       rbac.NewMemberService(users, resolver, nil),
		RBAC:          rbac.NewGate(resolver, rbac.DefaultRoutePolicy(), nil, metrics),
		SuperAdmin:    superadmin.NewGate(superadmin.NewStaticSource(true, []string{superAdminEmail}), nil, metrics),
		Subscriptions: subSvc,
		Shares:        shareSvc,
		Catalog:       catalogSvc,
		CodeLimiter: ratelimit.NewSlidingWindow(ratelimit.Config{
			Window:      time.Minute,
			MaxRequests: 5,
		}),
		Logger:   observability.NewLogger(observability.ErrorLevel, io.Discard),
		Metrics:  metrics,
		Registry: registry,
	})

	return &testEnv{server: server, users: users, subs: subs, tenant: tenant}
}

func (e *testEnv) do(t *testing.T, method, path, accessToken string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) map[string]interface{} {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, code, body["errorCode"])
	return body
}

// login runs the login code flow and returns the session token and user id
func (e *testEnv) login(t *testing.T, email string) (string, string) {
	t.Helper()

	rec := e.do(t, "POST", "/auth/request-code", "", map[string]string{"email": email})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	devCode, _ := decode(t, rec)["devCode"].(string)
	require.Len(t, devCode, 6)

	rec = e.do(t, "POST", "/auth/verify-code", "", map[string]string{"email": email, "code": devCode})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	user := body["user"].(map[string]interface{})
	return body["accessToken"].(string), user["id"].(string)
}

// member logs in, grants role in the test tenant and returns a
// tenant-scoped token and the user id
func (e *testEnv) member(t *testing.T, email string, role rbac.Role) (string, string) {
	t.Helper()

	accessToken, userID := e.login(t, email)
	_, err := e.users.SetMembershipRole(t.Context(), e.tenant.ID, userID, string(role))
	require.NoError(t, err)

	rec := e.do(t, "POST", "/auth/switch-tenant", accessToken, map[string]string{"tenantId": e.tenant.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, string(role), body["role"])
	return body["accessToken"].(string), userID
}

func (e *testEnv) uploadImage(t *testing.T, accessToken, productID string, data []byte) string {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="cover.png"`)
	header.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/products/"+productID+"/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	image := decode(t, rec)["image"].(map[string]interface{})
	return image["id"].(string)
}

func (e *testEnv) createProduct(t *testing.T, accessToken, code string) string {
	t.Helper()
	rec := e.do(t, "POST", "/products", accessToken, map[string]string{"code": code})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(t, rec)["product"].(map[string]interface{})["id"].(string)
}

func TestServer_Routes(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		method string
		path   string
	}{
		{"POST", "/auth/request-code"},
		{"POST", "/auth/verify-code"},
		{"POST", "/auth/password-login"},
		{"POST", "/auth/switch-tenant"},
		{"GET", "/me"},
		{"GET", "/tenants"},
		{"GET", "/subscriptions/current"},
		{"POST", "/subscriptions/activation-codes/redeem"},
		{"POST", "/shares"},
		{"GET", "/s/shr_token"},
		{"GET", "/shares/share-id/public"},
		{"GET", "/shares/share-id/public/assets"},
		{"POST", "/products"},
		{"GET", "/products"},
		{"POST", "/products/p/images"},
		{"PUT", "/products/p/images/i/main"},
		{"GET", "/products/p/images/i/content"},
		{"POST", "/admin/subscription-activation-codes"},
		{"GET", "/admin/tenants/t/subscription"},
		{"PUT", "/admin/tenants/t/subscription"},
		{"PUT", "/admin/tenants/t/members/u"},
		{"GET", "/metrics"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			var match mux.RouteMatch
			assert.True(t, env.server.Router().Match(req, &match))
			assert.NoError(t, match.MatchErr)
		})
	}
}

func TestServer_UnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "GET", "/nope", "", nil)
	assertError(t, rec, http.StatusNotFound, "RESOURCE_NOT_FOUND")
}

func TestServer_LoginAndTenantSwitch(t *testing.T) {
	env := newTestEnv(t)

	accessToken, userID := env.login(t, "Owner@Acme.test")

	rec := env.do(t, "GET", "/me", accessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode(t, rec)
	assert.Nil(t, me["tenantId"])
	assert.Equal(t, "owner@acme.test", me["user"].(map[string]interface{})["email"])

	// Not a member yet
	rec = env.do(t, "POST", "/auth/switch-tenant", accessToken, map[string]string{"tenantId": env.tenant.ID})
	assertError(t, rec, http.StatusForbidden, "NOT_TENANT_MEMBER")

	_, err := env.users.SetMembershipRole(t.Context(), env.tenant.ID, userID, "OWNER")
	require.NoError(t, err)

	rec = env.do(t, "POST", "/auth/switch-tenant", accessToken, map[string]string{"slug": "acme"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tenantToken := decode(t, rec)["accessToken"].(string)

	rec = env.do(t, "GET", "/me", tenantToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, env.tenant.ID, decode(t, rec)["tenantId"])

	rec = env.do(t, "GET", "/tenants", accessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["tenants"], 1)

	// Tenant routes need a tenant-scoped token
	rec = env.do(t, "GET", "/subscriptions/current", accessToken, nil)
	assertError(t, rec, http.StatusBadRequest, "TENANT_NOT_SELECTED")

	rec = env.do(t, "GET", "/subscriptions/current", tenantToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sub := decode(t, rec)["subscription"].(map[string]interface{})
	assert.Equal(t, "FREE", sub["plan"])
	assert.Equal(t, "ACTIVE", sub["status"])
	assert.Equal(t, false, sub["isConfigured"])
}

func TestServer_AuthFailures(t *testing.T) {
	env := newTestEnv(t)

	t.Run("missing token", func(t *testing.T) {
		rec := env.do(t, "GET", "/me", "", nil)
		assertError(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := env.do(t, "GET", "/me", "not-a-token", nil)
		assertError(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
	})

	t.Run("wrong code", func(t *testing.T) {
		rec := env.do(t, "POST", "/auth/request-code", "", map[string]string{"email": "a@acme.test"})
		require.Equal(t, http.StatusOK, rec.Code)
		code := decode(t, rec)["devCode"].(string)
		wrong := "000000"
		if code == wrong {
			wrong = "111111"
		}
		rec = env.do(t, "POST", "/auth/verify-code", "", map[string]string{"email": "a@acme.test", "code": wrong})
		assertError(t, rec, http.StatusUnauthorized, "INVALID_CODE")
	})

	t.Run("invalid email", func(t *testing.T) {
		rec := env.do(t, "POST", "/auth/request-code", "", map[string]string{"email": "nope"})
		assertError(t, rec, http.StatusBadRequest, "INVALID_REQUEST_PAYLOAD")
	})
}

func TestServer_RequestCodeRateLimit(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 5; i++ {
		rec := env.do(t, "POST", "/auth/request-code", "", map[string]string{"email": "burst@acme.test"})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := env.do(t, "POST", "/auth/request-code", "", map[string]string{"email": "burst@acme.test"})
	assertError(t, rec, http.StatusTooManyRequests, "RATE_LIMITED")
}

func TestServer_RoleEscalation(t *testing.T) {
	env := newTestEnv(t)

	editorToken, editorID := env.member(t, "editor@acme.test", rbac.RoleEditor)
	productID := env.createProduct(t, editorToken, "LAMP-1")
	env.uploadImage(t, editorToken, productID, []byte("first"))
	second := env.uploadImage(t, editorToken, productID, []byte("second"))

	mainPath := "/products/" + productID + "/images/" + second + "/main"
	rec := env.do(t, "PUT", mainPath, editorToken, nil)
	body := assertError(t, rec, http.StatusForbidden, "FORBIDDEN")
	assert.Equal(t, "ADMIN", body["data"].(map[string]interface{})["requiredRole"])

	// Members cannot use the admin surface
	rolePath := "/admin/tenants/" + env.tenant.ID + "/members/" + editorID
	rec = env.do(t, "PUT", rolePath, editorToken, map[string]string{"role": "ADMIN"})
	assertError(t, rec, http.StatusForbidden, "FORBIDDEN")

	adminToken, _ := env.login(t, superAdminEmail)
	rec = env.do(t, "PUT", rolePath, adminToken, map[string]string{"role": "ADMIN"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The existing session picks up the new role on the next request
	rec = env.do(t, "PUT", mainPath, editorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	images := decode(t, rec)["images"].([]interface{})
	require.Len(t, images, 2)
	assert.Equal(t, second, images[0].(map[string]interface{})["id"])
}

func TestServer_ViewerIsReadOnly(t *testing.T) {
	env := newTestEnv(t)

	ownerToken, _ := env.member(t, "owner@acme.test", rbac.RoleOwner)
	productID := env.createProduct(t, ownerToken, "LAMP-1")
	imageID := env.uploadImage(t, ownerToken, productID, []byte("png-bytes"))

	viewerToken, _ := env.member(t, "viewer@acme.test", rbac.RoleViewer)

	rec := env.do(t, "GET", "/products", viewerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["products"], 1)

	rec = env.do(t, "POST", "/products", viewerToken, map[string]string{"code": "LAMP-2"})
	assertError(t, rec, http.StatusForbidden, "FORBIDDEN")

	// Image content accepts the token in the query string
	rec = env.do(t, "GET", "/products/"+productID+"/images/"+imageID+"/content?accessToken="+url.QueryEscape(viewerToken), "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", rec.Body.String())
}

func TestServer_WriteGateBlocksDisabledTenant(t *testing.T) {
	env := newTestEnv(t)

	ownerToken, _ := env.member(t, "owner@acme.test", rbac.RoleOwner)
	adminToken, _ := env.login(t, superAdminEmail)

	subPath := "/admin/tenants/" + env.tenant.ID + "/subscription"
	rec := env.do(t, "PUT", subPath, adminToken, map[string]interface{}{
		"plan":           "PRO",
		"disabledAt":     time.Now().Add(-time.Minute).UTC().Format(time.RFC3339),
		"disabledReason": "chargeback",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "DISABLED", decode(t, rec)["subscription"].(map[string]interface{})["status"])

	rec = env.do(t, "POST", "/products", ownerToken, map[string]string{"code": "LAMP-1"})
	body := assertError(t, rec, http.StatusForbidden, "TENANT_SUBSCRIPTION_INACTIVE")
	assert.Equal(t, "DISABLED", body["data"].(map[string]interface{})["status"])

	// Reads stay available
	rec = env.do(t, "GET", "/subscriptions/current", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "PUT", subPath, adminToken, map[string]interface{}{"disabledAt": nil})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, "POST", "/products", ownerToken, map[string]string{"code": "LAMP-1"})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestServer_ShareLifecycle(t *testing.T) {
	env := newTestEnv(t)

	ownerToken, _ := env.member(t, "owner@acme.test", rbac.RoleOwner)
	adminToken, _ := env.login(t, superAdminEmail)
	productID := env.createProduct(t, ownerToken, "LAMP-1")
	env.uploadImage(t, ownerToken, productID, []byte("png-bytes"))

	subPath := "/admin/tenants/" + env.tenant.ID + "/subscription"
	rec := env.do(t, "PUT", subPath, adminToken, map[string]interface{}{"plan": "FREE"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	shareReq := map[string]string{"resourceType": "product", "resourceId": productID}
	rec = env.do(t, "POST", "/shares", ownerToken, shareReq)
	body := assertError(t, rec, http.StatusForbidden, "TENANT_SUBSCRIPTION_PLAN_INSUFFICIENT")
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "PRO", data["requiredPlan"])
	assert.Equal(t, "FREE", data["currentPlan"])

	rec = env.do(t, "PUT", subPath, adminToken, map[string]interface{}{"plan": "PRO"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, "POST", "/shares", ownerToken, shareReq)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	share := decode(t, rec)["share"].(map[string]interface{})
	shareToken := share["shareToken"].(string)
	assert.Equal(t, "https://api.example.test/s/"+shareToken, share["entryUrl"])

	// Creating again returns the same share
	rec = env.do(t, "POST", "/shares", ownerToken, shareReq)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, share["id"], decode(t, rec)["share"].(map[string]interface{})["id"])

	rec = env.do(t, "GET", "/s/"+shareToken, "", nil)
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "shop.example.test", location.Host)
	grant := location.Query()
	assert.Equal(t, share["id"], grant.Get("sid"))

	publicPath := "/shares/" + grant.Get("sid") + "/public?" + grant.Encode()
	rec = env.do(t, "GET", publicPath, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode(t, rec)
	assert.Equal(t, "acme", view["tenant"].(map[string]interface{})["slug"])
	resource := view["resource"].(map[string]interface{})
	assert.Equal(t, "LAMP-1", resource["code"])

	images := resource["images"].([]interface{})
	require.Len(t, images, 1)
	assetURL, err := url.Parse(images[0].(map[string]interface{})["url"].(string))
	require.NoError(t, err)
	rec = env.do(t, "GET", assetURL.RequestURI(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "png-bytes", rec.Body.String())

	tampered := url.Values{}
	for k, v := range grant {
		tampered[k] = v
	}
	tampered.Set("tenantId", "00000000-0000-0000-0000-000000000000")
	rec = env.do(t, "GET", "/shares/"+grant.Get("sid")+"/public?"+tampered.Encode(), "", nil)
	assertError(t, rec, http.StatusUnauthorized, "SHARE_SIGNATURE_INVALID")

	rec = env.do(t, "GET", "/s/shr_unknown", "", nil)
	assertError(t, rec, http.StatusNotFound, "SHARE_NOT_FOUND")
}

func TestServer_ActivationCodeRedeem(t *testing.T) {
	env := newTestEnv(t)

	ownerToken, _ := env.member(t, "owner@acme.test", rbac.RoleOwner)
	editorToken, _ := env.member(t, "editor@acme.test", rbac.RoleEditor)
	adminToken, _ := env.login(t, superAdminEmail)

	rec := env.do(t, "POST", "/admin/subscription-activation-codes", adminToken, map[string]interface{}{
		"plan":         "PRO",
		"durationDays": 30,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	code := decode(t, rec)["code"].(string)

	rec = env.do(t, "POST", "/subscriptions/activation-codes/redeem", editorToken, map[string]string{"code": code})
	assertError(t, rec, http.StatusForbidden, "FORBIDDEN")

	rec = env.do(t, "POST", "/subscriptions/activation-codes/redeem", ownerToken, map[string]string{"code": code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sub := decode(t, rec)["subscription"].(map[string]interface{})
	assert.Equal(t, "PRO", sub["plan"])
	assert.Equal(t, "ACTIVE", sub["status"])
	assert.NotNil(t, sub["expiresAt"])

	rec = env.do(t, "POST", "/subscriptions/activation-codes/redeem", ownerToken, map[string]string{"code": code})
	assertError(t, rec, http.StatusForbidden, "SUBSCRIPTION_ACTIVATION_CODE_REDEEM_LIMIT_REACHED")
}
