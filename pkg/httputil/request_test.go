package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/tenantgate/pkg/apierr"
)

type redeemPayload struct {
	Code string `json:"code" validate:"required,min=12,max=64"`
	Note string `json:"note,omitempty" validate:"max=10"`
}

func TestParseJSON(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"ABCD-EFGH-1234-5678"}`))
		var p redeemPayload
		require.NoError(t, ParseJSON(req, &p))
		assert.Equal(t, "ABCD-EFGH-1234-5678", p.Code)
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		var p redeemPayload
		assert.EqualError(t, ParseJSON(req, &p), "request body is required")
	})

	t.Run("unknown field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"x","extra":1}`))
		var p redeemPayload
		assert.Error(t, ParseJSON(req, &p))
	})

	t.Run("trailing data", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"x"}{"code":"y"}`))
		var p redeemPayload
		assert.Error(t, ParseJSON(req, &p))
	})
}

func TestDecodeAndValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"ABCD-EFGH-1234"}`))
		var p redeemPayload
		assert.NoError(t, DecodeAndValidate(req, &p))
	})

	t.Run("missing required field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
		var p redeemPayload
		err := DecodeAndValidate(req, &p)
		require.Error(t, err)
		assert.True(t, apierr.Is(err, apierr.CodeInvalidRequest))

		apiErr, ok := apierr.As(err)
		require.True(t, ok)
		assert.Equal(t, []string{"code failed required"}, apiErr.Data["fields"])
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":`))
		var p redeemPayload
		err := DecodeAndValidate(req, &p)
		assert.True(t, apierr.Is(err, apierr.CodeInvalidRequest))
	})
}

func TestParsePathString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/tenants/t1", nil)
	req = mux.SetURLVars(req, map[string]string{"tenantId": "t1"})

	val, err := ParsePathString(req, "tenantId")
	require.NoError(t, err)
	assert.Equal(t, "t1", val)

	_, err = ParsePathString(req, "productId")
	assert.True(t, apierr.Is(err, apierr.CodeInvalidRequest))
}

func TestParseQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=5&bad=x&name=feed", nil)

	n, err := ParseQueryInt(req, "limit", 10)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = ParseQueryInt(req, "missing", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	_, err = ParseQueryInt(req, "bad", 10)
	assert.Error(t, err)

	assert.Equal(t, "feed", ParseQueryString(req, "name", ""))
	assert.Equal(t, "dflt", ParseQueryString(req, "other", "dflt"))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:5555", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.2:5555", "198.51.100.4"},
		{"remote addr host", nil, "192.0.2.9:41000", "192.0.2.9"},
		{"remote addr without port", nil, "192.0.2.9", "192.0.2.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
