package shares

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/tenantgate/pkg/apierr"
)

const defaultSignedURLTTL = 5 * time.Minute

// Grant is a signed, time-limited permission to read one shared resource
type Grant struct {
	ShareID      string
	TenantID     string
	ResourceType ResourceType
	ResourceID   string
	Exp          string
	Sig          string
}

// GrantParams are the grant fields as received in a public request. Exp
// is the raw decimal Unix-seconds value.
type GrantParams struct {
	TenantID     string
	ResourceType string
	ResourceID   string
	Exp          string
	Sig          string
}

// ParseGrantParams reads grant fields from query parameters
func ParseGrantParams(q url.Values) GrantParams {
	return GrantParams{
		TenantID:     q.Get("tenantId"),
		ResourceType: q.Get("resourceType"),
		ResourceID:   q.Get("resourceId"),
		Exp:          q.Get("exp"),
		Sig:          q.Get("sig"),
	}
}

// SignerConfig holds the signing secret and the public base URLs
type SignerConfig struct {
	Secret     string
	TTL        time.Duration
	APIBaseURL string
	WebBaseURL string
}

// Signer mints and verifies share grants
type Signer struct {
	secret  []byte
	ttl     time.Duration
	apiBase string
	webBase string
	now     func() time.Time
}

// NewSigner creates a signer. The secret is required.
func NewSigner(config SignerConfig) (*Signer, error) {
	secret := strings.TrimSpace(config.Secret)
	if secret == "" {
		return nil, errors.New("share signing secret is required")
	}
	ttl := config.TTL
	if ttl <= 0 {
		ttl = defaultSignedURLTTL
	}
	return &Signer{
		secret:  []byte(secret),
		ttl:     ttl,
		apiBase: strings.TrimRight(config.APIBaseURL, "/"),
		webBase: strings.TrimRight(config.WebBaseURL, "/"),
		now:     time.Now,
	}, nil
}

// WithClock returns a copy of the signer that reads time from now
func (s *Signer) WithClock(now func() time.Time) *Signer {
	c := *s
	c.now = now
	return &c
}

func (s *Signer) sign(shareID, tenantID, resourceType, resourceID, exp string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(strings.Join([]string{shareID, tenantID, resourceType, resourceID, exp}, ".")))
	return hex.EncodeToString(mac.Sum(nil))
}

// Mint signs a grant for share that expires one TTL from now
func (s *Signer) Mint(share *Share) (Grant, time.Time) {
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	return Grant{
		ShareID:      share.ID,
		TenantID:     share.TenantID,
		ResourceType: share.ResourceType,
		ResourceID:   share.ResourceID,
		Exp:          exp,
		Sig:          s.sign(share.ID, share.TenantID, string(share.ResourceType), share.ResourceID, exp),
	}, expiresAt
}

// Verify checks a grant presented for shareID and returns it with its
// expiry. Malformed expiries and signature mismatches are
// SHARE_SIGNATURE_INVALID; stale grants are SHARE_SIGNATURE_EXPIRED.
func (s *Signer) Verify(shareID string, params GrantParams) (Grant, time.Time, error) {
	seconds, err := strconv.ParseInt(params.Exp, 10, 64)
	if err != nil || seconds <= 0 {
		return Grant{}, time.Time{}, apierr.New(apierr.CodeShareSignatureInvalid, "Invalid share signature expiry.")
	}

	expiresAt := time.Unix(seconds, 0)
	if !expiresAt.After(s.now()) {
		return Grant{}, time.Time{}, apierr.New(apierr.CodeShareSignatureExpired, "Share signature expired.")
	}

	expected := s.sign(shareID, params.TenantID, params.ResourceType, params.ResourceID, params.Exp)
	if !signaturesEqual(expected, params.Sig) {
		return Grant{}, time.Time{}, apierr.New(apierr.CodeShareSignatureInvalid, "Invalid share signature.")
	}

	return Grant{
		ShareID:      shareID,
		TenantID:     params.TenantID,
		ResourceType: ResourceType(params.ResourceType),
		ResourceID:   params.ResourceID,
		Exp:          params.Exp,
		Sig:          params.Sig,
	}, expiresAt, nil
}

func signaturesEqual(expected, actual string) bool {
	if len(expected) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(actual)) == 1
}

func (g Grant) query() url.Values {
	q := url.Values{}
	q.Set("sid", g.ShareID)
	q.Set("tenantId", g.TenantID)
	q.Set("resourceType", string(g.ResourceType))
	q.Set("resourceId", g.ResourceID)
	q.Set("exp", g.Exp)
	q.Set("sig", g.Sig)
	return q
}

// EntryURL is the public entry link for a share token
func (s *Signer) EntryURL(shareToken string) string {
	return s.apiBase + "/s/" + url.PathEscape(shareToken)
}

// RedirectURL is the web page a share entry redirects to
func (s *Signer) RedirectURL(shareToken string, g Grant) string {
	return s.webBase + "/public/s/" + url.PathEscape(shareToken) + "?" + g.query().Encode()
}

// AssetURL is the signed public URL of a stored object under the grant
func (s *Signer) AssetURL(g Grant, key string) string {
	q := g.query()
	q.Set("key", key)
	return s.apiBase + "/shares/" + url.PathEscape(g.ShareID) + "/public/assets?" + q.Encode()
}

// NewShareToken returns a fresh opaque share token
func NewShareToken() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "shr_" + base64.RawURLEncoding.EncodeToString(buf), nil
}
