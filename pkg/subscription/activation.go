package subscription

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	codeGroups       = 4
	codeGroupLength  = 4
	minNormalizedLen = 12
)

// GenerateActivationCode returns a random code of four dash-separated
// groups of four upper-case hex characters
func GenerateActivationCode() (string, error) {
	buf := make([]byte, codeGroups*codeGroupLength/2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	raw := strings.ToUpper(hex.EncodeToString(buf))

	groups := make([]string, 0, codeGroups)
	for i := 0; i < len(raw); i += codeGroupLength {
		groups = append(groups, raw[i:i+codeGroupLength])
	}
	return strings.Join(groups, "-"), nil
}

// NormalizeActivationCode upper-cases raw and strips everything that is
// not a letter or digit. It reports false when the result is too short to
// be a code.
func NormalizeActivationCode(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	normalized := b.String()
	return normalized, len(normalized) >= minNormalizedLen
}

// DigestActivationCode hashes a normalized code with the pepper
func DigestActivationCode(normalized, pepper string) string {
	sum := sha256.Sum256([]byte(normalized + ":" + pepper))
	return hex.EncodeToString(sum[:])
}

// LabelActivationCode masks a normalized code for display
func LabelActivationCode(normalized string) string {
	if len(normalized) <= 8 {
		return strings.Repeat("*", len(normalized))
	}
	return normalized[:4] + "****" + normalized[len(normalized)-4:]
}
