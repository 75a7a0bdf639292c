package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

const (
	// CodeDigits is the length of a login code
	CodeDigits = 6
	// saltBytes is the number of random bytes in a code salt
	saltBytes = 16
)

var codeSpace = big.NewInt(1_000_000)

// GenerateCode returns a uniformly random zero-padded 6-digit code
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate login code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeDigits, n.Int64()), nil
}

// GenerateSalt returns 16 random bytes as lowercase hex
func GenerateSalt() (string, error) {
	b := make([]byte, saltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashCode computes hex(SHA256(salt:code:pepper))
func HashCode(code, salt, pepper string) string {
	sum := sha256.Sum256([]byte(salt + ":" + code + ":" + pepper))
	return hex.EncodeToString(sum[:])
}

// hashesEqual compares two hex digests in constant time. Length mismatch is
// rejected before any byte comparison.
func hashesEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// NormalizeEmail trims and lowercases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidCodeFormat reports whether code is exactly six ASCII digits
func IsValidCodeFormat(code string) bool {
	if len(code) != CodeDigits {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
