package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// scrypt cost parameters
const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 64
	passwordAlgo = "scrypt"
)

// HashPassword derives a scrypt hash of password:pepper with a fresh salt,
// encoded as scrypt$<salthex>$<hashhex>
func HashPassword(password, pepper string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate password salt: %w", err)
	}

	derived, err := scrypt.Key([]byte(password+":"+pepper), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("failed to derive password hash: %w", err)
	}

	return passwordAlgo + "$" + hex.EncodeToString(salt) + "$" + hex.EncodeToString(derived), nil
}

// VerifyPassword checks password against a stored hash. Malformed hashes
// never match.
func VerifyPassword(password, pepper, stored string) bool {
	parts := strings.Split(stored, "$")
	if len(parts) != 3 || parts[0] != passwordAlgo {
		return false
	}

	salt, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}
	expected, err := hex.DecodeString(parts[2])
	if err != nil || len(expected) == 0 {
		return false
	}

	derived, err := scrypt.Key([]byte(password+":"+pepper), salt, scryptN, scryptR, scryptP, len(expected))
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(derived, expected) == 1
}
