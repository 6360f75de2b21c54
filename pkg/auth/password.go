package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 16
)

// HashPassword derives a "salt$digest" record: a random 16-byte salt and the
// scrypt key derived from password and salt, both hex-encoded. VerifyPassword
// checks records with scrypt only; a salt$digest record whose digest came
// from any other hash function does not verify.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	digest, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("derive key: %w", err)
	}
	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(digest), nil
}

// VerifyPassword checks a password against a stored "salt$digest" record in
// constant time.
func VerifyPassword(password, stored string) bool {
	parts := strings.SplitN(stored, "$", 2)
	if len(parts) != 2 {
		return false
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return false
	}
	wantDigest, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}
	gotDigest, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, len(wantDigest))
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(gotDigest, wantDigest) == 1
}
