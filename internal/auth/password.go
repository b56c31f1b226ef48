// Package auth implements password hashing, JWT issuance, and API key
// credentials for the HTTP API.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// bcrypt ignores everything past 72 bytes; truncate explicitly so long
	// passwords hash deterministically instead of erroring.
	bcryptMaxLen = 72

	pbkdf2Prefix     = "pbkdf2_"
	pbkdf2Iterations = 100_000
	pbkdf2KeyLen     = 32
	pbkdf2SaltLen    = 16
)

// HashPassword hashes a password with bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	b := []byte(password)
	if len(b) > bcryptMaxLen {
		b = b[:bcryptMaxLen]
	}
	hash, err := bcrypt.GenerateFromPassword(b, bcrypt.DefaultCost)
	if err != nil {
		return "", eris.Wrap(err, "auth: hash password")
	}
	return string(hash), nil
}

// HashPasswordPBKDF2 hashes a password with the PBKDF2 fallback scheme.
// Stored form is "pbkdf2_$<salt_hex>$<digest_hex>".
func HashPasswordPBKDF2(password string) (string, error) {
	salt := make([]byte, pbkdf2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", eris.Wrap(err, "auth: generate salt")
	}
	return encodePBKDF2(password, salt), nil
}

func encodePBKDF2(password string, salt []byte) string {
	digest := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return pbkdf2Prefix + "$" + hex.EncodeToString(salt) + "$" + hex.EncodeToString(digest)
}

// VerifyPassword reports whether password matches the stored hash. Hashes
// carrying the pbkdf2_ prefix use the fallback scheme; everything else is
// treated as bcrypt.
func VerifyPassword(password, hashed string) bool {
	if strings.HasPrefix(hashed, pbkdf2Prefix) {
		return verifyPBKDF2(password, hashed)
	}

	b := []byte(password)
	if len(b) > bcryptMaxLen {
		b = b[:bcryptMaxLen]
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), b) == nil
}

func verifyPBKDF2(password, hashed string) bool {
	parts := strings.Split(hashed, "$")
	if len(parts) != 3 {
		return false
	}
	salt, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(parts[2])
	if err != nil {
		return false
	}
	got := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, len(want), sha256.New)
	return hmac.Equal(got, want)
}
