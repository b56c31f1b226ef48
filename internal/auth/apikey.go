package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/rotisserie/eris"
)

// APIKeyPrefix marks every issued key. The 8 characters after it form the
// lookup prefix stored alongside the hash.
const APIKeyPrefix = "lb_"

const (
	apiKeyRandomBytes = 32
	apiKeyPrefixStart = 3
	apiKeyPrefixEnd   = 11
)

// GenerateAPIKey returns a new API key, its stored lookup prefix, and the
// sha256 hex of the full key. The full key is shown to the caller once and
// never persisted.
func GenerateAPIKey() (key, prefix, hash string, err error) {
	raw := make([]byte, apiKeyRandomBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", "", eris.Wrap(err, "auth: generate api key")
	}
	key = APIKeyPrefix + base64.RawURLEncoding.EncodeToString(raw)
	prefix = key[apiKeyPrefixStart:apiKeyPrefixEnd]
	hash = HashAPIKey(key)
	return key, prefix, hash, nil
}

// HashAPIKey returns the sha256 hex digest of the full key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// APIKeyLookupPrefix extracts the stored lookup prefix from a presented
// key. Keys without the lb_ marker or too short to carry a prefix are
// rejected.
func APIKeyLookupPrefix(key string) (string, error) {
	if !strings.HasPrefix(key, APIKeyPrefix) || len(key) < apiKeyPrefixEnd {
		return "", ErrInvalidToken
	}
	return key[apiKeyPrefixStart:apiKeyPrefixEnd], nil
}
