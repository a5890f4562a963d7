package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// API keys look like vv_<prefix>_<secret>. The prefix is stored in clear
// and indexed for lookup; the whole key is stored only as a bcrypt hash.
const (
	apiKeyScheme    = "vv"
	apiKeyPrefixLen = 8  // bytes of randomness, hex-encoded
	apiKeySecretLen = 24 // bytes of randomness, hex-encoded
)

var ErrMalformedAPIKey = errors.New("malformed api key")

// GeneratedAPIKey is the output of GenerateAPIKey. Key must be shown to the
// user once and then discarded.
type GeneratedAPIKey struct {
	Key    string
	Prefix string
	Hash   string
}

func GenerateAPIKey() (*GeneratedAPIKey, error) {
	prefix, err := randomHex(apiKeyPrefixLen)
	if err != nil {
		return nil, err
	}
	secret, err := randomHex(apiKeySecretLen)
	if err != nil {
		return nil, err
	}

	key := apiKeyScheme + "_" + prefix + "_" + secret
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash api key: %w", err)
	}

	return &GeneratedAPIKey{Key: key, Prefix: prefix, Hash: string(hash)}, nil
}

// SplitAPIKey extracts the lookup prefix from a presented key.
func SplitAPIKey(key string) (string, error) {
	parts := strings.Split(key, "_")
	if len(parts) != 3 || parts[0] != apiKeyScheme ||
		len(parts[1]) != apiKeyPrefixLen*2 || len(parts[2]) != apiKeySecretLen*2 {
		return "", ErrMalformedAPIKey
	}
	return parts[1], nil
}

// VerifyAPIKey compares a presented key against its stored hash in constant
// time.
func VerifyAPIKey(key, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(b), nil
}
