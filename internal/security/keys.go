package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
)

// MinSecretLength is the minimum HMAC key length in bytes accepted for token signing.
const MinSecretLength = 32

// ErrInvalidKey is returned when the signing secret is missing or too short.
var ErrInvalidKey = errors.New("invalid signing key")

const fileSecretPrefix = "file:"

// LoadSecret returns the signing key from s. A value of the form "file:/path" is read from disk
// (trailing whitespace trimmed); anything else is used verbatim.
func LoadSecret(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidKey
	}
	var key []byte
	if strings.HasPrefix(s, fileSecretPrefix) {
		b, err := os.ReadFile(strings.TrimPrefix(s, fileSecretPrefix))
		if err != nil {
			return nil, fmt.Errorf("read signing key: %w", err)
		}
		key = []byte(strings.TrimSpace(string(b)))
	} else {
		key = []byte(s)
	}
	if len(key) < MinSecretLength {
		return nil, ErrInvalidKey
	}
	return key, nil
}

// GenerateSecret returns n random bytes from crypto/rand encoded as unpadded base64url.
// Used for generated passwords and development signing keys.
func GenerateSecret(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("secret length must be positive")
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
