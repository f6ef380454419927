package crypto

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateToken returns a random URL-safe token of the requested byte length.
// Token identity is the encoded text itself, so callers must treat the value
// as write-once.
func GenerateToken(length int) (string, error) {
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}
