package server

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// SecretChecker validates the shared secret sent with each quiz request.
type SecretChecker struct {
	plain []byte
	hash  []byte
}

// NewSecretChecker prefers the bcrypt hash when both are configured.
func NewSecretChecker(secret, secretHash string) *SecretChecker {
	c := &SecretChecker{}
	if h := strings.TrimSpace(secretHash); h != "" {
		c.hash = []byte(h)
		return c
	}
	c.plain = []byte(secret)
	return c
}

// HashSecret returns a bcrypt hash suitable for server.secret_hash.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (c *SecretChecker) Check(secret string) bool {
	if secret == "" {
		return false
	}
	if len(c.hash) > 0 {
		return bcrypt.CompareHashAndPassword(c.hash, []byte(secret)) == nil
	}
	if len(c.plain) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(c.plain, []byte(secret)) == 1
}
