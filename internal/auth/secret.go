package auth

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// HashSecret returns the bcrypt hash stored for a client secret or user password.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifySecret compares secret against a bcrypt hash in constant time.
func VerifySecret(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

var (
	decoyOnce sync.Once
	decoyHash []byte
)

// burnSecretCheck spends the same work as a real comparison so an unknown
// client id answers as slowly as a wrong secret.
func burnSecretCheck(secret string) {
	decoyOnce.Do(func() {
		decoyHash, _ = bcrypt.GenerateFromPassword([]byte("decoy-client-secret"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(decoyHash, []byte(secret))
}
