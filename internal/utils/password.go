package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword bcrypt-hashes a holder's password with the configured
// cost (BCRYPT_COST).
func HashPassword(plain string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether plain matches the stored holder hash.
// The comparison is constant time.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
