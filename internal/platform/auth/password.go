package auth

import "golang.org/x/crypto/bcrypt"

// bcryptCost matches the work factor used for every stored credential.
// Changing it only affects newly hashed passwords; verification reads the
// cost from the hash itself.
const bcryptCost = 12

// HashPassword turns a plaintext password into a salted bcrypt hash.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword reports whether plain matches the stored bcrypt hash.
// It never returns an error: any failure (wrong password, malformed hash)
// is an authentication failure.
func VerifyPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
