package utils

import "golang.org/x/crypto/bcrypt"

// decoyHash is compared against when the account does not exist so a
// failed login costs the same either way.
var decoyHash = []byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z3ZsD8a1ZB4u1rSuN2kD5H6S")

// HashPassword returns a bcrypt hash.  Costs outside bcrypt's range fall
// back to the default.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword compares plain against hash.  An empty hash is checked
// against a decoy and always fails.
func VerifyPassword(hash, plain string) bool {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(decoyHash, []byte(plain))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
