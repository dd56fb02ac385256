package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strconv"
)

// NewSecurityCode returns a zero-padded numeric code of the given length,
// e.g. "0427" for length 4.
func NewSecurityCode(length int) (string, error) {
	if length < 1 || length > 18 {
		return "", fmt.Errorf("security code length %d out of range", length)
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}

// CodesEqual compares two codes in constant time.
func CodesEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func formatUint(n uint64) string { return strconv.FormatUint(n, 10) }
