// Package codes produces short human-typeable identifiers.
package codes

import (
	crand "crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Alphabet omits characters that are easy to confuse when read aloud or typed (0/O, 1/I/L).
const Alphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const (
	// JoinCodeLength is the length of public session join codes.
	JoinCodeLength = 6
	// AccessCodeLength is the length of participant access codes.
	AccessCodeLength = 8
)

// New returns a random code of n characters drawn from Alphabet.
func New(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("code length must be positive, got %d", n)
	}
	limit := big.NewInt(int64(len(Alphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := crand.Int(crand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("read random code: %w", err)
		}
		buf[i] = Alphabet[idx.Int64()]
	}
	return string(buf), nil
}

// JoinCode returns a new session join code.
func JoinCode() (string, error) {
	return New(JoinCodeLength)
}

// AccessCode returns a new participant access code.
func AccessCode() (string, error) {
	return New(AccessCodeLength)
}

// Normalize trims and upper-cases a user-typed code so lookups are case-insensitive.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
