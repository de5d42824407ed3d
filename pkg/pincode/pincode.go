package pincode

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Alphabet excludes characters that are easy to misread on a printed
// result-check slip (0/O, 1/I/L, 5/S, 8/B).
const Alphabet = "ACDEFGHJKMNPQRTUVWXYZ234679"

// DefaultLength is the standard pin code length.
const DefaultLength = 8

// Generate returns a random code of the given length drawn from Alphabet.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}
	max := big.NewInt(int64(len(Alphabet)))
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate pin code: %w", err)
		}
		code[i] = Alphabet[n.Int64()]
	}
	return string(code), nil
}

// Valid reports whether a candidate code has the expected length and only
// contains alphabet characters.
func Valid(code string, length int) bool {
	if length <= 0 {
		length = DefaultLength
	}
	if len(code) != length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !contains(code[i]) {
			return false
		}
	}
	return true
}

func contains(c byte) bool {
	for i := 0; i < len(Alphabet); i++ {
		if Alphabet[i] == c {
			return true
		}
	}
	return false
}
