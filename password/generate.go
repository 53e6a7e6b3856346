package password

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GeneratedLength is the length of passwords issued on registration and reset.
const GeneratedLength = 10

// Generate returns n random alphanumeric characters from crypto/rand.
func Generate(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("password: invalid length %d", n)
	}
	max := big.NewInt(int64(len(alphanumeric)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("password: generate: %w", err)
		}
		out[i] = alphanumeric[idx.Int64()]
	}
	return string(out), nil
}
