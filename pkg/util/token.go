package util

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

// GenerateToken returns n random bytes hex encoded
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)

	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

// GenerateCode returns a crypto random number in [min, max] as a string
func GenerateCode(min, max int64) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(max-min+1))
	if err != nil {
		return "", err
	}

	return n.Add(n, big.NewInt(min)).String(), nil
}
