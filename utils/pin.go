// utils/pin.go
package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateLeadPIN returns a cryptographically random 6-digit PIN as a
// zero-padded string. Uniqueness among a business's unconfirmed leads is
// enforced by the store's partial unique index, not here; callers retry on a
// duplicate-key error.
func GenerateLeadPIN() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
