package issuer

import (
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
)

// codeBytes is the entropy of a redemption code: 128 bits.
const codeBytes = 16

// NewRedemptionCode returns an unguessable base58 token for a ticket.
func NewRedemptionCode() (string, error) {
	buf := make([]byte, codeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base58.Encode(buf), nil
}
