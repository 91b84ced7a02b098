package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/trckr/apiserver/internal/apperr"
)

// MinCost is the lowest bcrypt work factor Credentials will use.
const MinCost = 12

// Credentials hashes and verifies user passwords.
type Credentials struct {
	cost int
}

// NewCredentials returns a Credentials using cost, raised to MinCost when lower
// and clamped to bcrypt.MaxCost.
func NewCredentials(cost int) *Credentials {
	if cost < MinCost {
		cost = MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Credentials{cost: cost}
}

// Cost returns the configured work factor.
func (c *Credentials) Cost() int {
	return c.cost
}

// Hash returns a salted bcrypt digest of plaintext.
func (c *Credentials) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), c.cost)
	if err != nil {
		return "", apperr.Crypto("Password processing failed", err)
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches digest. A malformed digest is
// treated as a mismatch.
func (c *Credentials) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
