package reservation

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/venuelane/service-reservation/internal/clock"
	"github.com/venuelane/service-reservation/internal/domain"
)

// DefaultTokenGrace is the window tolerated past a token's nominal expiry,
// for a customer who began their action just before it ran out.
const DefaultTokenGrace = 5 * time.Minute

const tokenBytes = 24

// NewResponseToken generates an opaque token secret.
func NewResponseToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate response token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// TokenExpiry derives a response token's expiry from the booking's own start
// instant. A token is a capability to act on a reservation before it begins,
// not a fixed-duration secret.
func TokenExpiry(b *Booking, c *clock.Clock) (time.Time, error) {
	return b.StartsAt(c)
}

// ValidateToken checks a supplied token against the booking's armed token.
// A missing or mismatched token is a NotFoundError; a matching token past
// expiry plus grace is a TokenExpiredError. The two are distinct because
// their remediation differs: check the link vs request a new one.
func ValidateToken(b *Booking, supplied string, c *clock.Clock, grace time.Duration) error {
	if b.responseToken == nil || b.tokenExpiresAt == nil {
		return domain.NewNotFoundError("response token", b.id.String())
	}
	if subtle.ConstantTimeCompare([]byte(*b.responseToken), []byte(supplied)) != 1 {
		return domain.NewNotFoundError("response token", b.id.String())
	}
	if c.Now().After(b.tokenExpiresAt.Add(grace)) {
		return domain.NewTokenExpiredError(b.id.String())
	}
	return nil
}
