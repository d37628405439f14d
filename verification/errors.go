package verification

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrNotFound is returned when no code is outstanding for the address.
	ErrNotFound = errors.New("no verification code issued for this address")

	// ErrExpired is returned when the outstanding code aged past its window.
	ErrExpired = errors.New("verification code expired")

	// ErrMismatch is returned when the submitted code does not match.
	ErrMismatch = errors.New("verification code mismatch")
)

// RateLimitError is returned by RequestCode when the cooldown since the last
// issuance has not elapsed. RetryAfter tells the caller how long to wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("code already issued recently, retry in %s", e.RetryAfter)
}

// RetryAfterSeconds rounds the remaining wait up to whole seconds for the
// Retry-After style response body.
func (e *RateLimitError) RetryAfterSeconds() int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}
