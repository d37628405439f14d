// Package verification holds the single source of truth for "has this email
// address proven control of its inbox recently, and is that proof still
// usable". Codes are issued with a cooldown, confirmed within a 10 minute
// window, and the resulting verified state is single-use: the submission
// pipeline consumes it atomically so two submissions can never both ride the
// same verification.
package verification

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Default windows for the verification lifecycle.
const (
	DefaultCooldown    = 60 * time.Second
	DefaultCodeTTL     = 10 * time.Minute
	DefaultVerifiedTTL = 30 * time.Minute
)

// Store is implemented by the in-memory store and the Redis-backed store.
// All operations normalize the address themselves, so callers may pass raw
// user input.
type Store interface {
	// RequestCode issues a fresh 6-digit code for the address and returns it
	// so the caller can email it. A second issuance within the cooldown
	// returns a *RateLimitError. Issuing a new code silently replaces any
	// outstanding one.
	RequestCode(ctx context.Context, address string) (string, error)

	// ConfirmCode validates a submitted code. It returns ErrNotFound when no
	// code is outstanding, ErrExpired when the code aged out (the code is
	// removed), or ErrMismatch when the code is wrong (the code stays valid
	// so the caller may retry within the window). On success the address
	// enters the verified state for the verified TTL.
	ConfirmCode(ctx context.Context, address, code string) error

	// CheckVerified reports whether the address is currently verified
	// without consuming the verification.
	CheckVerified(ctx context.Context, address string) (bool, error)

	// ConsumeVerification atomically checks and clears the verified state.
	// Exactly one concurrent caller observes true.
	ConsumeVerification(ctx context.Context, address string) (bool, error)
}

// Normalize lowercases and trims an address. Every key in the store and
// every comparison against it goes through this.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

type recordState uint8

const (
	stateUnset recordState = iota
	stateCodeIssued
	stateVerified
)

// record is the tagged per-address variant. Exactly one state is active at a
// time; code/expiry fields are only meaningful in their matching state.
// lastIssuedAt survives every transition so the cooldown holds regardless of
// what happened to the previous code.
type record struct {
	state             recordState
	code              string
	issuedAt          time.Time
	codeExpiresAt     time.Time
	lastIssuedAt      time.Time
	verifiedExpiresAt time.Time
}

// MemoryStore is the process-wide in-memory Store. Restart loses all
// outstanding codes and verifications, which is accepted for single-instance
// deployments; multi-instance deployments should use RedisStore instead.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*record

	now     func() time.Time
	genCode func() string

	cooldown    time.Duration
	codeTTL     time.Duration
	verifiedTTL time.Duration
}

// Option customizes a MemoryStore, mainly for tests.
type Option func(*MemoryStore)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) { s.now = now }
}

// WithCodeGenerator replaces the random code source.
func WithCodeGenerator(gen func() string) Option {
	return func(s *MemoryStore) { s.genCode = gen }
}

// WithWindows overrides the cooldown, code TTL and verified TTL.
func WithWindows(cooldown, codeTTL, verifiedTTL time.Duration) Option {
	return func(s *MemoryStore) {
		s.cooldown = cooldown
		s.codeTTL = codeTTL
		s.verifiedTTL = verifiedTTL
	}
}

// NewMemoryStore creates a MemoryStore with the default windows.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		records:     make(map[string]*record),
		now:         time.Now,
		genCode:     GenerateCode,
		cooldown:    DefaultCooldown,
		codeTTL:     DefaultCodeTTL,
		verifiedTTL: DefaultVerifiedTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateCode returns a uniformly random 6-digit code, leading zeros kept.
func GenerateCode() string {
	return fmt.Sprintf("%06d", rand.Intn(1000000))
}

// expireLocked lazily applies the wall-clock deadlines. Must hold s.mu.
func (s *MemoryStore) expireLocked(rec *record, now time.Time) {
	switch rec.state {
	case stateCodeIssued:
		if now.After(rec.codeExpiresAt) {
			rec.state = stateUnset
			rec.code = ""
		}
	case stateVerified:
		if now.After(rec.verifiedExpiresAt) {
			rec.state = stateUnset
		}
	}
}

// RequestCode implements Store.
func (s *MemoryStore) RequestCode(_ context.Context, address string) (string, error) {
	key := Normalize(address)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		rec = &record{}
		s.records[key] = rec
	}
	s.expireLocked(rec, now)

	if !rec.lastIssuedAt.IsZero() {
		if since := now.Sub(rec.lastIssuedAt); since < s.cooldown {
			return "", &RateLimitError{RetryAfter: s.cooldown - since}
		}
	}

	code := s.genCode()
	rec.state = stateCodeIssued
	rec.code = code
	rec.issuedAt = now
	rec.codeExpiresAt = now.Add(s.codeTTL)
	rec.lastIssuedAt = now
	rec.verifiedExpiresAt = time.Time{}
	return code, nil
}

// ConfirmCode implements Store.
func (s *MemoryStore) ConfirmCode(_ context.Context, address, code string) error {
	key := Normalize(address)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || rec.state != stateCodeIssued {
		return ErrNotFound
	}
	if now.After(rec.codeExpiresAt) {
		// expired codes are removed on first touch, never matchable again
		rec.state = stateUnset
		rec.code = ""
		return ErrExpired
	}
	if rec.code != code {
		return ErrMismatch
	}

	rec.state = stateVerified
	rec.code = ""
	rec.verifiedExpiresAt = now.Add(s.verifiedTTL)
	return nil
}

// CheckVerified implements Store.
func (s *MemoryStore) CheckVerified(_ context.Context, address string) (bool, error) {
	key := Normalize(address)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return false, nil
	}
	s.expireLocked(rec, now)
	return rec.state == stateVerified, nil
}

// ConsumeVerification implements Store.
func (s *MemoryStore) ConsumeVerification(_ context.Context, address string) (bool, error) {
	key := Normalize(address)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return false, nil
	}
	s.expireLocked(rec, now)
	if rec.state != stateVerified {
		return false, nil
	}

	rec.state = stateUnset
	rec.verifiedExpiresAt = time.Time{}
	return true, nil
}

// Sweep drops entries that no longer carry any state: expired codes and
// verifications are demoted first, and Unset placeholders are removed once
// their cooldown has lapsed. Returns the number of addresses reclaimed.
func (s *MemoryStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, rec := range s.records {
		s.expireLocked(rec, now)
		if rec.state == stateUnset && now.Sub(rec.lastIssuedAt) >= s.cooldown {
			delete(s.records, key)
			removed++
		}
	}
	return removed
}
