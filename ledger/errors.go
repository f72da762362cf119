package ledger

import (
	"errors"
	"fmt"

	"github.com/aquariusluo/creditscore/scoring"
)

var (
	// ErrNotSubmitted is returned when a score is computed for an account which is not in the data submitted state
	ErrNotSubmitted = errors.New("credit data has not been submitted since the last score computation")

	// ErrNotComputed is returned when a score is revealed or viewed before it has been computed
	ErrNotComputed = errors.New("score has not been computed")

	// ErrNotRevealed is returned when the owner's revealed score is requested before it has been revealed
	ErrNotRevealed = errors.New("score has not been revealed")

	// ErrUnauthorized is returned when the caller is neither the owner nor an authorized validator
	ErrUnauthorized = errors.New("unauthorized")

	// ErrCapabilityFailure is returned when the ciphertext provider fails; the record is left unchanged
	ErrCapabilityFailure = errors.New("ciphertext capability failure")

	// ErrInvalidAccount is returned for empty or malformed account identifiers
	ErrInvalidAccount = errors.New("invalid account")
)

const (
	KindRangeError        = "RangeError"
	KindNotSubmitted      = "NotSubmitted"
	KindNotComputed       = "NotComputed"
	KindNotRevealed       = "NotRevealed"
	KindUnauthorized      = "Unauthorized"
	KindCapabilityFailure = "CapabilityFailure"
	KindInvalidAccount    = "InvalidAccount"
	KindInternal          = "Internal"
)

// ErrorKind returns the kind of the given ledger error
func ErrorKind(err error) string {
	var rangeErr *scoring.RangeError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &rangeErr):
		return KindRangeError
	case errors.Is(err, ErrNotSubmitted):
		return KindNotSubmitted
	case errors.Is(err, ErrNotComputed):
		return KindNotComputed
	case errors.Is(err, ErrNotRevealed):
		return KindNotRevealed
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrCapabilityFailure):
		return KindCapabilityFailure
	case errors.Is(err, ErrInvalidAccount):
		return KindInvalidAccount
	}
	return KindInternal
}

func capabilityFailure(op string, err error) error {
	return fmt.Errorf("%w; failed to %s; %w", ErrCapabilityFailure, op, err)
}
