package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOrder is returned for malformed input: non-positive
	// quantity, missing price on a limit order, unknown side or type.
	// The order was rejected before any state mutation.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrStaleMatchState is returned when a fill proposal no longer
	// matches live book state at commit time. The caller must re-run
	// matching from fresh state; the same proposal is never retryable.
	ErrStaleMatchState = errors.New("stale match state")

	// ErrStoreUnavailable is returned when the backing store cannot be
	// reached and the engine is not configured for degraded operation.
	ErrStoreUnavailable = errors.New("store unavailable")
)

func errInvalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidOrder, reason)
}

func errStale(reason string) error {
	return fmt.Errorf("%w: %s", ErrStaleMatchState, reason)
}

