// Package tradingerr implements the error taxonomy the trading-loop
// components classify every failure into, so callers can branch on Kind
// with errors.As instead of matching strings.
package tradingerr

import (
	"errors"
	"fmt"
)

// Kind is the error taxonomy by handling policy.
type Kind string

const (
	// Validation covers bad mint, bad wallet address, amounts out of range.
	// Surfaced to caller, no retry.
	Validation Kind = "validation"
	// NotFound covers missing strategy/edge/position/curve account.
	// Surfaced, no retry.
	NotFound Kind = "not_found"
	// PolicyViolation is a signer refusal by policy, reported with a
	// structured ViolationKind. The executor marks the edge failed and
	// releases capital.
	PolicyViolation Kind = "policy_violation"
	// Transient covers RPC transport errors and stream reconnects.
	// Retried at the integration edge, never inside the executor's
	// single-attempt path.
	Transient Kind = "transient"
	// Protocol covers invalid response shapes and Borsh decode failures.
	// Logged at error level, surfaced as Internal.
	Protocol Kind = "protocol"
	// FatalInvariant covers conditions like double-release of a
	// reservation or a negative price. Logged as a warning; the system
	// keeps running.
	FatalInvariant Kind = "fatal_invariant"
	// Internal is the catch-all for everything not otherwise classified.
	Internal Kind = "internal"
)

// ViolationKind enumerates the structured reasons a PolicyViolation error
// reports, mirroring §7's "amount_exceeded, daily_volume_exceeded,
// profit_below_threshold, …".
type ViolationKind string

const (
	ViolationAmountExceeded       ViolationKind = "amount_exceeded"
	ViolationDailyVolumeExceeded  ViolationKind = "daily_volume_exceeded"
	ViolationMaxTransactionsPerDay ViolationKind = "max_transactions_per_day_exceeded"
	ViolationProfitBelowThreshold ViolationKind = "profit_below_threshold"
	ViolationStrategyCeiling     ViolationKind = "strategy_ceiling_exceeded"
	ViolationPositionCap         ViolationKind = "position_cap_exceeded"
	ViolationGlobalCeiling       ViolationKind = "global_ceiling_exceeded"
	ViolationAlreadyReserved     ViolationKind = "already_reserved"
	ViolationMayhemMode          ViolationKind = "mayhem_mode_unsupported"
)

// Error is the single error type every core component returns.
type Error struct {
	Kind      Kind
	Violation ViolationKind // only set when Kind == PolicyViolation
	Op        string        // the operation that failed, e.g. "capital.Reserve"
	Msg       string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(op string, kind Kind, msg string) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

func Wrap(op string, kind Kind, msg string, cause error) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg, Cause: cause}
}

func Policy(op string, violation ViolationKind, msg string) *Error {
	return &Error{Op: op, Kind: PolicyViolation, Violation: violation, Msg: msg}
}

// KindOf reports the Kind of the *Error that err is or wraps (found with
// errors.As); ok is false when err carries no *Error.
func KindOf(err error) (Kind, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return "", false
}
