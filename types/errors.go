package types

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrInsufficientCapacity         = errors.New("insufficient capacity")
	ErrPreconditionViolated         = errors.New("precondition violated")
	ErrMalformedWitnessSet          = errors.New("malformed witness set")
	ErrSignatureCountMismatch       = errors.New("signature count mismatch")
	ErrSignatureOrder               = errors.New("multisig signatures out of order")
	ErrConfirmationTimeout          = errors.New("transaction confirmation timeout")
	ErrTransactionNotFound          = errors.New("transaction was not found")
	ErrTransactionRejected          = errors.New("transaction rejected")
	ErrIndexerTimeout               = errors.New("indexer did not reach the node tip in time")
	ErrIndexerUnavailable           = errors.New("indexer tip is unavailable")
	ErrCapacityNotConserved         = errors.New("outputs require more capacity than inputs provide")
	ErrFeeTooHigh                   = errors.New("transaction fee too high")
	ErrInsufficientOccupiedCapacity = errors.New("cell capacity below occupied capacity")
	ErrCapacityOverflow             = errors.New("capacity does not fit in uint64")
	ErrInvalidCapacity              = errors.New("capacity must be a non-negative integer")
	ErrDeadCell                     = errors.New("cell is not live")
	ErrNetworkMismatch              = errors.New("address network does not match config")
	ErrNotAcpLock                   = errors.New("address must acp address")
	ErrInvalidUdtAmount             = errors.New("sUDT amount is invalid")
)

// InsufficientCapacityError reports how far a collection fell short of its
// target. It matches ErrInsufficientCapacity with errors.Is.
type InsufficientCapacityError struct {
	Required  *big.Int
	Collected *big.Int
}

// Shortfall returns Required - Collected.
func (e *InsufficientCapacityError) Shortfall() *big.Int {
	return new(big.Int).Sub(e.Required, e.Collected)
}

func (e *InsufficientCapacityError) Error() string {
	return fmt.Sprintf("%v: required %s shannons, collected %s, shortfall %s",
		ErrInsufficientCapacity, e.Required, e.Collected, e.Shortfall())
}

func (e *InsufficientCapacityError) Is(target error) bool {
	return target == ErrInsufficientCapacity
}
