package domain

import (
	"errors"
	"fmt"
)

var (
	ErrLotNotFound   = errors.New("lot not found")
	ErrLotNotOpen    = errors.New("lot is not open for bidding")
	ErrInvalidAmount = errors.New("bid amount must be a positive integer")
	ErrInvalidLot    = errors.New("lot requires a name, a positive quantity and a positive base price")
	// ErrInvalidStatus rejects a finalization request whose forced status is
	// not a terminal one. Only the closure engine moves lots out of open.
	ErrInvalidStatus = errors.New("finalization status must be closed or sold")
	// ErrAdmissionContention is returned when a bid keeps losing the
	// conditional insert to concurrent bidders after several attempts.
	ErrAdmissionContention = errors.New("lot is receiving concurrent bids, retry")
)

// BidTooLowError rejects a bid below the current floor and tells the caller
// the exact minimum it must reach to be accepted.
type BidTooLowError struct {
	Offered     int64
	MinRequired int64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid of %d is too low, minimum required is %d", e.Offered, e.MinRequired)
}

// StorageError wraps a transient ledger-store I/O failure. Callers may retry
// with backoff; anything else in this package is not retryable.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a transient storage failure.
func IsRetryable(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
