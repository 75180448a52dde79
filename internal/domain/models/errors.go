package models

import (
	"errors"
	"fmt"
)

var (
	// ErrUserNotFound indicates the requested account does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrSenderNotFound indicates the transfer's sender account does not exist.
	ErrSenderNotFound = errors.New("sender not found")
	// ErrRecipientNotFound indicates the transfer's recipient account does not exist.
	ErrRecipientNotFound = errors.New("recipient not found")
	// ErrTransactionNotFound indicates the requested transaction record does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrSelfTransfer indicates sender and recipient are the same account.
	ErrSelfTransfer = errors.New("cannot transfer to self")
	// ErrInvalidAmount indicates a non-positive transfer amount.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrNoteTooLong indicates the transfer note exceeds MaxNoteLength.
	ErrNoteTooLong = errors.New("note too long")
	// ErrInsufficientFunds indicates the sender's balance is below the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidCredentials indicates a failed username/password check.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidListOptions indicates out-of-range pagination or an unknown
	// sort field or order.
	ErrInvalidListOptions = errors.New("invalid list options")
	// ErrTxConflict marks a store-level conflict (deadlock, lock timeout,
	// serialization failure) that is safe to retry from the top of the unit.
	ErrTxConflict = errors.New("transaction conflict")
)

// InsufficientFundsError carries the sender's balance at the moment the
// check failed, for message construction. errors.Is matches it against
// ErrInsufficientFunds.
type InsufficientFundsError struct {
	Balance int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %d", e.Balance)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}
