package escrow

import "errors"

var (
	// ErrEscrowNotFound is returned when the referenced record does not
	// resolve in state.
	ErrEscrowNotFound = errors.New("escrow: record not found")
	// ErrInvalidCaller is returned when a party attempts a transition
	// reserved for the other role.
	ErrInvalidCaller = errors.New("escrow: caller not authorized for this transition")
	// ErrInvalidState is returned when the attempted transition has no
	// edge from the record's current stage.
	ErrInvalidState = errors.New("escrow: transition not legal in current state")
	// ErrAlreadySubmitted is returned when a party submits its external
	// channel reference a second time.
	ErrAlreadySubmitted = errors.New("escrow: channel reference already submitted")
	// ErrInsufficientPayment is returned when the deposited amount is
	// below the agreed price.
	ErrInsufficientPayment = errors.New("escrow: deposit below price")
	// ErrInsufficientBalance is returned when the buyer's account cannot
	// cover the deposit.
	ErrInsufficientBalance = errors.New("escrow: insufficient balance")
	// ErrTransferNotCompleted is returned when the seller claims while
	// asserting the delivery did not complete.
	ErrTransferNotCompleted = errors.New("escrow: transfer not completed")
	// ErrTransferAlreadyCompleted is returned when the buyer cancels while
	// asserting the delivery did complete.
	ErrTransferAlreadyCompleted = errors.New("escrow: transfer already completed")

	errNilState = errors.New("escrow: state backend not configured")
)
