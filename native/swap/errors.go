package swap

import "errors"

var (
	// ErrMismatchedSenderRecipient is returned when the declared counterparty
	// of a record does not match the party attempting to act on it.
	ErrMismatchedSenderRecipient = errors.New("swap: sender/recipient mismatch")
	// ErrMismatchedExchangeObject is returned when the key id demanded by a
	// record does not match the one committed by the counterparty.
	ErrMismatchedExchangeObject = errors.New("swap: exchange object mismatch")
	// ErrRecordNotFound is returned when a custodian record id does not
	// resolve, including records already consumed by settlement or return.
	ErrRecordNotFound = errors.New("swap: custodian record not found")
	// ErrListingNotFound is returned when a shared listing id does not
	// resolve, including listings already consumed or reclaimed.
	ErrListingNotFound = errors.New("swap: listing not found")
	// ErrUnauthorizedCustodian is returned when a party other than the
	// record's custodian attempts settlement or return.
	ErrUnauthorizedCustodian = errors.New("swap: unauthorized custodian")

	errNilState = errors.New("swap engine: state not configured")
)
