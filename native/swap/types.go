package swap

import (
	"fmt"

	"tradelock/core/types"
	"tradelock/native/lock"
)

// CustodianRecord is one party's side of a custodian-mediated swap. It holds
// the locked asset together with the key credential deposited alongside it,
// plus the declared counterparty and the key id demanded back in exchange.
// Two such records, one per party, are the unit the custodian settles.
type CustodianRecord struct {
	ID            [32]byte
	Sender        [20]byte
	Recipient     [20]byte
	Custodian     [20]byte
	ExchangeKeyID [32]byte
	// KeyID is the deposited key credential, recorded at deposit time. If the
	// sender re-locked a substitute before depositing, this id no longer
	// matches what the counterparty demanded and settlement aborts.
	KeyID     [32]byte
	Escrowed  lock.Custody[types.Asset]
	CreatedAt int64
}

// Clone returns a deep copy of the record.
func (r *CustodianRecord) Clone() *CustodianRecord {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Escrowed.Contents = r.Escrowed.Contents.Clone()
	return &clone
}

// Validate checks structural integrity of a record before it is persisted.
func (r *CustodianRecord) Validate() error {
	if r == nil {
		return fmt.Errorf("nil custodian record")
	}
	if r.ID == ([32]byte{}) {
		return fmt.Errorf("custodian record id required")
	}
	if r.Custodian == ([20]byte{}) {
		return fmt.Errorf("custodian address required")
	}
	if r.KeyID == ([32]byte{}) {
		return fmt.Errorf("deposited key id required")
	}
	return nil
}

// SharedListing is the single globally addressable record of a direct swap.
// The offered asset is held directly rather than locked, since only one
// party is at risk until the counterparty completes the trade.
type SharedListing struct {
	ID            [32]byte
	Sender        [20]byte
	Recipient     [20]byte
	ExchangeKeyID [32]byte
	Offered       types.Asset
	CreatedAt     int64
}

// Clone returns a deep copy of the listing.
func (l *SharedListing) Clone() *SharedListing {
	if l == nil {
		return nil
	}
	clone := *l
	clone.Offered = l.Offered.Clone()
	return &clone
}

// Validate checks structural integrity of a listing before it is persisted.
func (l *SharedListing) Validate() error {
	if l == nil {
		return fmt.Errorf("nil listing")
	}
	if l.ID == ([32]byte{}) {
		return fmt.Errorf("listing id required")
	}
	if l.ExchangeKeyID == ([32]byte{}) {
		return fmt.Errorf("exchange key id required")
	}
	return nil
}
