package swap

import (
	"encoding/hex"
	"strconv"

	"tradelock/core/types"
)

const (
	EventTypeCustodianDeposited = "swap.custodian.deposited"
	EventTypeCustodianSettled   = "swap.custodian.settled"
	EventTypeCustodianReturned  = "swap.custodian.returned"
	EventTypeListingCreated     = "swap.listing.created"
	EventTypeListingSettled     = "swap.listing.settled"
	EventTypeListingReturned    = "swap.listing.returned"
)

// NewCustodianDepositedEvent returns the canonical payload emitted when a
// party escrows a locked asset with a custodian.
func NewCustodianDepositedEvent(r *CustodianRecord) *types.Event {
	return newCustodianEvent(EventTypeCustodianDeposited, r)
}

// NewCustodianSettledEvent returns the canonical payload for an atomic
// two-record settlement.
func NewCustodianSettledEvent(a, b *CustodianRecord) *types.Event {
	attrs := make(map[string]string)
	if a != nil {
		attrs["recordA"] = hex.EncodeToString(a.ID[:])
		attrs["senderA"] = hex.EncodeToString(a.Sender[:])
	}
	if b != nil {
		attrs["recordB"] = hex.EncodeToString(b.ID[:])
		attrs["senderB"] = hex.EncodeToString(b.Sender[:])
	}
	return &types.Event{Type: EventTypeCustodianSettled, Attributes: attrs}
}

// NewCustodianReturnedEvent returns the canonical payload emitted when a
// custodian releases an escrowed asset back to its depositor.
func NewCustodianReturnedEvent(r *CustodianRecord) *types.Event {
	return newCustodianEvent(EventTypeCustodianReturned, r)
}

// NewListingCreatedEvent returns the canonical payload for a published
// shared listing.
func NewListingCreatedEvent(l *SharedListing) *types.Event {
	return newListingEvent(EventTypeListingCreated, l, [20]byte{})
}

// NewListingSettledEvent returns the canonical payload emitted when the
// named recipient completes a direct swap.
func NewListingSettledEvent(l *SharedListing, caller [20]byte) *types.Event {
	return newListingEvent(EventTypeListingSettled, l, caller)
}

// NewListingReturnedEvent returns the canonical payload emitted when a
// sender reclaims an offered asset.
func NewListingReturnedEvent(l *SharedListing) *types.Event {
	return newListingEvent(EventTypeListingReturned, l, [20]byte{})
}

func newCustodianEvent(eventType string, r *CustodianRecord) *types.Event {
	attrs := make(map[string]string)
	if r == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = hex.EncodeToString(r.ID[:])
	attrs["sender"] = hex.EncodeToString(r.Sender[:])
	attrs["recipient"] = hex.EncodeToString(r.Recipient[:])
	attrs["custodian"] = hex.EncodeToString(r.Custodian[:])
	attrs["exchangeKeyId"] = hex.EncodeToString(r.ExchangeKeyID[:])
	attrs["keyId"] = hex.EncodeToString(r.KeyID[:])
	attrs["lockId"] = hex.EncodeToString(r.Escrowed.LockID[:])
	attrs["createdAt"] = strconv.FormatInt(r.CreatedAt, 10)
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newListingEvent(eventType string, l *SharedListing, caller [20]byte) *types.Event {
	attrs := make(map[string]string)
	if l == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = hex.EncodeToString(l.ID[:])
	attrs["sender"] = hex.EncodeToString(l.Sender[:])
	attrs["recipient"] = hex.EncodeToString(l.Recipient[:])
	attrs["exchangeKeyId"] = hex.EncodeToString(l.ExchangeKeyID[:])
	attrs["offeredAssetId"] = hex.EncodeToString(l.Offered.ID[:])
	attrs["createdAt"] = strconv.FormatInt(l.CreatedAt, 10)
	if caller != ([20]byte{}) {
		attrs["caller"] = hex.EncodeToString(caller[:])
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
