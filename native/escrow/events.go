package escrow

import (
	"encoding/hex"
	"strconv"

	"tradelock/core/types"
)

const (
	EventTypeTradeCreated     = "escrow.staged.created"
	EventTypePaymentDeposited = "escrow.staged.deposited"
	EventTypeChannelSubmitted = "escrow.staged.channel_submitted"
	EventTypePaymentClaimed   = "escrow.staged.claimed"
	EventTypePaymentCancelled = "escrow.staged.cancelled"
)

// NewTradeCreatedEvent returns the canonical payload for a freshly opened
// staged escrow.
func NewTradeCreatedEvent(rec *StagedEscrow) *types.Event {
	return newEscrowEvent(EventTypeTradeCreated, rec)
}

// NewPaymentDepositedEvent returns the canonical payload emitted when the
// buyer's payment is sealed into the vault.
func NewPaymentDepositedEvent(rec *StagedEscrow) *types.Event {
	evt := newEscrowEvent(EventTypePaymentDeposited, rec)
	if rec != nil && rec.Deposited != nil {
		evt.Attributes["deposited"] = rec.Deposited.String()
	}
	return evt
}

// NewChannelSubmittedEvent returns the canonical payload for a channel
// reference submission by either party.
func NewChannelSubmittedEvent(rec *StagedEscrow, submitter [20]byte) *types.Event {
	evt := newEscrowEvent(EventTypeChannelSubmitted, rec)
	evt.Attributes["submitter"] = hex.EncodeToString(submitter[:])
	return evt
}

// NewPaymentClaimedEvent returns the canonical payload emitted when the
// seller claims the escrowed payment.
func NewPaymentClaimedEvent(rec *StagedEscrow) *types.Event {
	return newEscrowEvent(EventTypePaymentClaimed, rec)
}

// NewPaymentCancelledEvent returns the canonical payload emitted when the
// buyer reverses the trade.
func NewPaymentCancelledEvent(rec *StagedEscrow) *types.Event {
	return newEscrowEvent(EventTypePaymentCancelled, rec)
}

func newEscrowEvent(eventType string, rec *StagedEscrow) *types.Event {
	attrs := make(map[string]string)
	if rec == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = hex.EncodeToString(rec.ID[:])
	attrs["buyer"] = hex.EncodeToString(rec.Buyer[:])
	attrs["seller"] = hex.EncodeToString(rec.Seller[:])
	attrs["status"] = rec.Status.String()
	attrs["transferred"] = strconv.FormatBool(rec.IsTransferred)
	if rec.Price != nil {
		attrs["price"] = rec.Price.String()
	}
	if rec.Item.ItemID != "" {
		attrs["itemId"] = rec.Item.ItemID
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
