package escrow

import (
	"fmt"
	"math/big"

	"tradelock/core/types"
	"tradelock/native/lock"
)

// Status tracks the staged escrow through its role-gated lifecycle. The
// record is terminal at StageCompleted; it is not destroyed automatically.
type Status uint8

const (
	StageInitialized Status = iota
	StageDeposited
	StageBuyerChannelSubmitted
	StageSellerChannelSubmitted
	StageCompleted
)

func (s Status) String() string {
	switch s {
	case StageInitialized:
		return "initialized"
	case StageDeposited:
		return "deposited"
	case StageBuyerChannelSubmitted:
		return "buyer_channel_submitted"
	case StageSellerChannelSubmitted:
		return "seller_channel_submitted"
	case StageCompleted:
		return "completed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// ItemDescriptor carries the opaque metadata describing the off-ledger asset
// being traded. The engine never interprets these fields beyond persistence.
type ItemDescriptor struct {
	ItemID   string
	Name     string
	Quantity uint64
	Origin   string
}

// StagedEscrow is the per-trade record bridging an on-ledger payment and an
// externally attested delivery. Only the buyer and seller named here may
// drive it, each gated to their own transitions.
type StagedEscrow struct {
	ID            [32]byte
	Buyer         [20]byte
	Seller        [20]byte
	Item          ItemDescriptor
	Price         *big.Int
	BuyerChannel  string
	SellerChannel string

	PaymentDeposited bool
	IsTransferred    bool
	Payment          lock.Custody[types.Asset]
	PaymentKeyID     [32]byte
	Deposited        *big.Int

	CreatedAt int64
	Status    Status
}

// Clone returns an independent copy so stored records cannot be mutated
// through returned references.
func (e *StagedEscrow) Clone() *StagedEscrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Price != nil {
		clone.Price = new(big.Int).Set(e.Price)
	}
	if e.Deposited != nil {
		clone.Deposited = new(big.Int).Set(e.Deposited)
	}
	clone.Payment.Contents = e.Payment.Contents.Clone()
	return &clone
}

// Validate enforces the structural invariants every persisted record must
// satisfy regardless of stage.
func (e *StagedEscrow) Validate() error {
	if e == nil {
		return fmt.Errorf("escrow: nil record")
	}
	if e.ID == ([32]byte{}) {
		return fmt.Errorf("escrow: missing id")
	}
	if e.Buyer == ([20]byte{}) {
		return fmt.Errorf("escrow: missing buyer")
	}
	if e.Seller == ([20]byte{}) {
		return fmt.Errorf("escrow: missing seller")
	}
	if e.Buyer == e.Seller {
		return fmt.Errorf("escrow: buyer and seller must differ")
	}
	if e.Price == nil || e.Price.Sign() <= 0 {
		return fmt.Errorf("escrow: price must be positive")
	}
	if e.Status > StageCompleted {
		return fmt.Errorf("escrow: unknown status %d", uint8(e.Status))
	}
	if e.PaymentDeposited && (e.Deposited == nil || e.Deposited.Sign() <= 0) {
		return fmt.Errorf("escrow: deposited amount missing")
	}
	return nil
}
