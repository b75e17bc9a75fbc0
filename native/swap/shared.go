package swap

import (
	"time"

	"tradelock/core/events"
	"tradelock/core/types"
	"tradelock/native/common"
	"tradelock/native/lock"
)

const listingModuleName = "swap.listing"

type listingState interface {
	ListingPut(*SharedListing) error
	ListingGet(id [32]byte) (*SharedListing, bool)
	ListingDelete(id [32]byte) error
	SetAssetOwner(id [32]byte, owner [20]byte) error
}

// ListingEngine runs the direct, custodian-free swap variant: one party
// publishes a shared listing naming the counter-asset it demands, and the
// recipient completes the trade unilaterally by presenting the matching
// locked asset and key.
type ListingEngine struct {
	state   listingState
	emitter events.Emitter
	ids     lock.IDSource
	nowFn   func() int64
	pauses  common.PauseView
}

// NewListingEngine creates a direct swap engine with a no-op emitter and the
// production id source.
func NewListingEngine() *ListingEngine {
	return &ListingEngine{
		emitter: events.NoopEmitter{},
		ids:     lock.NewRandomIDSource(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *ListingEngine) SetState(state listingState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *ListingEngine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetIDSource overrides the listing id allocator, primarily used in tests.
func (e *ListingEngine) SetIDSource(src lock.IDSource) {
	if src == nil {
		e.ids = lock.NewRandomIDSource()
		return
	}
	e.ids = src
}

// SetNowFunc overrides the time source, primarily used in tests.
func (e *ListingEngine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *ListingEngine) SetPauses(p common.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

func (e *ListingEngine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(swapEvent{evt: evt})
}

func (e *ListingEngine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *ListingEngine) loadListing(id [32]byte) (*SharedListing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	listing, ok := e.state.ListingGet(id)
	if !ok {
		return nil, ErrListingNotFound
	}
	return listing, nil
}

// Create publishes a shared listing offering an asset and naming, by key id,
// the exact counter-asset the sender demands back and the counterparty it
// will accept. The offered asset is exposed directly, not locked.
func (e *ListingEngine) Create(sender [20]byte, offered types.Asset, exchangeKeyID [32]byte, recipient [20]byte) (*SharedListing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.pauses, listingModuleName); err != nil {
		return nil, err
	}
	listing := &SharedListing{
		ID:            e.ids.NewID(),
		Sender:        sender,
		Recipient:     recipient,
		ExchangeKeyID: exchangeKeyID,
		Offered:       offered.Clone(),
		CreatedAt:     e.now(),
	}
	if err := listing.Validate(); err != nil {
		return nil, err
	}
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}
	e.emit(NewListingCreatedEvent(listing))
	return listing.Clone(), nil
}

// Swap completes the trade unilaterally: the named recipient presents the
// locked counter-asset and its key, the engine opens the lock, hands the
// offered asset to the caller and the unlocked asset to the original sender,
// and consumes the listing — all in one transaction. Later attempts against
// the same listing fail with ErrListingNotFound.
func (e *ListingEngine) Swap(id [32]byte, caller [20]byte, locked *lock.Lock[types.Asset], key *lock.Key) error {
	listing, err := e.loadListing(id)
	if err != nil {
		return err
	}
	if err := common.Guard(e.pauses, listingModuleName); err != nil {
		return err
	}
	if caller != listing.Recipient {
		return ErrMismatchedSenderRecipient
	}
	if key.ID() != listing.ExchangeKeyID {
		return ErrMismatchedExchangeObject
	}
	asset, err := locked.Open(key)
	if err != nil {
		return err
	}
	if err := e.state.SetAssetOwner(listing.Offered.ID, caller); err != nil {
		return err
	}
	if err := e.state.SetAssetOwner(asset.ID, listing.Sender); err != nil {
		return err
	}
	if err := e.state.ListingDelete(listing.ID); err != nil {
		return err
	}
	e.emit(NewListingSettledEvent(listing, caller))
	return nil
}

// ReturnToSender reclaims the offered asset and destroys the listing. Only
// the original sender may reclaim; afterwards any completion attempt fails
// because the record no longer resolves.
func (e *ListingEngine) ReturnToSender(id [32]byte, caller [20]byte) error {
	listing, err := e.loadListing(id)
	if err != nil {
		return err
	}
	if err := common.Guard(e.pauses, listingModuleName); err != nil {
		return err
	}
	if caller != listing.Sender {
		return ErrMismatchedSenderRecipient
	}
	if err := e.state.SetAssetOwner(listing.Offered.ID, listing.Sender); err != nil {
		return err
	}
	if err := e.state.ListingDelete(listing.ID); err != nil {
		return err
	}
	e.emit(NewListingReturnedEvent(listing))
	return nil
}
