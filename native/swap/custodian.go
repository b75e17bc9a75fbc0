package swap

import (
	"fmt"
	"time"

	"tradelock/core/events"
	"tradelock/core/types"
	"tradelock/native/common"
	"tradelock/native/lock"
)

const custodianModuleName = "swap.custodian"

type custodianState interface {
	CustodianPut(*CustodianRecord) error
	CustodianGet(id [32]byte) (*CustodianRecord, bool)
	CustodianDelete(id [32]byte) error
	SetAssetOwner(id [32]byte, owner [20]byte) error
}

type swapEvent struct {
	evt *types.Event
}

func (e swapEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e swapEvent) Event() *types.Event { return e.evt }

// Engine mediates custodian swaps: both parties deposit a locked asset with a
// mutually trusted custodian, who settles once the two records cross-match.
type Engine struct {
	state   custodianState
	emitter events.Emitter
	ids     lock.IDSource
	nowFn   func() int64
	pauses  common.PauseView
}

// NewEngine creates a custodian swap engine with a no-op emitter and the
// production id source. Callers can override both.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		ids:     lock.NewRandomIDSource(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state custodianState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetIDSource overrides the record id allocator, primarily used in tests.
func (e *Engine) SetIDSource(src lock.IDSource) {
	if src == nil {
		e.ids = lock.NewRandomIDSource()
		return
	}
	e.ids = src
}

// SetNowFunc overrides the time source, primarily used in tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) SetPauses(p common.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(swapEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) loadRecord(id [32]byte) (*CustodianRecord, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	rec, ok := e.state.CustodianGet(id)
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rec, nil
}

// Deposit escrows the pair (key, locked asset) at the custodian's disposal,
// binding the deposited key id into the record so settlement can later
// confirm the asset was not swapped after deposit. The key must pair with
// the lock; the declared recipient and exchange key id are recorded as-is,
// with plausibility checks deferred to Swap. Every rejection happens before
// the pair is consumed.
func (e *Engine) Deposit(sender [20]byte, key *lock.Key, locked *lock.Lock[types.Asset], exchangeKeyID [32]byte, recipient, custodian [20]byte) (*CustodianRecord, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.pauses, custodianModuleName); err != nil {
		return nil, err
	}
	if key.ID() != locked.KeyID() {
		return nil, lock.ErrKeyMismatch
	}
	// Validate before consuming the pair so a rejected deposit leaves the
	// handles usable for a corrected call.
	rec := &CustodianRecord{
		ID:            e.ids.NewID(),
		Sender:        sender,
		Recipient:     recipient,
		Custodian:     custodian,
		ExchangeKeyID: exchangeKeyID,
		KeyID:         key.ID(),
		CreatedAt:     e.now(),
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	custody, keyID, err := lock.Surrender(locked, key)
	if err != nil {
		return nil, err
	}
	rec.KeyID = keyID
	rec.Escrowed = custody
	if err := e.state.CustodianPut(rec); err != nil {
		return nil, err
	}
	e.emit(NewCustodianDepositedEvent(rec))
	return rec.Clone(), nil
}

// Swap settles two cross-matching records atomically: each record's declared
// recipient must be the other's sender, and each record's demanded exchange
// key id must equal the key id the other party actually deposited. On
// success both locks are opened with their own stored keys and each asset is
// transferred to its record's recipient; both records are consumed.
func (e *Engine) Swap(custodian [20]byte, idA, idB [32]byte) error {
	// A record cannot settle against itself, even when its own fields
	// self-match.
	if idA == idB {
		return ErrMismatchedExchangeObject
	}
	recA, err := e.loadRecord(idA)
	if err != nil {
		return err
	}
	recB, err := e.loadRecord(idB)
	if err != nil {
		return err
	}
	if err := common.Guard(e.pauses, custodianModuleName); err != nil {
		return err
	}
	if recA.Custodian != custodian || recB.Custodian != custodian {
		return ErrUnauthorizedCustodian
	}
	if recA.Recipient != recB.Sender || recB.Recipient != recA.Sender {
		return ErrMismatchedSenderRecipient
	}
	if recA.ExchangeKeyID != recB.KeyID || recB.ExchangeKeyID != recA.KeyID {
		return ErrMismatchedExchangeObject
	}
	// Open both locks before any state write so a mismatch aborts cleanly.
	assetA, err := lock.FromCustody(recA.Escrowed).Open(lock.RestoreKey(recA.KeyID))
	if err != nil {
		return err
	}
	assetB, err := lock.FromCustody(recB.Escrowed).Open(lock.RestoreKey(recB.KeyID))
	if err != nil {
		return err
	}
	if err := e.state.SetAssetOwner(assetA.ID, recA.Recipient); err != nil {
		return err
	}
	if err := e.state.SetAssetOwner(assetB.ID, recB.Recipient); err != nil {
		return err
	}
	if err := e.state.CustodianDelete(recA.ID); err != nil {
		return err
	}
	if err := e.state.CustodianDelete(recB.ID); err != nil {
		return err
	}
	e.emit(NewCustodianSettledEvent(recA, recB))
	return nil
}

// ReturnToSender releases an escrowed asset back to its depositor and
// consumes the record. Only the record's custodian may trigger it, at any
// time before settlement.
func (e *Engine) ReturnToSender(custodian [20]byte, id [32]byte) error {
	rec, err := e.loadRecord(id)
	if err != nil {
		return err
	}
	if err := common.Guard(e.pauses, custodianModuleName); err != nil {
		return err
	}
	if rec.Custodian != custodian {
		return ErrUnauthorizedCustodian
	}
	asset, err := lock.FromCustody(rec.Escrowed).Open(lock.RestoreKey(rec.KeyID))
	if err != nil {
		return fmt.Errorf("swap: open escrowed lock: %w", err)
	}
	if err := e.state.SetAssetOwner(asset.ID, rec.Sender); err != nil {
		return err
	}
	if err := e.state.CustodianDelete(rec.ID); err != nil {
		return err
	}
	e.emit(NewCustodianReturnedEvent(rec))
	return nil
}
