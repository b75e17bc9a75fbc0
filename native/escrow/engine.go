package escrow

import (
	"fmt"
	"math/big"
	"time"

	"tradelock/core/events"
	"tradelock/core/types"
	"tradelock/native/common"
	"tradelock/native/lock"
)

const moduleName = "escrow.staged"

// paymentDenom is the ledger-native unit deposits are debited in.
const paymentDenom = "native"

type escrowState interface {
	EscrowPut(*StagedEscrow) error
	EscrowGet(id [32]byte) (*StagedEscrow, bool)
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
	VaultAddress() [20]byte
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

// Engine drives the staged escrow state machine. Delivery of the off-ledger
// leg is attested by the parties themselves: the completed flag passed to
// Claim and Cancel is trusted as given by the authorized caller and is not
// verified here.
type Engine struct {
	state   escrowState
	emitter events.Emitter
	ids     lock.IDSource
	nowFn   func() int64
	pauses  common.PauseView
}

// NewEngine creates a staged escrow engine with a no-op emitter and the
// production id source.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		ids:     lock.NewRandomIDSource(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state escrowState) { e.state = state }

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
	e.emitter.Emit(escrowEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) loadEscrow(id [32]byte) (*StagedEscrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	rec, ok := e.state.EscrowGet(id)
	if !ok {
		return nil, ErrEscrowNotFound
	}
	return rec, nil
}

// Get resolves a staged escrow by id.
func (e *Engine) Get(id [32]byte) (*StagedEscrow, error) {
	rec, err := e.loadEscrow(id)
	if err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// CreateTrade opens a staged escrow between buyer and seller for the
// described item at the agreed price. No funds move until Deposit.
func (e *Engine) CreateTrade(buyer, seller [20]byte, item ItemDescriptor, price *big.Int) (*StagedEscrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	rec := &StagedEscrow{
		ID:        e.ids.NewID(),
		Buyer:     buyer,
		Seller:    seller,
		Item:      item,
		Price:     price,
		Deposited: big.NewInt(0),
		CreatedAt: e.now(),
		Status:    StageInitialized,
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if err := e.state.EscrowPut(rec); err != nil {
		return nil, err
	}
	e.emit(NewTradeCreatedEvent(rec))
	return rec.Clone(), nil
}

// Deposit moves the buyer's payment into the module vault and seals it
// behind a fresh commitment lock whose custody the record holds. The
// deposit must cover the full price; on any guard failure no funds move
// and no lock is created.
func (e *Engine) Deposit(id [32]byte, caller [20]byte, amount *big.Int) error {
	rec, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if caller != rec.Buyer {
		return ErrInvalidCaller
	}
	if rec.Status != StageInitialized {
		return ErrInvalidState
	}
	if amount == nil || amount.Cmp(rec.Price) < 0 {
		return ErrInsufficientPayment
	}
	buyerAcc, err := e.state.GetAccount(rec.Buyer)
	if err != nil {
		return fmt.Errorf("escrow: load buyer account: %w", err)
	}
	buyerAcc.EnsureDefaults()
	if buyerAcc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	vaultAddr := e.state.VaultAddress()
	vaultAcc, err := e.state.GetAccount(vaultAddr)
	if err != nil {
		return fmt.Errorf("escrow: load vault account: %w", err)
	}
	vaultAcc.EnsureDefaults()

	payment := types.Asset{
		ID:     types.DeriveAssetID(paymentDenom, rec.ID[:]),
		Denom:  paymentDenom,
		Amount: new(big.Int).Set(amount),
	}
	sealed, key := lock.New(e.ids, payment)
	custody, keyID, err := lock.Surrender(sealed, key)
	if err != nil {
		return err
	}

	buyerAcc.Balance = new(big.Int).Sub(buyerAcc.Balance, amount)
	vaultAcc.Balance = new(big.Int).Add(vaultAcc.Balance, amount)
	if err := e.state.PutAccount(rec.Buyer, buyerAcc); err != nil {
		return fmt.Errorf("escrow: persist buyer account: %w", err)
	}
	if err := e.state.PutAccount(vaultAddr, vaultAcc); err != nil {
		return fmt.Errorf("escrow: persist vault account: %w", err)
	}

	rec.Payment = custody
	rec.PaymentKeyID = keyID
	rec.PaymentDeposited = true
	rec.Deposited = new(big.Int).Set(amount)
	rec.Status = StageDeposited
	if err := e.state.EscrowPut(rec); err != nil {
		return err
	}
	e.emit(NewPaymentDepositedEvent(rec))
	return nil
}

// SubmitBuyerChannel records the buyer's external delivery channel
// reference. Legal exactly once, from the Deposited stage.
func (e *Engine) SubmitBuyerChannel(id [32]byte, caller [20]byte, ref string) error {
	rec, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if caller != rec.Buyer {
		return ErrInvalidCaller
	}
	if rec.BuyerChannel != "" {
		return ErrAlreadySubmitted
	}
	if rec.Status != StageDeposited {
		return ErrInvalidState
	}
	rec.BuyerChannel = ref
	rec.Status = StageBuyerChannelSubmitted
	if err := e.state.EscrowPut(rec); err != nil {
		return err
	}
	e.emit(NewChannelSubmittedEvent(rec, rec.Buyer))
	return nil
}

// SubmitSellerChannel records the seller's external delivery channel
// reference. Legal exactly once, and only after the buyer has submitted.
func (e *Engine) SubmitSellerChannel(id [32]byte, caller [20]byte, ref string) error {
	rec, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if caller != rec.Seller {
		return ErrInvalidCaller
	}
	if rec.SellerChannel != "" {
		return ErrAlreadySubmitted
	}
	if rec.Status != StageBuyerChannelSubmitted {
		return ErrInvalidState
	}
	rec.SellerChannel = ref
	rec.Status = StageSellerChannelSubmitted
	if err := e.state.EscrowPut(rec); err != nil {
		return err
	}
	e.emit(NewChannelSubmittedEvent(rec, rec.Seller))
	return nil
}

// Claim finalizes the trade: the seller asserts the off-ledger delivery
// completed, the payment lock is opened with the record's stored key, and
// the escrowed amount moves from the vault to the seller. The completed
// flag is taken at the caller's word.
func (e *Engine) Claim(id [32]byte, caller [20]byte, completed bool) error {
	rec, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if caller != rec.Seller {
		return ErrInvalidCaller
	}
	if rec.Status != StageSellerChannelSubmitted {
		return ErrInvalidState
	}
	if !completed {
		return ErrTransferNotCompleted
	}
	payment, err := e.openPayment(rec)
	if err != nil {
		return err
	}
	if err := e.payOut(rec.Seller, payment.Quantity()); err != nil {
		return err
	}
	rec.IsTransferred = true
	rec.Status = StageCompleted
	if err := e.state.EscrowPut(rec); err != nil {
		return err
	}
	e.emit(NewPaymentClaimedEvent(rec))
	return nil
}

// Cancel reverses the trade: the buyer asserts the off-ledger delivery did
// not complete and any deposited payment is released back from the vault.
// Legal from any stage before Completed.
func (e *Engine) Cancel(id [32]byte, caller [20]byte, completed bool) error {
	rec, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if caller != rec.Buyer {
		return ErrInvalidCaller
	}
	if rec.Status == StageCompleted {
		return ErrInvalidState
	}
	if completed {
		return ErrTransferAlreadyCompleted
	}
	if rec.PaymentDeposited {
		payment, err := e.openPayment(rec)
		if err != nil {
			return err
		}
		if err := e.payOut(rec.Buyer, payment.Quantity()); err != nil {
			return err
		}
	}
	rec.IsTransferred = false
	rec.Status = StageCompleted
	if err := e.state.EscrowPut(rec); err != nil {
		return err
	}
	e.emit(NewPaymentCancelledEvent(rec))
	return nil
}

// openPayment rehydrates the record's payment custody and consumes it with
// the stored key. The record's transition to Completed in the same
// transaction is what prevents the custody from being opened twice.
func (e *Engine) openPayment(rec *StagedEscrow) (types.Asset, error) {
	sealed := lock.FromCustody(rec.Payment)
	key := lock.RestoreKey(rec.PaymentKeyID)
	return sealed.Open(key)
}

func (e *Engine) payOut(to [20]byte, amount *big.Int) error {
	vaultAddr := e.state.VaultAddress()
	vaultAcc, err := e.state.GetAccount(vaultAddr)
	if err != nil {
		return fmt.Errorf("escrow: load vault account: %w", err)
	}
	vaultAcc.EnsureDefaults()
	if vaultAcc.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("escrow: vault balance below escrowed amount")
	}
	recipient, err := e.state.GetAccount(to)
	if err != nil {
		return fmt.Errorf("escrow: load recipient account: %w", err)
	}
	recipient.EnsureDefaults()
	vaultAcc.Balance = new(big.Int).Sub(vaultAcc.Balance, amount)
	recipient.Balance = new(big.Int).Add(recipient.Balance, amount)
	if err := e.state.PutAccount(vaultAddr, vaultAcc); err != nil {
		return fmt.Errorf("escrow: persist vault account: %w", err)
	}
	if err := e.state.PutAccount(to, recipient); err != nil {
		return fmt.Errorf("escrow: persist recipient account: %w", err)
	}
	return nil
}
