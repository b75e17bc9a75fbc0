package escrow

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"tradelock/core/events"
	"tradelock/core/types"
	"tradelock/native/common"
)

type mockState struct {
	escrows  map[[32]byte]*StagedEscrow
	accounts map[[20]byte]*types.Account
	vault    [20]byte
}

func newMockState() *mockState {
	return &mockState{
		escrows:  make(map[[32]byte]*StagedEscrow),
		accounts: make(map[[20]byte]*types.Account),
		vault:    newTestAddress(0xFA),
	}
}

func (m *mockState) EscrowPut(rec *StagedEscrow) error {
	if rec == nil {
		return fmt.Errorf("nil record")
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	m.escrows[rec.ID] = rec.Clone()
	return nil
}

func (m *mockState) EscrowGet(id [32]byte) (*StagedEscrow, bool) {
	rec, ok := m.escrows[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

func (m *mockState) GetAccount(addr [20]byte) (*types.Account, error) {
	acc, ok := m.accounts[addr]
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	return acc.Clone(), nil
}

func (m *mockState) PutAccount(addr [20]byte, acc *types.Account) error {
	if acc == nil {
		return fmt.Errorf("nil account")
	}
	m.accounts[addr] = acc.Clone()
	return nil
}

func (m *mockState) VaultAddress() [20]byte { return m.vault }

func (m *mockState) balance(addr [20]byte) *big.Int {
	acc, ok := m.accounts[addr]
	if !ok || acc.Balance == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(acc.Balance)
}

func (m *mockState) fund(addr [20]byte, amount int64) {
	m.accounts[addr] = &types.Account{Balance: big.NewInt(amount)}
}

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(evt events.Event) {
	c.events = append(c.events, evt)
}

func (c *capturingEmitter) lastType() string {
	if len(c.events) == 0 {
		return ""
	}
	return c.events[len(c.events)-1].EventType()
}

type seqIDSource struct {
	next byte
}

func (s *seqIDSource) NewID() [32]byte {
	s.next++
	var id [32]byte
	id[0] = s.next
	return id
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func newTestEngine(state *mockState) *Engine {
	engine := NewEngine()
	engine.SetState(state)
	engine.SetIDSource(&seqIDSource{})
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	return engine
}

func testItem() ItemDescriptor {
	return ItemDescriptor{ItemID: "sku-42", Name: "sample item", Quantity: 1, Origin: "warehouse-7"}
}

func createTrade(t *testing.T, engine *Engine, buyer, seller [20]byte, price int64) *StagedEscrow {
	t.Helper()
	rec, err := engine.CreateTrade(buyer, seller, testItem(), big.NewInt(price))
	if err != nil {
		t.Fatalf("create trade: %v", err)
	}
	return rec
}

// advance drives the escrow through deposit and both channel submissions.
func advance(t *testing.T, engine *Engine, state *mockState, rec *StagedEscrow, deposit int64) {
	t.Helper()
	state.fund(rec.Buyer, deposit)
	if err := engine.Deposit(rec.ID, rec.Buyer, big.NewInt(deposit)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.SubmitBuyerChannel(rec.ID, rec.Buyer, "https://chan.example/buyer"); err != nil {
		t.Fatalf("buyer channel: %v", err)
	}
	if err := engine.SubmitSellerChannel(rec.ID, rec.Seller, "https://chan.example/seller"); err != nil {
		t.Fatalf("seller channel: %v", err)
	}
}

func TestClaimPaysSellerExactlyPrice(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	emitter := &capturingEmitter{}
	engine.SetEmitter(emitter)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)

	rec := createTrade(t, engine, buyer, seller, 1000)
	advance(t, engine, state, rec, 1000)

	if got := state.balance(buyer); got.Sign() != 0 {
		t.Fatalf("expected buyer drained after deposit, got %s", got)
	}
	if got := state.balance(state.vault); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected vault holding 1000, got %s", got)
	}

	if err := engine.Claim(rec.ID, seller, true); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got := state.balance(seller); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected seller paid 1000, got %s", got)
	}
	if got := state.balance(state.vault); got.Sign() != 0 {
		t.Fatalf("expected vault drained, got %s", got)
	}

	stored, _ := state.EscrowGet(rec.ID)
	if stored.Status != StageCompleted {
		t.Fatalf("expected completed, got %s", stored.Status)
	}
	if !stored.IsTransferred {
		t.Fatalf("expected is_transferred true after claim")
	}
	if emitter.lastType() != EventTypePaymentClaimed {
		t.Fatalf("expected claimed event, got %s", emitter.lastType())
	}

	// The record is terminal; neither party can act on it again.
	if err := engine.Claim(rec.ID, seller, true); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on double claim, got %v", err)
	}
	if err := engine.Cancel(rec.ID, buyer, false); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on cancel after claim, got %v", err)
	}
}

func TestDepositBelowPriceFails(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)

	rec := createTrade(t, engine, buyer, seller, 1000)
	state.fund(buyer, 500)

	if err := engine.Deposit(rec.ID, buyer, big.NewInt(500)); !errors.Is(err, ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}
	stored, _ := state.EscrowGet(rec.ID)
	if stored.Status != StageInitialized {
		t.Fatalf("failed deposit must not advance state, got %s", stored.Status)
	}
	if stored.PaymentDeposited {
		t.Fatalf("failed deposit must not create a payment lock")
	}
	if got := state.balance(buyer); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("failed deposit must not move funds, buyer has %s", got)
	}
}

func TestDepositGuards(t *testing.T) {
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)
	mallory := newTestAddress(0x04)

	cases := []struct {
		name    string
		caller  [20]byte
		fund    int64
		amount  int64
		wantErr error
	}{
		{name: "seller cannot deposit", caller: seller, fund: 2000, amount: 1000, wantErr: ErrInvalidCaller},
		{name: "third party cannot deposit", caller: mallory, fund: 2000, amount: 1000, wantErr: ErrInvalidCaller},
		{name: "unfunded buyer", caller: buyer, fund: 100, amount: 1000, wantErr: ErrInsufficientBalance},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := newMockState()
			engine := newTestEngine(state)
			rec := createTrade(t, engine, buyer, seller, 1000)
			state.fund(tc.caller, tc.fund)
			if err := engine.Deposit(rec.ID, tc.caller, big.NewInt(tc.amount)); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestClaimBeforeSellerSubmissionFails(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)

	rec := createTrade(t, engine, buyer, seller, 1000)
	state.fund(buyer, 1000)
	if err := engine.Deposit(rec.ID, buyer, big.NewInt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.SubmitBuyerChannel(rec.ID, buyer, "https://chan.example/buyer"); err != nil {
		t.Fatalf("buyer channel: %v", err)
	}

	if err := engine.Claim(rec.ID, seller, true); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if got := state.balance(state.vault); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("failed claim must not move funds, vault has %s", got)
	}
}

func TestSecondBuyerSubmissionFails(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)

	rec := createTrade(t, engine, buyer, seller, 1000)
	state.fund(buyer, 1000)
	if err := engine.Deposit(rec.ID, buyer, big.NewInt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.SubmitBuyerChannel(rec.ID, buyer, "https://chan.example/one"); err != nil {
		t.Fatalf("buyer channel: %v", err)
	}
	if err := engine.SubmitBuyerChannel(rec.ID, buyer, "https://chan.example/two"); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
	stored, _ := state.EscrowGet(rec.ID)
	if stored.BuyerChannel != "https://chan.example/one" {
		t.Fatalf("rejected submission must not overwrite the reference")
	}
}

func TestChannelSubmissionRoleAndOrderGuards(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)

	rec := createTrade(t, engine, buyer, seller, 1000)
	state.fund(buyer, 1000)

	// Before deposit neither submission is legal.
	if err := engine.SubmitBuyerChannel(rec.ID, buyer, "ref"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState before deposit, got %v", err)
	}
	if err := engine.Deposit(rec.ID, buyer, big.NewInt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	// Seller must wait for the buyer's submission.
	if err := engine.SubmitSellerChannel(rec.ID, seller, "ref"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState before buyer submits, got %v", err)
	}
	// Cross-role submissions are rejected.
	if err := engine.SubmitBuyerChannel(rec.ID, seller, "ref"); !errors.Is(err, ErrInvalidCaller) {
		t.Fatalf("expected ErrInvalidCaller for seller on buyer path, got %v", err)
	}
	if err := engine.SubmitSellerChannel(rec.ID, buyer, "ref"); !errors.Is(err, ErrInvalidCaller) {
		t.Fatalf("expected ErrInvalidCaller for buyer on seller path, got %v", err)
	}
}

func TestCancelRefundsExactDeposit(t *testing.T) {
	stages := []struct {
		name    string
		prepare func(t *testing.T, engine *Engine, state *mockState, rec *StagedEscrow)
		refund  int64
	}{
		{
			name:    "before deposit",
			prepare: func(*testing.T, *Engine, *mockState, *StagedEscrow) {},
			refund:  0,
		},
		{
			name: "after deposit",
			prepare: func(t *testing.T, engine *Engine, state *mockState, rec *StagedEscrow) {
				state.fund(rec.Buyer, 1500)
				if err := engine.Deposit(rec.ID, rec.Buyer, big.NewInt(1500)); err != nil {
					t.Fatalf("deposit: %v", err)
				}
			},
			refund: 1500,
		},
		{
			name: "after both submissions",
			prepare: func(t *testing.T, engine *Engine, state *mockState, rec *StagedEscrow) {
				advance(t, engine, state, rec, 1500)
			},
			refund: 1500,
		},
	}

	for _, tc := range stages {
		t.Run(tc.name, func(t *testing.T) {
			state := newMockState()
			engine := newTestEngine(state)
			emitter := &capturingEmitter{}
			engine.SetEmitter(emitter)
			buyer := newTestAddress(0x01)
			seller := newTestAddress(0x02)

			rec := createTrade(t, engine, buyer, seller, 1000)
			tc.prepare(t, engine, state, rec)

			if err := engine.Cancel(rec.ID, seller, false); !errors.Is(err, ErrInvalidCaller) {
				t.Fatalf("expected only buyer to cancel, got %v", err)
			}
			if err := engine.Cancel(rec.ID, buyer, true); !errors.Is(err, ErrTransferAlreadyCompleted) {
				t.Fatalf("expected ErrTransferAlreadyCompleted, got %v", err)
			}
			if err := engine.Cancel(rec.ID, buyer, false); err != nil {
				t.Fatalf("cancel: %v", err)
			}

			if got := state.balance(buyer); got.Cmp(big.NewInt(tc.refund)) != 0 {
				t.Fatalf("expected refund of %d, buyer has %s", tc.refund, got)
			}
			if got := state.balance(state.vault); got.Sign() != 0 {
				t.Fatalf("expected empty vault after cancel, got %s", got)
			}
			stored, _ := state.EscrowGet(rec.ID)
			if stored.Status != StageCompleted {
				t.Fatalf("expected completed, got %s", stored.Status)
			}
			if stored.IsTransferred {
				t.Fatalf("expected is_transferred false after cancel")
			}
			if emitter.lastType() != EventTypePaymentCancelled {
				t.Fatalf("expected cancelled event, got %s", emitter.lastType())
			}
		})
	}
}

func TestClaimWithoutCompletionFlagFails(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)

	rec := createTrade(t, engine, buyer, seller, 1000)
	advance(t, engine, state, rec, 1000)

	if err := engine.Claim(rec.ID, seller, false); !errors.Is(err, ErrTransferNotCompleted) {
		t.Fatalf("expected ErrTransferNotCompleted, got %v", err)
	}
	if err := engine.Claim(rec.ID, buyer, true); !errors.Is(err, ErrInvalidCaller) {
		t.Fatalf("expected ErrInvalidCaller for buyer claim, got %v", err)
	}
	// The rejected claims left the payment intact; the legitimate one works.
	if err := engine.Claim(rec.ID, seller, true); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got := state.balance(seller); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected seller paid 1000, got %s", got)
	}
}

func TestUnknownEscrow(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	var missing [32]byte
	missing[0] = 0xEE

	if err := engine.Deposit(missing, newTestAddress(0x01), big.NewInt(1)); !errors.Is(err, ErrEscrowNotFound) {
		t.Fatalf("expected ErrEscrowNotFound, got %v", err)
	}
	if err := engine.Claim(missing, newTestAddress(0x02), true); !errors.Is(err, ErrEscrowNotFound) {
		t.Fatalf("expected ErrEscrowNotFound, got %v", err)
	}
}

func TestCreateTradeValidation(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	buyer := newTestAddress(0x01)

	if _, err := engine.CreateTrade(buyer, buyer, testItem(), big.NewInt(100)); err == nil {
		t.Fatalf("expected same-party trade to be rejected")
	}
	if _, err := engine.CreateTrade(buyer, newTestAddress(0x02), testItem(), big.NewInt(0)); err == nil {
		t.Fatalf("expected zero price to be rejected")
	}
}

func TestDepositHonorsModulePause(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)

	rec := createTrade(t, engine, buyer, seller, 1000)
	engine.SetPauses(common.NewStaticPauses([]string{moduleName}))
	state.fund(buyer, 1000)
	if err := engine.Deposit(rec.ID, buyer, big.NewInt(1000)); !errors.Is(err, common.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
}
