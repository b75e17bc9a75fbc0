package state

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"tradelock/core/types"
	"tradelock/native/escrow"
	"tradelock/native/lock"
	"tradelock/native/swap"
	"tradelock/storage"
)

// Manager is the arena of ledger entities keyed by unique id: payment
// accounts, the asset-ownership index, and the per-protocol escrow records.
// Records are RLP-encoded under keccak-hashed prefixed keys. Deleting a
// record is what makes a consumed escrow unresolvable to later callers.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager backed by the given key-value store.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// RLP has no signed integers and no nil big.Ints, so persisted records go
// through stored* wrappers with uint64 timestamps and backfilled amounts.

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

type storedAsset struct {
	ID     [32]byte
	Denom  string
	Amount *big.Int
}

func toStoredAsset(a types.Asset) storedAsset {
	return storedAsset{ID: a.ID, Denom: a.Denom, Amount: a.Quantity()}
}

func (s storedAsset) asset() types.Asset {
	return types.Asset{ID: s.ID, Denom: s.Denom, Amount: new(big.Int).Set(s.Amount)}
}

type storedCustodianRecord struct {
	ID            [32]byte
	Sender        [20]byte
	Recipient     [20]byte
	Custodian     [20]byte
	ExchangeKeyID [32]byte
	KeyID         [32]byte
	LockID        [32]byte
	LockKeyID     [32]byte
	Escrowed      storedAsset
	CreatedAt     uint64
}

type storedListing struct {
	ID            [32]byte
	Sender        [20]byte
	Recipient     [20]byte
	ExchangeKeyID [32]byte
	Offered       storedAsset
	CreatedAt     uint64
}

type storedEscrow struct {
	ID               [32]byte
	Buyer            [20]byte
	Seller           [20]byte
	ItemID           string
	ItemName         string
	ItemQuantity     uint64
	ItemOrigin       string
	Price            *big.Int
	BuyerChannel     string
	SellerChannel    string
	PaymentDeposited bool
	IsTransferred    bool
	LockID           [32]byte
	LockKeyID        [32]byte
	PaymentKeyID     [32]byte
	Payment          storedAsset
	Deposited        *big.Int
	CreatedAt        uint64
	Status           uint8
}

func (m *Manager) getRecord(key []byte, out interface{}) (bool, error) {
	data, err := m.db.Get(key)
	if err != nil {
		if err == storage.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode record: %w", err)
	}
	return true, nil
}

func (m *Manager) putRecord(key []byte, record interface{}) error {
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return fmt.Errorf("state: encode record: %w", err)
	}
	return m.db.Put(key, encoded)
}

// GetAccount loads the account for addr, returning a zero-balance account
// when none has been persisted yet.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	stored := new(storedAccount)
	ok, err := m.getRecord(accountKey(addr), stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	return &types.Account{Nonce: stored.Nonce, Balance: stored.Balance}, nil
}

// PutAccount persists the account for addr.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	balance := account.Balance
	if balance == nil {
		balance = big.NewInt(0)
	}
	return m.putRecord(accountKey(addr), &storedAccount{Nonce: account.Nonce, Balance: balance})
}

// AssetOwner resolves the current owner of an asset, if any.
func (m *Manager) AssetOwner(id [32]byte) ([20]byte, bool, error) {
	data, err := m.db.Get(assetOwnerKey(id))
	if err != nil {
		if err == storage.ErrNotFound {
			return [20]byte{}, false, nil
		}
		return [20]byte{}, false, err
	}
	if len(data) != 20 {
		return [20]byte{}, false, fmt.Errorf("state: malformed owner record")
	}
	var owner [20]byte
	copy(owner[:], data)
	return owner, true, nil
}

// SetAssetOwner records owner as the single current owner of the asset.
func (m *Manager) SetAssetOwner(id [32]byte, owner [20]byte) error {
	return m.db.Put(assetOwnerKey(id), owner[:])
}

// CustodianPut persists a custodian swap record.
func (m *Manager) CustodianPut(rec *swap.CustodianRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	stored := &storedCustodianRecord{
		ID:            rec.ID,
		Sender:        rec.Sender,
		Recipient:     rec.Recipient,
		Custodian:     rec.Custodian,
		ExchangeKeyID: rec.ExchangeKeyID,
		KeyID:         rec.KeyID,
		LockID:        rec.Escrowed.LockID,
		LockKeyID:     rec.Escrowed.KeyID,
		Escrowed:      toStoredAsset(rec.Escrowed.Contents),
		CreatedAt:     uint64(rec.CreatedAt),
	}
	return m.putRecord(custodianKey(rec.ID), stored)
}

// CustodianGet resolves a custodian swap record by id.
func (m *Manager) CustodianGet(id [32]byte) (*swap.CustodianRecord, bool) {
	stored := new(storedCustodianRecord)
	ok, err := m.getRecord(custodianKey(id), stored)
	if err != nil || !ok {
		return nil, false
	}
	return &swap.CustodianRecord{
		ID:            stored.ID,
		Sender:        stored.Sender,
		Recipient:     stored.Recipient,
		Custodian:     stored.Custodian,
		ExchangeKeyID: stored.ExchangeKeyID,
		KeyID:         stored.KeyID,
		Escrowed: lock.Custody[types.Asset]{
			LockID:   stored.LockID,
			KeyID:    stored.LockKeyID,
			Contents: stored.Escrowed.asset(),
		},
		CreatedAt: int64(stored.CreatedAt),
	}, true
}

// CustodianDelete consumes a custodian swap record.
func (m *Manager) CustodianDelete(id [32]byte) error {
	return m.db.Delete(custodianKey(id))
}

// ListingPut persists a shared listing.
func (m *Manager) ListingPut(listing *swap.SharedListing) error {
	if err := listing.Validate(); err != nil {
		return err
	}
	stored := &storedListing{
		ID:            listing.ID,
		Sender:        listing.Sender,
		Recipient:     listing.Recipient,
		ExchangeKeyID: listing.ExchangeKeyID,
		Offered:       toStoredAsset(listing.Offered),
		CreatedAt:     uint64(listing.CreatedAt),
	}
	return m.putRecord(listingKey(listing.ID), stored)
}

// ListingGet resolves a shared listing by id.
func (m *Manager) ListingGet(id [32]byte) (*swap.SharedListing, bool) {
	stored := new(storedListing)
	ok, err := m.getRecord(listingKey(id), stored)
	if err != nil || !ok {
		return nil, false
	}
	return &swap.SharedListing{
		ID:            stored.ID,
		Sender:        stored.Sender,
		Recipient:     stored.Recipient,
		ExchangeKeyID: stored.ExchangeKeyID,
		Offered:       stored.Offered.asset(),
		CreatedAt:     int64(stored.CreatedAt),
	}, true
}

// ListingDelete consumes a shared listing.
func (m *Manager) ListingDelete(id [32]byte) error {
	return m.db.Delete(listingKey(id))
}

// EscrowPut persists a staged escrow record.
func (m *Manager) EscrowPut(rec *escrow.StagedEscrow) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	deposited := rec.Deposited
	if deposited == nil {
		deposited = big.NewInt(0)
	}
	stored := &storedEscrow{
		ID:               rec.ID,
		Buyer:            rec.Buyer,
		Seller:           rec.Seller,
		ItemID:           rec.Item.ItemID,
		ItemName:         rec.Item.Name,
		ItemQuantity:     rec.Item.Quantity,
		ItemOrigin:       rec.Item.Origin,
		Price:            rec.Price,
		BuyerChannel:     rec.BuyerChannel,
		SellerChannel:    rec.SellerChannel,
		PaymentDeposited: rec.PaymentDeposited,
		IsTransferred:    rec.IsTransferred,
		LockID:           rec.Payment.LockID,
		LockKeyID:        rec.Payment.KeyID,
		PaymentKeyID:     rec.PaymentKeyID,
		Payment:          toStoredAsset(rec.Payment.Contents),
		Deposited:        deposited,
		CreatedAt:        uint64(rec.CreatedAt),
		Status:           uint8(rec.Status),
	}
	return m.putRecord(escrowKey(rec.ID), stored)
}

// EscrowGet resolves a staged escrow record by id.
func (m *Manager) EscrowGet(id [32]byte) (*escrow.StagedEscrow, bool) {
	stored := new(storedEscrow)
	ok, err := m.getRecord(escrowKey(id), stored)
	if err != nil || !ok {
		return nil, false
	}
	return &escrow.StagedEscrow{
		ID:     stored.ID,
		Buyer:  stored.Buyer,
		Seller: stored.Seller,
		Item: escrow.ItemDescriptor{
			ItemID:   stored.ItemID,
			Name:     stored.ItemName,
			Quantity: stored.ItemQuantity,
			Origin:   stored.ItemOrigin,
		},
		Price:            stored.Price,
		BuyerChannel:     stored.BuyerChannel,
		SellerChannel:    stored.SellerChannel,
		PaymentDeposited: stored.PaymentDeposited,
		IsTransferred:    stored.IsTransferred,
		Payment: lock.Custody[types.Asset]{
			LockID:   stored.LockID,
			KeyID:    stored.LockKeyID,
			Contents: stored.Payment.asset(),
		},
		PaymentKeyID: stored.PaymentKeyID,
		Deposited:    stored.Deposited,
		CreatedAt:    int64(stored.CreatedAt),
		Status:       escrow.Status(stored.Status),
	}, true
}

// VaultAddress derives the module-owned account escrowed payments sit in.
func VaultAddress() [20]byte {
	hash := ethcrypto.Keccak256(vaultSeed)
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}

// VaultAddress satisfies the escrow engine's state interface.
func (m *Manager) VaultAddress() [20]byte {
	return VaultAddress()
}
