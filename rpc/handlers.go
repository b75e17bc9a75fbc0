package rpc

import (
	"encoding/hex"
	"encoding/json"
	"math/big"

	"tradelock/core/types"
	"tradelock/native/escrow"
	"tradelock/native/lock"
	"tradelock/native/swap"
)

func parseAddress(s string) ([20]byte, error) {
	var addr [20]byte
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 20 {
		return addr, invalidParams("address must be 40 hex characters")
	}
	copy(addr[:], raw)
	return addr, nil
}

func parseID(s string) ([32]byte, error) {
	var id [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 32 {
		return id, invalidParams("id must be 64 hex characters")
	}
	copy(id[:], raw)
	return id, nil
}

func parseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok || amount.Sign() < 0 {
		return nil, invalidParams("amount must be a non-negative decimal string")
	}
	return amount, nil
}

func encodeID(id [32]byte) string     { return hex.EncodeToString(id[:]) }
func encodeAddr(addr [20]byte) string { return hex.EncodeToString(addr[:]) }

type assetParam struct {
	ID     string `json:"id"`
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

func (p assetParam) asset() (types.Asset, error) {
	id, err := parseID(p.ID)
	if err != nil {
		return types.Asset{}, err
	}
	amount := big.NewInt(0)
	if p.Amount != "" {
		if amount, err = parseAmount(p.Amount); err != nil {
			return types.Asset{}, err
		}
	}
	return types.Asset{ID: id, Denom: p.Denom, Amount: amount}, nil
}

type custodianRecordJSON struct {
	ID            string `json:"id"`
	Sender        string `json:"sender"`
	Recipient     string `json:"recipient"`
	Custodian     string `json:"custodian"`
	ExchangeKeyID string `json:"exchangeKeyId"`
	KeyID         string `json:"keyId"`
	LockID        string `json:"lockId"`
	AssetID       string `json:"assetId"`
	CreatedAt     int64  `json:"createdAt"`
}

func custodianRecordResult(rec *swap.CustodianRecord) custodianRecordJSON {
	return custodianRecordJSON{
		ID:            encodeID(rec.ID),
		Sender:        encodeAddr(rec.Sender),
		Recipient:     encodeAddr(rec.Recipient),
		Custodian:     encodeAddr(rec.Custodian),
		ExchangeKeyID: encodeID(rec.ExchangeKeyID),
		KeyID:         encodeID(rec.KeyID),
		LockID:        encodeID(rec.Escrowed.LockID),
		AssetID:       encodeID(rec.Escrowed.Contents.ID),
		CreatedAt:     rec.CreatedAt,
	}
}

type listingJSON struct {
	ID            string `json:"id"`
	Sender        string `json:"sender"`
	Recipient     string `json:"recipient"`
	ExchangeKeyID string `json:"exchangeKeyId"`
	AssetID       string `json:"assetId"`
	CreatedAt     int64  `json:"createdAt"`
}

func listingResult(listing *swap.SharedListing) listingJSON {
	return listingJSON{
		ID:            encodeID(listing.ID),
		Sender:        encodeAddr(listing.Sender),
		Recipient:     encodeAddr(listing.Recipient),
		ExchangeKeyID: encodeID(listing.ExchangeKeyID),
		AssetID:       encodeID(listing.Offered.ID),
		CreatedAt:     listing.CreatedAt,
	}
}

type escrowJSON struct {
	ID            string `json:"id"`
	Buyer         string `json:"buyer"`
	Seller        string `json:"seller"`
	ItemID        string `json:"itemId"`
	ItemName      string `json:"itemName"`
	Price         string `json:"price"`
	Deposited     string `json:"deposited"`
	BuyerChannel  string `json:"buyerChannel,omitempty"`
	SellerChannel string `json:"sellerChannel,omitempty"`
	Status        string `json:"status"`
	IsTransferred bool   `json:"isTransferred"`
	CreatedAt     int64  `json:"createdAt"`
}

func escrowResult(rec *escrow.StagedEscrow) escrowJSON {
	deposited := "0"
	if rec.Deposited != nil {
		deposited = rec.Deposited.String()
	}
	price := "0"
	if rec.Price != nil {
		price = rec.Price.String()
	}
	return escrowJSON{
		ID:            encodeID(rec.ID),
		Buyer:         encodeAddr(rec.Buyer),
		Seller:        encodeAddr(rec.Seller),
		ItemID:        rec.Item.ItemID,
		ItemName:      rec.Item.Name,
		Price:         price,
		Deposited:     deposited,
		BuyerChannel:  rec.BuyerChannel,
		SellerChannel: rec.SellerChannel,
		Status:        rec.Status.String(),
		IsTransferred: rec.IsTransferred,
		CreatedAt:     rec.CreatedAt,
	}
}

type lockCreateResult struct {
	LockID string `json:"lockId"`
	KeyID  string `json:"keyId"`
}

func (s *Server) handleLockCreate(params []json.RawMessage) (interface{}, error) {
	var p struct {
		Asset assetParam `json:"asset"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	asset, err := p.Asset.asset()
	if err != nil {
		return nil, err
	}
	sealed, key := lock.New(nil, asset)
	s.vault.store(sealed, key)
	return lockCreateResult{LockID: encodeID(sealed.ID()), KeyID: encodeID(key.ID())}, nil
}

func (s *Server) handleCustodianDeposit(params []json.RawMessage) (interface{}, error) {
	var p struct {
		Sender        string `json:"sender"`
		LockID        string `json:"lockId"`
		KeyID         string `json:"keyId"`
		ExchangeKeyID string `json:"exchangeKeyId"`
		Recipient     string `json:"recipient"`
		Custodian     string `json:"custodian"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	sender, err := parseAddress(p.Sender)
	if err != nil {
		return nil, err
	}
	recipient, err := parseAddress(p.Recipient)
	if err != nil {
		return nil, err
	}
	custodian, err := parseAddress(p.Custodian)
	if err != nil {
		return nil, err
	}
	lockID, err := parseID(p.LockID)
	if err != nil {
		return nil, err
	}
	keyID, err := parseID(p.KeyID)
	if err != nil {
		return nil, err
	}
	exchangeKeyID, err := parseID(p.ExchangeKeyID)
	if err != nil {
		return nil, err
	}
	sealed, key, err := s.vault.take(lockID, keyID)
	if err != nil {
		return nil, err
	}
	rec, err := s.custodian.Deposit(sender, key, sealed, exchangeKeyID, recipient, custodian)
	if err != nil {
		// A rejected deposit leaves the pair unconsumed; put it back so the
		// caller can retry with corrected parameters.
		s.vault.store(sealed, key)
		return nil, err
	}
	return custodianRecordResult(rec), nil
}

func (s *Server) handleCustodianSettle(params []json.RawMessage) (interface{}, error) {
	var p struct {
		Custodian string `json:"custodian"`
		RecordA   string `json:"recordA"`
		RecordB   string `json:"recordB"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	custodian, err := parseAddress(p.Custodian)
	if err != nil {
		return nil, err
	}
	idA, err := parseID(p.RecordA)
	if err != nil {
		return nil, err
	}
	idB, err := parseID(p.RecordB)
	if err != nil {
		return nil, err
	}
	if err := s.custodian.Swap(custodian, idA, idB); err != nil {
		return nil, err
	}
	return map[string]bool{"settled": true}, nil
}

func (s *Server) handleCustodianReturn(params []json.RawMessage) (interface{}, error) {
	var p struct {
		Custodian string `json:"custodian"`
		RecordID  string `json:"recordId"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	custodian, err := parseAddress(p.Custodian)
	if err != nil {
		return nil, err
	}
	id, err := parseID(p.RecordID)
	if err != nil {
		return nil, err
	}
	if err := s.custodian.ReturnToSender(custodian, id); err != nil {
		return nil, err
	}
	return map[string]bool{"returned": true}, nil
}

func (s *Server) handleListingCreate(params []json.RawMessage) (interface{}, error) {
	var p struct {
		Sender        string     `json:"sender"`
		Offered       assetParam `json:"offered"`
		ExchangeKeyID string     `json:"exchangeKeyId"`
		Recipient     string     `json:"recipient"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	sender, err := parseAddress(p.Sender)
	if err != nil {
		return nil, err
	}
	recipient, err := parseAddress(p.Recipient)
	if err != nil {
		return nil, err
	}
	exchangeKeyID, err := parseID(p.ExchangeKeyID)
	if err != nil {
		return nil, err
	}
	offered, err := p.Offered.asset()
	if err != nil {
		return nil, err
	}
	listing, err := s.listings.Create(sender, offered, exchangeKeyID, recipient)
	if err != nil {
		return nil, err
	}
	return listingResult(listing), nil
}

func (s *Server) handleListingSwap(params []json.RawMessage) (interface{}, error) {
	var p struct {
		ListingID string `json:"listingId"`
		Caller    string `json:"caller"`
		LockID    string `json:"lockId"`
		KeyID     string `json:"keyId"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	id, err := parseID(p.ListingID)
	if err != nil {
		return nil, err
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, err
	}
	lockID, err := parseID(p.LockID)
	if err != nil {
		return nil, err
	}
	keyID, err := parseID(p.KeyID)
	if err != nil {
		return nil, err
	}
	sealed, key, err := s.vault.take(lockID, keyID)
	if err != nil {
		return nil, err
	}
	if err := s.listings.Swap(id, caller, sealed, key); err != nil {
		// Guard failures reject before the lock is opened; restore the pair
		// so the caller can retry with corrected parameters. A genuinely
		// consumed pair fails its next use anyway.
		s.vault.store(sealed, key)
		return nil, err
	}
	return map[string]bool{"settled": true}, nil
}

func (s *Server) handleListingReturn(params []json.RawMessage) (interface{}, error) {
	var p struct {
		ListingID string `json:"listingId"`
		Caller    string `json:"caller"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	id, err := parseID(p.ListingID)
	if err != nil {
		return nil, err
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, err
	}
	if err := s.listings.ReturnToSender(id, caller); err != nil {
		return nil, err
	}
	return map[string]bool{"returned": true}, nil
}

func (s *Server) handleEscrowCreate(params []json.RawMessage) (interface{}, error) {
	var p struct {
		Buyer  string `json:"buyer"`
		Seller string `json:"seller"`
		Item   struct {
			ItemID   string `json:"itemId"`
			Name     string `json:"name"`
			Quantity uint64 `json:"quantity"`
			Origin   string `json:"origin"`
		} `json:"item"`
		Price string `json:"price"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	buyer, err := parseAddress(p.Buyer)
	if err != nil {
		return nil, err
	}
	seller, err := parseAddress(p.Seller)
	if err != nil {
		return nil, err
	}
	price, err := parseAmount(p.Price)
	if err != nil {
		return nil, err
	}
	item := escrow.ItemDescriptor{
		ItemID:   p.Item.ItemID,
		Name:     p.Item.Name,
		Quantity: p.Item.Quantity,
		Origin:   p.Item.Origin,
	}
	rec, err := s.escrows.CreateTrade(buyer, seller, item, price)
	if err != nil {
		return nil, err
	}
	return escrowResult(rec), nil
}

type escrowCallParams struct {
	EscrowID string `json:"escrowId"`
	Caller   string `json:"caller"`
}

func (p escrowCallParams) parse() ([32]byte, [20]byte, error) {
	id, err := parseID(p.EscrowID)
	if err != nil {
		return [32]byte{}, [20]byte{}, err
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return [32]byte{}, [20]byte{}, err
	}
	return id, caller, nil
}

func (s *Server) handleEscrowDeposit(params []json.RawMessage) (interface{}, error) {
	var p struct {
		escrowCallParams
		Amount string `json:"amount"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	id, caller, err := p.parse()
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.escrows.Deposit(id, caller, amount); err != nil {
		return nil, err
	}
	return map[string]bool{"deposited": true}, nil
}

func (s *Server) handleEscrowSubmitBuyer(params []json.RawMessage) (interface{}, error) {
	return s.handleChannelSubmission(params, s.escrows.SubmitBuyerChannel)
}

func (s *Server) handleEscrowSubmitSeller(params []json.RawMessage) (interface{}, error) {
	return s.handleChannelSubmission(params, s.escrows.SubmitSellerChannel)
}

func (s *Server) handleChannelSubmission(params []json.RawMessage, submit func([32]byte, [20]byte, string) error) (interface{}, error) {
	var p struct {
		escrowCallParams
		Ref string `json:"ref"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	id, caller, err := p.parse()
	if err != nil {
		return nil, err
	}
	if p.Ref == "" {
		return nil, invalidParams("ref required")
	}
	if err := submit(id, caller, p.Ref); err != nil {
		return nil, err
	}
	return map[string]bool{"submitted": true}, nil
}

func (s *Server) handleEscrowClaim(params []json.RawMessage) (interface{}, error) {
	return s.handleCompletion(params, s.escrows.Claim)
}

func (s *Server) handleEscrowCancel(params []json.RawMessage) (interface{}, error) {
	return s.handleCompletion(params, s.escrows.Cancel)
}

func (s *Server) handleCompletion(params []json.RawMessage, finish func([32]byte, [20]byte, bool) error) (interface{}, error) {
	var p struct {
		escrowCallParams
		Completed bool `json:"completed"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	id, caller, err := p.parse()
	if err != nil {
		return nil, err
	}
	if err := finish(id, caller, p.Completed); err != nil {
		return nil, err
	}
	return map[string]bool{"completed": true}, nil
}

func (s *Server) handleEscrowGet(params []json.RawMessage) (interface{}, error) {
	var p struct {
		EscrowID string `json:"escrowId"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	id, err := parseID(p.EscrowID)
	if err != nil {
		return nil, err
	}
	rec, err := s.escrows.Get(id)
	if err != nil {
		return nil, err
	}
	return escrowResult(rec), nil
}
