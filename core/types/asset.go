package types

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Asset is an opaque movable value tracked by the ledger. Unique items carry
// a zero Amount and are identified solely by ID; payment legs additionally
// carry the fungible Amount denominated in Denom units.
type Asset struct {
	ID     [32]byte `json:"id"`
	Denom  string   `json:"denom"`
	Amount *big.Int `json:"amount,omitempty"`
}

// AssetID returns the unique identifier of the asset.
func (a Asset) AssetID() [32]byte { return a.ID }

// Quantity returns the fungible amount of the asset, never nil.
func (a Asset) Quantity() *big.Int {
	if a.Amount == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(a.Amount)
}

// Clone returns a deep copy of the asset so callers can safely mutate the
// copy without affecting the stored instance.
func (a Asset) Clone() Asset {
	clone := a
	if a.Amount != nil {
		clone.Amount = new(big.Int).Set(a.Amount)
	}
	return clone
}

// DeriveAssetID computes a deterministic asset identifier from the issuing
// collection and a caller-supplied salt (e.g. a mint counter or token hash).
func DeriveAssetID(denom string, salt []byte) [32]byte {
	return ethcrypto.Keccak256Hash([]byte(denom), salt)
}
