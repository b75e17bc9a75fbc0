package state

import ethcrypto "github.com/ethereum/go-ethereum/crypto"

var (
	accountPrefix    = []byte("account:")
	assetOwnerPrefix = []byte("asset-owner:")
	custodianPrefix  = []byte("swap/custodian:")
	listingPrefix    = []byte("swap/listing:")
	escrowPrefix     = []byte("escrow/staged:")

	vaultSeed = []byte("tradelock/vault")
)

func prefixedKey(prefix, suffix []byte) []byte {
	buf := make([]byte, len(prefix)+len(suffix))
	copy(buf, prefix)
	copy(buf[len(prefix):], suffix)
	return ethcrypto.Keccak256(buf)
}

func accountKey(addr [20]byte) []byte {
	return prefixedKey(accountPrefix, addr[:])
}

func assetOwnerKey(id [32]byte) []byte {
	return prefixedKey(assetOwnerPrefix, id[:])
}

func custodianKey(id [32]byte) []byte {
	return prefixedKey(custodianPrefix, id[:])
}

func listingKey(id [32]byte) []byte {
	return prefixedKey(listingPrefix, id[:])
}

func escrowKey(id [32]byte) []byte {
	return prefixedKey(escrowPrefix, id[:])
}
