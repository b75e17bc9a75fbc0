// Package lock implements the commitment-lock primitive used by the swap and
// escrow engines. Locking an asset mints a single-use key; the lock's key id
// is the fingerprint counterparties exchange to detect substitution before
// settlement.
package lock
