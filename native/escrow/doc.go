// Package escrow implements the staged escrow bridging an on-ledger payment
// and an off-ledger delivery. The payment leg is sealed behind a commitment
// lock held by the record; the delivery leg is attested through role-gated
// channel submissions and a caller-supplied completion flag.
//
// The completion flag is an explicit trust boundary: the engine enforces who
// may assert it and in which stages, but performs no delivery verification
// of its own. There is likewise no expiry path; a stalled escrow stays open
// until the buyer cancels.
package escrow
