// Package swap implements the two settlement protocols built on the
// commitment lock: the custodian-mediated variant, where both parties
// escrow a locked asset with a trusted third party who settles once the
// records cross-match, and the direct shared-listing variant, where the
// named recipient completes the trade unilaterally. Both use the lock's key
// id as the fingerprint that detects tampering or mismatched intent before
// any asset changes owner.
package swap
