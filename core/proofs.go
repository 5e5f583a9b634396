package core

// The cryptographic proof provider is external (§6): the core only
// requires that vrf_proof and kes_signature be exactly 32 bytes.
// ValidateHeaderShape backs Ledger.ValidateBlock's header check; this
// file adds a bounded, shape-only check for a supplied validator public
// key — never signature verification — grounded on
// _examples/original_source/src/consensus.rs's PraosKeys stub, which
// carries key material without any real cryptographic operation.
// ValidatorKeyShape guards BlockProducer.LeaderKeys before it reaches
// the leader oracle.

import (
	"github.com/btcsuite/btcd/btcec/v2"
)

// ValidateHeaderShape checks the structural requirements on a block
// header: non-empty leader, non-zero slot, and 32-byte proof/signature
// blobs (§4.3's validate_block, §7's InvalidHeader condition).
func ValidateHeaderShape(h BlockHeader) bool {
	if h.Leader == "" {
		return false
	}
	if h.Slot == 0 {
		return false
	}
	// [32]byte fields are structurally always 32 bytes; retained here as
	// a named check so the three InvalidHeader conditions in §7 stay
	// textually visible at one call site.
	return len(h.VRFProof) == 32 && len(h.KESSignature) == 32
}

// ValidatorKeyShape reports whether pubKey parses as a compressed or
// uncompressed secp256k1 public key. It never verifies a signature —
// real Praos cryptography is explicitly out of scope (§1 Non-goals) —
// it only bounds what "looks like a validator key" for the leader
// oracle's key material parameter.
func ValidatorKeyShape(pubKey []byte) bool {
	_, err := btcec.ParsePubKey(pubKey)
	return err == nil
}
