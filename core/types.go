package core

import "fmt"

// BlockId is a monotonically increasing identifier along a single chain.
// Ids are not globally dense: rollback leaves gaps.
type BlockId uint64

// TxId identifies a transaction within the ledger.
type TxId uint64

// OutputIndex selects an output within a transaction.
type OutputIndex uint32

// Address names a ledger account, stake pool reward target, or delegator.
type Address string

// PoolID names a stake pool.
type PoolID string

// Epoch is a coarse time division grouping many slots.
type Epoch uint64

// Slot is the finest unit of time over which a single block may be produced.
type Slot uint64

// UTXOKey identifies an unspent output as (TxId, OutputIndex).
type UTXOKey struct {
	TxID  TxId
	Index OutputIndex
}

func (k UTXOKey) String() string {
	return fmt.Sprintf("%d:%d", k.TxID, k.Index)
}

// MarshalText/UnmarshalText let UTXOKey serve as a JSON object key (the
// encoding/json package requires TextMarshaler for non-builtin map key
// types), matching the "self-delimiting, round-trippable" requirement
// of §6 for LedgerState's UTXO map.
func (k UTXOKey) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%d:%d", k.TxID, k.Index)), nil
}

func (k *UTXOKey) UnmarshalText(text []byte) error {
	var tx, idx uint64
	if _, err := fmt.Sscanf(string(text), "%d:%d", &tx, &idx); err != nil {
		return fmt.Errorf("invalid UTXOKey %q: %w", text, err)
	}
	k.TxID = TxId(tx)
	k.Index = OutputIndex(idx)
	return nil
}

// BlockHeader carries the fields the core treats structurally; VRF/KES
// payloads are opaque blobs whose cryptographic meaning belongs to an
// external collaborator (§6 of the spec).
type BlockHeader struct {
	Slot         Slot    `json:"slot"`
	Epoch        Epoch   `json:"epoch"`
	Leader       string  `json:"leader"`
	VRFProof     [32]byte `json:"vrf_proof"`
	KESSignature [32]byte `json:"kes_signature"`
}

// TxInput points at a UTXO consumed by a transaction.
type TxInput struct {
	PrevTx TxId        `json:"prev_tx"`
	Index  OutputIndex `json:"index"`
}

// Asset is a native token amount introduced with the Mary era.
type Asset struct {
	PolicyID  string `json:"policy_id"`
	AssetName string `json:"asset_name"`
	Amount    uint64 `json:"amount"`
}

// TxOutput pays an amount of ADA (lovelace) and optional native assets to
// an address.
type TxOutput struct {
	Address Address `json:"address"`
	Amount  uint64  `json:"amount"`
	Assets  []Asset `json:"assets,omitempty"`
}

// ExecutionUnits bounds a Plutus script's memory and step budget. Real
// evaluation is out of scope; only the shape is structural.
type ExecutionUnits struct {
	Mem   uint64 `json:"mem"`
	Steps uint64 `json:"steps"`
}

// PlutusWitness accompanies a script-locked input. ScriptCode must be
// non-empty for validate_plutus_scripts to accept the witness.
type PlutusWitness struct {
	ScriptCode     []byte         `json:"script_code"`
	Datum          []byte         `json:"datum"`
	Redeemer       []byte         `json:"redeemer"`
	ExecutionUnits ExecutionUnits `json:"execution_units"`
}

// CertificateKind tags the variant carried by a Certificate.
type CertificateKind uint8

const (
	CertPoolRegistration CertificateKind = iota
	CertPoolRetirement
	CertDelegation
)

// Margin is a fixed-point fraction expressed in parts-per-billion, per
// the design notes' replacement for a floating-point margin field
// (avoids NaN and preserves equality across encode/decode round-trips).
type Margin uint64

const MarginDenominator Margin = 1_000_000_000

// Valid reports whether the fraction m/MarginDenominator lies in [0,1].
func (m Margin) Valid() bool { return m <= MarginDenominator }

// Certificate is a tagged variant; exactly one of the per-kind payload
// groups is meaningful for a given Kind.
type Certificate struct {
	Kind CertificateKind `json:"kind"`

	// PoolRegistration fields.
	PoolID        PoolID  `json:"pool_id,omitempty"`
	Owner         Address `json:"owner,omitempty"`
	Pledge        uint64  `json:"pledge,omitempty"`
	Cost          uint64  `json:"cost,omitempty"`
	Margin        Margin  `json:"margin,omitempty"`
	RewardAccount Address `json:"reward_account,omitempty"`

	// PoolRetirement fields (PoolID shared with above).
	RetirementEpoch Epoch `json:"retirement_epoch,omitempty"`

	// Delegation fields.
	Delegator Address `json:"delegator,omitempty"`
	// Delegation's target pool reuses PoolID above.
}

// Transaction is the unit of state transition.
type Transaction struct {
	ID              TxId            `json:"id"`
	Inputs          []TxInput       `json:"inputs"`
	Outputs         []TxOutput      `json:"outputs"`
	Certificates    []Certificate   `json:"certificates"`
	PlutusWitnesses []PlutusWitness `json:"plutus_witnesses"`
}

// Block is the on-disk and in-memory unit of chain history.
type Block struct {
	ID           BlockId       `json:"id"`
	Header       BlockHeader   `json:"header"`
	Transactions []Transaction `json:"transactions"`
}

// StakePool tracks a registered pool's lifecycle.
type StakePool struct {
	Registration    Certificate `json:"registration"`
	Active          bool        `json:"active"`
	RetirementEpoch *Epoch      `json:"retirement_epoch,omitempty"`
}

// Chain is an ordered sequence of blocks; the last element is the tip.
type Chain []Block

// TipID returns the id of the chain's last block, or 0 if empty — the
// final tie-break key in ChainSelector's total order (§4.6).
func (c Chain) TipID() BlockId {
	if len(c) == 0 {
		return 0
	}
	return c[len(c)-1].ID
}

// Density counts unique block ids along the chain, a proxy for
// distinct-block density used as ChainSelector's second comparison key.
func (c Chain) Density() int {
	seen := make(map[BlockId]struct{}, len(c))
	for _, b := range c {
		seen[b.ID] = struct{}{}
	}
	return len(seen)
}

// Weight sums transaction counts across blocks, ChainSelector's third key.
func (c Chain) Weight() int {
	w := 0
	for _, b := range c {
		w += len(b.Transactions)
	}
	return w
}
