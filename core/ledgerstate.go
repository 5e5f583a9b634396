package core

// LedgerState is the pure, in-memory extended-UTXO state transition
// target. Every method here is free of I/O and concurrency; the Ledger
// wrapper (ledger.go) owns the mutex and the persistence side-effects.
type LedgerState struct {
	UTXOs             map[UTXOKey]TxOutput
	StakeDistribution map[Address]uint64
	Delegations       map[Address]PoolID
	StakePools        map[PoolID]*StakePool
	PoolRetirements   map[PoolID]Epoch
	Rewards           map[Address]uint64

	// totalRewards tracks cumulative input to distribute_rewards, for I5.
	totalRewards uint64
}

// NewLedgerState returns an empty state with every map initialised.
func NewLedgerState() *LedgerState {
	return &LedgerState{
		UTXOs:             make(map[UTXOKey]TxOutput),
		StakeDistribution: make(map[Address]uint64),
		Delegations:       make(map[Address]PoolID),
		StakePools:        make(map[PoolID]*StakePool),
		PoolRetirements:   make(map[PoolID]Epoch),
		Rewards:           make(map[Address]uint64),
	}
}

// Clone returns a deep-enough copy for speculative application (fork
// exploration, apply_block's all-or-nothing rollback).
func (s *LedgerState) Clone() *LedgerState {
	out := NewLedgerState()
	for k, v := range s.UTXOs {
		out.UTXOs[k] = v
	}
	for k, v := range s.StakeDistribution {
		out.StakeDistribution[k] = v
	}
	for k, v := range s.Delegations {
		out.Delegations[k] = v
	}
	for k, v := range s.StakePools {
		cp := *v
		out.StakePools[k] = &cp
	}
	for k, v := range s.PoolRetirements {
		out.PoolRetirements[k] = v
	}
	for k, v := range s.Rewards {
		out.Rewards[k] = v
	}
	out.totalRewards = s.totalRewards
	return out
}

// ApplyTransaction applies tx in place. It returns false and leaves the
// state untouched if any input is absent from UTXOs, or if tx contains
// duplicate input entries (I1, I2, P1, P2).
func (s *LedgerState) ApplyTransaction(tx Transaction) bool {
	seen := make(map[UTXOKey]struct{}, len(tx.Inputs))
	for _, in := range tx.Inputs {
		key := UTXOKey{TxID: in.PrevTx, Index: in.Index}
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
		if _, ok := s.UTXOs[key]; !ok {
			return false
		}
	}

	for key := range seen {
		delete(s.UTXOs, key)
	}
	for idx, out := range tx.Outputs {
		s.UTXOs[UTXOKey{TxID: tx.ID, Index: OutputIndex(idx)}] = out
	}
	return true
}

// ApplyBlock applies every transaction in listed order. If any
// transaction fails, every partial change made by earlier transactions
// in this block is rolled back before returning false (P3).
func (s *LedgerState) ApplyBlock(block Block) bool {
	snapshot := s.Clone()
	for _, tx := range block.Transactions {
		if !s.ApplyTransaction(tx) {
			*s = *snapshot
			return false
		}
	}
	return true
}

// ApplyCertificate applies a single certificate under current_epoch.
// See §4.2 for the per-kind acceptance rules.
func (s *LedgerState) ApplyCertificate(cert Certificate, currentEpoch Epoch) error {
	switch cert.Kind {
	case CertPoolRegistration:
		s.StakePools[cert.PoolID] = &StakePool{
			Registration:    cert,
			Active:          true,
			RetirementEpoch: nil,
		}
		return nil

	case CertPoolRetirement:
		pool, ok := s.StakePools[cert.PoolID]
		if !ok || !pool.Active {
			return errInvariant("pool retirement: unknown or inactive pool")
		}
		if !(cert.RetirementEpoch > currentEpoch) {
			return errInvariant("pool retirement: retirement_epoch must exceed current_epoch")
		}
		epoch := cert.RetirementEpoch
		pool.RetirementEpoch = &epoch
		s.PoolRetirements[cert.PoolID] = epoch
		return nil

	case CertDelegation:
		pool, ok := s.StakePools[cert.PoolID]
		if !ok || !pool.Active {
			return errInvariant("delegation: unknown or inactive pool")
		}
		s.Delegations[cert.Delegator] = cert.PoolID
		return nil

	default:
		return errInvariant("unknown certificate kind")
	}
}

// ProcessPoolRetirements deactivates every pool whose retirement epoch
// has arrived (I4, the "equality is the first epoch of inactivity"
// convention from §9's open question) and clears matching entries from
// PoolRetirements.
func (s *LedgerState) ProcessPoolRetirements(currentEpoch Epoch) {
	for poolID, epoch := range s.PoolRetirements {
		if epoch <= currentEpoch {
			if pool, ok := s.StakePools[poolID]; ok {
				pool.Active = false
			}
			delete(s.PoolRetirements, poolID)
		}
	}
}

// DistributeRewards splits total proportionally across StakeDistribution
// by floor(stake*total/sum). A zero sum or zero total is a no-op;
// rounding remainder is absorbed silently (I5 tracks the cumulative
// input, not the distributed total).
func (s *LedgerState) DistributeRewards(total uint64) {
	if total == 0 {
		return
	}
	var sum uint64
	for _, stake := range s.StakeDistribution {
		sum += stake
	}
	if sum == 0 {
		return
	}
	s.totalRewards += total
	for addr, stake := range s.StakeDistribution {
		share := stake * total / sum
		s.Rewards[addr] += share
	}
}

// TotalRewardsFed returns the cumulative total passed into
// DistributeRewards, for I5-style bookkeeping in tests.
func (s *LedgerState) TotalRewardsFed() uint64 { return s.totalRewards }

// ValidatePlutusScripts returns false if any witness carries an empty
// script_code. Real Plutus evaluation is out of scope.
func (s *LedgerState) ValidatePlutusScripts(tx Transaction) bool {
	for _, w := range tx.PlutusWitnesses {
		if len(w.ScriptCode) == 0 {
			return false
		}
	}
	return true
}
