package core

import "testing"

func TestApplyTransactionRejectsMissingInput(t *testing.T) {
	s := NewLedgerState()
	tx := Transaction{ID: 1, Inputs: []TxInput{{PrevTx: 99, Index: 0}}}
	if s.ApplyTransaction(tx) {
		t.Fatalf("expected rejection of transaction spending an absent UTXO")
	}
	if len(s.UTXOs) != 0 {
		t.Fatalf("state must be untouched on rejection")
	}
}

func TestApplyTransactionRejectsDuplicateInputs(t *testing.T) {
	s := NewLedgerState()
	key := UTXOKey{TxID: 0, Index: 0}
	s.UTXOs[key] = TxOutput{Address: "a", Amount: 10}

	tx := Transaction{
		ID:     1,
		Inputs: []TxInput{{PrevTx: 0, Index: 0}, {PrevTx: 0, Index: 0}},
	}
	if s.ApplyTransaction(tx) {
		t.Fatalf("expected rejection of a transaction with duplicate inputs")
	}
	if _, ok := s.UTXOs[key]; !ok {
		t.Fatalf("duplicate-input rejection must not consume the UTXO")
	}
}

func TestApplyTransactionSpendsAndCreates(t *testing.T) {
	s := NewLedgerState()
	key := UTXOKey{TxID: 0, Index: 0}
	s.UTXOs[key] = TxOutput{Address: "a", Amount: 10}

	tx := Transaction{
		ID:      1,
		Inputs:  []TxInput{{PrevTx: 0, Index: 0}},
		Outputs: []TxOutput{{Address: "b", Amount: 10}},
	}
	if !s.ApplyTransaction(tx) {
		t.Fatalf("expected transaction to apply")
	}
	if _, ok := s.UTXOs[key]; ok {
		t.Fatalf("spent input must be removed")
	}
	out, ok := s.UTXOs[UTXOKey{TxID: 1, Index: 0}]
	if !ok || out.Amount != 10 {
		t.Fatalf("new output not recorded correctly: %+v ok=%v", out, ok)
	}
}

func TestApplyBlockRollsBackOnPartialFailure(t *testing.T) {
	s := NewLedgerState()
	s.UTXOs[UTXOKey{TxID: 0, Index: 0}] = TxOutput{Address: "a", Amount: 10}

	good := Transaction{
		ID:      1,
		Inputs:  []TxInput{{PrevTx: 0, Index: 0}},
		Outputs: []TxOutput{{Address: "b", Amount: 10}},
	}
	bad := Transaction{
		ID:     2,
		Inputs: []TxInput{{PrevTx: 77, Index: 0}},
	}
	block := Block{ID: 1, Transactions: []Transaction{good, bad}}

	if s.ApplyBlock(block) {
		t.Fatalf("expected block application to fail")
	}
	if _, ok := s.UTXOs[UTXOKey{TxID: 0, Index: 0}]; !ok {
		t.Fatalf("the good transaction's effects must be rolled back")
	}
	if _, ok := s.UTXOs[UTXOKey{TxID: 1, Index: 0}]; ok {
		t.Fatalf("output created by the good transaction must not survive rollback")
	}
}

func TestPoolLifecycle(t *testing.T) {
	s := NewLedgerState()
	reg := Certificate{Kind: CertPoolRegistration, PoolID: "pool1", Owner: "a"}
	if err := s.ApplyCertificate(reg, 0); err != nil {
		t.Fatalf("registration failed: %v", err)
	}
	pool, ok := s.StakePools["pool1"]
	if !ok || !pool.Active {
		t.Fatalf("pool not active after registration")
	}

	delegate := Certificate{Kind: CertDelegation, Delegator: "d1", PoolID: "pool1"}
	if err := s.ApplyCertificate(delegate, 0); err != nil {
		t.Fatalf("delegation failed: %v", err)
	}
	if s.Delegations["d1"] != "pool1" {
		t.Fatalf("delegation not recorded")
	}

	retire := Certificate{Kind: CertPoolRetirement, PoolID: "pool1", RetirementEpoch: 5}
	if err := s.ApplyCertificate(retire, 3); err != nil {
		t.Fatalf("retirement failed: %v", err)
	}
	if pool.Active == false {
		t.Fatalf("pool must stay active until its retirement epoch arrives")
	}

	s.ProcessPoolRetirements(4)
	if !pool.Active {
		t.Fatalf("pool must stay active before its retirement epoch")
	}

	s.ProcessPoolRetirements(5)
	if pool.Active {
		t.Fatalf("pool must be inactive at its retirement epoch")
	}
	if _, stillScheduled := s.PoolRetirements["pool1"]; stillScheduled {
		t.Fatalf("processed retirement must be cleared from the schedule")
	}
}

func TestRetirementRejectsEpochNotAfterCurrent(t *testing.T) {
	s := NewLedgerState()
	reg := Certificate{Kind: CertPoolRegistration, PoolID: "pool1"}
	if err := s.ApplyCertificate(reg, 0); err != nil {
		t.Fatalf("registration failed: %v", err)
	}
	retire := Certificate{Kind: CertPoolRetirement, PoolID: "pool1", RetirementEpoch: 3}
	if err := s.ApplyCertificate(retire, 3); err == nil {
		t.Fatalf("expected rejection: retirement_epoch equal to current_epoch")
	}
}

func TestDelegationToUnknownPoolRejected(t *testing.T) {
	s := NewLedgerState()
	delegate := Certificate{Kind: CertDelegation, Delegator: "d1", PoolID: "ghost"}
	if err := s.ApplyCertificate(delegate, 0); err == nil {
		t.Fatalf("expected rejection of delegation to an unregistered pool")
	}
}

func TestDistributeRewardsProportional(t *testing.T) {
	s := NewLedgerState()
	s.StakeDistribution["a"] = 30
	s.StakeDistribution["b"] = 70

	s.DistributeRewards(1000)
	if s.Rewards["a"] != 300 {
		t.Fatalf("expected a to receive 300, got %d", s.Rewards["a"])
	}
	if s.Rewards["b"] != 700 {
		t.Fatalf("expected b to receive 700, got %d", s.Rewards["b"])
	}
	if s.TotalRewardsFed() != 1000 {
		t.Fatalf("expected cumulative fed total of 1000, got %d", s.TotalRewardsFed())
	}

	s.DistributeRewards(1000)
	if s.TotalRewardsFed() != 2000 {
		t.Fatalf("expected cumulative fed total of 2000 after second call, got %d", s.TotalRewardsFed())
	}
}

func TestDistributeRewardsZeroStakeSumIsNoOp(t *testing.T) {
	s := NewLedgerState()
	s.DistributeRewards(1000)
	if len(s.Rewards) != 0 {
		t.Fatalf("expected no rewards distributed with an empty stake distribution")
	}
	if s.TotalRewardsFed() != 0 {
		t.Fatalf("expected no cumulative total fed with a zero stake sum")
	}
}

func TestValidatePlutusScriptsRejectsEmptyScript(t *testing.T) {
	s := NewLedgerState()
	tx := Transaction{PlutusWitnesses: []PlutusWitness{{ScriptCode: nil}}}
	if s.ValidatePlutusScripts(tx) {
		t.Fatalf("expected rejection of a witness with empty script_code")
	}
	tx.PlutusWitnesses[0].ScriptCode = []byte{0x01}
	if !s.ValidatePlutusScripts(tx) {
		t.Fatalf("expected acceptance of a witness with non-empty script_code")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewLedgerState()
	s.UTXOs[UTXOKey{TxID: 0, Index: 0}] = TxOutput{Address: "a", Amount: 10}
	s.StakePools["p"] = &StakePool{Active: true}

	clone := s.Clone()
	clone.UTXOs[UTXOKey{TxID: 0, Index: 0}] = TxOutput{Address: "a", Amount: 999}
	clone.StakePools["p"].Active = false

	if s.UTXOs[UTXOKey{TxID: 0, Index: 0}].Amount != 10 {
		t.Fatalf("mutating the clone's UTXO map must not affect the original")
	}
	if !s.StakePools["p"].Active {
		t.Fatalf("mutating the clone's pool must not affect the original (StakePool must be deep-copied per entry)")
	}
}
