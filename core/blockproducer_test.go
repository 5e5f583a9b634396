package core

import (
	"context"
	"testing"

	"chainstate-node/internal/testutil"
)

type fixedOracle struct{ leader bool }

func (o fixedOracle) IsLeader(Slot, []byte, uint64, uint64) bool { return o.leader }

type zeroProofs struct{}

func (zeroProofs) VRFProof(Slot) [32]byte     { return [32]byte{} }
func (zeroProofs) KESSignature(Slot) [32]byte { return [32]byte{} }

type recordingSink struct {
	published []Block
	fail      bool
}

func (s *recordingSink) Publish(ctx context.Context, block Block) error {
	if s.fail {
		return errIo("broadcast", nil)
	}
	s.published = append(s.published, block)
	return nil
}

func newTestProducer(t *testing.T, leader bool) (*BlockProducer, *ChainDB, func()) {
	t.Helper()
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox failed: %v", err)
	}
	db, err := OpenChainDB(sb.Root)
	if err != nil {
		sb.Cleanup()
		t.Fatalf("OpenChainDB failed: %v", err)
	}

	ledger := NewLedgerCore()
	ledger.state.UTXOs[UTXOKey{TxID: 0, Index: 0}] = TxOutput{Address: "a", Amount: 10}
	mempool := NewMempool(10)
	era := NewEraDispatcher(EraShelley)
	sink := &recordingSink{}

	p := NewBlockProducer(mempool, ledger, era, db, fixedOracle{leader: leader}, zeroProofs{}, sink, 10)
	return p, db, sb.Cleanup
}

func TestBlockProducerNonLeaderStaysIdle(t *testing.T) {
	p, _, cleanup := newTestProducer(t, false)
	defer cleanup()

	_, ok := p.Tick(context.Background(), 1)
	if ok {
		t.Fatalf("expected a non-leader tick to produce no block")
	}
	if p.CurrentState() != StateIdle {
		t.Fatalf("expected producer to end in Idle, got %s", p.CurrentState())
	}
}

func TestBlockProducerEmptyMempoolStaysIdle(t *testing.T) {
	p, _, cleanup := newTestProducer(t, true)
	defer cleanup()

	_, ok := p.Tick(context.Background(), 1)
	if ok {
		t.Fatalf("expected a tick with an empty mempool to produce no block")
	}
}

func TestBlockProducerLeaderProducesAndPersistsBlock(t *testing.T) {
	p, db, cleanup := newTestProducer(t, true)
	defer cleanup()

	p.Mempool.Add(Transaction{
		ID:      1,
		Inputs:  []TxInput{{PrevTx: 0, Index: 0}},
		Outputs: []TxOutput{{Address: "b", Amount: 10}},
	})

	block, ok := p.Tick(context.Background(), 1)
	if !ok {
		t.Fatalf("expected the leader tick to produce a block")
	}
	if p.CurrentState() != StateIdle {
		t.Fatalf("expected producer to return to Idle after a successful tick, got %s", p.CurrentState())
	}
	if _, err := db.LoadBlock(block.ID); err != nil {
		t.Fatalf("expected the produced block to be persisted: %v", err)
	}
	if p.Mempool.Len() != 0 {
		t.Fatalf("expected the included transaction to be drained from the mempool")
	}
	sink := p.Broadcast.(*recordingSink)
	if len(sink.published) != 1 {
		t.Fatalf("expected the produced block to be broadcast, got %d publishes", len(sink.published))
	}
}

func TestBlockProducerBroadcastFailureDoesNotReversePersistence(t *testing.T) {
	p, db, cleanup := newTestProducer(t, true)
	defer cleanup()
	p.Broadcast.(*recordingSink).fail = true

	p.Mempool.Add(Transaction{
		ID:      1,
		Inputs:  []TxInput{{PrevTx: 0, Index: 0}},
		Outputs: []TxOutput{{Address: "b", Amount: 10}},
	})

	block, ok := p.Tick(context.Background(), 1)
	if !ok {
		t.Fatalf("expected the tick to still succeed despite the broadcast failure")
	}
	if _, err := db.LoadBlock(block.ID); err != nil {
		t.Fatalf("expected the block to remain persisted after a broadcast failure: %v", err)
	}
}

func TestBlockProducerEpochBoundaryProcessesRetirements(t *testing.T) {
	p, _, cleanup := newTestProducer(t, false)
	defer cleanup()

	reg := Certificate{Kind: CertPoolRegistration, PoolID: "pool1"}
	if err := p.Ledger.State().ApplyCertificate(reg, 0); err != nil {
		t.Fatalf("registration failed: %v", err)
	}
	retire := Certificate{Kind: CertPoolRetirement, PoolID: "pool1", RetirementEpoch: 1}
	if err := p.Ledger.State().ApplyCertificate(retire, 0); err != nil {
		t.Fatalf("retirement failed: %v", err)
	}

	// SlotsPerEpoch is 10; slot 10 is the first boundary of epoch 1.
	p.Tick(context.Background(), 10)

	pool := p.Ledger.State().StakePools["pool1"]
	if pool.Active {
		t.Fatalf("expected the pool to be retired at the epoch-1 boundary")
	}
}

func TestBlockProducerRejectsMalformedLeaderKeys(t *testing.T) {
	p, _, cleanup := newTestProducer(t, true)
	defer cleanup()
	p.LeaderKeys = []byte{0x01, 0x02, 0x03}

	p.Mempool.Add(Transaction{
		ID:      1,
		Inputs:  []TxInput{{PrevTx: 0, Index: 0}},
		Outputs: []TxOutput{{Address: "b", Amount: 10}},
	})

	_, ok := p.Tick(context.Background(), 1)
	if ok {
		t.Fatalf("expected malformed leader keys to prevent block production")
	}
	if p.CurrentState() != StateIdle {
		t.Fatalf("expected producer to end in Idle, got %s", p.CurrentState())
	}
}

func TestBlockProducerSetAndGetCandidates(t *testing.T) {
	p, _, cleanup := newTestProducer(t, false)
	defer cleanup()

	chain := Chain{{ID: 1}}
	p.SetCandidates([]Chain{chain})
	got := p.Candidates()
	if len(got) != 1 || got[0][0].ID != 1 {
		t.Fatalf("unexpected candidates after SetCandidates: %+v", got)
	}
}
