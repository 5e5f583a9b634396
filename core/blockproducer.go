package core

// BlockProducer runs the per-slot assembly loop described in §4.6: on
// each tick it rolls the era/epoch state, consults an opaque leader
// oracle, and — if elected — drains the mempool, assembles a block,
// re-validates it, applies it across every candidate chain, selects the
// new preferred chain via ChainSelector, persists through Ledger, and
// publishes to a broadcast sink. Grounded on
// _examples/original_source/src/consensus.rs's run_slot_leadership
// (epoch-boundary detection, per-slot leader check, block assembly from
// mempool) and the teacher's core/chain_fork_manager.go for candidate
// chain bookkeeping.

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ProducerState names the BlockProducer's state machine states (§4.6).
type ProducerState uint8

const (
	StateIdle ProducerState = iota
	StateEpochRolling
	StateLeading
	StatePersisting
)

func (s ProducerState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateEpochRolling:
		return "EpochRolling"
	case StateLeading:
		return "Leading"
	case StatePersisting:
		return "Persisting"
	default:
		return "Unknown"
	}
}

// LeaderOracle is the opaque leader-election collaborator (§6). Its
// only contract is determinism given its inputs; the core never
// inspects how it decides.
type LeaderOracle interface {
	IsLeader(slot Slot, keys []byte, stake, totalStake uint64) bool
}

// ProofProvider supplies the opaque cryptographic header fields (§6).
type ProofProvider interface {
	VRFProof(slot Slot) [32]byte
	KESSignature(slot Slot) [32]byte
}

// BroadcastSink publishes an accepted block to the network (§6).
// Broadcast failures are logged but never reverse persistence (§4.6
// failure semantics).
type BroadcastSink interface {
	Publish(ctx context.Context, block Block) error
}

// BlockProducer coordinates mempool draining, era validation, ledger
// application, and fork choice on each slot tick.
type BlockProducer struct {
	Mempool      *Mempool
	Ledger       *Ledger
	Era          *EraDispatcher
	ChainDB      *ChainDB
	Oracle       LeaderOracle
	Proofs       ProofProvider
	Broadcast    BroadcastSink
	SlotsPerEpoch Slot
	LeaderKeys   []byte
	Stake        uint64
	TotalStake   uint64

	state      ProducerState
	candidates []Chain
	metrics    *Metrics
}

// NewBlockProducer wires the collaborators needed to run the slot loop.
// The candidate set starts as a single empty chain, standing in for "no
// chain recovered yet"; callers that restore a chain from ChainDB should
// call SetCandidates before the first Tick.
func NewBlockProducer(mempool *Mempool, ledger *Ledger, era *EraDispatcher, db *ChainDB, oracle LeaderOracle, proofs ProofProvider, sink BroadcastSink, slotsPerEpoch Slot) *BlockProducer {
	return &BlockProducer{
		Mempool:       mempool,
		Ledger:        ledger,
		Era:           era,
		ChainDB:       db,
		Oracle:        oracle,
		Proofs:        proofs,
		Broadcast:     sink,
		SlotsPerEpoch: slotsPerEpoch,
		state:         StateIdle,
		candidates:    []Chain{{}},
		metrics:       globalMetrics,
	}
}

// CurrentState reports the producer's state-machine state, for tests
// and observability.
func (p *BlockProducer) CurrentState() ProducerState { return p.state }

// currentEpoch derives the epoch a slot falls in from SlotsPerEpoch,
// restoring the epoch-rollover arithmetic from
// _examples/original_source/src/consensus.rs's ConsensusState.advance_slot,
// which the distilled ten-step list only names as "epoch_guard".
func (p *BlockProducer) currentEpoch(slot Slot) Epoch {
	if p.SlotsPerEpoch == 0 {
		return 0
	}
	return Epoch(uint64(slot) / uint64(p.SlotsPerEpoch))
}

// SetCandidates seeds the candidate chain set (e.g. at startup, with the
// single chain recovered from ChainDB).
func (p *BlockProducer) SetCandidates(chains []Chain) { p.candidates = chains }

// Candidates returns the current candidate chain set.
func (p *BlockProducer) Candidates() []Chain { return p.candidates }

// Tick runs one slot of the ten-step loop in §4.6. It returns the
// produced block and true if this node led the slot and successfully
// persisted a block; otherwise it returns (Block{}, false) and the
// producer ends the tick back in Idle.
func (p *BlockProducer) Tick(ctx context.Context, slot Slot) (Block, bool) {
	p.state = StateEpochRolling
	epoch := p.currentEpoch(slot)
	p.Era.Tick(epoch)
	if p.SlotsPerEpoch != 0 && uint64(slot)%uint64(p.SlotsPerEpoch) == 0 {
		p.Ledger.State().ProcessPoolRetirements(epoch)
	}

	if len(p.LeaderKeys) > 0 && !ValidatorKeyShape(p.LeaderKeys) {
		p.state = StateIdle
		return Block{}, false
	}
	if !p.Oracle.IsLeader(slot, p.LeaderKeys, p.Stake, p.TotalStake) {
		p.state = StateIdle
		return Block{}, false
	}
	p.state = StateLeading

	pending := p.Mempool.GetAll()
	var survivors []Transaction
	for _, tx := range pending {
		if p.Ledger.ValidateTransaction(tx, p.Era) {
			survivors = append(survivors, tx)
		} else if p.metrics != nil {
			p.metrics.Rejections.Inc()
		}
	}
	if len(survivors) == 0 {
		p.state = StateIdle
		return Block{}, false
	}

	block := Block{
		ID: BlockId(p.Ledger.TipHash() + 1),
		Header: BlockHeader{
			Slot:         slot,
			Epoch:        epoch,
			Leader:       uuid.NewString(),
			VRFProof:     p.Proofs.VRFProof(slot),
			KESSignature: p.Proofs.KESSignature(slot),
		},
		Transactions: survivors,
	}

	if !p.Ledger.ValidateBlock(block, p.Era) {
		if p.metrics != nil {
			p.metrics.Rejections.Inc()
		}
		p.state = StateIdle
		return Block{}, false
	}

	var nextCandidates []Chain
	for _, chain := range p.candidates {
		if next, ok := p.Ledger.ApplyBlockToChain(chain, block); ok {
			nextCandidates = append(nextCandidates, next)
		}
	}
	if len(nextCandidates) == 0 {
		p.state = StateIdle
		return Block{}, false
	}
	p.candidates = nextCandidates
	if _, ok := SelectChain(p.candidates); !ok {
		p.state = StateIdle
		return Block{}, false
	}

	p.state = StatePersisting
	if !p.Ledger.ApplyBlockPersist(block, p.ChainDB) {
		// Persistence failure is fatal to this block: undo the
		// candidate-set update made in step 7 (§4.6 failure semantics).
		p.rollbackCandidates(block)
		p.state = StateIdle
		return Block{}, false
	}
	if p.metrics != nil {
		p.metrics.BlocksAppended.Inc()
	}

	for _, tx := range survivors {
		p.Mempool.Remove(tx.ID)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if p.Broadcast == nil {
			return nil
		}
		if err := p.Broadcast.Publish(gctx, block); err != nil {
			logrus.Warnf("blockproducer: broadcast failed for block %d: %v", block.ID, err)
		}
		return nil
	})
	_ = g.Wait()

	p.state = StateIdle
	return block, true
}

// rollbackCandidates drops block from every candidate chain's tip,
// restoring the candidate set to its pre-step-7 shape after a
// persistence failure.
func (p *BlockProducer) rollbackCandidates(block Block) {
	rolled := make([]Chain, 0, len(p.candidates))
	for _, c := range p.candidates {
		if len(c) > 0 && c[len(c)-1].ID == block.ID {
			rolled = append(rolled, c[:len(c)-1])
		} else {
			rolled = append(rolled, c)
		}
	}
	p.candidates = rolled
}
