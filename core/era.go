package core

// EraDispatcher is the hard-fork combinator: it routes validation to
// the era logic active at the current epoch and holds a schedule of
// future activations. It is grounded on
// _examples/original_source/src/protocol.rs's Era enum and per-era
// files (protocol/byron.rs..conway.rs), replacing the Rust source's
// boxed-trait-object dispatch with a tagged variant per the design
// notes' "dynamic era dispatch" guidance — exhaustive, no indirection.

import "go.uber.org/zap"

// EraTag closes the enumeration of supported protocol eras.
type EraTag uint8

const (
	EraByron EraTag = iota
	EraShelley
	EraAllegra
	EraMary
	EraAlonzo
	EraBabbage
	EraConway
)

func (e EraTag) String() string {
	switch e {
	case EraByron:
		return "Byron"
	case EraShelley:
		return "Shelley"
	case EraAllegra:
		return "Allegra"
	case EraMary:
		return "Mary"
	case EraAlonzo:
		return "Alonzo"
	case EraBabbage:
		return "Babbage"
	case EraConway:
		return "Conway"
	default:
		return "Unknown"
	}
}

// ValidateTransaction implements the minimum per-era rule from §4.5:
// Byron accepts zero-amount outputs; every later era requires every
// output amount to be strictly positive. All eras require non-empty
// inputs.
func (e EraTag) ValidateTransaction(tx Transaction) bool {
	if len(tx.Inputs) == 0 {
		return false
	}
	if e == EraByron {
		return len(tx.Outputs) > 0
	}
	for _, out := range tx.Outputs {
		if out.Amount == 0 {
			return false
		}
	}
	return true
}

// ValidateBlock has no era-specific structural rule beyond what Ledger
// already checks on the header; later eras may add semantics (reference
// inputs, scripts, governance) external to this core (§4.5).
func (e EraTag) ValidateBlock(Block) bool { return true }

// scheduledEra pairs an activation epoch with the era it brings in.
type scheduledEra struct {
	epoch Epoch
	tag   EraTag
}

// EraDispatcher holds the active era and an ordered schedule of future
// activations. It holds no lock of its own: Tick and the validate
// methods are atomic with respect to each other only when called from
// one goroutine, as BlockProducer.Tick does (§4.5).
type EraDispatcher struct {
	current   EraTag
	watermark Epoch // highest epoch ever scheduled or activated
	schedule  []scheduledEra
}

// NewEraDispatcher starts in initial with an empty schedule.
func NewEraDispatcher(initial EraTag) *EraDispatcher {
	return &EraDispatcher{current: initial}
}

// Schedule inserts a future activation. activationEpoch must exceed
// every previously scheduled or activated epoch, or ScheduleConflict is
// returned (programmer error, §7).
func (d *EraDispatcher) Schedule(activationEpoch Epoch, tag EraTag) error {
	if activationEpoch <= d.watermark {
		return errScheduleConflict("activation epoch not after last scheduled or activated epoch")
	}
	d.schedule = append(d.schedule, scheduledEra{epoch: activationEpoch, tag: tag})
	d.watermark = activationEpoch
	return nil
}

// Tick adopts every scheduled era whose activation epoch has arrived,
// in order, then discards it from the schedule (§4.5). Repeated calls
// with the same currentEpoch are idempotent (P7).
func (d *EraDispatcher) Tick(currentEpoch Epoch) {
	for len(d.schedule) > 0 && d.schedule[0].epoch <= currentEpoch {
		next := d.schedule[0]
		d.schedule = d.schedule[1:]
		d.current = next.tag
		zap.L().Sugar().Infow("era transition", "epoch", next.epoch, "era", next.tag.String())
	}
}

// Current returns the currently active era tag.
func (d *EraDispatcher) Current() EraTag { return d.current }

// ValidateTransaction delegates to the active era's handler.
func (d *EraDispatcher) ValidateTransaction(tx Transaction) bool {
	return d.current.ValidateTransaction(tx)
}

// ValidateBlock delegates to the active era's handler.
func (d *EraDispatcher) ValidateBlock(block Block) bool {
	return d.current.ValidateBlock(block)
}
