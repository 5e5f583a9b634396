package core

// Genesis bootstraps a fresh ChainDB from a YAML description: an initial
// UTXO distribution, an era schedule, and the slot/epoch parameters the
// BlockProducer needs. Restored from
// the teacher's LedgerConfig.GenesisBlock field (core/common_structs.go),
// which the distilled spec leaves implicit (§4.1 only says
// "the store starts empty"); a real node still needs a seed block, the
// way a real node's bootstrap flags seed its own ledger.

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GenesisUTXO seeds a single unspent output at TxId 0.
type GenesisUTXO struct {
	Index   OutputIndex `yaml:"index"`
	Address Address     `yaml:"address"`
	Amount  uint64      `yaml:"amount"`
}

// GenesisEra schedules an era activation at epoch.
type GenesisEra struct {
	Epoch Epoch  `yaml:"epoch"`
	Era   string `yaml:"era"`
}

// GenesisConfig is the on-disk shape of a genesis description.
type GenesisConfig struct {
	SlotsPerEpoch Slot          `yaml:"slots_per_epoch"`
	InitialEra    string        `yaml:"initial_era"`
	UTXOs         []GenesisUTXO `yaml:"utxos"`
	EraSchedule   []GenesisEra  `yaml:"era_schedule"`
}

// LoadGenesisConfig reads and parses a genesis YAML file.
func LoadGenesisConfig(path string) (*GenesisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errIo("read genesis config", err)
	}
	var cfg GenesisConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errCorrupted("genesis config", err)
	}
	return &cfg, nil
}

// eraTagByName maps the genesis YAML's lowercase era names to EraTag.
// Unrecognised names are rejected rather than silently defaulted, since
// a typo'd genesis file should fail fast at startup.
func eraTagByName(name string) (EraTag, bool) {
	switch name {
	case "byron":
		return EraByron, true
	case "shelley":
		return EraShelley, true
	case "allegra":
		return EraAllegra, true
	case "mary":
		return EraMary, true
	case "alonzo":
		return EraAlonzo, true
	case "babbage":
		return EraBabbage, true
	case "conway":
		return EraConway, true
	default:
		return 0, false
	}
}

// BuildGenesis constructs the seed Block and LedgerState described by
// cfg. The genesis block carries BlockId 0 and a single synthetic
// transaction (TxId 0) whose outputs are cfg.UTXOs; it is never
// separately validated through Ledger.ValidateBlock since era rules
// only apply to blocks that follow it.
func BuildGenesis(cfg *GenesisConfig) (Block, *LedgerState, error) {
	state := NewLedgerState()
	var outputs []TxOutput
	for _, u := range cfg.UTXOs {
		out := TxOutput{Address: u.Address, Amount: u.Amount}
		state.UTXOs[UTXOKey{TxID: 0, Index: u.Index}] = out
		state.StakeDistribution[u.Address] += u.Amount
		outputs = append(outputs, out)
	}

	block := Block{
		ID: 0,
		Header: BlockHeader{
			Slot:   0,
			Epoch:  0,
			Leader: "genesis",
		},
		Transactions: []Transaction{{ID: 0, Outputs: outputs}},
	}
	return block, state, nil
}

// NewEraDispatcherFromGenesis builds an EraDispatcher with cfg's initial
// era and schedules every entry in cfg.EraSchedule, in file order.
func NewEraDispatcherFromGenesis(cfg *GenesisConfig) (*EraDispatcher, error) {
	initial, ok := eraTagByName(cfg.InitialEra)
	if !ok {
		return nil, errInvariant(fmt.Sprintf("genesis: unknown initial_era %q", cfg.InitialEra))
	}
	d := NewEraDispatcher(initial)
	for _, entry := range cfg.EraSchedule {
		tag, ok := eraTagByName(entry.Era)
		if !ok {
			return nil, errInvariant(fmt.Sprintf("genesis: unknown era_schedule entry %q", entry.Era))
		}
		if err := d.Schedule(entry.Epoch, tag); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Bootstrap checks the already-open db and, if it is empty, seeds it with cfg's genesis
// block and state. If db already has blocks, Bootstrap is a no-op and
// the caller should restore from the existing tip instead.
func Bootstrap(db *ChainDB, cfg *GenesisConfig) error {
	ids, err := db.BlockIds()
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		return nil
	}
	block, state, err := BuildGenesis(cfg)
	if err != nil {
		return err
	}
	return db.Append(block, state)
}
