package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"chainstate-node/core"
	cfgcmd "chainstate-node/cmd/config"
)

// buildChain reconstructs the single chain recovered from db, in the
// ascending order StreamBlocks already guarantees.
func buildChain(db *core.ChainDB) (core.Chain, error) {
	blocks, err := db.StreamBlocks()
	if err != nil {
		return nil, err
	}
	return core.Chain(blocks), nil
}

func main() {
	rootCmd := &cobra.Command{Use: "chainstate-node"}
	rootCmd.PersistentFlags().String("env", "", "configuration environment to merge over default (e.g. bootstrap)")
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(chaindbCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) {
	env, _ := cmd.Flags().GetString("env")
	cfgcmd.LoadConfig(env)
}

// runCmd drives the node: open (or bootstrap) the chain store, then tick
// the block producer once per configured slot duration until the
// process is interrupted.
func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the chain state engine's slot loop",
		Run: func(cmd *cobra.Command, args []string) {
			loadConfig(cmd)
			cfg := cfgcmd.AppConfig

			db, err := core.OpenChainDB(cfg.ChainDB.Path)
			if err != nil {
				logrus.Fatalf("node: open chaindb: %v", err)
			}

			genesisCfg, err := core.LoadGenesisConfig(cfg.Genesis.File)
			if err != nil {
				logrus.Fatalf("node: load genesis: %v", err)
			}
			if err := core.Bootstrap(db, genesisCfg); err != nil {
				logrus.Fatalf("node: bootstrap: %v", err)
			}

			era, err := core.NewEraDispatcherFromGenesis(genesisCfg)
			if err != nil {
				logrus.Fatalf("node: build era dispatcher: %v", err)
			}

			ledger := core.NewLedgerCore()
			if ids, err := db.BlockIds(); err == nil && len(ids) > 0 {
				tip := ids[len(ids)-1]
				if err := ledger.RestoreFrom(db, tip); err != nil {
					logrus.Fatalf("node: restore ledger: %v", err)
				}
			}

			chain, err := buildChain(db)
			if err != nil {
				logrus.Fatalf("node: rebuild chain: %v", err)
			}

			mempool := core.NewMempool(cfg.Mempool.Capacity)
			producer := core.NewBlockProducer(mempool, ledger, era, db, alwaysLeaderOracle{}, zeroProofProvider{}, nil, core.Slot(cfg.Producer.SlotsPerEpoch))
			producer.Stake = cfg.Producer.Stake
			producer.TotalStake = cfg.Producer.TotalStake
			producer.SetCandidates([]core.Chain{chain})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			slotDuration := time.Duration(cfg.Producer.SlotDurationMS) * time.Millisecond
			if slotDuration <= 0 {
				slotDuration = time.Second
			}
			ticker := time.NewTicker(slotDuration)
			defer ticker.Stop()

			var slot core.Slot
			logrus.Infof("node: starting slot loop, slot duration %s", slotDuration)
			for range ticker.C {
				slot++
				if block, ok := producer.Tick(ctx, slot); ok {
					logrus.Infof("node: produced block %d at slot %d", block.ID, slot)
				}
			}
		},
	}
	return cmd
}

// alwaysLeaderOracle is a stand-in LeaderOracle for single-node
// development runs; a production deployment supplies a real
// VRF-backed oracle externally (see the core package's LeaderOracle
// contract).
type alwaysLeaderOracle struct{}

func (alwaysLeaderOracle) IsLeader(core.Slot, []byte, uint64, uint64) bool { return true }

type zeroProofProvider struct{}

func (zeroProofProvider) VRFProof(core.Slot) [32]byte     { return [32]byte{} }
func (zeroProofProvider) KESSignature(core.Slot) [32]byte { return [32]byte{} }

func chaindbCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "chaindb"}
	cmd.AddCommand(chaindbInspectCmd())
	cmd.AddCommand(chaindbRollbackCmd())
	cmd.AddCommand(chaindbExportCmd())
	cmd.AddCommand(chaindbImportCmd())
	return cmd
}

func chaindbInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "list the block ids currently held in the chain store",
		Run: func(cmd *cobra.Command, args []string) {
			loadConfig(cmd)
			cfg := cfgcmd.AppConfig
			db, err := core.OpenChainDB(cfg.ChainDB.Path)
			if err != nil {
				logrus.Fatalf("chaindb inspect: open: %v", err)
			}
			ids, err := db.BlockIds()
			if err != nil {
				logrus.Fatalf("chaindb inspect: list block ids: %v", err)
			}
			for _, id := range ids {
				fmt.Println(id)
			}
		},
	}
}

func chaindbRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback [blockID]",
		Short: "discard every block and state file past blockID",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			loadConfig(cmd)
			cfg := cfgcmd.AppConfig
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				logrus.Fatalf("chaindb rollback: invalid block id %q: %v", args[0], err)
			}
			db, err := core.OpenChainDB(cfg.ChainDB.Path)
			if err != nil {
				logrus.Fatalf("chaindb rollback: open: %v", err)
			}
			if err := db.RollbackTo(core.BlockId(id)); err != nil {
				logrus.Fatalf("chaindb rollback: %v", err)
			}
		},
	}
}

func chaindbExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [blockID] [path]",
		Short: "write block blockID's RLP encoding to path",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			loadConfig(cmd)
			cfg := cfgcmd.AppConfig
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				logrus.Fatalf("chaindb export: invalid block id %q: %v", args[0], err)
			}
			db, err := core.OpenChainDB(cfg.ChainDB.Path)
			if err != nil {
				logrus.Fatalf("chaindb export: open: %v", err)
			}
			data, err := db.ExportBlockRLP(core.BlockId(id))
			if err != nil {
				logrus.Fatalf("chaindb export: %v", err)
			}
			if err := os.WriteFile(args[1], data, 0o644); err != nil {
				logrus.Fatalf("chaindb export: write %s: %v", args[1], err)
			}
		},
	}
}

func chaindbImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [path]",
		Short: "append the RLP-encoded block at path, replaying it onto its predecessor's state",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			loadConfig(cmd)
			cfg := cfgcmd.AppConfig
			data, err := os.ReadFile(args[0])
			if err != nil {
				logrus.Fatalf("chaindb import: read %s: %v", args[0], err)
			}
			db, err := core.OpenChainDB(cfg.ChainDB.Path)
			if err != nil {
				logrus.Fatalf("chaindb import: open: %v", err)
			}
			blk, err := db.ImportBlockRLP(data)
			if err != nil {
				logrus.Fatalf("chaindb import: %v", err)
			}
			logrus.Infof("chaindb import: appended block %d", blk.ID)
		},
	}
}
