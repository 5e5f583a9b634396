// Package config provides a reusable loader for chain state engine
// configuration files and environment variables. It is versioned so that
// applications can depend on a stable API contract.
//
// Version: v0.1.0
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"chainstate-node/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for a chain state engine node. It
// mirrors the structure of the YAML files under cmd/config.
type Config struct {
	ChainDB struct {
		Path string `mapstructure:"path" json:"path"`
	} `mapstructure:"chaindb" json:"chaindb"`

	Genesis struct {
		File string `mapstructure:"file" json:"file"`
	} `mapstructure:"genesis" json:"genesis"`

	Producer struct {
		SlotDurationMS int    `mapstructure:"slot_duration_ms" json:"slot_duration_ms"`
		SlotsPerEpoch  uint64 `mapstructure:"slots_per_epoch" json:"slots_per_epoch"`
		Stake          uint64 `mapstructure:"stake" json:"stake"`
		TotalStake     uint64 `mapstructure:"total_stake" json:"total_stake"`
	} `mapstructure:"producer" json:"producer"`

	Mempool struct {
		Capacity int `mapstructure:"capacity" json:"capacity"`
	} `mapstructure:"mempool" json:"mempool"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and
// returned.
//
// The function uses the provided environment name to merge additional
// config files. If env is empty, only the default configuration is
// loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}

	// A handful of operational knobs get a dedicated env override on top
	// of viper.AutomaticEnv, so an operator can tune them without editing
	// or merging a YAML profile.
	AppConfig.Mempool.Capacity = utils.EnvOrDefaultInt("CHAINSTATE_MEMPOOL_CAPACITY", AppConfig.Mempool.Capacity)
	AppConfig.Producer.SlotsPerEpoch = utils.EnvOrDefaultUint64("CHAINSTATE_SLOTS_PER_EPOCH", AppConfig.Producer.SlotsPerEpoch)

	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the CHAINSTATE_ENV environment
// variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("CHAINSTATE_ENV", ""))
}
