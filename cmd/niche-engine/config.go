// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/niche-engine/internal/backends"
	"github.com/pdiddy/niche-engine/internal/secrets"
	"github.com/pdiddy/niche-engine/internal/store"
	"github.com/pdiddy/niche-engine/pkg/types"
)

const defaultStoreDir = "output"

// setDefaults registers every key that env vars may set. Viper only
// unmarshals environment values for keys it already knows.
func setDefaults() {
	ev := types.DefaultEvidenceConfig()
	viper.SetDefault("evidence.trend_signal_threshold", ev.TrendSignalThreshold)
	viper.SetDefault("evidence.pain_frequency_threshold", ev.PainFrequencyThreshold)

	viper.SetDefault("input.industry", "")
	viper.SetDefault("input.region", "")
	viper.SetDefault("input.market_type", string(types.MarketB2B))

	viper.SetDefault("scheduler.max_parallel", 4)
	viper.SetDefault("scheduler.node_timeout", "5m")
	viper.SetDefault("scheduler.run_timeout", "30m")

	viper.SetDefault("backends.timeout", "30s")
	viper.SetDefault("backends.user_agent", backends.DefaultUserAgent)
	viper.SetDefault("backends.serper_api_key", "")
	viper.SetDefault("backends.serpapi_api_key", "")
	viper.SetDefault("backends.llm.model", backends.DefaultModel)
	viper.SetDefault("backends.llm.api_key", "")
	viper.SetDefault("backends.fixtures_file", "")

	viper.SetDefault("store.dir", defaultStoreDir)
	viper.SetDefault("graph_file", "")
}

// bindFlags maps command flags onto config keys. Only flags the command
// defines are bound.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for key, name := range keys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

// loadRunConfig assembles the run configuration from defaults, the config
// file, NICHE_ENGINE_* variables, flags, and the secrets directory, in
// increasing precedence (secrets only fill keys left empty).
func loadRunConfig() (types.RunConfig, error) {
	var cfg types.RunConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading configuration: %w", err)
	}
	cfg.Input.MarketType = types.MarketType(strings.ToUpper(string(cfg.Input.MarketType)))
	secrets.Apply(&cfg.Backends, loadedSecrets)
	return cfg, nil
}

func storeConfig() types.StoreConfig {
	dir := viper.GetString("store.dir")
	if dir == "" {
		dir = defaultStoreDir
	}
	return types.StoreConfig{Dir: dir}
}

func openStore() (*store.Store, error) {
	return store.Open(storeConfig())
}
