// Copyright 2025 Cinder Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package exchequer

import (
	"testing"
	"time"

	"github.com/cinderlabs-io/exchequer/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigOptions(t *testing.T) {
	cfg := NewConfig(
		WithNetwork("testnet"),
		WithDataDir("/var/lib/exchequer"),
		WithShutdownTimeout(10*time.Second),
		WithTracing(true),
	)
	assert.Equal(t, "testnet", cfg.network)
	assert.Equal(t, "/var/lib/exchequer", cfg.dataDir)
	assert.Equal(t, 10*time.Second, cfg.shutdownTimeout)
	assert.True(t, cfg.tracing)
	assert.NotNil(t, cfg.logger)
	assert.Equal(t, runModeServe, cfg.runMode)
}

func TestNewPopulatesChainParams(t *testing.T) {
	n, err := New(NewConfig(
		WithNetwork("testnet"),
		WithInMemory(true),
	))
	require.NoError(t, err)
	assert.Equal(t, chaincfg.TestNetParams, n.ChainParams())

	// Explicit params override the named network
	n, err = New(NewConfig(
		WithNetwork("testnet"),
		WithChainParams(&chaincfg.RegTestParams),
		WithInMemory(true),
	))
	require.NoError(t, err)
	assert.Equal(t, chaincfg.RegTestParams, n.ChainParams())
}

func TestNewValidation(t *testing.T) {
	// Unknown network
	_, err := New(NewConfig(
		WithNetwork("bogus"),
		WithInMemory(true),
	))
	assert.Error(t, err)

	// No data directory and not in-memory
	_, err = New(NewConfig(WithNetwork("mainnet")))
	assert.Error(t, err)

	// Broken chain parameters
	_, err = New(NewConfig(
		WithChainParams(&chaincfg.Params{Name: "broken"}),
		WithInMemory(true),
	))
	assert.Error(t, err)
}

func TestRunModeDevIsInMemory(t *testing.T) {
	cfg := NewConfig(
		WithNetwork("regtest"),
		WithRunMode(runModeDev),
	)
	assert.True(t, cfg.isDevMode())
	// Dev mode runs with in-memory stores, so no data directory is needed
	_, err := New(cfg)
	assert.NoError(t, err)
}
