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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cinderlabs-io/exchequer/budget"
	"github.com/cinderlabs-io/exchequer/chaincfg"
	"github.com/prometheus/client_golang/prometheus"
)

// runMode constants for operational mode configuration
const (
	runModeServe = "serve"
	runModeDev   = "dev"
)

type Config struct {
	promRegistry         prometheus.Registerer
	logger               *slog.Logger
	chainParams          *chaincfg.Params
	verifier             budget.SignatureVerifier
	validators           budget.ValidatorDirectory
	maturity             budget.MaturityOracle
	dataDir              string
	network              string
	validatorFilePath    string
	metricsListenAddress string
	tracing              bool
	tracingStdout        bool
	inMemory             bool
	runMode              string
	shutdownTimeout      time.Duration
}

// configPopulateChainParams uses the named network (if specified) to
// populate the chain parameters (if not specified)
func (n *Node) configPopulateChainParams() error {
	if n.config.chainParams == nil {
		tmpParams, err := chaincfg.ByName(n.config.network)
		if err != nil {
			return err
		}
		n.config.chainParams = &tmpParams
	}
	return nil
}

// isDevMode returns true if running in development mode
func (c *Config) isDevMode() bool {
	return c.runMode == runModeDev
}

func (n *Node) configValidate() error {
	if n.config.chainParams == nil {
		return errors.New("no chain parameters configured")
	}
	if n.config.chainParams.CycleBlocks <= 0 {
		return fmt.Errorf(
			"invalid budget cycle length: %d",
			n.config.chainParams.CycleBlocks,
		)
	}
	if n.config.dataDir == "" && !n.config.inMemory &&
		!n.config.isDevMode() {
		return errors.New(
			"no data directory configured and in-memory mode not enabled",
		)
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the node config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new exchequer config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
		runMode: runModeServe,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithChainParams specifies the chain parameters to use. This overrides any
// named network specified
func WithChainParams(params *chaincfg.Params) ConfigOptionFunc {
	return func(c *Config) {
		c.chainParams = params
	}
}

// WithDataDir specifies the persistent data directory to use
func WithDataDir(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithInMemory specifies whether to store everything in memory. This is
// mostly useful for tests and development mode
func WithInMemory(inMemory bool) ConfigOptionFunc {
	return func(c *Config) {
		c.inMemory = inMemory
	}
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithMaturityOracle specifies the oracle used to check collateral fee
// confirmations and age. Without one, no proposal can establish.
func WithMaturityOracle(maturity budget.MaturityOracle) ConfigOptionFunc {
	return func(c *Config) {
		c.maturity = maturity
	}
}

// WithMetricsListenAddress specifies the address to serve prometheus
// metrics on. The default is to not serve metrics.
func WithMetricsListenAddress(address string) ConfigOptionFunc {
	return func(c *Config) {
		c.metricsListenAddress = address
	}
}

// WithNetwork specifies the named network to operate on. This will
// automatically set the appropriate chain parameters
func WithNetwork(network string) ConfigOptionFunc {
	return func(c *Config) {
		c.network = network
	}
}

// WithPrometheusRegistry specifies a prometheus registerer for metrics
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithRunMode specifies the run mode ("serve" or "dev")
func WithRunMode(runMode string) ConfigOptionFunc {
	return func(c *Config) {
		c.runMode = runMode
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The
// default is 30 seconds.
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}

// WithSignatureVerifier specifies the vote signature verifier. This
// defaults to secp256k1 message signatures.
func WithSignatureVerifier(verifier budget.SignatureVerifier) ConfigOptionFunc {
	return func(c *Config) {
		c.verifier = verifier
	}
}

// WithTracing enables tracing
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. The default is to
// output to a local OTLP HTTP endpoint
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithValidatorDirectory specifies the validator directory used to resolve
// voter keys. This overrides any validator file path.
func WithValidatorDirectory(
	validators budget.ValidatorDirectory,
) ConfigOptionFunc {
	return func(c *Config) {
		c.validators = validators
	}
}

// WithValidatorFilePath specifies a YAML validator file to load into the
// built-in validator registry
func WithValidatorFilePath(path string) ConfigOptionFunc {
	return func(c *Config) {
		c.validatorFilePath = path
	}
}
