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

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "exchequer.config"

const DefaultShutdownTimeout = "30s"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

// RunMode represents the operational mode of the exchequer daemon
type RunMode string

const (
	RunModeServe RunMode = "serve" // Durable daemon (default)
	RunModeDev   RunMode = "dev"   // Development mode (in-memory stores)
)

// Valid returns true if the RunMode is a known valid mode
func (m RunMode) Valid() bool {
	switch m {
	case RunModeServe, RunModeDev, "":
		return true
	default:
		return false
	}
}

// IsDevMode returns true if the mode enables development behaviors
func (m RunMode) IsDevMode() bool {
	return m == RunModeDev
}

type Config struct {
	Network         string  `yaml:"network"`
	DataDir         string  `yaml:"dataDir"         split_words:"true"`
	ValidatorFile   string  `yaml:"validatorFile"   split_words:"true"`
	BindAddr        string  `yaml:"bindAddr"        split_words:"true"`
	ShutdownTimeout string  `yaml:"shutdownTimeout" split_words:"true"`
	RunMode         RunMode `yaml:"runMode"         envconfig:"EXCHEQUER_RUN_MODE"`
	MetricsPort     uint    `yaml:"metricsPort"     split_words:"true"`
	InMemory        bool    `yaml:"inMemory"        split_words:"true"`
	Tracing         bool    `yaml:"tracing"`
	TracingStdout   bool    `yaml:"tracingStdout"   split_words:"true"`
}

var globalConfig = &Config{
	Network:         "mainnet",
	DataDir:         ".exchequer",
	BindAddr:        "0.0.0.0",
	MetricsPort:     12799,
	RunMode:         RunModeServe,
	ShutdownTimeout: DefaultShutdownTimeout,
}

func LoadConfig(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.exchequer/exchequer.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(
				homeDir,
				".exchequer",
				"exchequer.yaml",
			)
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/exchequer/exchequer.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/exchequer/exchequer.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		err = yaml.Unmarshal(buf, globalConfig)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	// Load config values from environment variables
	// We use "dummy" as the app name to (mostly) prevent picking up env
	// vars that we hadn't explicitly specified in annotations above
	err := envconfig.Process("dummy", globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}

	if !globalConfig.RunMode.Valid() {
		return nil, fmt.Errorf("invalid run mode: %s", globalConfig.RunMode)
	}

	return globalConfig, nil
}

// GetConfig returns the global config instance
func GetConfig() *Config {
	return globalConfig
}
