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
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cinderlabs-io/exchequer/budget"
	"github.com/cinderlabs-io/exchequer/chaincfg"
	"github.com/cinderlabs-io/exchequer/database"
	"github.com/cinderlabs-io/exchequer/event"
	"github.com/cinderlabs-io/exchequer/msgsig"
	"github.com/cinderlabs-io/exchequer/valstore"
)

type Node struct {
	eventBus      *event.EventBus
	db            *database.Database
	manager       *budget.Manager
	validators    *valstore.Registry
	shutdownFuncs []func(context.Context) error
	config        Config
	done          chan struct{}
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Node, error) {
	eventBus := event.NewEventBus(cfg.promRegistry)
	n := &Node{
		config:   cfg,
		eventBus: eventBus,
		done:     make(chan struct{}),
	}
	if err := n.configPopulateChainParams(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := n.configValidate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return n, nil
}

func (n *Node) Run() error {
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(); err != nil {
			return err
		}
	}
	// Load database
	db, err := database.New(database.Config{
		DataDir:  n.config.dataDir,
		Logger:   n.config.logger,
		InMemory: n.config.inMemory || n.config.isDevMode(),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	n.db = db
	// Resolve vote verification collaborators
	verifier := n.config.verifier
	if verifier == nil {
		verifier = msgsig.NewVerifier()
	}
	validators := n.config.validators
	if validators == nil {
		registry, err := valstore.NewRegistry(valstore.RegistryConfig{
			Logger: n.config.logger,
			Path:   n.config.validatorFilePath,
		})
		if err != nil {
			return fmt.Errorf("failed to load validator registry: %w", err)
		}
		n.validators = registry
		validators = registry
	}
	// Load budget manager
	n.manager = budget.NewManager(budget.ManagerConfig{
		PromRegistry: n.config.promRegistry,
		Logger:       n.config.logger,
		EventBus:     n.eventBus,
		Verifier:     verifier,
		Validators:   validators,
		Maturity:     n.config.maturity,
		Store:        n.db,
		Params:       *n.config.chainParams,
	})
	if err := n.manager.LoadFromStore(); err != nil {
		return fmt.Errorf("failed to load budget state: %w", err)
	}
	n.config.logger.Info(
		"budget engine ready",
		"component", "node",
		"network", n.config.network,
		"cycle_blocks", n.config.chainParams.CycleBlocks,
	)

	// Wait for shutdown signal
	<-n.done
	return nil
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := 30 * time.Second
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	n.config.logger.Debug("starting graceful shutdown")

	// Phase 1: Stop accepting new work
	n.config.logger.Debug("shutdown phase 1: stopping new work")

	if n.eventBus != nil {
		n.eventBus.Stop()
	}

	// Phase 2: Flush state and close database
	n.config.logger.Debug("shutdown phase 2: flushing state")

	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(
				err,
				fmt.Errorf("database close: %w", closeErr),
			)
		}
	}

	// Phase 3: Cleanup resources
	n.config.logger.Debug("shutdown phase 3: cleanup resources")

	// Call registered shutdown functions
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	n.config.logger.Debug("graceful shutdown complete")
	close(n.done)
	return err
}

// Manager returns the budget manager. It is nil until Run has initialized
// the node.
func (n *Node) Manager() *budget.Manager {
	return n.manager
}

// EventBus returns the node's event bus
func (n *Node) EventBus() *event.EventBus {
	return n.eventBus
}

// Validators returns the built-in validator registry, or nil when the node
// was configured with an external validator directory
func (n *Node) Validators() *valstore.Registry {
	return n.validators
}

// ChainParams returns the chain parameters the node is running with
func (n *Node) ChainParams() chaincfg.Params {
	return *n.config.chainParams
}
